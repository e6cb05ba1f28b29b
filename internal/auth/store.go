// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package auth

import (
	"context"
	"time"
)

// # User Data Access

// UserRepository defines the durable data access contract for user accounts.
type UserRepository interface {

	/*
		Create persists a brand-new user account to the storage.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: apperr.Conflict on duplicate email/username, or persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the account with the given email.
		The lookup is case-insensitive.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		UpdatePassword replaces only the user's password hash.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - newHash: string

		Returns:
		  - error: Persistence failures
	*/
	UpdatePassword(context context.Context, userID, newHash string) error

	/*
		MarkEmailVerified flips the account's emailverified flag to true.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	MarkEmailVerified(context context.Context, userID string) error
}

// # Consumable Token Data Access

// VerificationRepository defines the contract for durable email verification tokens.
type VerificationRepository interface {

	// Create persists a fresh verification row.
	Create(context context.Context, verification *EmailVerification) error

	// FindByToken resolves a token to its row. Returns apperr.NotFound when unknown.
	FindByToken(context context.Context, token string) (*EmailVerification, error)

	// MarkVerified stamps the row verified at the given time.
	MarkVerified(context context.Context, id string, verifiedAt time.Time) error
}

// ResetRepository defines the contract for durable password reset tokens.
type ResetRepository interface {

	// Create persists a fresh reset row.
	Create(context context.Context, reset *PasswordReset) error

	// FindByToken resolves a token to its row. Returns apperr.NotFound when unknown.
	FindByToken(context context.Context, token string) (*PasswordReset, error)

	// MarkUsed consumes the row so it can never be redeemed again.
	MarkUsed(context context.Context, id string, usedAt time.Time) error

	// DeleteExpired removes rows whose ExpiresAt is in the past.
	DeleteExpired(context context.Context) (int64, error)
}

// # Session Data Access

// SessionRepository defines the durable data access contract for refresh-token sessions.
type SessionRepository interface {

	/*
		Create persists a new session row for an authenticated login.

		Parameters:
		  - context: context.Context
		  - session: *Session

		Returns:
		  - error: apperr.Conflict when the token already exists (lost rotation race),
		    or persistence failures
	*/
	Create(context context.Context, session *Session) error

	/*
		FindByToken returns the session holding the exact refresh-token string.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - *Session: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByToken(context context.Context, token string) (*Session, error)

	/*
		DeleteByToken removes the session holding the given token.

		The returned flag is the serialization point for concurrent rotations:
		only one caller observes true for any given token.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - bool: true when a row was actually deleted
		  - error: Persistence failures
	*/
	DeleteByToken(context context.Context, token string) (bool, error)

	/*
		DeleteOwned removes a session only if it belongs to the given user.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - sessionID: string

		Returns:
		  - bool: true when a row was actually deleted
		  - error: Persistence failures
	*/
	DeleteOwned(context context.Context, userID, sessionID string) (bool, error)

	/*
		DeleteAllForUser removes every session of a user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []string: IDs of the deleted sessions, for metadata cleanup
		  - error: Persistence failures
	*/
	DeleteAllForUser(context context.Context, userID string) ([]string, error)

	/*
		DeleteOthers removes every session of a user except the given one.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - keepSessionID: string

		Returns:
		  - []string: IDs of the deleted sessions, for metadata cleanup
		  - error: Persistence failures
	*/
	DeleteOthers(context context.Context, userID, keepSessionID string) ([]string, error)

	/*
		ListForUser returns every session row of a user, newest first.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []Session: All rows, including expired ones not yet swept
		  - error: Persistence failures
	*/
	ListForUser(context context.Context, userID string) ([]Session, error)

	// DeleteExpired removes rows whose ExpiresAt is in the past.
	DeleteExpired(context context.Context) (int64, error)
}

// # Volatile Data Access

// LockoutStore tracks failed-login counters and lockouts, keyed by email.
//
// The counter increment must be atomic so two concurrent failures never
// collapse into one.
type LockoutStore interface {

	// Increment atomically bumps the failure counter and refreshes its TTL.
	// Returns the post-increment count.
	Increment(context context.Context, email string) (int64, error)

	// Lock stamps the record with a locked-until deadline and narrows its
	// TTL to the lockout window.
	Lock(context context.Context, email string, until time.Time) error

	// Get returns the current record, or nil when the email has a clean slate.
	Get(context context.Context, email string) (*LockoutRecord, error)

	// Clear wipes the record after a successful login.
	Clear(context context.Context, email string) error
}

// FamilyStore tracks the head token of each refresh-token family.
type FamilyStore interface {

	// Set writes (or replaces) the family head with a fresh TTL.
	Set(context context.Context, familyID string, head FamilyHead, ttl time.Duration) error

	// Get returns the head, or nil when the family has no entry.
	Get(context context.Context, familyID string) (*FamilyHead, error)

	// Delete removes the family head. Idempotent.
	Delete(context context.Context, familyID string) error
}

// MetaStore keeps best-effort transport metadata per session.
type MetaStore interface {

	// Set writes the metadata record with a fresh TTL.
	Set(context context.Context, sessionID string, meta SessionMeta, ttl time.Duration) error

	// Get returns the record, or nil when absent or unreadable.
	Get(context context.Context, sessionID string) (*SessionMeta, error)

	// Delete removes the record. Idempotent.
	Delete(context context.Context, sessionID string) error
}

// UserCache is the non-authoritative read-through cache for User records.
// Every method is best-effort; a miss or failure falls through to Postgres.
type UserCache interface {

	// Get returns the cached user, or nil on miss.
	Get(context context.Context, userID string) (*User, error)

	// Set stores the user under the standard cache TTL.
	Set(context context.Context, user *User) error

	// Invalidate drops the cached entry. Must be called before any User
	// mutation reports success.
	Invalidate(context context.Context, userID string) error
}
