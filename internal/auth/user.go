// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

/*
Package auth implements the user identity and session management layer.

It defines the core domain entities (User, Session, EmailVerification,
PasswordReset) and the logic for authentication, account lockout, refresh
token rotation, and account lifecycle.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no external
dependencies and encapsulate all business rules related to user identity.
*/
package auth

import (
	"time"

	"github.com/identra-io/identra/internal/platform/sec"
)

// # Domain Entities

// User represents a registered account on the Identra platform.
//
// PasswordHash is a pointer because OAuth-only accounts carry no password.
// A password login requires PasswordHash != nil.
type User struct {
	ID            string       `json:"id"`
	Email         string       `json:"email"`
	PasswordHash  *string      `json:"-"` // Explicitly omitted from JSON for security.
	FirstName     string       `json:"firstName"`
	LastName      string       `json:"lastName"`
	UserName      *string      `json:"userName,omitempty"`
	Role          sec.UserRole `json:"role"`
	EmailVerified bool         `json:"emailVerified"`
	IsActive      bool         `json:"isActive"`
	IsSuspended   bool         `json:"isSuspended"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// HasPassword reports whether password login is possible for this account.
func (user *User) HasPassword() bool {
	return user.PasswordHash != nil && *user.PasswordHash != ""
}

// EmailVerification is a consumable proof-of-ownership token for an email
// address. A token is expired once 24 hours have passed since CreatedAt;
// expiry is computed at check time, the row itself remains for audit.
type EmailVerification struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Token      string     `json:"-"`
	Verified   bool       `json:"verified"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Expired reports whether the verification window has closed.
func (verification *EmailVerification) Expired(now time.Time) bool {
	return now.Sub(verification.CreatedAt) > VerificationTokenTTL
}

// PasswordReset is a single-use, short-lived credential recovery token.
// Valid iff !Used and ExpiresAt > now.
type PasswordReset struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Token     string     `json:"-"`
	ExpiresAt time.Time  `json:"expiresAt"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Valid reports whether the reset token can still be consumed.
func (reset *PasswordReset) Valid(now time.Time) bool {
	return !reset.Used && reset.ExpiresAt.After(now)
}

// LockoutRecord mirrors the ephemeral login_attempts:{email} state.
type LockoutRecord struct {
	Attempts    int64
	LockedUntil time.Time // Zero when the account is merely counting failures.
}

// Locked reports whether the record currently blocks logins.
func (record *LockoutRecord) Locked(now time.Time) bool {
	return record.LockedUntil.After(now)
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldFirstName       = "firstName"
	FieldLastName        = "lastName"
	FieldUserName        = "userName"
	FieldToken           = "token"
	FieldRefreshToken    = "refreshToken"
	FieldCurrentPassword = "currentPassword"
	FieldNewPassword     = "newPassword"
)
