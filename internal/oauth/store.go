// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package oauth

import (
	"context"
	"time"
)

// # Entities

// Account links a local user to one external provider identity.
type Account struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Provider   string    `json:"provider"`
	ProviderID string    `json:"-"`
	Email      string    `json:"email"`
	AvatarURL  string    `json:"avatarUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// StateRecord is what a state nonce resolves to when consumed.
type StateRecord struct {
	Provider string    `json:"provider"`
	IssuedAt time.Time `json:"issuedAt"`
}

// # Store Contracts

// AccountRepository persists provider links.
type AccountRepository interface {
	// Create inserts a new link. Duplicate (provider, providerID) pairs
	// surface as apperr.Conflict.
	Create(ctx context.Context, account *Account) error

	// FindByProviderID resolves a link by the provider's subject identifier.
	// Returns apperr.NotFound when no link exists.
	FindByProviderID(ctx context.Context, provider, providerID string) (*Account, error)

	// ListForUser returns every link a user holds, oldest first.
	ListForUser(ctx context.Context, userID string) ([]Account, error)

	// CountForUser returns the number of links a user holds.
	CountForUser(ctx context.Context, userID string) (int64, error)

	// Delete removes a user's link for one provider. Returns true when a
	// row was deleted.
	Delete(ctx context.Context, userID, provider string) (bool, error)
}

// StateStore tracks one-time authorization state nonces.
type StateStore interface {
	// Issue mints a nonce bound to the provider and stores it with a TTL.
	Issue(ctx context.Context, provider string) (string, error)

	// Consume atomically reads and deletes a nonce. Returns nil when the
	// nonce is unknown, expired, or already used.
	Consume(ctx context.Context, state string) (*StateRecord, error)
}
