// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

/*
Package profile handles the public-facing presentation layer of a user account.

It manages the optional 1:1 profile row (display name, bio, avatar, social
links) that sits next to the identity record without touching any security
state.

# Architecture

  - Entities: UserProfile.
  - Domain: Lazily materialized; a user without a row gets defaults.
  - Cache: Writes invalidate the identity read cache.
*/
package profile

import (
	"context"
	"time"
)

// # Domain Entities

// UserProfile represents the customizable public presentation of a user.
type UserProfile struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Bio         string    `json:"bio"`
	AvatarURL   string    `json:"avatarUrl"`
	Website     string    `json:"website"`
	Location    string    `json:"location"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// # Repository Contracts

// Repository defines the persistence contract for profile rows.
type Repository interface {
	/*
		FindByUserID retrieves the profile row for a specific user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - *UserProfile: Hydrated profile
		  - error: apperr.NotFound if no row exists yet
	*/
	FindByUserID(context context.Context, userID string) (*UserProfile, error)

	/*
		Upsert saves or updates the profile row using an idempotent strategy.

		Parameters:
		  - context: context.Context
		  - profile: *UserProfile

		Returns:
		  - error: Storage failures
	*/
	Upsert(context context.Context, profile *UserProfile) error
}
