// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package profile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/identra-io/identra/internal/platform/apperr"
)

// # Service Layer

// CacheInvalidator drops cached identity reads after a profile write.
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID string)
}

// Service orchestrates business logic for user profiles.
type Service struct {
	repository Repository
	cache      CacheInvalidator
	logger     *slog.Logger
}

// NewService constructs a new [Service] with its dependencies.
func NewService(repository Repository, cache CacheInvalidator, logger *slog.Logger) *Service {
	return &Service{repository: repository, cache: cache, logger: logger}
}

/*
Get retrieves the profile of a user.

Description: The row is lazily materialized; a user who never wrote a profile
receives an empty default rather than a 404.

Parameters:
  - ctx: context.Context
  - userID: string

Returns:
  - *UserProfile: Stored or default profile
  - error: Storage failures
*/
func (service *Service) Get(ctx context.Context, userID string) (*UserProfile, error) {
	stored, err := service.repository.FindByUserID(ctx, userID)
	if err != nil {
		if appError := apperr.As(err); appError != nil && appError.Code == "NOT_FOUND" {
			return &UserProfile{UserID: userID, UpdatedAt: time.Now()}, nil
		}
		return nil, fmt.Errorf("profile_service_get_failed: %w", err)
	}

	return stored, nil
}

// UpdateInput defines the mutable subset of profile fields. Nil fields are
// left untouched.
type UpdateInput struct {
	DisplayName *string
	Bio         *string
	AvatarURL   *string
	Website     *string
	Location    *string
}

/*
Update applies a partial set of changes to a user's profile.

Description: Reads the current state (or the lazy default), overlays the
provided fields, and upserts the result. The identity read cache is
invalidated so /me surfaces never go stale against profile-bearing views.

Parameters:
  - ctx: context.Context
  - userID: string
  - input: UpdateInput

Returns:
  - *UserProfile: The updated profile
  - error: Update or storage failures
*/
func (service *Service) Update(ctx context.Context, userID string, input UpdateInput) (*UserProfile, error) {
	profile, err := service.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.DisplayName != nil {
		profile.DisplayName = *input.DisplayName
	}
	if input.Bio != nil {
		profile.Bio = *input.Bio
	}
	if input.AvatarURL != nil {
		profile.AvatarURL = *input.AvatarURL
	}
	if input.Website != nil {
		profile.Website = *input.Website
	}
	if input.Location != nil {
		profile.Location = *input.Location
	}

	profile.UpdatedAt = time.Now()
	if err := service.repository.Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("profile_service_update_failed: %w", err)
	}

	service.cache.InvalidateUser(ctx, userID)
	service.logger.Info("user_profile_updated", slog.String("user_id", userID))

	return profile, nil
}
