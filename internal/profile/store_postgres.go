// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/identra-io/identra/internal/platform/apperr"
)

// PostgresRepository implements the Repository interface.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL implementation of Repository.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

/*
FindByUserID retrieves the profile row for a user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *UserProfile: Hydrated profile
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresRepository) FindByUserID(context context.Context, userID string) (*UserProfile, error) {
	const query = `
		SELECT userid, displayname, bio, avatarurl, website, location, updatedat
		FROM identity.profile
		WHERE userid = $1`

	profile := &UserProfile{}
	err := repository.pool.QueryRow(context, query, userID).Scan(
		&profile.UserID,
		&profile.DisplayName,
		&profile.Bio,
		&profile.AvatarURL,
		&profile.Website,
		&profile.Location,
		&profile.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Profile")
		}
		return nil, fmt.Errorf("postgres_profile_repo_find_failed: %w", err)
	}

	return profile, nil
}

/*
Upsert saves or updates the profile row.

Description: ON CONFLICT on the userid primary key makes the first write and
every later write the same statement.

Parameters:
  - context: context.Context
  - profile: *UserProfile

Returns:
  - error: Storage failures
*/
func (repository *PostgresRepository) Upsert(context context.Context, profile *UserProfile) error {
	const query = `
		INSERT INTO identity.profile (userid, displayname, bio, avatarurl, website, location, updatedat)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (userid) DO UPDATE SET
			displayname = EXCLUDED.displayname,
			bio         = EXCLUDED.bio,
			avatarurl   = EXCLUDED.avatarurl,
			website     = EXCLUDED.website,
			location    = EXCLUDED.location,
			updatedat   = EXCLUDED.updatedat`

	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		profile.UserID,
		profile.DisplayName,
		profile.Bio,
		profile.AvatarURL,
		profile.Website,
		profile.Location,
		profile.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_profile_repo_upsert_failed: %w", err)
	}

	return nil
}
