// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

// PostgreSQL implementations of the durable repositories.
//
// # Architecture
//
// Repositories here are strictly separated from domain logic. They implement
// the domain-defined interfaces ([UserRepository], [VerificationRepository],
// [ResetRepository]) using the [pgxpool.Pool] connection manager.
//
// # Error Mapping
//
// Storage-specific errors (pgx.ErrNoRows, unique violations) are mapped to
// domain-friendly [apperr.AppError] types via the dberr bridge to avoid
// leaking storage implementation details.

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/identra-io/identra/internal/platform/apperr"
	"github.com/identra-io/identra/internal/platform/dberr"
)

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, email, passwordhash, firstname, lastname, username,
		role, emailverified, isactive, issuspended, createdat, updatedat`

/*
Create persists a new user record into the identity.account table.

Description: Deep-persists account identity, ensuring timestamps are initialized
if not provided. Duplicate email or username surfaces as apperr.Conflict.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: apperr.Conflict, or connectivity errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO identity.account (
			id, email, passwordhash, firstname, lastname, username,
			role, emailverified, isactive, issuspended, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.UserName,
		user.Role,
		user.EmailVerified,
		user.IsActive,
		user.IsSuspended,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "user_create")
	}

	return nil
}

/*
FindByEmail retrieves a user record by their email address.

Description: Case-insensitive lookup; the stored email keeps its original casing.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM identity.account
		WHERE lower(email) = lower($1)`, userColumns)

	return repository.scanOne(context, query, email)
}

/*
FindByID retrieves a user record by their unique ID.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM identity.account
		WHERE id = $1`, userColumns)

	return repository.scanOne(context, query, id)
}

// scanOne executes a single-row user query and hydrates the entity.
func (repository *PostgresUserRepository) scanOne(context context.Context, query string, argument any) (*User, error) {
	user := &User{}
	err := repository.pool.QueryRow(context, query, argument).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.UserName,
		&user.Role,
		&user.EmailVerified,
		&user.IsActive,
		&user.IsSuspended,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_failed: %w", err)
	}

	return user, nil
}

/*
UpdatePassword updates only the password hash for a specific user.

Parameters:
  - context: context.Context
  - userID: string
  - newHash: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, userID, newHash string) error {
	const query = `
		UPDATE identity.account
		SET passwordhash = $2, updatedat = $3
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query, userID, newHash, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_password_failed: %w", err)
	}

	return nil
}

/*
MarkEmailVerified updates the user's status to emailverified = true.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Database errors
*/
func (repository *PostgresUserRepository) MarkEmailVerified(context context.Context, userID string) error {
	const query = "UPDATE identity.account SET emailverified = TRUE, updatedat = $2 WHERE id = $1"
	_, err := repository.pool.Exec(context, query, userID, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_user_repo_mark_verified_failed: %w", err)
	}
	return nil
}

// # Verification Repository

// PostgresVerificationRepository implements VerificationRepository using pgx.
type PostgresVerificationRepository struct {
	pool *pgxpool.Pool
}

// NewVerificationRepository creates a new PostgreSQL implementation of VerificationRepository.
func NewVerificationRepository(pool *pgxpool.Pool) *PostgresVerificationRepository {
	return &PostgresVerificationRepository{pool: pool}
}

// Create persists a new verification row into identity.emailverification.
func (repository *PostgresVerificationRepository) Create(context context.Context, verification *EmailVerification) error {
	const query = `
		INSERT INTO identity.emailverification (id, userid, token, verified, verifiedat, createdat)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if verification.CreatedAt.IsZero() {
		verification.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		verification.ID,
		verification.UserID,
		verification.Token,
		verification.Verified,
		verification.VerifiedAt,
		verification.CreatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "verification_create")
	}

	return nil
}

// FindByToken resolves a verification token to its row.
func (repository *PostgresVerificationRepository) FindByToken(context context.Context, token string) (*EmailVerification, error) {
	const query = `
		SELECT id, userid, token, verified, verifiedat, createdat
		FROM identity.emailverification
		WHERE token = $1`

	verification := &EmailVerification{}
	err := repository.pool.QueryRow(context, query, token).Scan(
		&verification.ID,
		&verification.UserID,
		&verification.Token,
		&verification.Verified,
		&verification.VerifiedAt,
		&verification.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Verification token")
		}
		return nil, fmt.Errorf("postgres_verification_repo_find_failed: %w", err)
	}

	return verification, nil
}

// MarkVerified consumes the verification row.
func (repository *PostgresVerificationRepository) MarkVerified(context context.Context, id string, verifiedAt time.Time) error {
	const query = "UPDATE identity.emailverification SET verified = TRUE, verifiedat = $2 WHERE id = $1"
	_, err := repository.pool.Exec(context, query, id, verifiedAt)
	if err != nil {
		return fmt.Errorf("postgres_verification_repo_mark_failed: %w", err)
	}
	return nil
}

// # Reset Repository

// PostgresResetRepository implements ResetRepository using pgx.
type PostgresResetRepository struct {
	pool *pgxpool.Pool
}

// NewResetRepository creates a new PostgreSQL implementation of ResetRepository.
func NewResetRepository(pool *pgxpool.Pool) *PostgresResetRepository {
	return &PostgresResetRepository{pool: pool}
}

// Create persists a new reset row into identity.passwordreset.
func (repository *PostgresResetRepository) Create(context context.Context, reset *PasswordReset) error {
	const query = `
		INSERT INTO identity.passwordreset (id, userid, token, expiresat, used, usedat, createdat)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if reset.CreatedAt.IsZero() {
		reset.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		reset.ID,
		reset.UserID,
		reset.Token,
		reset.ExpiresAt,
		reset.Used,
		reset.UsedAt,
		reset.CreatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "reset_create")
	}

	return nil
}

// FindByToken resolves a reset token to its row.
func (repository *PostgresResetRepository) FindByToken(context context.Context, token string) (*PasswordReset, error) {
	const query = `
		SELECT id, userid, token, expiresat, used, usedat, createdat
		FROM identity.passwordreset
		WHERE token = $1`

	reset := &PasswordReset{}
	err := repository.pool.QueryRow(context, query, token).Scan(
		&reset.ID,
		&reset.UserID,
		&reset.Token,
		&reset.ExpiresAt,
		&reset.Used,
		&reset.UsedAt,
		&reset.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Reset token")
		}
		return nil, fmt.Errorf("postgres_reset_repo_find_failed: %w", err)
	}

	return reset, nil
}

// MarkUsed consumes the reset row.
func (repository *PostgresResetRepository) MarkUsed(context context.Context, id string, usedAt time.Time) error {
	const query = "UPDATE identity.passwordreset SET used = TRUE, usedat = $2 WHERE id = $1"
	_, err := repository.pool.Exec(context, query, id, usedAt)
	if err != nil {
		return fmt.Errorf("postgres_reset_repo_mark_used_failed: %w", err)
	}
	return nil
}

// DeleteExpired removes reset rows past their expiry. Used by the sweeper.
func (repository *PostgresResetRepository) DeleteExpired(context context.Context) (int64, error) {
	const query = "DELETE FROM identity.passwordreset WHERE expiresat <= NOW()"
	tag, err := repository.pool.Exec(context, query)
	if err != nil {
		return 0, fmt.Errorf("postgres_reset_repo_delete_expired_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}
