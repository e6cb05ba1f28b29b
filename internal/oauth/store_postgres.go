// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package oauth

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

// PostgresAccountRepository implements the AccountRepository interface.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new PostgreSQL implementation of AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

/*
Create persists a new provider link into the identity.oauthaccount table.

Description: The unique constraint on (provider, providerid) guarantees one
local account per external identity; a duplicate surfaces as apperr.Conflict.

Parameters:
  - context: context.Context
  - account: *Account

Returns:
  - error: apperr.Conflict or storage failures
*/
func (repository *PostgresAccountRepository) Create(context context.Context, account *Account) error {
	const query = `
		INSERT INTO identity.oauthaccount (id, userid, provider, providerid, email, avatarurl, createdat)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		account.ID,
		account.UserID,
		account.Provider,
		account.ProviderID,
		account.Email,
		account.AvatarURL,
		account.CreatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "oauth_account_create")
	}

	return nil
}

/*
FindByProviderID resolves a link by the provider's subject identifier.

Parameters:
  - context: context.Context
  - provider: string
  - providerID: string

Returns:
  - *Account: Hydrated link
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresAccountRepository) FindByProviderID(context context.Context, provider, providerID string) (*Account, error) {
	const query = `
		SELECT id, userid, provider, providerid, email, avatarurl, createdat
		FROM identity.oauthaccount
		WHERE provider = $1 AND providerid = $2`

	account := &Account{}
	err := repository.pool.QueryRow(context, query, provider, providerID).Scan(
		&account.ID,
		&account.UserID,
		&account.Provider,
		&account.ProviderID,
		&account.Email,
		&account.AvatarURL,
		&account.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("OAuth account")
		}
		return nil, fmt.Errorf("postgres_oauth_repo_find_failed: %w", err)
	}

	return account, nil
}

/*
ListForUser returns every provider link a user holds.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []Account: Links ordered by creation time
  - error: Execution errors
*/
func (repository *PostgresAccountRepository) ListForUser(context context.Context, userID string) ([]Account, error) {
	const query = `
		SELECT id, userid, provider, providerid, email, avatarurl, createdat
		FROM identity.oauthaccount
		WHERE userid = $1
		ORDER BY createdat ASC`

	rows, err := repository.pool.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_oauth_repo_list_failed: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var account Account
		if err := rows.Scan(
			&account.ID,
			&account.UserID,
			&account.Provider,
			&account.ProviderID,
			&account.Email,
			&account.AvatarURL,
			&account.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres_oauth_repo_list_scan_failed: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_oauth_repo_list_rows_failed: %w", err)
	}

	return accounts, nil
}

/*
CountForUser returns the number of provider links a user holds.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - int64: Link count
  - error: Execution errors
*/
func (repository *PostgresAccountRepository) CountForUser(context context.Context, userID string) (int64, error) {
	const query = "SELECT COUNT(*) FROM identity.oauthaccount WHERE userid = $1"

	var count int64
	if err := repository.pool.QueryRow(context, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres_oauth_repo_count_failed: %w", err)
	}

	return count, nil
}

/*
Delete removes a user's link for one provider.

Parameters:
  - context: context.Context
  - userID: string
  - provider: string

Returns:
  - bool: true when a row was deleted
  - error: Execution errors
*/
func (repository *PostgresAccountRepository) Delete(context context.Context, userID, provider string) (bool, error) {
	const query = "DELETE FROM identity.oauthaccount WHERE userid = $1 AND provider = $2"
	tag, err := repository.pool.Exec(context, query, userID, provider)
	if err != nil {
		return false, fmt.Errorf("postgres_oauth_repo_delete_failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
