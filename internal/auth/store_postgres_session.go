// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

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

// # Session Repository

// PostgresSessionRepository implements the SessionRepository interface.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new PostgreSQL implementation of SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

/*
Create persists a new session row into the identity.session table.

Description: Records one outstanding refresh token. The unique constraint on
the token column turns a lost rotation race into apperr.Conflict.

Parameters:
  - context: context.Context
  - session: *Session

Returns:
  - error: apperr.Conflict or storage failures
*/
func (repository *PostgresSessionRepository) Create(context context.Context, session *Session) error {
	const query = `
		INSERT INTO identity.session (id, userid, token, expiresat, createdat)
		VALUES ($1, $2, $3, $4, $5)`

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		session.ID,
		session.UserID,
		session.Token,
		session.ExpiresAt,
		session.CreatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "session_create")
	}

	return nil
}

/*
FindByToken retrieves a session by the exact refresh-token string.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - *Session: Hydrated session
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresSessionRepository) FindByToken(context context.Context, token string) (*Session, error) {
	const query = `
		SELECT id, userid, token, expiresat, createdat
		FROM identity.session
		WHERE token = $1`

	session := &Session{}
	err := repository.pool.QueryRow(context, query, token).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.ExpiresAt,
		&session.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Session")
		}
		return nil, fmt.Errorf("postgres_session_repo_find_failed: %w", err)
	}

	return session, nil
}

/*
DeleteByToken removes the session holding the given token.

Description: The rows-affected count is returned as a flag so that concurrent
rotations of the same token can be serialized — only one caller sees true.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - bool: true when a row was deleted
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) DeleteByToken(context context.Context, token string) (bool, error) {
	const query = "DELETE FROM identity.session WHERE token = $1"
	tag, err := repository.pool.Exec(context, query, token)
	if err != nil {
		return false, fmt.Errorf("postgres_session_repo_delete_by_token_failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

/*
DeleteOwned removes a session only when it belongs to the given user.

Parameters:
  - context: context.Context
  - userID: string
  - sessionID: string

Returns:
  - bool: true when a row was deleted
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) DeleteOwned(context context.Context, userID, sessionID string) (bool, error) {
	const query = "DELETE FROM identity.session WHERE id = $1 AND userid = $2"
	tag, err := repository.pool.Exec(context, query, sessionID, userID)
	if err != nil {
		return false, fmt.Errorf("postgres_session_repo_delete_owned_failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

/*
DeleteAllForUser removes every session of a user.

Description: Security nuking after password change/reset or token reuse.
Returns the deleted IDs so the caller can clean up session metadata.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []string: Deleted session IDs
  - error: Batch deletion failures
*/
func (repository *PostgresSessionRepository) DeleteAllForUser(context context.Context, userID string) ([]string, error) {
	const query = "DELETE FROM identity.session WHERE userid = $1 RETURNING id"
	return repository.deleteReturning(context, query, userID)
}

/*
DeleteOthers removes every session of a user except the given one.

Parameters:
  - context: context.Context
  - userID: string
  - keepSessionID: string

Returns:
  - []string: Deleted session IDs
  - error: Filtered deletion failures
*/
func (repository *PostgresSessionRepository) DeleteOthers(context context.Context, userID, keepSessionID string) ([]string, error) {
	const query = "DELETE FROM identity.session WHERE userid = $1 AND id != $2 RETURNING id"
	return repository.deleteReturning(context, query, userID, keepSessionID)
}

// deleteReturning executes a DELETE ... RETURNING id statement and collects the IDs.
func (repository *PostgresSessionRepository) deleteReturning(context context.Context, query string, arguments ...any) ([]string, error) {
	rows, err := repository.pool.Query(context, query, arguments...)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_repo_bulk_delete_failed: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres_session_repo_bulk_delete_scan_failed: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_session_repo_bulk_delete_rows_failed: %w", err)
	}

	return ids, nil
}

/*
ListForUser returns every session row of a user, newest first.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []Session: All rows for the user
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) ListForUser(context context.Context, userID string) ([]Session, error) {
	const query = `
		SELECT id, userid, token, expiresat, createdat
		FROM identity.session
		WHERE userid = $1
		ORDER BY createdat DESC`

	rows, err := repository.pool.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_repo_list_failed: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var session Session
		if err := rows.Scan(
			&session.ID,
			&session.UserID,
			&session.Token,
			&session.ExpiresAt,
			&session.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres_session_repo_list_scan_failed: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_session_repo_list_rows_failed: %w", err)
	}

	return sessions, nil
}

/*
DeleteExpired permanently removes all sessions that have passed their expiration.

Description: Cleanup task invoked by the background sweeper.

Parameters:
  - context: context.Context

Returns:
  - int64: Number of rows removed
  - error: Cleanup failures
*/
func (repository *PostgresSessionRepository) DeleteExpired(context context.Context) (int64, error) {
	const query = "DELETE FROM identity.session WHERE expiresat <= NOW()"
	tag, err := repository.pool.Exec(context, query)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_repo_delete_expired_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}
