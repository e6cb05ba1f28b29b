// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/identra-io/identra/internal/platform/apperr"
	"github.com/identra-io/identra/internal/platform/ctxutil"
	"github.com/identra-io/identra/internal/platform/sec"
	"github.com/identra-io/identra/internal/secevent"
	"github.com/identra-io/identra/pkg/uuidv7"
)

// # Session Issue

/*
Issue mints a fresh token pair and anchors it in a new Session row.

Description: Starts a brand-new token family. The family head is written
before the session row; the session row is committed before the tokens are
returned. A head-write failure is tolerated (invariant: a family without a
head falls back to the Session row check).

Parameters:
  - ctx: context.Context
  - user: *User
  - loginMethod: string (password, google, github)
  - meta: RequestMeta

Returns:
  - *TokenPair: Access and refresh tokens
  - string: The new session ID
  - error: Signing or storage failures
*/
func (service *Service) Issue(ctx context.Context, user *User, loginMethod string, meta RequestMeta) (*TokenPair, string, error) {
	sessionID := uuidv7.New()
	familyID, err := sec.RandomToken()
	if err != nil {
		return nil, "", err
	}

	return service.mint(ctx, user, familyID, sessionID, loginMethod, meta)
}

// mint produces tokens for an existing or new family and persists the session.
func (service *Service) mint(ctx context.Context, user *User, familyID, sessionID, loginMethod string, meta RequestMeta) (*TokenPair, string, error) {
	input := sec.TokenInput{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		FamilyID:  familyID,
		SessionID: sessionID,
	}

	accessToken, err := service.tokens.IssueAccess(input)
	if err != nil {
		return nil, "", err
	}
	refreshToken, err := service.tokens.IssueRefresh(input)
	if err != nil {
		return nil, "", err
	}

	refreshTTL := service.tokens.RefreshTTL()

	// ── 1. Family Head ────────────────────────────────────────────────────
	head := FamilyHead{CurrentToken: refreshToken, UserID: user.ID}
	if err := service.families.Set(ctx, familyID, head, refreshTTL); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "family_head_write_failed", slog.Any("error", err))
	}

	// ── 2. Session Row ────────────────────────────────────────────────────
	now := time.Now()
	session := &Session{
		ID:        sessionID,
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: now.Add(refreshTTL),
	}
	if err := service.sessions.Create(ctx, session); err != nil {
		return nil, "", err
	}

	// ── 3. Metadata ───────────────────────────────────────────────────────
	sessionMeta := SessionMeta{
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		LastUsedAt:  now,
		LastLoginAt: now,
		LoginMethod: loginMethod,
	}
	if err := service.meta.Set(ctx, sessionID, sessionMeta, SessionMetaTTL); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "session_meta_write_failed", slog.Any("error", err))
	}

	service.events.Emit(ctx, secevent.Event{
		Type:      secevent.SessionCreated,
		UserID:    user.ID,
		SessionID: sessionID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, sessionID, nil
}

// # Rotation

/*
Refresh implements the refresh-token rotation machine with reuse detection.

Description: A presented token that is a non-head member of a live family is
proof of theft: the whole family is revoked and every session of the user is
purged. A clean rotation deletes the old Session row, advances the family
head, and inserts a fresh row under the same family.

Parameters:
  - ctx: context.Context
  - refreshToken: string
  - meta: RequestMeta

Returns:
  - *AuthResult: The user plus the rotated token pair
  - error: apperr.Unauthorized on any verification failure
*/
func (service *Service) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*AuthResult, error) {

	// ── 1. Signature & Claims ─────────────────────────────────────────────
	claims, err := service.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		service.events.Emit(ctx, secevent.Event{
			Type:  secevent.TokenRefreshFailed,
			IP:    meta.IP,
			Error: err.Error(),
		})
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}

	// ── 2. Reuse Detection ────────────────────────────────────────────────
	head, err := service.families.Get(ctx, claims.FamilyID)
	if err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "family_head_read_failed", slog.Any("error", err))
	}
	if head != nil && head.CurrentToken != refreshToken {
		service.handleTokenReuse(ctx, claims.FamilyID, head.UserID, meta)
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}

	// ── 3. Session Lookup ─────────────────────────────────────────────────
	session, err := service.sessions.FindByToken(ctx, refreshToken)
	if err != nil {
		service.events.Emit(ctx, secevent.Event{
			Type:   secevent.TokenRefreshFailed,
			UserID: claims.UserID,
			IP:     meta.IP,
		})
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}

	// ── 4. Expiry Check ───────────────────────────────────────────────────
	if session.Expired(time.Now()) {
		if _, err := service.sessions.DeleteByToken(ctx, refreshToken); err != nil {
			ctxutil.GetLogger(ctx).WarnContext(ctx, "expired_session_delete_failed", slog.Any("error", err))
		}
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}

	// ── 5. User Load ──────────────────────────────────────────────────────
	user, err := service.users.FindByID(ctx, session.UserID)
	if err != nil || user.IsSuspended || !user.IsActive {
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}

	// ── 6. Rotation Commit ────────────────────────────────────────────────
	// Deleting the presented row first serializes concurrent rotations: the
	// loser observes zero rows deleted and fails closed.
	loginMethod := service.loginMethodOf(ctx, session.ID)

	deleted, err := service.sessions.DeleteByToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}

	if err := service.meta.Delete(ctx, session.ID); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "session_meta_delete_failed", slog.Any("error", err))
	}

	tokens, _, err := service.mint(ctx, user, claims.FamilyID, uuidv7.New(), loginMethod, meta)
	if err != nil {
		return nil, err
	}

	service.events.Emit(ctx, secevent.Event{
		Type:      secevent.TokenRefreshSuccess,
		UserID:    user.ID,
		SessionID: claims.SessionID,
		IP:        meta.IP,
	})

	return &AuthResult{User: user, Tokens: *tokens}, nil
}

// loginMethodOf preserves the original login method across rotations when the
// old metadata record is still readable. Defaults to password.
func (service *Service) loginMethodOf(ctx context.Context, oldSessionID string) string {
	if meta, err := service.meta.Get(ctx, oldSessionID); err == nil && meta != nil && meta.LoginMethod != "" {
		return meta.LoginMethod
	}
	return LoginMethodPassword
}

// handleTokenReuse revokes the compromised family and purges every session
// of the affected user.
func (service *Service) handleTokenReuse(ctx context.Context, familyID, userID string, meta RequestMeta) {
	if err := service.families.Delete(ctx, familyID); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "family_head_delete_failed", slog.Any("error", err))
	}

	service.RevokeAllForUser(ctx, userID)

	service.events.Emit(ctx, secevent.Event{
		Type:      secevent.TokenReuseDetected,
		UserID:    userID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
}

// # Revocation

/*
Logout deletes the session anchored to the presented refresh token.

Description: Idempotent; an unknown or malformed token is still a successful
logout. The family head dies with the session.

Parameters:
  - ctx: context.Context
  - refreshToken: string

Returns:
  - error: Always nil today; reserved for storage failures worth surfacing
*/
func (service *Service) Logout(ctx context.Context, refreshToken string) error {
	session, err := service.sessions.FindByToken(ctx, refreshToken)
	if err != nil {
		return nil
	}

	if _, err := service.sessions.DeleteByToken(ctx, refreshToken); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "logout_session_delete_failed", slog.Any("error", err))
		return nil
	}

	if err := service.meta.Delete(ctx, session.ID); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "session_meta_delete_failed", slog.Any("error", err))
	}

	// The chain ends here; drop the family head if the claims are readable.
	if claims, err := service.tokens.VerifyRefresh(refreshToken); err == nil && claims.FamilyID != "" {
		if err := service.families.Delete(ctx, claims.FamilyID); err != nil {
			ctxutil.GetLogger(ctx).WarnContext(ctx, "family_head_delete_failed", slog.Any("error", err))
		}
	}

	service.events.Emit(ctx, secevent.Event{
		Type:      secevent.SessionRevoked,
		UserID:    session.UserID,
		SessionID: session.ID,
	})

	return nil
}

/*
Sessions returns the session inventory of a user, enriched with metadata.

Description: Metadata is best-effort; a session whose Redis record expired is
listed with transport fields nulled out. The current session is flagged.

Parameters:
  - ctx: context.Context
  - userID: string
  - currentSessionID: string

Returns:
  - []SessionInfo: Newest first
  - error: Database errors
*/
func (service *Service) Sessions(ctx context.Context, userID, currentSessionID string) ([]SessionInfo, error) {
	rows, err := service.sessions.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	infos := make([]SessionInfo, 0, len(rows))
	for _, row := range rows {
		info := SessionInfo{
			ID:        row.ID,
			ExpiresAt: row.ExpiresAt,
			CreatedAt: row.CreatedAt,
			IsCurrent: row.ID == currentSessionID,
		}

		if meta, err := service.meta.Get(ctx, row.ID); err == nil && meta != nil {
			info.IP = meta.IP
			info.UserAgent = meta.UserAgent
			info.LoginMethod = meta.LoginMethod
			lastUsed, lastLogin := meta.LastUsedAt, meta.LastLoginAt
			info.LastUsedAt = &lastUsed
			info.LastLoginAt = &lastLogin
		}

		infos = append(infos, info)
	}

	return infos, nil
}

/*
RevokeSession deletes one session, enforcing ownership.

Description: A session ID that does not exist or belongs to another user
fails NotFound; the caller cannot distinguish the two cases.

Parameters:
  - ctx: context.Context
  - userID: string
  - sessionID: string

Returns:
  - error: apperr.NotFound or storage failures
*/
func (service *Service) RevokeSession(ctx context.Context, userID, sessionID string) error {
	deleted, err := service.sessions.DeleteOwned(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.NotFound("Session")
	}

	if err := service.meta.Delete(ctx, sessionID); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "session_meta_delete_failed", slog.Any("error", err))
	}

	service.events.Emit(ctx, secevent.Event{
		Type:      secevent.SessionRevoked,
		UserID:    userID,
		SessionID: sessionID,
	})

	return nil
}

/*
RevokeOtherSessions deletes every session of the user except the current one.

Parameters:
  - ctx: context.Context
  - userID: string
  - currentSessionID: string

Returns:
  - error: Storage failures
*/
func (service *Service) RevokeOtherSessions(ctx context.Context, userID, currentSessionID string) error {
	ids, err := service.sessions.DeleteOthers(ctx, userID, currentSessionID)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := service.meta.Delete(ctx, id); err != nil {
			ctxutil.GetLogger(ctx).WarnContext(ctx, "session_meta_delete_failed", slog.Any("error", err))
		}
		service.events.Emit(ctx, secevent.Event{
			Type:      secevent.SessionRevoked,
			UserID:    userID,
			SessionID: id,
		})
	}

	return nil
}

// RevokeAllForUser purges every session of a user and its metadata.
// Errors are absorbed: the purge is a security side effect whose partial
// failure must not abort the primary operation.
func (service *Service) RevokeAllForUser(ctx context.Context, userID string) {
	ids, err := service.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		ctxutil.GetLogger(ctx).ErrorContext(ctx, "session_purge_failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return
	}

	for _, id := range ids {
		if err := service.meta.Delete(ctx, id); err != nil {
			ctxutil.GetLogger(ctx).WarnContext(ctx, "session_meta_delete_failed", slog.Any("error", err))
		}
	}
}
