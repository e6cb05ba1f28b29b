// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

/*
The credential engine: registration, login with lockout, password lifecycle,
and email verification.

Architecture:

  - Service: Orchestrates business logic across both stores.
  - Postgres: Source of truth for identity, credentials, sessions, tokens.
  - Redis: Source of truth for lockout counters, family heads, metadata.
  - Security: bcrypt hashing, HS256 JWTs with split secrets, event emission.

The package ensures that identity data remains consistent and secure throughout
the platform's lifecycle.
*/

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/identra-io/identra/internal/mailer"
	"github.com/identra-io/identra/internal/platform/apperr"
	"github.com/identra-io/identra/internal/platform/constants"
	"github.com/identra-io/identra/internal/platform/ctxutil"
	"github.com/identra-io/identra/internal/platform/sec"
	"github.com/identra-io/identra/internal/secevent"
	"github.com/identra-io/identra/pkg/uuidv7"
)

// # Contracts & Types

// TokenProvider defines the contract for minting and checking bearer tokens.
//
// # Why an interface?
//
// [*sec.TokenService] satisfies it in production; tests inject a deterministic
// implementation.
type TokenProvider interface {
	IssueAccess(input sec.TokenInput) (string, error)
	IssueRefresh(input sec.TokenInput) (string, error)
	VerifyRefresh(tokenString string) (*sec.Claims, error)
	RefreshTTL() time.Duration
}

// Service implements the credential and session use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, lockout,
// or rotation logic must be reviewed by the security team.
type Service struct {
	users         UserRepository
	verifications VerificationRepository
	resets        ResetRepository
	sessions      SessionRepository
	lockouts      LockoutStore
	families      FamilyStore
	meta          MetaStore
	cache         UserCache
	tokens        TokenProvider
	mail          mailer.Sender
	events        *secevent.Emitter
	frontendURL   string
}

// NewService constructs a new [Service] with its store and platform dependencies.
func NewService(
	users UserRepository,
	verifications VerificationRepository,
	resets ResetRepository,
	sessions SessionRepository,
	lockouts LockoutStore,
	families FamilyStore,
	meta MetaStore,
	cache UserCache,
	tokens TokenProvider,
	mail mailer.Sender,
	events *secevent.Emitter,
	frontendURL string,
) *Service {
	return &Service{
		users:         users,
		verifications: verifications,
		resets:        resets,
		sessions:      sessions,
		lockouts:      lockouts,
		families:      families,
		meta:          meta,
		cache:         cache,
		tokens:        tokens,
		mail:          mail,
		events:        events,
		frontendURL:   frontendURL,
	}
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new account.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	UserName  *string
}

/*
Register validates, hashes, and persists a brand new user account.

Description: Creates the User with an unverified email, dispatches the
verification mail fire-and-forget, and mints a first session.

Parameters:
  - ctx: context.Context
  - input: RegisterInput
  - meta: RequestMeta

Returns:
  - *AuthResult: Created user plus a fresh token pair
  - error: apperr.Conflict (email taken) or storage errors
*/
func (service *Service) Register(ctx context.Context, input RegisterInput, meta RequestMeta) (*AuthResult, error) {

	// ── 1. Uniqueness Check ───────────────────────────────────────────────
	// The unique index is the real guard; this early check produces the
	// friendlier message for the common case.
	if _, err := service.users.FindByEmail(ctx, input.Email); err == nil {
		return nil, apperr.Conflict("Email is already registered")
	}

	// ── 2. Credential Hashing ─────────────────────────────────────────────
	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	// ── 3. Account Creation ───────────────────────────────────────────────
	// Time-sortable ID to prevent PG index fragmentation.
	user := &User{
		ID:            uuidv7.New(),
		Email:         input.Email,
		PasswordHash:  &hashedPassword,
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		UserName:      input.UserName,
		Role:          sec.RoleUser,
		EmailVerified: false,
		IsActive:      true,
	}

	if err := service.users.Create(ctx, user); err != nil {
		return nil, err
	}

	// ── 4. Verification Dispatch ──────────────────────────────────────────
	service.sendVerificationMail(ctx, user)

	// ── 5. Session Issue ──────────────────────────────────────────────────
	tokens, _, err := service.Issue(ctx, user, LoginMethodPassword, meta)
	if err != nil {
		return nil, err
	}

	service.events.Emit(ctx, secevent.Event{
		Type:      secevent.RegisterSuccess,
		UserID:    user.ID,
		Email:     user.Email,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})

	return &AuthResult{User: user, Tokens: *tokens}, nil
}

// sendVerificationMail creates the verification row and dispatches the link.
// Mail failure is logged, never surfaced: registration must not depend on SMTP.
func (service *Service) sendVerificationMail(ctx context.Context, user *User) {
	token, err := sec.RandomToken()
	if err != nil {
		ctxutil.GetLogger(ctx).ErrorContext(ctx, "verification_token_generation_failed", slog.Any("error", err))
		return
	}

	verification := &EmailVerification{
		ID:     uuidv7.New(),
		UserID: user.ID,
		Token:  token,
	}
	if err := service.verifications.Create(ctx, verification); err != nil {
		ctxutil.GetLogger(ctx).ErrorContext(ctx, "verification_row_create_failed", slog.Any("error", err))
		return
	}

	service.dispatchMail(ctx, user.Email, func() (string, string) {
		return mailer.VerificationMail(service.frontendURL, token)
	})

	service.events.Emit(ctx, secevent.Event{
		Type:   secevent.EmailVerificationSent,
		UserID: user.ID,
		Email:  user.Email,
	})
}

// dispatchMail delivers one mail in a detached goroutine. The request's
// cancellation must not abort delivery, so the context is severed and the
// send is bounded by its own timeout.
func (service *Service) dispatchMail(ctx context.Context, to string, build func() (subject, body string)) {
	logger := ctxutil.GetLogger(ctx)
	detached := context.WithoutCancel(ctx)

	go func() {
		sendCtx, cancel := context.WithTimeout(detached, constants.MailDispatchTimeout)
		defer cancel()

		subject, body := build()
		if err := service.mail.Send(sendCtx, to, subject, body); err != nil {
			logger.ErrorContext(sendCtx, "mail_dispatch_failed",
				slog.String("to", to),
				slog.Any("error", err),
			)
		}
	}()
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string
	Password string
}

/*
Login validates user credentials under the lockout policy and issues tokens.

Description: A locked email fails fast without touching Postgres. Credential
failures are uniform — the caller can never distinguish "no such user" from
"wrong password". Five failures lock the email for thirty minutes.

Parameters:
  - ctx: context.Context
  - input: LoginInput
  - meta: RequestMeta

Returns:
  - *AuthResult: Authenticated user plus a fresh token pair
  - error: apperr.Unauthorized or internal failures
*/
func (service *Service) Login(ctx context.Context, input LoginInput, meta RequestMeta) (*AuthResult, error) {
	now := time.Now()

	// ── 1. Lockout Gate ───────────────────────────────────────────────────
	// Fail-open on Redis outage: skipping the gate is preferred over locking
	// everyone out, and the incident is logged.
	record, err := service.lockouts.Get(ctx, input.Email)
	if err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "lockout_check_unavailable", slog.Any("error", err))
	} else if record != nil && record.Locked(now) {
		return nil, lockedError(record, now)
	}

	// ── 2. Credential Verification ────────────────────────────────────────
	user, err := service.users.FindByEmail(ctx, input.Email)
	if err != nil || !user.HasPassword() || !sec.CheckPasswordHash(input.Password, *user.PasswordHash) {
		service.handleFailedLogin(ctx, input.Email, meta)
		return nil, apperr.Unauthorized("Invalid email or password")
	}

	if user.IsSuspended || !user.IsActive {
		return nil, apperr.Unauthorized("Account is not available")
	}

	// ── 3. Lockout Reset ──────────────────────────────────────────────────
	if clearErr := service.lockouts.Clear(ctx, input.Email); clearErr != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "lockout_clear_failed", slog.Any("error", clearErr))
	} else if record != nil && record.Attempts > 0 {
		service.events.Emit(ctx, secevent.Event{
			Type:   secevent.AccountUnlocked,
			UserID: user.ID,
			Email:  user.Email,
		})
	}

	// ── 4. Session Issue ──────────────────────────────────────────────────
	tokens, _, err := service.Issue(ctx, user, LoginMethodPassword, meta)
	if err != nil {
		return nil, err
	}

	service.events.Emit(ctx, secevent.Event{
		Type:      secevent.LoginSuccess,
		UserID:    user.ID,
		Email:     user.Email,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})

	return &AuthResult{User: user, Tokens: *tokens}, nil
}

// lockedError builds the Unauthorized error carrying the remaining minutes.
func lockedError(record *LockoutRecord, now time.Time) error {
	remaining := int(record.LockedUntil.Sub(now).Minutes()) + 1
	return apperr.Unauthorized(fmt.Sprintf("Account is locked. Try again in %d minutes.", remaining))
}

// handleFailedLogin increments the per-email counter and escalates to a
// lockout at the threshold. All failures here are absorbed: the caller has
// already decided to return the uniform Unauthorized.
func (service *Service) handleFailedLogin(ctx context.Context, email string, meta RequestMeta) {
	count, err := service.lockouts.Increment(ctx, email)
	if err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "lockout_increment_failed", slog.Any("error", err))
		return
	}

	if count >= MaxLoginAttempts {
		until := time.Now().Add(LockoutDuration)
		if err := service.lockouts.Lock(ctx, email, until); err != nil {
			ctxutil.GetLogger(ctx).WarnContext(ctx, "lockout_lock_failed", slog.Any("error", err))
		}
		service.events.Emit(ctx, secevent.Event{
			Type:      secevent.AccountLocked,
			Email:     email,
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
		})
		return
	}

	service.events.Emit(ctx, secevent.Event{
		Type:      secevent.LoginFailed,
		Email:     email,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
}

// # Password Recovery

/*
RequestPasswordReset initiates the forgot-password flow.

Description: Always reports success to prevent user enumeration. When the
account exists, a one-hour reset token is persisted and mailed.

Parameters:
  - ctx: context.Context
  - email: string

Returns:
  - error: Only internal failures; an unknown email is NOT an error
*/
func (service *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := service.users.FindByEmail(ctx, email)
	if err != nil {
		// Unknown email: silently succeed.
		return nil
	}

	token, err := sec.RandomToken()
	if err != nil {
		return fmt.Errorf("auth_service_generate_reset_token_failed: %w", err)
	}

	reset := &PasswordReset{
		ID:        uuidv7.New(),
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(ResetTokenTTL),
	}
	if err := service.resets.Create(ctx, reset); err != nil {
		return fmt.Errorf("auth_service_save_reset_token_failed: %w", err)
	}

	service.dispatchMail(ctx, user.Email, func() (string, string) {
		return mailer.ResetMail(service.frontendURL, token)
	})

	service.events.Emit(ctx, secevent.Event{
		Type:   secevent.PasswordResetRequested,
		UserID: user.ID,
		Email:  user.Email,
	})

	return nil
}

/*
ResetPassword completes the forgot-password flow.

Description: Verifies the token window and single-use flag, rehashes, marks
the token consumed, and force-logs-out every session of the user.

Parameters:
  - ctx: context.Context
  - token: string
  - newPassword: string

Returns:
  - error: apperr.BadRequest for a dead token, or storage failures
*/
func (service *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	reset, err := service.resets.FindByToken(ctx, token)
	if err != nil {
		return apperr.BadRequest("Invalid or expired reset token")
	}
	if !reset.Valid(time.Now()) {
		return apperr.BadRequest("Invalid or expired reset token")
	}

	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_reset_password_hash_failed: %w", err)
	}

	if err := service.users.UpdatePassword(ctx, reset.UserID, hashedPassword); err != nil {
		return err
	}

	if err := service.resets.MarkUsed(ctx, reset.ID, time.Now()); err != nil {
		return err
	}

	// Forced global logout, then cache invalidation before reporting success.
	service.RevokeAllForUser(ctx, reset.UserID)
	service.invalidateUser(ctx, reset.UserID)

	service.events.Emit(ctx, secevent.Event{
		Type:   secevent.PasswordResetSuccess,
		UserID: reset.UserID,
	})

	return nil
}

/*
ChangePassword allows an authenticated user to rotate their credentials.

Description: Requires re-verification of the current password, then deletes
every session of the user so all devices must sign in again.

Parameters:
  - ctx: context.Context
  - userID: string
  - currentPassword: string
  - newPassword: string

Returns:
  - error: apperr.Unauthorized or storage failures
*/
func (service *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := service.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if !user.HasPassword() {
		return apperr.BadRequest("Password login is not enabled for this account")
	}
	if !sec.CheckPasswordHash(currentPassword, *user.PasswordHash) {
		return apperr.Unauthorized("Current password is incorrect")
	}

	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_change_password_hash_failed: %w", err)
	}

	if err := service.users.UpdatePassword(ctx, userID, hashedPassword); err != nil {
		return err
	}

	service.RevokeAllForUser(ctx, userID)
	service.invalidateUser(ctx, userID)

	service.events.Emit(ctx, secevent.Event{
		Type:   secevent.PasswordChanged,
		UserID: userID,
		Email:  user.Email,
	})

	return nil
}

// # Email Verification

/*
VerifyEmail confirms a user's email address using a verification token.

Description: Rejects an unknown token, an already-verified token, and a token
older than 24 hours. Success flips both the row and the account flag.

Parameters:
  - ctx: context.Context
  - token: string

Returns:
  - error: apperr.BadRequest or storage failures
*/
func (service *Service) VerifyEmail(ctx context.Context, token string) error {
	verification, err := service.verifications.FindByToken(ctx, token)
	if err != nil {
		return apperr.BadRequest("Invalid verification token")
	}

	if verification.Verified {
		return apperr.BadRequest("Email is already verified")
	}
	if verification.Expired(time.Now()) {
		return apperr.BadRequest("Verification token has expired")
	}

	if err := service.verifications.MarkVerified(ctx, verification.ID, time.Now()); err != nil {
		return err
	}
	if err := service.users.MarkEmailVerified(ctx, verification.UserID); err != nil {
		return err
	}

	service.invalidateUser(ctx, verification.UserID)

	service.events.Emit(ctx, secevent.Event{
		Type:   secevent.EmailVerified,
		UserID: verification.UserID,
	})

	return nil
}

// # Cache-Aside Reads

/*
GetUserByID resolves a user through the read-through cache.

Description: Cache hit returns immediately; a miss falls through to Postgres
and repopulates the entry. Redis failures degrade to plain database reads.

Parameters:
  - ctx: context.Context
  - userID: string

Returns:
  - *User: Hydrated entity
  - error: apperr.NotFound or database errors
*/
func (service *Service) GetUserByID(ctx context.Context, userID string) (*User, error) {
	cached, err := service.cache.Get(ctx, userID)
	if err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "user_cache_read_failed", slog.Any("error", err))
	} else if cached != nil {
		return cached, nil
	}

	user, err := service.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := service.cache.Set(ctx, user); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "user_cache_write_failed", slog.Any("error", err))
	}

	return user, nil
}

// invalidateUser drops the cache entry before a mutation reports success.
func (service *Service) invalidateUser(ctx context.Context, userID string) {
	if err := service.cache.Invalidate(ctx, userID); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "user_cache_invalidate_failed", slog.Any("error", err))
	}
}

// InvalidateUser exposes cache invalidation to collaborating packages
// (profile writes must drop the cached User before responding).
func (service *Service) InvalidateUser(ctx context.Context, userID string) {
	service.invalidateUser(ctx, userID)
}
