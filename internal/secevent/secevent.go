// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

/*
Package secevent provides the structured security event sink.

Every security-relevant transition (logins, lockouts, token rotation, OAuth
flows, password lifecycle) is recorded as an enumerated event with a uniform
attribute set.

Architecture:

  - Synchronous: events are emitted inline with the operation.
  - Best-effort: a failed emission never fails the calling operation.
  - Structured: events land in the slog pipeline as machine-parseable records.

Downstream systems (SIEM, alerting) consume these records from the log stream,
so the service itself carries no event storage.
*/
package secevent

import (
	"context"
	"log/slog"
	"time"
)

// EventType enumerates every security event the platform records.
type EventType string

const (
	LoginSuccess           EventType = "LOGIN_SUCCESS"
	LoginFailed            EventType = "LOGIN_FAILED"
	RegisterSuccess        EventType = "REGISTER_SUCCESS"
	AccountLocked          EventType = "ACCOUNT_LOCKED"
	AccountUnlocked        EventType = "ACCOUNT_UNLOCKED"
	TokenRefreshSuccess    EventType = "TOKEN_REFRESH_SUCCESS"
	TokenRefreshFailed     EventType = "TOKEN_REFRESH_FAILED"
	TokenReuseDetected     EventType = "TOKEN_REUSE_DETECTED"
	PasswordResetRequested EventType = "PASSWORD_RESET_REQUESTED"
	PasswordResetSuccess   EventType = "PASSWORD_RESET_SUCCESS"
	PasswordChanged        EventType = "PASSWORD_CHANGED"
	OAuthLoginSuccess      EventType = "OAUTH_LOGIN_SUCCESS"
	OAuthLoginFailed       EventType = "OAUTH_LOGIN_FAILED"
	SessionCreated         EventType = "SESSION_CREATED"
	SessionRevoked         EventType = "SESSION_REVOKED"
	EmailVerificationSent  EventType = "EMAIL_VERIFICATION_SENT"
	EmailVerified          EventType = "EMAIL_VERIFIED"
)

// Event is a single security occurrence. Zero-valued fields are omitted
// from the emitted record.
type Event struct {
	Type      EventType
	UserID    string
	Email     string
	IP        string
	UserAgent string
	SessionID string
	Provider  string
	Error     string
}

// Emitter writes security events into the structured log pipeline.
type Emitter struct {
	logger *slog.Logger
}

// NewEmitter creates an Emitter backed by the given logger.
func NewEmitter(logger *slog.Logger) *Emitter {
	return &Emitter{logger: logger.With(slog.String("channel", "security"))}
}

// Emit records a single event. It never returns an error and never panics;
// emission failures are absorbed so the calling operation is unaffected.
func (emitter *Emitter) Emit(ctx context.Context, event Event) {
	if emitter == nil || emitter.logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("event", string(event.Type)),
		slog.Time("timestamp", time.Now().UTC()),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", event.Email))
	}
	if event.IP != "" {
		attrs = append(attrs, slog.String("ip", event.IP))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", event.SessionID))
	}
	if event.Provider != "" {
		attrs = append(attrs, slog.String("provider", event.Provider))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}

	// Emission must survive request cancellation.
	emitter.logger.LogAttrs(context.WithoutCancel(ctx), slog.LevelInfo, "security_event", attrs...)
}
