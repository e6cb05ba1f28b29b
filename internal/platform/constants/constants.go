// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, security policies, and cross-cutting keys that are
shared between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Security Policy: Lockout thresholds, token lengths, cache TTLs.
  - Redis Taxonomy: Key prefixes for every ephemeral record.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "identra-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second

	// MailDispatchTimeout bounds a single fire-and-forget SMTP delivery.
	MailDispatchTimeout = 30 * time.Second

	// ProviderExchangeTimeout bounds the OAuth code-for-token exchange.
	ProviderExchangeTimeout = 10 * time.Second
)

// # Rate Limiting

const (
	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Authentication Policy

const (
	// AuthIssuer is the standard 'iss' claim in every JWT.
	AuthIssuer = "identra"

	// AuthAudience is the standard 'aud' claim in every JWT.
	AuthAudience = "identra-api"

	// MaxLoginAttempts is the number of consecutive failures before a lockout.
	MaxLoginAttempts = 5

	// LockoutDuration is how long a locked account rejects all logins.
	LockoutDuration = 30 * time.Minute

	// LoginAttemptTTL is how long the failed-attempt counter survives between failures.
	LoginAttemptTTL = 1 * time.Hour

	// VerificationTokenTTL is the computed lifetime of an email verification token.
	VerificationTokenTTL = 24 * time.Hour

	// ResetTokenTTL is the lifetime of a password reset token.
	ResetTokenTTL = 1 * time.Hour

	// CSRFTokenTTL is the lifetime of an issued CSRF token.
	CSRFTokenTTL = 24 * time.Hour

	// OAuthStateTTL is the lifetime of a one-time OAuth state nonce.
	OAuthStateTTL = 10 * time.Minute

	// UserCacheTTL is the lifetime of a cached user record.
	UserCacheTTL = 1 * time.Hour
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderCSRFToken     = "X-CSRF-Token"
)

// # JSON Field Identifiers

const (
	FieldStatus  = "status"
	FieldMessage = "message"
	FieldData    = "data"
	FieldErrors  = "errors"
	FieldCode    = "code"
)

// # Database Schemas

const (
	SchemaIdentity = "identity"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixUserCache     = "user:"
	RedisPrefixLoginAttempts = "login_attempts:"
	RedisPrefixTokenFamily   = "token_family:"
	RedisPrefixSessionMeta   = "session_meta:"
	RedisPrefixCSRF          = "csrf:"
	RedisPrefixOAuthState    = "oauth:state:"
)
