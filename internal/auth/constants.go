// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package auth

import (
	"time"

	"github.com/identra-io/identra/internal/platform/constants"
)

// # Authentication Constraints

const (
	// MaxLoginAttempts is the number of consecutive failures before a lockout.
	MaxLoginAttempts = constants.MaxLoginAttempts

	// LockoutDuration is how long a locked account rejects every login,
	// including attempts with the correct password.
	LockoutDuration = constants.LockoutDuration

	// LoginAttemptTTL is how long the failed-attempt counter survives
	// between failures before it resets on its own.
	LoginAttemptTTL = constants.LoginAttemptTTL

	// VerificationTokenTTL is the duration an email verification token remains valid.
	// Long-lived (24 hours) as users might not check email immediately.
	VerificationTokenTTL = constants.VerificationTokenTTL

	// ResetTokenTTL is the duration a password reset token remains valid.
	// Short-lived (1 hour) for security.
	ResetTokenTTL = constants.ResetTokenTTL

	// SessionMetaTTL matches the refresh-token lifetime so metadata never
	// outlives the session it describes.
	SessionMetaTTL = 7 * 24 * time.Hour
)

// # Login Methods

// Values recorded in session metadata to distinguish how a session began.
const (
	LoginMethodPassword = "password"
	LoginMethodGoogle   = "google"
	LoginMethodGitHub   = "github"
)
