// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package mailer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

/*
TestFromHeader checks From header formatting with and without a display name.
*/
func TestFromHeader(t *testing.T) {
	assert.Equal(t, "no-reply@identra.io", fromHeader("no-reply@identra.io", ""))
	assert.Equal(t, `"Identra" <no-reply@identra.io>`, fromHeader("no-reply@identra.io", "Identra"))
}

/*
TestBuildMessage checks the composed message carries the display-name From
header and the standard structure.
*/
func TestBuildMessage(t *testing.T) {
	message := string(buildMessage(
		fromHeader("no-reply@identra.io", "Identra"),
		"ada@example.com", "Subject line", "Body text.\r\n",
	))

	assert.True(t, strings.HasPrefix(message, "From: \"Identra\" <no-reply@identra.io>\r\n"))
	assert.Contains(t, message, "To: ada@example.com\r\n")
	assert.Contains(t, message, "Subject: Subject line\r\n")
	assert.Contains(t, message, "\r\n\r\nBody text.\r\n")
}

/*
TestVerificationMail checks link construction, including trailing-slash
normalization of the frontend URL.
*/
func TestVerificationMail(t *testing.T) {
	_, body := VerificationMail("http://localhost:3000/", "token-123")
	assert.Contains(t, body, "http://localhost:3000/verify-email?token=token-123")
}

/*
TestResetMail checks the reset link target.
*/
func TestResetMail(t *testing.T) {
	_, body := ResetMail("http://localhost:3000", "token-456")
	assert.Contains(t, body, "http://localhost:3000/reset-password?token=token-456")
}
