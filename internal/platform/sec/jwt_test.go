// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package sec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identra-io/identra/internal/platform/sec"
)

func newTokenService(t *testing.T, accessTTL, refreshTTL time.Duration) *sec.TokenService {
	t.Helper()
	service, err := sec.NewTokenService(
		"access-secret-for-tests", "refresh-secret-for-tests",
		accessTTL, refreshTTL,
		"identra", "identra-api",
	)
	require.NoError(t, err)
	return service
}

var testInput = sec.TokenInput{
	UserID:    "0194b2c3-0000-7000-8000-000000000001",
	Email:     "user@example.com",
	Role:      "USER",
	FamilyID:  "family-1",
	SessionID: "session-1",
}

/*
TestTokenService_RoundTrip checks that every claim stamped at issue time
survives verification for both token classes.
*/
func TestTokenService_RoundTrip(t *testing.T) {
	service := newTokenService(t, 15*time.Minute, time.Hour)

	access, err := service.IssueAccess(testInput)
	require.NoError(t, err)
	refresh, err := service.IssueRefresh(testInput)
	require.NoError(t, err)

	for name, verify := range map[string]func(string) (*sec.Claims, error){
		"access":  service.VerifyAccess,
		"refresh": service.VerifyRefresh,
	} {
		token := access
		if name == "refresh" {
			token = refresh
		}

		claims, err := verify(token)
		require.NoError(t, err, name)
		assert.Equal(t, testInput.UserID, claims.UserID)
		assert.Equal(t, testInput.Email, claims.Email)
		assert.Equal(t, testInput.Role, claims.Role)
		assert.Equal(t, testInput.FamilyID, claims.FamilyID)
		assert.Equal(t, testInput.SessionID, claims.SessionID)
		assert.Equal(t, testInput.UserID, claims.Subject)
	}
}

/*
TestTokenService_KeySeparation checks that an access token never verifies as
a refresh token, and vice versa.
*/
func TestTokenService_KeySeparation(t *testing.T) {
	service := newTokenService(t, 15*time.Minute, time.Hour)

	access, err := service.IssueAccess(testInput)
	require.NoError(t, err)
	refresh, err := service.IssueRefresh(testInput)
	require.NoError(t, err)

	_, err = service.VerifyRefresh(access)
	assert.ErrorIs(t, err, sec.ErrTokenSignature)

	_, err = service.VerifyAccess(refresh)
	assert.ErrorIs(t, err, sec.ErrTokenSignature)
}

/*
TestTokenService_Expiry checks that an expired token maps to ErrTokenExpired.
*/
func TestTokenService_Expiry(t *testing.T) {
	service := newTokenService(t, -time.Minute, -time.Minute)

	token, err := service.IssueAccess(testInput)
	require.NoError(t, err)

	_, err = service.VerifyAccess(token)
	assert.ErrorIs(t, err, sec.ErrTokenExpired)
}

/*
TestTokenService_Malformed checks the structural failure class.
*/
func TestTokenService_Malformed(t *testing.T) {
	service := newTokenService(t, 15*time.Minute, time.Hour)

	_, err := service.VerifyAccess("not-a-jwt")
	assert.ErrorIs(t, err, sec.ErrTokenMalformed)
}

/*
TestTokenService_IssuerAudience checks that tokens minted by a foreign
issuer/audience pair are rejected on claims.
*/
func TestTokenService_IssuerAudience(t *testing.T) {
	service := newTokenService(t, 15*time.Minute, time.Hour)

	foreign, err := sec.NewTokenService(
		"access-secret-for-tests", "refresh-secret-for-tests",
		15*time.Minute, time.Hour,
		"someone-else", "other-api",
	)
	require.NoError(t, err)

	token, err := foreign.IssueAccess(testInput)
	require.NoError(t, err)

	_, err = service.VerifyAccess(token)
	assert.ErrorIs(t, err, sec.ErrTokenClaims)
}

/*
TestNewTokenService_Validation checks the constructor guards.
*/
func TestNewTokenService_Validation(t *testing.T) {
	_, err := sec.NewTokenService("", "refresh", time.Minute, time.Hour, "identra", "identra-api")
	assert.Error(t, err)

	_, err = sec.NewTokenService("same", "same", time.Minute, time.Hour, "identra", "identra-api")
	assert.Error(t, err)
}
