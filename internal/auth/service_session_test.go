// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identra-io/identra/internal/auth"
)

// # Rotation

func TestRefresh_RotatesTokenPair(t *testing.T) {
	f := newFixture(t)
	login := f.register(t, "ada@example.com", "Str0ng!pass")
	ctx := context.Background()

	rotated, err := f.service.Refresh(ctx, login.Tokens.RefreshToken, testMeta)
	require.NoError(t, err)

	assert.NotEqual(t, login.Tokens.RefreshToken, rotated.Tokens.RefreshToken)
	assert.NotEmpty(t, rotated.Tokens.AccessToken)
	assert.Equal(t, 1, f.sessions.count(), "rotation swaps the row, it does not add one")

	// The rotated pair stays inside the same family.
	oldClaims, err := f.tokens.VerifyRefresh(login.Tokens.RefreshToken)
	require.NoError(t, err)
	newClaims, err := f.tokens.VerifyRefresh(rotated.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, oldClaims.FamilyID, newClaims.FamilyID)
	assert.NotEqual(t, oldClaims.SessionID, newClaims.SessionID)
}

func TestRefresh_ReuseDetectionPurgesUser(t *testing.T) {
	f := newFixture(t)
	login := f.register(t, "ada@example.com", "Str0ng!pass")
	ctx := context.Background()

	// Attacker and victim both hold the original token. The victim rotates.
	rotated, err := f.service.Refresh(ctx, login.Tokens.RefreshToken, testMeta)
	require.NoError(t, err)

	// The attacker replays the superseded token: the family dies and every
	// session of the user is purged.
	_, err = f.service.Refresh(ctx, login.Tokens.RefreshToken, testMeta)
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired refresh token", err.Error())
	assert.Equal(t, 0, f.sessions.count())

	// The victim's fresh token is collateral damage.
	_, err = f.service.Refresh(ctx, rotated.Tokens.RefreshToken, testMeta)
	require.Error(t, err)
}

func TestRefresh_GarbageToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Refresh(context.Background(), "not-a-jwt", testMeta)
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired refresh token", err.Error())
}

func TestRefresh_ExpiredSessionRow(t *testing.T) {
	f := newFixture(t)
	login := f.register(t, "ada@example.com", "Str0ng!pass")
	ctx := context.Background()

	f.sessions.expire(login.Tokens.RefreshToken)

	_, err := f.service.Refresh(ctx, login.Tokens.RefreshToken, testMeta)
	require.Error(t, err)
	assert.Equal(t, 0, f.sessions.count(), "the dead row is cleaned up on contact")
}

func TestRefresh_SuspendedUser(t *testing.T) {
	f := newFixture(t)
	login := f.register(t, "ada@example.com", "Str0ng!pass")

	f.users.mutate(login.User.ID, func(user *auth.User) { user.IsSuspended = true })

	_, err := f.service.Refresh(context.Background(), login.Tokens.RefreshToken, testMeta)
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired refresh token", err.Error())
}

// # Logout

func TestLogout(t *testing.T) {
	f := newFixture(t)
	login := f.register(t, "ada@example.com", "Str0ng!pass")
	ctx := context.Background()

	require.NoError(t, f.service.Logout(ctx, login.Tokens.RefreshToken))
	assert.Equal(t, 0, f.sessions.count())

	// The logged-out token cannot rotate.
	_, err := f.service.Refresh(ctx, login.Tokens.RefreshToken, testMeta)
	require.Error(t, err)

	// Logout is idempotent, even for tokens that never existed.
	require.NoError(t, f.service.Logout(ctx, login.Tokens.RefreshToken))
	require.NoError(t, f.service.Logout(ctx, "garbage"))
}

// # Session Inventory

func TestSessions_ListsAndFlagsCurrent(t *testing.T) {
	f := newFixture(t)
	first := f.register(t, "ada@example.com", "Str0ng!pass")
	ctx := context.Background()

	second, err := f.service.Login(ctx, auth.LoginInput{
		Email:    "ada@example.com",
		Password: "Str0ng!pass",
	}, testMeta)
	require.NoError(t, err)

	claims, err := f.tokens.VerifyRefresh(second.Tokens.RefreshToken)
	require.NoError(t, err)

	sessions, err := f.service.Sessions(ctx, first.User.ID, claims.SessionID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	var currentCount int
	for _, session := range sessions {
		if session.IsCurrent {
			currentCount++
			assert.Equal(t, claims.SessionID, session.ID)
		}
		assert.Equal(t, testMeta.IP, session.IP, "metadata is merged in")
		assert.Equal(t, auth.LoginMethodPassword, session.LoginMethod)
	}
	assert.Equal(t, 1, currentCount)
}

func TestRevokeSession_EnforcesOwnership(t *testing.T) {
	f := newFixture(t)
	ada := f.register(t, "ada@example.com", "Str0ng!pass")
	eve := f.register(t, "eve@example.com", "Str0ng!pass")
	ctx := context.Background()

	adaClaims, err := f.tokens.VerifyRefresh(ada.Tokens.RefreshToken)
	require.NoError(t, err)

	// Eve cannot revoke Ada's session; the response matches a missing ID.
	err = f.service.RevokeSession(ctx, eve.User.ID, adaClaims.SessionID)
	require.Error(t, err)
	assert.Equal(t, "Session not found", err.Error())

	// Ada can.
	require.NoError(t, f.service.RevokeSession(ctx, ada.User.ID, adaClaims.SessionID))
	_, err = f.service.Refresh(ctx, ada.Tokens.RefreshToken, testMeta)
	require.Error(t, err)
}

func TestRevokeOtherSessions(t *testing.T) {
	f := newFixture(t)
	first := f.register(t, "ada@example.com", "Str0ng!pass")
	ctx := context.Background()

	second, err := f.service.Login(ctx, auth.LoginInput{
		Email:    "ada@example.com",
		Password: "Str0ng!pass",
	}, testMeta)
	require.NoError(t, err)

	claims, err := f.tokens.VerifyRefresh(second.Tokens.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, f.service.RevokeOtherSessions(ctx, first.User.ID, claims.SessionID))

	sessions, err := f.service.Sessions(ctx, first.User.ID, claims.SessionID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].IsCurrent)

	// The first device's token is dead, the current one still rotates.
	_, err = f.service.Refresh(ctx, first.Tokens.RefreshToken, testMeta)
	require.Error(t, err)
	_, err = f.service.Refresh(ctx, second.Tokens.RefreshToken, testMeta)
	require.NoError(t, err)
}
