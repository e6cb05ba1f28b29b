// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package csrf_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identra-io/identra/internal/csrf"
)

func newService(t *testing.T) (*miniredis.Miniredis, *csrf.Service) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, csrf.NewService(client)
}

/*
TestService_GenerateValidate checks that a generated token validates and
that validation is read-only (the token stays valid across checks).
*/
func TestService_GenerateValidate(t *testing.T) {
	_, service := newService(t)
	ctx := context.Background()

	token, err := service.Generate(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	for i := 0; i < 3; i++ {
		valid, err := service.Validate(ctx, token)
		require.NoError(t, err)
		assert.True(t, valid, "validation must not consume the token")
	}
}

/*
TestService_UnknownToken checks that a token we never issued is invalid.
*/
func TestService_UnknownToken(t *testing.T) {
	_, service := newService(t)

	valid, err := service.Validate(context.Background(), "forged-token")
	require.NoError(t, err)
	assert.False(t, valid)
}

/*
TestService_Expiry checks that a token dies with its TTL.
*/
func TestService_Expiry(t *testing.T) {
	server, service := newService(t)
	ctx := context.Background()

	token, err := service.Generate(ctx)
	require.NoError(t, err)

	server.FastForward(25 * time.Hour)

	valid, err := service.Validate(ctx, token)
	require.NoError(t, err)
	assert.False(t, valid)
}

/*
TestService_Revoke checks explicit revocation.
*/
func TestService_Revoke(t *testing.T) {
	_, service := newService(t)
	ctx := context.Background()

	token, err := service.Generate(ctx)
	require.NoError(t, err)

	require.NoError(t, service.Revoke(ctx, token))

	valid, err := service.Validate(ctx, token)
	require.NoError(t, err)
	assert.False(t, valid)
}
