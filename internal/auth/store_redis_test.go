// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identra-io/identra/internal/auth"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

/*
TestLockoutStore_IncrementAndClear checks that failures count up atomically
and that a successful login wipes the slate.
*/
func TestLockoutStore_IncrementAndClear(t *testing.T) {
	_, client := newTestRedis(t)
	store := auth.NewLockoutStore(client)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		count, err := store.Increment(ctx, "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	record, err := store.Get(ctx, "user@example.com")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, int64(3), record.Attempts)
	assert.False(t, record.Locked(time.Now()))

	require.NoError(t, store.Clear(ctx, "user@example.com"))

	record, err = store.Get(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Nil(t, record)
}

/*
TestLockoutStore_Lock checks that a locked record rejects until the deadline
and that the Redis TTL shrinks to the lockout window.
*/
func TestLockoutStore_Lock(t *testing.T) {
	server, client := newTestRedis(t)
	store := auth.NewLockoutStore(client)
	ctx := context.Background()

	_, err := store.Increment(ctx, "user@example.com")
	require.NoError(t, err)

	until := time.Now().Add(30 * time.Minute)
	require.NoError(t, store.Lock(ctx, "user@example.com", until))

	record, err := store.Get(ctx, "user@example.com")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.Locked(time.Now()))
	assert.False(t, record.Locked(until.Add(time.Second)))

	// The lock clears itself once the window elapses.
	server.FastForward(31 * time.Minute)
	record, err = store.Get(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Nil(t, record)
}

/*
TestFamilyStore_Lifecycle checks set, get, and delete of the family head.
*/
func TestFamilyStore_Lifecycle(t *testing.T) {
	server, client := newTestRedis(t)
	store := auth.NewFamilyStore(client)
	ctx := context.Background()

	head, err := store.Get(ctx, "family-1")
	require.NoError(t, err)
	assert.Nil(t, head, "absent family resolves to nil, not an error")

	want := auth.FamilyHead{CurrentToken: "token-a", UserID: "user-1"}
	require.NoError(t, store.Set(ctx, "family-1", want, time.Hour))

	head, err = store.Get(ctx, "family-1")
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, want, *head)

	// Replacing the head advances the current token.
	want.CurrentToken = "token-b"
	require.NoError(t, store.Set(ctx, "family-1", want, time.Hour))
	head, err = store.Get(ctx, "family-1")
	require.NoError(t, err)
	assert.Equal(t, "token-b", head.CurrentToken)

	require.NoError(t, store.Delete(ctx, "family-1"))
	head, err = store.Get(ctx, "family-1")
	require.NoError(t, err)
	assert.Nil(t, head)

	// The head expires with its TTL.
	require.NoError(t, store.Set(ctx, "family-2", want, time.Minute))
	server.FastForward(2 * time.Minute)
	head, err = store.Get(ctx, "family-2")
	require.NoError(t, err)
	assert.Nil(t, head)
}

/*
TestMetaStore_CorruptRecord checks that unreadable metadata degrades to a
miss instead of failing the request.
*/
func TestMetaStore_CorruptRecord(t *testing.T) {
	server, client := newTestRedis(t)
	store := auth.NewMetaStore(client)
	ctx := context.Background()

	require.NoError(t, server.Set("session_meta:session-1", "{not json"))

	meta, err := store.Get(ctx, "session-1")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

/*
TestUserCache_Lifecycle checks the cache round trip and invalidation.
*/
func TestUserCache_Lifecycle(t *testing.T) {
	server, client := newTestRedis(t)
	cache := auth.NewUserCache(client)
	ctx := context.Background()

	hash := "$2a$12$abcdefghijklmnopqrstuv"
	user := &auth.User{
		ID:            "user-1",
		Email:         "user@example.com",
		PasswordHash:  &hash,
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Role:          "USER",
		EmailVerified: true,
		IsActive:      true,
		CreatedAt:     time.Now().Truncate(time.Second),
		UpdatedAt:     time.Now().Truncate(time.Second),
	}

	cached, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, cached)

	require.NoError(t, cache.Set(ctx, user))

	cached, err = cache.Get(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, user.Email, cached.Email)
	require.NotNil(t, cached.PasswordHash, "a cache hit must behave like a durable read")
	assert.Equal(t, hash, *cached.PasswordHash)

	require.NoError(t, cache.Invalidate(ctx, "user-1"))
	cached, err = cache.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, cached)

	// A corrupt entry is a miss, never an error.
	require.NoError(t, server.Set("user:user-2", "{broken"))
	cached, err = cache.Get(ctx, "user-2")
	require.NoError(t, err)
	assert.Nil(t, cached)
}
