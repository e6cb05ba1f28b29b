// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

// Redis implementations of the volatile stores.
//
// # Key Taxonomy
//
//	login_attempts:{email}   hash  {attempts, locked_until}
//	token_family:{familyId}  json  FamilyHead
//	session_meta:{sessionId} json  SessionMeta
//	user:{id}                json  cached User record

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/identra-io/identra/internal/platform/constants"
	"github.com/identra-io/identra/internal/platform/sec"
)

// Hash field names inside the lockout record.
const (
	lockoutFieldAttempts    = "attempts"
	lockoutFieldLockedUntil = "locked_until"
)

// # Lockout Store

// RedisLockoutStore implements LockoutStore on a Redis hash per email.
type RedisLockoutStore struct {
	client *redis.Client
}

// NewLockoutStore creates a new Redis-backed LockoutStore.
func NewLockoutStore(client *redis.Client) *RedisLockoutStore {
	return &RedisLockoutStore{client: client}
}

func lockoutKey(email string) string {
	return constants.RedisPrefixLoginAttempts + email
}

/*
Increment atomically bumps the failure counter and refreshes the counter TTL.

Description: HINCRBY is the atomic primitive here; two concurrent failures
always produce two distinct counts.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - int64: Post-increment attempt count
  - error: Execution errors
*/
func (store *RedisLockoutStore) Increment(context context.Context, email string) (int64, error) {
	key := lockoutKey(email)

	pipeline := store.client.TxPipeline()
	counter := pipeline.HIncrBy(context, key, lockoutFieldAttempts, 1)
	pipeline.Expire(context, key, LoginAttemptTTL)

	if _, err := pipeline.Exec(context); err != nil {
		return 0, fmt.Errorf("redis_lockout_increment_failed: %w", err)
	}

	return counter.Val(), nil
}

/*
Lock stamps the record with a locked-until deadline.

Description: The key TTL is narrowed to the lockout window so the lock clears
itself even if no successful login ever follows.

Parameters:
  - context: context.Context
  - email: string
  - until: time.Time

Returns:
  - error: Execution errors
*/
func (store *RedisLockoutStore) Lock(context context.Context, email string, until time.Time) error {
	key := lockoutKey(email)

	pipeline := store.client.TxPipeline()
	pipeline.HSet(context, key, lockoutFieldLockedUntil, until.Unix())
	pipeline.Expire(context, key, time.Until(until))

	if _, err := pipeline.Exec(context); err != nil {
		return fmt.Errorf("redis_lockout_lock_failed: %w", err)
	}

	return nil
}

/*
Get returns the current lockout record for an email.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *LockoutRecord: nil when the email has a clean slate
  - error: Execution errors
*/
func (store *RedisLockoutStore) Get(context context.Context, email string) (*LockoutRecord, error) {
	fields, err := store.client.HGetAll(context, lockoutKey(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis_lockout_get_failed: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	record := &LockoutRecord{}
	if raw, ok := fields[lockoutFieldAttempts]; ok {
		record.Attempts, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw, ok := fields[lockoutFieldLockedUntil]; ok {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			record.LockedUntil = time.Unix(unix, 0)
		}
	}

	return record, nil
}

/*
Clear wipes the lockout record after a successful login.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: Deletion failures
*/
func (store *RedisLockoutStore) Clear(context context.Context, email string) error {
	if err := store.client.Del(context, lockoutKey(email)).Err(); err != nil {
		return fmt.Errorf("redis_lockout_clear_failed: %w", err)
	}
	return nil
}

// # Family Store

// RedisFamilyStore implements FamilyStore with one JSON value per family.
type RedisFamilyStore struct {
	client *redis.Client
}

// NewFamilyStore creates a new Redis-backed FamilyStore.
func NewFamilyStore(client *redis.Client) *RedisFamilyStore {
	return &RedisFamilyStore{client: client}
}

func familyKey(familyID string) string {
	return constants.RedisPrefixTokenFamily + familyID
}

// Set writes (or replaces) the family head with a fresh TTL.
func (store *RedisFamilyStore) Set(context context.Context, familyID string, head FamilyHead, ttl time.Duration) error {
	payload, err := json.Marshal(head)
	if err != nil {
		return fmt.Errorf("redis_family_marshal_failed: %w", err)
	}

	if err := store.client.Set(context, familyKey(familyID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis_family_set_failed: %w", err)
	}

	return nil
}

// Get returns the family head, or nil when the family has no entry.
func (store *RedisFamilyStore) Get(context context.Context, familyID string) (*FamilyHead, error) {
	payload, err := store.client.Get(context, familyKey(familyID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis_family_get_failed: %w", err)
	}

	head := &FamilyHead{}
	if err := json.Unmarshal(payload, head); err != nil {
		return nil, fmt.Errorf("redis_family_unmarshal_failed: %w", err)
	}

	return head, nil
}

// Delete removes the family head. Idempotent.
func (store *RedisFamilyStore) Delete(context context.Context, familyID string) error {
	if err := store.client.Del(context, familyKey(familyID)).Err(); err != nil {
		return fmt.Errorf("redis_family_delete_failed: %w", err)
	}
	return nil
}

// # Meta Store

// RedisMetaStore implements MetaStore with one JSON value per session.
type RedisMetaStore struct {
	client *redis.Client
}

// NewMetaStore creates a new Redis-backed MetaStore.
func NewMetaStore(client *redis.Client) *RedisMetaStore {
	return &RedisMetaStore{client: client}
}

func metaKey(sessionID string) string {
	return constants.RedisPrefixSessionMeta + sessionID
}

// Set writes the metadata record with a fresh TTL.
func (store *RedisMetaStore) Set(context context.Context, sessionID string, meta SessionMeta, ttl time.Duration) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("redis_meta_marshal_failed: %w", err)
	}

	if err := store.client.Set(context, metaKey(sessionID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis_meta_set_failed: %w", err)
	}

	return nil
}

// Get returns the record, or nil when absent or unreadable.
func (store *RedisMetaStore) Get(context context.Context, sessionID string) (*SessionMeta, error) {
	payload, err := store.client.Get(context, metaKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis_meta_get_failed: %w", err)
	}

	meta := &SessionMeta{}
	if err := json.Unmarshal(payload, meta); err != nil {
		// A corrupt record is treated as absent; metadata is advisory.
		return nil, nil
	}

	return meta, nil
}

// Delete removes the record. Idempotent.
func (store *RedisMetaStore) Delete(context context.Context, sessionID string) error {
	if err := store.client.Del(context, metaKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis_meta_delete_failed: %w", err)
	}
	return nil
}

// # User Cache

// userCacheRecord is the serialized cache shape. It carries the password hash
// so a cache hit behaves exactly like a durable-store read.
type userCacheRecord struct {
	ID            string       `json:"id"`
	Email         string       `json:"email"`
	PasswordHash  *string      `json:"passwordHash,omitempty"`
	FirstName     string       `json:"firstName"`
	LastName      string       `json:"lastName"`
	UserName      *string      `json:"userName,omitempty"`
	Role          sec.UserRole `json:"role"`
	EmailVerified bool         `json:"emailVerified"`
	IsActive      bool         `json:"isActive"`
	IsSuspended   bool         `json:"isSuspended"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// RedisUserCache implements UserCache under the user:{id} prefix.
type RedisUserCache struct {
	client *redis.Client
}

// NewUserCache creates a new Redis-backed UserCache.
func NewUserCache(client *redis.Client) *RedisUserCache {
	return &RedisUserCache{client: client}
}

func userCacheKey(userID string) string {
	return constants.RedisPrefixUserCache + userID
}

// Get returns the cached user, or nil on miss.
func (cache *RedisUserCache) Get(context context.Context, userID string) (*User, error) {
	payload, err := cache.client.Get(context, userCacheKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis_user_cache_get_failed: %w", err)
	}

	record := &userCacheRecord{}
	if err := json.Unmarshal(payload, record); err != nil {
		// Corrupt entry: treat as a miss so the durable store resolves it.
		return nil, nil
	}

	return &User{
		ID:            record.ID,
		Email:         record.Email,
		PasswordHash:  record.PasswordHash,
		FirstName:     record.FirstName,
		LastName:      record.LastName,
		UserName:      record.UserName,
		Role:          record.Role,
		EmailVerified: record.EmailVerified,
		IsActive:      record.IsActive,
		IsSuspended:   record.IsSuspended,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}, nil
}

// Set stores the user under the standard cache TTL.
func (cache *RedisUserCache) Set(context context.Context, user *User) error {
	record := userCacheRecord{
		ID:            user.ID,
		Email:         user.Email,
		PasswordHash:  user.PasswordHash,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		UserName:      user.UserName,
		Role:          user.Role,
		EmailVerified: user.EmailVerified,
		IsActive:      user.IsActive,
		IsSuspended:   user.IsSuspended,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("redis_user_cache_marshal_failed: %w", err)
	}

	if err := cache.client.Set(context, userCacheKey(user.ID), payload, constants.UserCacheTTL).Err(); err != nil {
		return fmt.Errorf("redis_user_cache_set_failed: %w", err)
	}

	return nil
}

// Invalidate drops the cached entry. Idempotent.
func (cache *RedisUserCache) Invalidate(context context.Context, userID string) error {
	if err := cache.client.Del(context, userCacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis_user_cache_invalidate_failed: %w", err)
	}
	return nil
}
