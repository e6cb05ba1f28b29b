// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

// Package csrf manages the lifecycle of double-submit CSRF tokens.
//
// # Architecture
//
// Tokens are opaque random values stored in Redis under a 24 hour TTL. The
// service issues them on demand; the middleware gate checks presence on every
// mutating request. Validation does not consume the token.
package csrf

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/identra-io/identra/internal/platform/constants"
	"github.com/identra-io/identra/internal/platform/sec"
)

// Service issues and checks CSRF tokens against Redis.
type Service struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewService creates a CSRF Service with the standard 24 hour token lifetime.
func NewService(redisClient *redis.Client) *Service {
	return &Service{redis: redisClient, ttl: constants.CSRFTokenTTL}
}

// Generate creates a fresh token and registers it with a TTL.
func (service *Service) Generate(ctx context.Context) (string, error) {
	token, err := sec.RandomToken()
	if err != nil {
		return "", fmt.Errorf("csrf_token_generation_failed: %w", err)
	}

	key := constants.RedisPrefixCSRF + token
	if err := service.redis.Set(ctx, key, "1", service.ttl).Err(); err != nil {
		return "", fmt.Errorf("csrf_token_store_failed: %w", err)
	}

	return token, nil
}

// Validate reports whether the token is currently live. It is read-only so
// one token serves many requests within its lifetime.
func (service *Service) Validate(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	exists, err := service.redis.Exists(ctx, constants.RedisPrefixCSRF+token).Result()
	if err != nil {
		return false, fmt.Errorf("csrf_token_check_failed: %w", err)
	}

	return exists == 1, nil
}

// Revoke removes a token before its natural expiry. Idempotent.
func (service *Service) Revoke(ctx context.Context, token string) error {
	if err := service.redis.Del(ctx, constants.RedisPrefixCSRF+token).Err(); err != nil {
		return fmt.Errorf("csrf_token_revoke_failed: %w", err)
	}
	return nil
}
