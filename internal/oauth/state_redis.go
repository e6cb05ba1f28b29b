// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/identra-io/identra/internal/platform/constants"
	"github.com/identra-io/identra/internal/platform/sec"
)

// RedisStateStore implements StateStore under the oauth:state: prefix.
type RedisStateStore struct {
	client *redis.Client
}

// NewStateStore creates a new Redis-backed StateStore.
func NewStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func stateKey(state string) string {
	return constants.RedisPrefixOAuthState + state
}

/*
Issue mints a one-time state nonce bound to a provider.

Description: The nonce carries enough entropy to be unguessable and lives for
ten minutes, long enough for a human to complete the consent screen.

Parameters:
  - context: context.Context
  - provider: string

Returns:
  - string: The state nonce
  - error: Storage failures
*/
func (store *RedisStateStore) Issue(context context.Context, provider string) (string, error) {
	state, err := sec.RandomToken()
	if err != nil {
		return "", fmt.Errorf("oauth_state_mint_failed: %w", err)
	}

	payload, err := json.Marshal(StateRecord{Provider: provider, IssuedAt: time.Now()})
	if err != nil {
		return "", fmt.Errorf("oauth_state_marshal_failed: %w", err)
	}

	if err := store.client.Set(context, stateKey(state), payload, constants.OAuthStateTTL).Err(); err != nil {
		return "", fmt.Errorf("oauth_state_set_failed: %w", err)
	}

	return state, nil
}

/*
Consume atomically reads and deletes a state nonce.

Description: GETDEL makes consumption single-use even under concurrent
callbacks; only one caller ever sees the record.

Parameters:
  - context: context.Context
  - state: string

Returns:
  - *StateRecord: nil when the nonce is unknown, expired, or already used
  - error: Execution errors
*/
func (store *RedisStateStore) Consume(context context.Context, state string) (*StateRecord, error) {
	payload, err := store.client.GetDel(context, stateKey(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("oauth_state_consume_failed: %w", err)
	}

	record := &StateRecord{}
	if err := json.Unmarshal(payload, record); err != nil {
		return nil, fmt.Errorf("oauth_state_unmarshal_failed: %w", err)
	}

	return record, nil
}
