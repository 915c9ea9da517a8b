// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package authcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lumenbase/accounts/internal/platform/constants"
)

// # Redis Code Store

// RedisStore implements Store using Redis. Expiry is delegated to the key TTL
// and single-use semantics come from the atomic GETDEL.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed authorization code store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

/*
Put stores a serialized code under its opaque value with the given TTL.

Parameters:
  - context: context.Context
  - code: *Code
  - ttl: time.Duration

Returns:
  - error: Serialization or storage failures
*/
func (store *RedisStore) Put(context context.Context, code *Code, ttl time.Duration) error {

	payload, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("redis_authcode_marshal_failed: %w", err)
	}

	key := constants.RedisPrefixAuthCode + code.Code
	if err := store.client.Set(context, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis_authcode_set_failed: %w", err)
	}

	return nil
}

/*
Take atomically consumes a code.

Description: GETDEL returns the value and removes the key in one step, so
when two exchanges race on the same code exactly one observes it.

Parameters:
  - context: context.Context
  - opaque: string

Returns:
  - *Code: Consumed code state
  - error: ErrCodeInvalid when absent or expired, connectivity failures otherwise
*/
func (store *RedisStore) Take(context context.Context, opaque string) (*Code, error) {

	key := constants.RedisPrefixAuthCode + opaque
	payload, err := store.client.GetDel(context, key).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCodeInvalid
		}
		return nil, fmt.Errorf("redis_authcode_getdel_failed: %w", err)
	}

	code := &Code{}
	if err := json.Unmarshal([]byte(payload), code); err != nil {
		return nil, fmt.Errorf("redis_authcode_unmarshal_failed: %w", err)
	}

	return code, nil
}
