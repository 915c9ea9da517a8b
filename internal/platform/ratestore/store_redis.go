// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package ratestore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lumenbase/accounts/internal/platform/constants"
)

// RedisStore implements [Store] on a shared Redis instance so windows are
// consistent across all server processes.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed fixed-window store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Incr implements [Store].
//
// INCR and EXPIRE NX run in one pipeline: the first hit of a window sets the
// TTL, later hits leave it untouched, so the window boundary never slides.
func (store *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	redisKey := constants.RedisPrefixRateLimit + key

	pipe := store.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, window)
	ttl := pipe.TTL(ctx, redisKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("ratestore: redis incr failed: %w", err)
	}

	resetIn := ttl.Val()
	if resetIn < 0 {
		resetIn = window
	}

	return incr.Val(), resetIn, nil
}
