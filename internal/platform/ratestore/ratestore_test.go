// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package ratestore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenbase/accounts/internal/platform/ratestore"
)

/*
TestMemoryStore_Incr verifies counting within a window and the reset after it
elapses.
*/
func TestMemoryStore_Incr(t *testing.T) {
	store := ratestore.NewMemoryStore()

	for want := int64(1); want <= 3; want++ {
		count, resetIn, err := store.Incr(context.Background(), "oauth:203.0.113.1", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, want, count)
		assert.Greater(t, resetIn, time.Duration(0))
	}

	// Separate keys hold separate windows.
	count, _, err := store.Incr(context.Background(), "oauth:203.0.113.2", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// An expired window restarts the count.
	count, _, err = store.Incr(context.Background(), "short", time.Nanosecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	time.Sleep(5 * time.Millisecond)
	count, _, err = store.Incr(context.Background(), "short", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

/*
TestMemoryStore_Sweep verifies that expired windows are dropped and live ones
survive.
*/
func TestMemoryStore_Sweep(t *testing.T) {
	store := ratestore.NewMemoryStore()

	_, _, err := store.Incr(context.Background(), "expired", time.Nanosecond)
	require.NoError(t, err)
	_, _, err = store.Incr(context.Background(), "live", time.Hour)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	store.Sweep()

	// The live window keeps counting where it left off.
	count, _, err := store.Incr(context.Background(), "live", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// The swept window starts a fresh count.
	count, _, err = store.Incr(context.Background(), "expired", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

/*
TestRedisStore_Incr verifies shared counting and the server-side window TTL.
*/
func TestRedisStore_Incr(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := ratestore.NewRedisStore(client)

	for want := int64(1); want <= 3; want++ {
		count, resetIn, err := store.Incr(context.Background(), "oauth:203.0.113.1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, count)
		assert.Greater(t, resetIn, time.Duration(0))
		assert.LessOrEqual(t, resetIn, time.Minute)
	}

	// The window boundary is set on the first hit and never slides.
	server.FastForward(61 * time.Second)

	count, _, err := store.Incr(context.Background(), "oauth:203.0.113.1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
