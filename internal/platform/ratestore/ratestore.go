// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

/*
Package ratestore provides fixed-window request counters for rate limiting.

The counter lives behind a small interface so the Gatekeeper middleware does
not care where the window state is kept:

  - MemoryStore: process-local map. Correct ONLY for a single-process
    deployment; counters are not shared between instances.
  - RedisStore: shared counters with server-side TTL, required for any
    multi-instance deployment.
*/
package ratestore

import (
	"context"
	"sync"
	"time"
)

// Store counts hits against a key within a fixed window.
type Store interface {
	// Incr increments the counter for key, starting a new window of the given
	// length if none is active. It returns the count inside the current
	// window and the time remaining until the window resets.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

// # In-Memory Implementation

type memoryWindow struct {
	count    int64
	resetsAt time.Time
}

// MemoryStore is the process-local default [Store].
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
}

// NewMemoryStore creates an empty in-memory fixed-window store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*memoryWindow)}
}

// Incr implements [Store].
func (store *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := time.Now()

	store.mu.Lock()
	defer store.mu.Unlock()

	entry, found := store.windows[key]
	if !found || now.After(entry.resetsAt) {
		entry = &memoryWindow{resetsAt: now.Add(window)}
		store.windows[key] = entry
	}

	entry.count++
	return entry.count, time.Until(entry.resetsAt), nil
}

// Sweep removes expired windows. Intended to be called periodically so the
// map does not grow without bound under churning client IPs.
func (store *MemoryStore) Sweep() {
	now := time.Now()

	store.mu.Lock()
	defer store.mu.Unlock()

	for key, entry := range store.windows {
		if now.After(entry.resetsAt) {
			delete(store.windows, key)
		}
	}
}
