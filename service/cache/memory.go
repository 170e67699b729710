// Package cache provides the key-value stores backing the discovery result
// cache: an in-process map for one-shot CLI runs and a Postgres table for
// installations that want results shared across invocations.
package cache

import (
	"context"
	"sync"
)

// Memory is a process-local cache. It is the default backing store when no
// DATABASE_URL is configured; entries live as long as the process.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]int64
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]int64),
	}
}

// Get returns the cached value for key, with false when absent.
func (m *Memory) Get(ctx context.Context, key string) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.entries[key]
	return value, ok, nil
}

// Set stores value under key. Last write wins.
func (m *Memory) Set(ctx context.Context, key string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

// Delete removes key if present.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
