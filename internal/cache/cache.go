// Package cache holds per-flight status cache entries across aggregation passes.
package cache

import (
	"context"
	"sync"

	"github.com/saviobatista/flightwatch/internal/types"
)

// Store persists status cache entries keyed by flight key.
// GetEntry returns nil, nil when no entry exists.
type Store interface {
	GetEntry(ctx context.Context, flightKey string) (*types.CacheEntry, error)
	StoreEntry(ctx context.Context, entry *types.CacheEntry) error
	DeleteEntry(ctx context.Context, flightKey string) error
}

// Memory is a process-local Store
type Memory struct {
	mu      sync.RWMutex
	entries map[string]types.CacheEntry
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]types.CacheEntry)}
}

// GetEntry returns a copy of the entry for flightKey
func (m *Memory) GetEntry(ctx context.Context, flightKey string) (*types.CacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[flightKey]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// StoreEntry replaces the entry for entry.FlightKey
func (m *Memory) StoreEntry(ctx context.Context, entry *types.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.FlightKey] = *entry
	return nil
}

// DeleteEntry drops the entry for flightKey
func (m *Memory) DeleteEntry(ctx context.Context, flightKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, flightKey)
	return nil
}

// Len returns the number of stored entries
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
