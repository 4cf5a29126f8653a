// Package storage provides key-value backends for the persistence
// layer: an in-memory map, SQLite, MySQL and BadgerDB.
package storage

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of core.KeyValueStore.
// Data does not survive the process; intended for tests and one-shot
// CLI runs.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Get retrieves values for the given keys. Absent keys are omitted.
func (s *MemoryStore) Get(_ context.Context, keys []string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if value, ok := s.values[key]; ok {
			cp := make([]byte, len(value))
			copy(cp, value)
			out[key] = cp
		}
	}
	return out, nil
}

// Set stores all pairs.
func (s *MemoryStore) Set(_ context.Context, items map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range items {
		cp := make([]byte, len(value))
		copy(cp, value)
		s.values[key] = cp
	}
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
