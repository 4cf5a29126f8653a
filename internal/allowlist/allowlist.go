// Package allowlist implements the capacity-bounded set of trusted
// sender addresses consulted before scoring.
package allowlist

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DefaultMaxSize caps the number of trusted addresses.
const DefaultMaxSize = 10000

// Store is a capacity-bounded set of lower-cased email addresses.
// Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]struct{}
	maxSize int
	logger  *zap.Logger
}

// New creates an empty store. A non-positive max falls back to the
// default capacity.
func New(maxSize int, logger *zap.Logger) *Store {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Store{
		entries: make(map[string]struct{}),
		maxSize: maxSize,
		logger:  logger,
	}
}

// Add inserts an address. Adding a present address is a successful
// no-op; adding to a full store fails without mutation.
func (s *Store) Add(email string) bool {
	email = normalize(email)
	if email == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[email]; ok {
		return true
	}
	if len(s.entries) >= s.maxSize {
		s.logger.Warn("Allow-list at capacity, rejecting add",
			zap.String("email", email),
			zap.Int("max", s.maxSize))
		return false
	}
	s.entries[email] = struct{}{}
	return true
}

// Remove deletes an address, reporting whether it was present.
func (s *Store) Remove(email string) bool {
	email = normalize(email)
	if email == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[email]; !ok {
		return false
	}
	delete(s.entries, email)
	return true
}

// Contains reports membership. Empty input is never a member.
func (s *Store) Contains(email string) bool {
	email = normalize(email)
	if email == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[email]
	return ok
}

// IsFull reports whether the store has reached capacity.
func (s *Store) IsFull() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries) >= s.maxSize
}

// Size returns the current entry count.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// MaxSize returns the capacity bound.
func (s *Store) MaxSize() int {
	return s.maxSize
}

// All returns the sorted membership.
func (s *Store) All() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]string, 0, len(s.entries))
	for email := range s.entries {
		all = append(all, email)
	}
	sort.Strings(all)
	return all
}

// Replace swaps the whole membership, used when loading persisted
// state. Entries beyond capacity are dropped.
func (s *Store) Replace(emails []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]struct{}, len(emails))
	for _, email := range emails {
		email = normalize(email)
		if email == "" {
			continue
		}
		if len(s.entries) >= s.maxSize {
			break
		}
		s.entries[email] = struct{}{}
	}
}

// Hash returns a content digest of the membership, used to detect
// changes since load without comparing full sets.
func (s *Store) Hash() string {
	return strings.Join(s.All(), "|")
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
