package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// BadgerStore is a BadgerDB implementation of core.KeyValueStore, the
// durable local backend for long-running deployments.
type BadgerStore struct {
	db     *badger.DB
	logger *zap.Logger
}

// NewBadgerStore opens a Badger database under dataDir. inMemory runs
// without persistence, useful for tests.
func NewBadgerStore(dataDir string, inMemory bool, logger *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dataDir).
		WithInMemory(inMemory).
		WithLogger(nil)
	if inMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

// Get retrieves values for the given keys in one read transaction.
// Absent keys are omitted.
func (s *BadgerStore) Get(_ context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, key := range keys {
			item, err := txn.Get([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to read key %q: %w", key, err)
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to copy value for key %q: %w", key, err)
			}
			out[key] = value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Set stores all pairs in one write transaction.
func (s *BadgerStore) Set(_ context.Context, items map[string][]byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for key, value := range items {
			if err := txn.Set([]byte(key), value); err != nil {
				return fmt.Errorf("failed to store key %q: %w", key, err)
			}
		}
		return nil
	})
}

// Ping reports whether the database is still open.
func (s *BadgerStore) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close badger database", zap.Error(err))
		return err
	}
	return nil
}
