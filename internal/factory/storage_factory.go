package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/savegrandma/phishguard/internal/adapters/storage"
	"github.com/savegrandma/phishguard/internal/config"
	"github.com/savegrandma/phishguard/internal/core"
)

// StorageFactory creates key-value backends based on configuration
type StorageFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config, logger *zap.Logger) *StorageFactory {
	return &StorageFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateKeyValueStore creates a key-value store based on the configuration
func (f *StorageFactory) CreateKeyValueStore() (core.KeyValueStore, error) {
	sc := f.cfg.GetStorage()

	switch sc.Type {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "badger":
		if !sc.BadgerInMemory {
			if err := os.MkdirAll(sc.BadgerPath, 0755); err != nil {
				return nil, fmt.Errorf("failed to create badger directory: %w", err)
			}
		}
		return storage.NewBadgerStore(sc.BadgerPath, sc.BadgerInMemory, f.logger)
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(sc.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return storage.NewSQLiteStore(sc.SQLitePath, f.logger)
	case "mysql":
		return storage.NewMySQLStore(sc.MySQLDSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", sc.Type)
	}
}
