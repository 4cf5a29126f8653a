package config

import "time"

// ScoringConfig represents the configuration for the scoring engine
type ScoringConfig struct {
	UrgencyEnabled     bool
	DomainCheckEnabled bool
}

// CacheConfig represents the configuration for the analysis cache
type CacheConfig struct {
	MaxSize        int
	Expiry         time.Duration
	ForceThreshold int
}

// AllowlistConfig represents the configuration for the allow-list
type AllowlistConfig struct {
	MaxSize int
}

// BatchConfig represents the configuration for the write batcher
type BatchConfig struct {
	SaveDelay time.Duration
	MaxSize   int
}

// PersistConfig represents the configuration for the persistence layer
type PersistConfig struct {
	MaxSaveFailures int
	MaxValueSize    int
}

// ScanConfig represents the configuration for the scan lifecycle
type ScanConfig struct {
	IdleAfter     time.Duration
	CheckInterval time.Duration
	CleanupDelay  time.Duration
}

// StorageConfig represents the configuration for the storage backend
type StorageConfig struct {
	Type           string
	BadgerPath     string
	BadgerInMemory bool
	SQLitePath     string
	MySQLDSN       string
}

// GetScoring returns the scoring configuration
func (c *Config) GetScoring() ScoringConfig {
	return ScoringConfig{
		UrgencyEnabled:     c.GetBool("scoring.urgency_enabled"),
		DomainCheckEnabled: c.GetBool("scoring.domain_check_enabled"),
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	expiry, err := c.GetDuration("cache.expiry")
	if err != nil {
		return CacheConfig{}, err
	}
	return CacheConfig{
		MaxSize:        c.GetInt("cache.max_size"),
		Expiry:         expiry,
		ForceThreshold: c.GetInt("cache.force_threshold"),
	}, nil
}

// GetAllowlist returns the allow-list configuration
func (c *Config) GetAllowlist() AllowlistConfig {
	return AllowlistConfig{
		MaxSize: c.GetInt("allowlist.max_size"),
	}
}

// GetBatch returns the batching configuration
func (c *Config) GetBatch() (BatchConfig, error) {
	delay, err := c.GetDuration("batch.save_delay")
	if err != nil {
		return BatchConfig{}, err
	}
	return BatchConfig{
		SaveDelay: delay,
		MaxSize:   c.GetInt("batch.max_size"),
	}, nil
}

// GetPersist returns the persistence configuration
func (c *Config) GetPersist() PersistConfig {
	return PersistConfig{
		MaxSaveFailures: c.GetInt("persist.max_save_failures"),
		MaxValueSize:    c.GetInt("persist.max_value_size"),
	}
}

// GetScan returns the scan lifecycle configuration
func (c *Config) GetScan() (ScanConfig, error) {
	idleAfter, err := c.GetDuration("scan.idle_after")
	if err != nil {
		return ScanConfig{}, err
	}
	checkInterval, err := c.GetDuration("scan.check_interval")
	if err != nil {
		return ScanConfig{}, err
	}
	cleanupDelay, err := c.GetDuration("scan.cleanup_delay")
	if err != nil {
		return ScanConfig{}, err
	}
	return ScanConfig{
		IdleAfter:     idleAfter,
		CheckInterval: checkInterval,
		CleanupDelay:  cleanupDelay,
	}, nil
}

// GetStorage returns the storage configuration
func (c *Config) GetStorage() StorageConfig {
	return StorageConfig{
		Type:           c.GetString("storage.type"),
		BadgerPath:     c.GetString("storage.badger_path"),
		BadgerInMemory: c.GetBool("storage.badger_in_memory"),
		SQLitePath:     c.GetString("storage.sqlite_path"),
		MySQLDSN:       c.GetString("storage.mysql_dsn"),
	}
}
