package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/phishguard/")
	v.AddConfigPath("$HOME/.phishguard")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("PHISHGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Engine defaults
	v.SetDefault("engine.account", "default")

	// Scoring defaults
	v.SetDefault("scoring.urgency_enabled", true)
	v.SetDefault("scoring.domain_check_enabled", true)

	// Cache defaults
	v.SetDefault("cache.max_size", 200)
	v.SetDefault("cache.expiry", "2h")
	v.SetDefault("cache.force_threshold", 250)

	// Allow-list defaults
	v.SetDefault("allowlist.max_size", 10000)

	// Batching defaults
	v.SetDefault("batch.save_delay", "2s")
	v.SetDefault("batch.max_size", 50)

	// Persistence defaults
	v.SetDefault("persist.max_save_failures", 3)
	v.SetDefault("persist.max_value_size", 4*1024*1024)

	// Scan lifecycle defaults
	v.SetDefault("scan.idle_after", "2s")
	v.SetDefault("scan.check_interval", "1s")
	v.SetDefault("scan.cleanup_delay", "5s")

	// Storage defaults
	v.SetDefault("storage.type", "badger")
	v.SetDefault("storage.badger_path", "/data/phishguard")
	v.SetDefault("storage.badger_in_memory", false)
	v.SetDefault("storage.sqlite_path", "/data/phishguard.db")
	v.SetDefault("storage.mysql_dsn", "user:password@tcp(localhost:3306)/phishguard")

	// Notifier defaults
	v.SetDefault("notify.type", "log")
	v.SetDefault("notify.buffer", 16)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
