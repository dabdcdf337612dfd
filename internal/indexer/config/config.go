// Package config provides configuration for bulk synchronization.
package config

import (
	"errors"
	"os"
	"strconv"
)

// Config holds the bulk sync configuration.
type Config struct {
	// Concurrency caps the number of in-flight index writes during a bulk sync.
	// Defaults to 8.
	Concurrency int `yaml:"concurrency"`

	// BatchSize is the cursor batch size used to stream records from the store.
	// Defaults to 500.
	BatchSize int `yaml:"batch_size"`

	// SyncOnStart runs one bulk sync before change capture starts.
	SyncOnStart bool `yaml:"sync_on_start"`
}

// DefaultConfig returns the default bulk sync configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: 8,
		BatchSize:   500,
		SyncOnStart: true,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Concurrency == 0 {
		c.Concurrency = defaults.Concurrency
	}
	if c.BatchSize == 0 {
		c.BatchSize = defaults.BatchSize
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("USERINDEX_SYNC_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Concurrency = n
		}
	}
}

// ResolvePaths is a no-op for the bulk sync config.
func (c *Config) ResolvePaths(_, _ string) { _ = c }

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return errors.New("indexer.concurrency must be positive")
	}
	if c.BatchSize <= 0 {
		return errors.New("indexer.batch_size must be positive")
	}
	return nil
}
