// Package config holds settings for the user write path.
package config

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	// BcryptCost is the work factor for password hashes.
	BcryptCost int `yaml:"bcrypt_cost"`

	Purge PurgeConfig `yaml:"purge"`
}

// PurgeConfig controls the background job that hard-deletes users that
// have been soft-deleted for longer than Retention.
type PurgeConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`
	Retention time.Duration `yaml:"retention"`
	BatchSize int           `yaml:"batch_size"`
}

func DefaultConfig() Config {
	return Config{
		BcryptCost: bcrypt.DefaultCost,
		Purge: PurgeConfig{
			Interval:  time.Hour,
			Retention: 30 * 24 * time.Hour,
			BatchSize: 100,
		},
	}
}

func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.BcryptCost == 0 {
		c.BcryptCost = defaults.BcryptCost
	}
	if c.Purge.Interval == 0 {
		c.Purge.Interval = defaults.Purge.Interval
	}
	if c.Purge.Retention == 0 {
		c.Purge.Retention = defaults.Purge.Retention
	}
	if c.Purge.BatchSize == 0 {
		c.Purge.BatchSize = defaults.Purge.BatchSize
	}
}

func (c *Config) ApplyEnvOverrides() { _ = c }

func (c *Config) ResolvePaths(_, _ string) { _ = c }

func (c *Config) Validate() error {
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return errors.New("users.bcrypt_cost is out of range")
	}
	if c.Purge.Enabled {
		if c.Purge.Interval <= 0 {
			return errors.New("users.purge.interval must be positive")
		}
		if c.Purge.Retention <= 0 {
			return errors.New("users.purge.retention must be positive")
		}
		if c.Purge.BatchSize <= 0 {
			return errors.New("users.purge.batch_size must be positive")
		}
	}
	return nil
}
