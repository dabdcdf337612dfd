// Package config provides configuration for change capture.
package config

import (
	"errors"
	"time"
)

// Config holds the change capture configuration.
type Config struct {
	// Enabled turns change capture on. When the store has no change feed,
	// capture degrades regardless of this flag.
	Enabled bool `yaml:"enabled"`

	// EventTimeout bounds the re-read and upsert of a single change event.
	EventTimeout time.Duration `yaml:"event_timeout"`

	// BufferSize is the capacity of the channel between the feed reader
	// and the consumer.
	BufferSize int `yaml:"buffer_size"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		EventTimeout: 10 * time.Second,
		BufferSize:   256,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.EventTimeout == 0 {
		c.EventTimeout = defaults.EventTimeout
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaults.BufferSize
	}
}

func (c *Config) ApplyEnvOverrides() { _ = c }

func (c *Config) ResolvePaths(_, _ string) { _ = c }

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	if c.EventTimeout <= 0 {
		return errors.New("puller.event_timeout must be positive")
	}
	if c.BufferSize <= 0 {
		return errors.New("puller.buffer_size must be positive")
	}
	return nil
}
