// Package config holds the primary store settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Config describes how to reach the MongoDB collection that owns user records.
type Config struct {
	// Backend is "mongo" or "memory". The memory backend keeps records in
	// process and is meant for local development.
	Backend string `yaml:"backend"`

	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`

	// ConnectTimeout bounds the initial connect and ping.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// OperationTimeout bounds each individual read or write.
	// Cursor scans and change streams are bounded by their caller's context instead.
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Backend:          BackendMongo,
		URI:              "mongodb://localhost:27017",
		Database:         "userindex",
		Collection:       "users",
		ConnectTimeout:   10 * time.Second,
		OperationTimeout: 5 * time.Second,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Backend == "" {
		c.Backend = defaults.Backend
	}
	if c.URI == "" {
		c.URI = defaults.URI
	}
	if c.Database == "" {
		c.Database = defaults.Database
	}
	if c.Collection == "" {
		c.Collection = defaults.Collection
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaults.ConnectTimeout
	}
	if c.OperationTimeout == 0 {
		c.OperationTimeout = defaults.OperationTimeout
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("MONGODB_URI"); val != "" {
		c.URI = val
	}
	if val := os.Getenv("USERINDEX_STORAGE_BACKEND"); val != "" {
		c.Backend = val
	}
	if val := os.Getenv("MONGODB_DATABASE"); val != "" {
		c.Database = val
	}
}

// ResolvePaths is a no-op: the store config has no paths.
func (c *Config) ResolvePaths(_, _ string) { _ = c }

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMongo:
	case BackendMemory:
		return nil
	default:
		return fmt.Errorf("invalid storage.backend: %s (must be mongo or memory)", c.Backend)
	}
	if c.URI == "" {
		return errors.New("storage.uri is required")
	}
	if c.Database == "" {
		return errors.New("storage.database is required")
	}
	if c.Collection == "" {
		return errors.New("storage.collection is required")
	}
	if c.OperationTimeout < 0 {
		return errors.New("storage.operation_timeout must not be negative")
	}
	return nil
}
