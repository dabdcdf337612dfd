// Package config holds the search index settings.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	// Name identifies the index in logs and metrics.
	Name string `yaml:"name"`

	// Path is the on-disk location of the index. Relative paths are
	// resolved against the data directory.
	Path string `yaml:"path"`

	// InMemory keeps the index in memory only; Path is ignored.
	InMemory bool `yaml:"in_memory"`
}

func DefaultConfig() Config {
	return Config{
		Name: "users_index",
		Path: "users_index.bleve",
	}
}

func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Name == "" {
		c.Name = defaults.Name
	}
	if c.Path == "" && !c.InMemory {
		c.Path = defaults.Path
	}
}

func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("USERINDEX_INDEX_PATH"); val != "" {
		c.Path = val
	}
	if val := os.Getenv("USERINDEX_INDEX_IN_MEMORY"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			c.InMemory = b
		}
	}
}

// ResolvePaths places a relative index path under the data directory.
func (c *Config) ResolvePaths(_, dataDir string) {
	if c.InMemory || c.Path == "" || filepath.IsAbs(c.Path) {
		return
	}
	c.Path = filepath.Clean(filepath.Join(dataDir, c.Path))
}

func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New("index.name is required")
	}
	if !c.InMemory && c.Path == "" {
		return errors.New("index.path is required unless index.in_memory is set")
	}
	return nil
}
