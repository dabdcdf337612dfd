package metrics

import (
	"errors"
	"strings"
)

// Config controls the /metrics endpoint.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func DefaultConfig() Config {
	return Config{Enabled: true, Path: "/metrics"}
}

func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = DefaultConfig().Path
	}
}

func (c *Config) ApplyEnvOverrides() { _ = c }

func (c *Config) ResolvePaths(_, _ string) { _ = c }

func (c *Config) Validate() error {
	if c.Enabled && !strings.HasPrefix(c.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	return nil
}
