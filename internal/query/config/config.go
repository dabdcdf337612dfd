package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the query engine configuration.
type Config struct {
	// CandidateCap is the maximum number of substring candidates fetched
	// from the index for a search before scoring. Matches beyond the cap
	// are not scored.
	CandidateCap int `yaml:"candidate_cap"`

	// DefaultLimit is used when the requested page size is missing or < 1.
	DefaultLimit int `yaml:"default_limit"`

	// MaxLimit caps the requested page size.
	MaxLimit int `yaml:"max_limit"`

	// EnrichConcurrency caps concurrent picture resolutions per page.
	EnrichConcurrency int `yaml:"enrich_concurrency"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		CandidateCap:      10000,
		DefaultLimit:      10,
		MaxLimit:          100,
		EnrichConcurrency: 8,
	}
}

func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.CandidateCap == 0 {
		c.CandidateCap = defaults.CandidateCap
	}
	if c.DefaultLimit == 0 {
		c.DefaultLimit = defaults.DefaultLimit
	}
	if c.MaxLimit == 0 {
		c.MaxLimit = defaults.MaxLimit
	}
	if c.EnrichConcurrency == 0 {
		c.EnrichConcurrency = defaults.EnrichConcurrency
	}
}

func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("USERINDEX_CANDIDATE_CAP"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.CandidateCap = n
		}
	}
}

func (c *Config) ResolvePaths(_, _ string) { _ = c }

func (c *Config) Validate() error {
	if c.CandidateCap <= 0 {
		return fmt.Errorf("query.candidate_cap must be positive, got %d", c.CandidateCap)
	}
	if c.DefaultLimit <= 0 {
		return fmt.Errorf("query.default_limit must be positive, got %d", c.DefaultLimit)
	}
	if c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("query.max_limit (%d) must be >= query.default_limit (%d)", c.MaxLimit, c.DefaultLimit)
	}
	if c.EnrichConcurrency <= 0 {
		return fmt.Errorf("query.enrich_concurrency must be positive, got %d", c.EnrichConcurrency)
	}
	return nil
}
