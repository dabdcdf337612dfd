// Package config holds settings for picture URL signing and caching.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	SignerNone  = "none"
	SignerS3    = "s3"
	SignerToken = "token"

	CacheNone   = "none"
	CacheMemory = "memory"
	CacheValkey = "valkey"
)

type Config struct {
	// Signer selects how picture references become URLs: s3, token or none.
	Signer string `yaml:"signer"`

	// URLTTL is how long a signed URL stays valid.
	URLTTL time.Duration `yaml:"url_ttl"`

	// Timeout bounds a single resolution.
	Timeout time.Duration `yaml:"timeout"`

	S3    S3Config    `yaml:"s3"`
	Token TokenConfig `yaml:"token"`
	Cache CacheConfig `yaml:"cache"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// TokenConfig configures locally served pictures behind HMAC-signed links.
type TokenConfig struct {
	Secret  string `yaml:"secret"`
	BaseURL string `yaml:"base_url"`
	Dir     string `yaml:"dir"`
}

type CacheConfig struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
	Size    int           `yaml:"size"`
	Valkey  ValkeyConfig  `yaml:"valkey"`
}

type ValkeyConfig struct {
	Addr      string `yaml:"addr"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

func DefaultConfig() Config {
	return Config{
		Signer:  SignerNone,
		URLTTL:  5 * time.Minute,
		Timeout: 3 * time.Second,
		Token: TokenConfig{
			BaseURL: "http://localhost:8080",
			Dir:     "files",
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			Size:    10000,
			Valkey: ValkeyConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "userindex:url:",
			},
		},
	}
}

func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Signer == "" {
		c.Signer = defaults.Signer
	}
	if c.URLTTL == 0 {
		c.URLTTL = defaults.URLTTL
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.Token.BaseURL == "" {
		c.Token.BaseURL = defaults.Token.BaseURL
	}
	if c.Token.Dir == "" {
		c.Token.Dir = defaults.Token.Dir
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaults.Cache.Backend
	}
	// Cached URLs must expire well before the URL itself does.
	if c.Cache.TTL == 0 {
		c.Cache.TTL = c.URLTTL / 2
	}
	if c.Cache.Size == 0 {
		c.Cache.Size = defaults.Cache.Size
	}
	if c.Cache.Valkey.Addr == "" {
		c.Cache.Valkey.Addr = defaults.Cache.Valkey.Addr
	}
	if c.Cache.Valkey.KeyPrefix == "" {
		c.Cache.Valkey.KeyPrefix = defaults.Cache.Valkey.KeyPrefix
	}
}

// ApplyEnvOverrides reads the S3_* variables used by existing deployments.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("S3_BUCKET_NAME"); val != "" {
		c.S3.Bucket = val
		if c.Signer == SignerNone {
			c.Signer = SignerS3
		}
	}
	if val := os.Getenv("S3_REGION"); val != "" {
		c.S3.Region = val
	}
	if val := os.Getenv("S3_ACCESS_KEY_ID"); val != "" {
		c.S3.AccessKeyID = val
	}
	if val := os.Getenv("S3_SECRET_ACCESS_KEY"); val != "" {
		c.S3.SecretAccessKey = val
	}
	if val := os.Getenv("S3_ENDPOINT"); val != "" {
		c.S3.Endpoint = val
	}
	if val := os.Getenv("FILE_TOKEN_SECRET"); val != "" {
		c.Token.Secret = val
	}
	if val := os.Getenv("VALKEY_ADDR"); val != "" {
		c.Cache.Valkey.Addr = val
	}
	if val := os.Getenv("VALKEY_PASSWORD"); val != "" {
		c.Cache.Valkey.Password = val
	}
	if val := os.Getenv("VALKEY_DB"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Cache.Valkey.DB = n
		}
	}
}

// ResolvePaths places the local file directory under the data directory.
func (c *Config) ResolvePaths(_, dataDir string) {
	if c.Token.Dir != "" && !filepath.IsAbs(c.Token.Dir) {
		c.Token.Dir = filepath.Clean(filepath.Join(dataDir, c.Token.Dir))
	}
}

func (c *Config) Validate() error {
	switch c.Signer {
	case SignerNone:
	case SignerS3:
		if c.S3.Bucket == "" {
			return errors.New("enrich.s3.bucket is required for the s3 signer")
		}
		if c.S3.Region == "" {
			return errors.New("enrich.s3.region is required for the s3 signer")
		}
		if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
			return errors.New("enrich.s3.access_key_id and enrich.s3.secret_access_key must be set together")
		}
	case SignerToken:
		if c.Token.Secret == "" {
			return errors.New("enrich.token.secret is required for the token signer")
		}
		if c.Token.BaseURL == "" {
			return errors.New("enrich.token.base_url is required for the token signer")
		}
	default:
		return fmt.Errorf("invalid enrich.signer: %s (must be s3, token, or none)", c.Signer)
	}

	if c.URLTTL <= 0 {
		return errors.New("enrich.url_ttl must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("enrich.timeout must be positive")
	}

	switch c.Cache.Backend {
	case CacheNone:
	case CacheMemory:
		if c.Cache.Size <= 0 {
			return errors.New("enrich.cache.size must be positive")
		}
	case CacheValkey:
		if c.Cache.Valkey.Addr == "" {
			return errors.New("enrich.cache.valkey.addr is required for the valkey cache")
		}
	default:
		return fmt.Errorf("invalid enrich.cache.backend: %s (must be memory, valkey, or none)", c.Cache.Backend)
	}
	if c.Cache.Backend != CacheNone && c.Cache.TTL >= c.URLTTL {
		return fmt.Errorf("enrich.cache.ttl (%s) must be shorter than enrich.url_ttl (%s)", c.Cache.TTL, c.URLTTL)
	}
	return nil
}
