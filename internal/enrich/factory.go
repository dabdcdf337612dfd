package enrich

import (
	"context"
	"log/slog"

	"github.com/syntrixbase/userindex/internal/enrich/config"
)

// NewFromConfig builds a resolver with the configured signer and cache.
// The returned token signer is non-nil only for the token signer, which the
// HTTP layer needs to verify file links.
func NewFromConfig(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Resolver, *TokenSigner, error) {
	var (
		signer Signer
		tokens *TokenSigner
	)
	switch cfg.Signer {
	case config.SignerS3:
		s, err := NewS3Signer(ctx, cfg.S3, cfg.URLTTL)
		if err != nil {
			return nil, nil, err
		}
		signer = s
	case config.SignerToken:
		tokens = NewTokenSigner(cfg.Token.Secret, cfg.Token.BaseURL, cfg.URLTTL)
		signer = tokens
	}

	var cache URLCache
	switch cfg.Cache.Backend {
	case config.CacheMemory:
		cache = NewMemoryCache(cfg.Cache.Size, cfg.Cache.TTL)
	case config.CacheValkey:
		c, err := NewValkeyCache(cfg.Cache.Valkey, cfg.Cache.TTL, logger)
		if err != nil {
			return nil, nil, err
		}
		cache = c
	}

	return NewResolver(signer, cache, cfg.Timeout, logger), tokens, nil
}
