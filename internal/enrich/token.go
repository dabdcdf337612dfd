package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned by TokenSigner.Verify.
var ErrInvalidToken = errors.New("invalid file token")

// ErrUnsafeKey is returned by TokenSigner.Sign for a key that would not
// map onto a single path under /files/.
var ErrUnsafeKey = errors.New("unsafe file key")

// TokenSigner links to pictures served by this service. The link carries
// an HS256 token bound to the object key.
type TokenSigner struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

func NewTokenSigner(secret, baseURL string, ttl time.Duration) *TokenSigner {
	return &TokenSigner{
		secret:  []byte(secret),
		baseURL: baseURL,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *TokenSigner) Sign(_ context.Context, key string) (string, error) {
	escaped, err := escapeKey(key)
	if err != nil {
		return "", err
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   key,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	link := strings.TrimRight(s.baseURL, "/") + "/files/" + escaped
	return link + "?token=" + url.QueryEscape(token), nil
}

// escapeKey escapes key segment by segment. Empty and dot segments are
// rejected: a client or router would clean them and the link would point
// at another file than the one the token names.
func escapeKey(key string) (string, error) {
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrUnsafeKey, key)
		}
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/"), nil
}

// Verify checks that token is valid, unexpired and issued for key.
func (s *TokenSigner) Verify(token, key string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject != key {
		return fmt.Errorf("%w: issued for another file", ErrInvalidToken)
	}
	return nil
}
