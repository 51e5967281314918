// Package blacklist maintains the JWT revocation list. Entries are keyed by
// the SHA-256 of the raw token string and expire at the moment the underlying
// token would have, so the list never needs manual cleanup. Presence of an
// entry overrides any cryptographic validity the token still has.
package blacklist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable indicates the revocation backend is unreachable. Callers on
// the validation path must treat it as fatal (fail closed).
var ErrUnavailable = errors.New("blacklist backend unavailable")

// Blacklist stores revoked tokens in Redis.
type Blacklist struct {
	redis      redis.UniversalClient
	defaultTTL time.Duration
}

// New creates a blacklist. defaultTTL applies to tokens whose expiry is
// unknown (malformed tokens are still revocable).
func New(redisClient redis.UniversalClient, defaultTTL time.Duration) *Blacklist {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &Blacklist{redis: redisClient, defaultTTL: defaultTTL}
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "blacklist:" + hex.EncodeToString(sum[:])
}

// Add revokes a token. The raw token string is hashed, never stored. A zero
// expiresAt falls back to the default TTL; an expiresAt in the past still
// writes a short-lived entry so revocation is never silently skipped.
func (b *Blacklist) Add(ctx context.Context, token string, expiresAt time.Time) error {
	if token == "" {
		return errors.New("token required")
	}

	ttl := b.defaultTTL
	if !expiresAt.IsZero() {
		ttl = time.Until(expiresAt)
		if ttl <= 0 {
			ttl = time.Second
		}
	}

	if err := b.redis.Set(ctx, tokenKey(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Contains reports whether the token has been revoked. It operates on the raw
// string, so even tokens that never parsed as JWTs can be checked.
func (b *Blacklist) Contains(ctx context.Context, token string) (bool, error) {
	n, err := b.redis.Exists(ctx, tokenKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}
