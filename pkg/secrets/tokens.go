package secrets

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/cuemby/sentryd/pkg/apierr"
)

// refreshMarginFraction is the fraction of a token's TTL, counted back
// from expiry, during which a still-valid token is reported as due for
// refresh: ttl * (1 - 1/32).
const refreshMarginFraction = 1.0 / 32.0

type tokenEntry struct {
	issuedAt  time.Time
	expiresAt time.Time
	ttl       time.Duration
}

// TokenCache issues and validates bearer tokens with a fixed TTL, guarded
// by its own RWMutex independent of PasswordStore's lock.
type TokenCache struct {
	mu     sync.RWMutex
	tokens map[string]tokenEntry
}

// NewTokenCache returns an empty cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{tokens: make(map[string]tokenEntry)}
}

// Issue mints a new random token valid for ttl.
func (c *TokenCache) Issue(ttl time.Duration) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", apierr.Wrap(apierr.CodeInternalError, "generating token", err)
	}
	token := hex.EncodeToString(raw)

	now := time.Now()
	c.mu.Lock()
	c.tokens[token] = tokenEntry{issuedAt: now, expiresAt: now.Add(ttl), ttl: ttl}
	c.mu.Unlock()

	return token, nil
}

// Validate reports whether token is currently valid, and whether it has
// entered its refresh margin (the last ttl/32 of its lifetime) and
// should be reissued by the caller on this request.
func (c *TokenCache) Validate(token string) (valid, needsRefresh bool) {
	c.mu.RLock()
	entry, ok := c.tokens[token]
	c.mu.RUnlock()

	if !ok {
		return false, false
	}

	now := time.Now()
	if now.After(entry.expiresAt) {
		return false, false
	}

	margin := time.Duration(float64(entry.ttl) * refreshMarginFraction)
	needsRefresh = now.After(entry.expiresAt.Add(-margin))
	return true, needsRefresh
}

// Revoke invalidates token immediately.
func (c *TokenCache) Revoke(token string) {
	c.mu.Lock()
	delete(c.tokens, token)
	c.mu.Unlock()
}

// PurgeExpired removes every token past its expiry.
func (c *TokenCache) PurgeExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for token, entry := range c.tokens {
		if now.After(entry.expiresAt) {
			delete(c.tokens, token)
		}
	}
}

// RunPurgeLoop runs PurgeExpired on interval until ctx is canceled.
// cmd/sentryd cancels it only when serve returns; a factory reset does
// not cancel it.
func (c *TokenCache) RunPurgeLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.PurgeExpired()
		case <-ctx.Done():
			return
		}
	}
}
