// Package secrets resolves named credentials. Values are cached in process with a bounded lifetime.
package secrets

import (
	"FunnelRouter/internal/lib/cache"
	"context"
	"fmt"
	"time"
)

// Store returns the current value of a named secret.
type Store interface {
	Secret(ctx context.Context, name string) (string, error)
}

// Cached fronts a Store; concurrent readers share one backend fetch per name.
type Cached struct {
	store   Store
	timeout time.Duration
	values  *cache.TTL[string]
}

// NewCached caches values for ttl; ttl <= 0 keeps them for the process lifetime.
func NewCached(store Store, ttl, timeout time.Duration) *Cached {
	c := &Cached{store: store, timeout: timeout}
	c.values = cache.NewTTL[string](ttl, c.fetch)
	return c
}

func (c *Cached) fetch(ctx context.Context, name string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	value, err := c.store.Secret(ctx, name)
	if err != nil {
		return "", fmt.Errorf("secret %s: %w", name, err)
	}
	return value, nil
}

func (c *Cached) Secret(ctx context.Context, name string) (string, error) {
	return c.values.Get(ctx, name)
}

// Invalidate forces the next read of name to hit the backend.
func (c *Cached) Invalidate(name string) {
	c.values.Invalidate(name)
}
