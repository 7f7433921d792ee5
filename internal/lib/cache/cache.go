// Package cache holds read-mostly values fetched from slow backends.
package cache

import (
	"context"
	"golang.org/x/sync/singleflight"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Loader fetches the value for key on a miss.
type Loader[V any] func(ctx context.Context, key string) (V, error)

// TTL caches loader results per key. A zero ttl keeps entries for the process lifetime.
// Concurrent misses on the same key share one loader call.
type TTL[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration
	load    Loader[V]
	group   singleflight.Group
	Now     func() time.Time
}

func NewTTL[V any](ttl time.Duration, load Loader[V]) *TTL[V] {
	return &TTL[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		load:    load,
		Now:     time.Now,
	}
}

func (c *TTL[V]) Get(ctx context.Context, key string) (V, error) {
	now := c.Now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && (e.expiresAt.IsZero() || now.Before(e.expiresAt)) {
		return e.value, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		value, err := c.load(ctx, key)
		if err != nil {
			return value, err
		}
		stored := entry[V]{value: value}
		if c.ttl > 0 {
			stored.expiresAt = c.Now().Add(c.ttl)
		}
		c.mu.Lock()
		c.entries[key] = stored
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Invalidate drops key so the next Get reloads it.
func (c *TTL[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.group.Forget(key)
}
