// Package memory implements cache.Cache with a mutex-guarded map.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/cache"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// Cache is an in-process TTL cache. Expired entries are dropped lazily on
// read and on Put.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	now     func() time.Time
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithClock overrides the time source, for tests.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) { c.now = now }
}

// New returns an empty Cache.
func New[V any](opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache[V]) Get(_ context.Context, key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}

	if !c.now().Before(e.expires) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Put may have refreshed it.
		if cur, ok := c.entries[key]; ok && !c.now().Before(cur.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()

		var zero V
		return zero, false
	}

	return e.value, true
}

func (c *Cache[V]) Put(_ context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = entry[V]{value: value, expires: now.Add(ttl)}
}

func (c *Cache[V]) Invalidate(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key == "" {
		clear(c.entries)
		return
	}
	delete(c.entries, key)
}

// Len reports the number of stored entries, including expired ones not yet
// swept.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ cache.Cache[string] = (*Cache[string])(nil)
