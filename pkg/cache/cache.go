// Package cache defines the small TTL cache used to memoize upstream model
// listings. Generation calls are never cached.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long a cached model listing stays fresh.
const DefaultTTL = 5 * time.Minute

// Cache is a concurrency-safe key/value store with per-entry expiry.
// Implementations treat backend failures as misses; a broken cache must never
// fail the request it was meant to speed up.
type Cache[V any] interface {
	// Get returns the value for key and true if present and not expired.
	Get(ctx context.Context, key string) (V, bool)

	// Put stores value under key for ttl. A non-positive ttl uses DefaultTTL.
	Put(ctx context.Context, key string, value V, ttl time.Duration)

	// Invalidate removes key, or every entry when key is empty.
	Invalidate(ctx context.Context, key string)
}
