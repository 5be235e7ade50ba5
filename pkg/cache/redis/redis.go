// Package redis implements cache.Cache on top of Redis so several chatrelay
// replicas share one model-listing cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/papercomputeco/chatrelay/pkg/cache"
	"github.com/papercomputeco/chatrelay/pkg/logger"
)

const defaultPrefix = "chatrelay:models:"

// Cache stores JSON-encoded values under a key prefix.
type Cache[V any] struct {
	client goredis.UniversalClient
	prefix string
	logger *slog.Logger
}

// Config holds the Redis cache settings.
type Config struct {
	// Addr is host:port of the Redis server.
	Addr string

	// Password is optional.
	Password string

	// DB selects the logical database.
	DB int

	// Prefix namespaces every key. Defaults to "chatrelay:models:".
	Prefix string
}

// New dials Redis and verifies the connection with PING.
func New[V any](ctx context.Context, cfg Config, log *slog.Logger) (*Cache[V], error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient[V](client, cfg.Prefix, log), nil
}

// NewWithClient wraps an existing client. A nil log discards warnings.
func NewWithClient[V any](client goredis.UniversalClient, prefix string, log *slog.Logger) *Cache[V] {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Cache[V]{client: client, prefix: prefix, logger: log}
}

func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V

	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.Warn("redis cache get failed", "key", key, "error", err)
		}
		return zero, false
	}

	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.Warn("redis cache entry undecodable", "key", key, "error", err)
		return zero, false
	}
	return v, true
}

func (c *Cache[V]) Put(ctx context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}

	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("redis cache encode failed", "key", key, "error", err)
		return
	}

	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		c.logger.Warn("redis cache set failed", "key", key, "error", err)
	}
}

func (c *Cache[V]) Invalidate(ctx context.Context, key string) {
	if key != "" {
		if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
			c.logger.Warn("redis cache delete failed", "key", key, "error", err)
		}
		return
	}

	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("redis cache scan failed", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("redis cache flush failed", "count", len(keys), "error", err)
	}
}

// Close closes the underlying client.
func (c *Cache[V]) Close() error {
	return c.client.Close()
}

var _ cache.Cache[string] = (*Cache[string])(nil)
