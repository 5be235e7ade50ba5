package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/pkg/cache"
	"github.com/papercomputeco/chatrelay/pkg/cache/memory"
	"github.com/papercomputeco/chatrelay/pkg/cache/redis"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/kafka"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/nop"
	"github.com/papercomputeco/chatrelay/pkg/ollama"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
	"github.com/papercomputeco/chatrelay/pkg/storage/postgres"
	"github.com/papercomputeco/chatrelay/pkg/storage/sqlite"
)

// newDriver opens the storage driver selected by storage.driver.
func newDriver(ctx context.Context, v *viper.Viper, log *slog.Logger) (storage.Driver, error) {
	switch name := v.GetString("storage.driver"); name {
	case "", "inmemory":
		log.Warn("using in-memory storage; data is lost on restart")
		return inmemory.NewDriver(), nil

	case "sqlite":
		path := v.GetString("storage.sqlite_path")
		if path == "" {
			return nil, errors.New("storage.sqlite_path is required for the sqlite driver")
		}
		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		log.Info("using SQLite storage", "path", path)
		return driver, nil

	case "postgres":
		dsn := v.GetString("storage.postgres_dsn")
		if dsn == "" {
			return nil, errors.New("storage.postgres_dsn is required for the postgres driver")
		}
		driver, err := postgres.NewDriver(ctx, dsn, true)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		log.Info("using PostgreSQL storage")
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", name)
	}
}

// newModelCache builds the model listing cache selected by cache.backend.
func newModelCache(ctx context.Context, v *viper.Viper, log *slog.Logger) (cache.Cache[[]ollama.Model], error) {
	switch name := v.GetString("cache.backend"); name {
	case "", "memory":
		return memory.New[[]ollama.Model](), nil

	case "redis":
		addr := v.GetString("cache.redis_addr")
		c, err := redis.New[[]ollama.Model](ctx, redis.Config{Addr: addr}, log)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
		}
		log.Info("using redis model cache", "addr", addr)
		return c, nil

	default:
		return nil, fmt.Errorf("unknown cache backend %q", name)
	}
}

// newPublisher builds the generation event publisher selected by
// events.backend.
func newPublisher(v *viper.Viper, log *slog.Logger) (eventstream.Publisher, error) {
	switch name := v.GetString("events.backend"); name {
	case "", "nop":
		return nop.NewPublisher(), nil

	case "kafka":
		brokers := config.EventsConfig{Brokers: v.GetString("events.brokers")}.BrokerList()
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers:  brokers,
			Topic:    v.GetString("events.topic"),
			ClientID: "chatrelay",
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		log.Info("publishing generation events to kafka",
			"brokers", brokers,
			"topic", v.GetString("events.topic"),
		)
		return p, nil

	default:
		return nil, fmt.Errorf("unknown events backend %q", name)
	}
}
