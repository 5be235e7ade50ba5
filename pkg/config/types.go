package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent chatrelay configuration stored as
// config.toml in the .chatrelay/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Ollama  OllamaConfig  `toml:"ollama"`
	Cache   CacheConfig   `toml:"cache"`
	Auth    AuthConfig    `toml:"auth"`
	SSE     SSEConfig     `toml:"sse"`
	Events  EventsConfig  `toml:"events"`
	Client  ClientConfig  `toml:"client"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Listen          string `toml:"listen,omitempty"`
	AllowOrigin     string `toml:"allow_origin,omitempty"`
	RateLimitMax    int    `toml:"rate_limit_max,omitempty"`
	RateLimitWindow string `toml:"rate_limit_window,omitempty"`
	ShutdownTimeout string `toml:"shutdown_timeout,omitempty"`
}

// StorageConfig selects the storage driver. Driver is one of inmemory,
// sqlite or postgres.
type StorageConfig struct {
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// OllamaConfig holds upstream client timeouts. Values are Go durations.
type OllamaConfig struct {
	GenerateTimeout string `toml:"generate_timeout,omitempty"`
	IdleTimeout     string `toml:"idle_timeout,omitempty"`
	CacheTTL        string `toml:"cache_ttl,omitempty"`
}

// CacheConfig selects the model listing cache. Backend is memory or redis.
type CacheConfig struct {
	Backend   string `toml:"backend,omitempty"`
	RedisAddr string `toml:"redis_addr,omitempty"`
}

// AuthConfig holds access token verification settings.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret,omitempty"`
	Audience  string `toml:"audience,omitempty"`
}

// SSEConfig selects the terminal frame: json or sentinel.
type SSEConfig struct {
	Terminal string `toml:"terminal,omitempty"`
}

// EventsConfig selects the generation event publisher. Backend is nop or
// kafka; Brokers is a comma separated list.
type EventsConfig struct {
	Backend string `toml:"backend,omitempty"`
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
	Workers int    `toml:"workers,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// server (chatrelay chat, chatrelay models). Values are full URLs.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// BrokerList splits Brokers on commas, dropping blanks.
func (e EventsConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func oneOfKey(key string, allowed []string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			for _, a := range allowed {
				if v == a {
					*field(c) = v
					return nil
				}
			}
			return fmt.Errorf("invalid value for %s: %q (expected one of %s)", key, v, strings.Join(allowed, ", "))
		},
	}
}

func durationKey(key string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = v
			return nil
		},
	}
}

func intKey(key string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = n
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen":            stringKey(func(c *Config) *string { return &c.Server.Listen }),
	"server.allow_origin":      stringKey(func(c *Config) *string { return &c.Server.AllowOrigin }),
	"server.rate_limit_max":    intKey("server.rate_limit_max", func(c *Config) *int { return &c.Server.RateLimitMax }),
	"server.rate_limit_window": durationKey("server.rate_limit_window", func(c *Config) *string { return &c.Server.RateLimitWindow }),
	"server.shutdown_timeout":  durationKey("server.shutdown_timeout", func(c *Config) *string { return &c.Server.ShutdownTimeout }),

	"storage.driver":       oneOfKey("storage.driver", StorageDrivers(), func(c *Config) *string { return &c.Storage.Driver }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"ollama.generate_timeout": durationKey("ollama.generate_timeout", func(c *Config) *string { return &c.Ollama.GenerateTimeout }),
	"ollama.idle_timeout":     durationKey("ollama.idle_timeout", func(c *Config) *string { return &c.Ollama.IdleTimeout }),
	"ollama.cache_ttl":        durationKey("ollama.cache_ttl", func(c *Config) *string { return &c.Ollama.CacheTTL }),

	"cache.backend":    oneOfKey("cache.backend", []string{"memory", "redis"}, func(c *Config) *string { return &c.Cache.Backend }),
	"cache.redis_addr": stringKey(func(c *Config) *string { return &c.Cache.RedisAddr }),

	"auth.jwt_secret": stringKey(func(c *Config) *string { return &c.Auth.JWTSecret }),
	"auth.audience":   stringKey(func(c *Config) *string { return &c.Auth.Audience }),

	"sse.terminal": oneOfKey("sse.terminal", []string{"json", "sentinel"}, func(c *Config) *string { return &c.SSE.Terminal }),

	"events.backend": oneOfKey("events.backend", []string{"nop", "kafka"}, func(c *Config) *string { return &c.Events.Backend }),
	"events.brokers": stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":   stringKey(func(c *Config) *string { return &c.Events.Topic }),
	"events.workers": intKey("events.workers", func(c *Config) *int { return &c.Events.Workers }),

	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),
}

// orderedKeys matches the TOML section layout.
var orderedKeys = []string{
	"server.listen",
	"server.allow_origin",
	"server.rate_limit_max",
	"server.rate_limit_window",
	"server.shutdown_timeout",
	"storage.driver",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"ollama.generate_timeout",
	"ollama.idle_timeout",
	"ollama.cache_ttl",
	"cache.backend",
	"cache.redis_addr",
	"auth.jwt_secret",
	"auth.audience",
	"sse.terminal",
	"events.backend",
	"events.brokers",
	"events.topic",
	"events.workers",
	"client.api_target",
}

// secretKeys are masked by `chatrelay config list`.
var secretKeys = map[string]bool{
	"auth.jwt_secret":      true,
	"storage.postgres_dsn": true,
}

// IsSecretKey reports whether the value of key should be masked in output.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// StorageDrivers returns the supported storage driver names.
func StorageDrivers() []string {
	return []string{"inmemory", "sqlite", "postgres"}
}
