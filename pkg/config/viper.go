package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the CHATRELAY_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (CHATRELAY_SERVER_LISTEN, CHATRELAY_AUTH_JWT_SECRET, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("CHATRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.allow_origin", d.Server.AllowOrigin)
	v.SetDefault("server.rate_limit_max", d.Server.RateLimitMax)
	v.SetDefault("server.rate_limit_window", d.Server.RateLimitWindow)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	v.SetDefault("ollama.generate_timeout", d.Ollama.GenerateTimeout)
	v.SetDefault("ollama.idle_timeout", d.Ollama.IdleTimeout)
	v.SetDefault("ollama.cache_ttl", d.Ollama.CacheTTL)

	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)

	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.audience", d.Auth.Audience)

	v.SetDefault("sse.terminal", d.SSE.Terminal)

	v.SetDefault("events.backend", d.Events.Backend)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
	v.SetDefault("events.workers", d.Events.Workers)

	v.SetDefault("client.api_target", d.Client.APITarget)
}
