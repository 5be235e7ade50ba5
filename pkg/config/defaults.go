package config

const (
	defaultListen          = ":3001"
	defaultAllowOrigin     = "http://localhost:5173"
	defaultRateLimitMax    = 100
	defaultRateLimitWindow = "15m"
	defaultShutdownTimeout = "30s"

	defaultStorageDriver = "inmemory"

	defaultGenerateTimeout = "120s"
	defaultIdleTimeout     = "120s"
	defaultCacheTTL        = "5m"

	defaultCacheBackend = "memory"
	defaultRedisAddr    = "localhost:6379"

	defaultAudience = "authenticated"

	defaultTerminal = "json"

	defaultEventsBackend = "nop"
	defaultEventsTopic   = "chatrelay.generations"
	defaultEventsWorkers = 3

	defaultClientAPITarget = "http://localhost:3001"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen:          defaultListen,
			AllowOrigin:     defaultAllowOrigin,
			RateLimitMax:    defaultRateLimitMax,
			RateLimitWindow: defaultRateLimitWindow,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Ollama: OllamaConfig{
			GenerateTimeout: defaultGenerateTimeout,
			IdleTimeout:     defaultIdleTimeout,
			CacheTTL:        defaultCacheTTL,
		},
		Cache: CacheConfig{
			Backend:   defaultCacheBackend,
			RedisAddr: defaultRedisAddr,
		},
		Auth: AuthConfig{
			Audience: defaultAudience,
		},
		SSE: SSEConfig{
			Terminal: defaultTerminal,
		},
		Events: EventsConfig{
			Backend: defaultEventsBackend,
			Topic:   defaultEventsTopic,
			Workers: defaultEventsWorkers,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
	}
}
