package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --api-target
// on both "chatrelay chat" and "chatrelay models list").
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "server.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddIntFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagListen        = "listen"
	FlagAllowOrigin   = "allow-origin"
	FlagRateLimitMax  = "rate-limit"
	FlagStorageDriver = "storage"
	FlagSQLite        = "sqlite"
	FlagPostgresDSN   = "postgres-dsn"
	FlagCacheBackend  = "cache"
	FlagRedisAddr     = "redis-addr"
	FlagJWTSecret     = "jwt-secret"
	FlagTerminal      = "sse-terminal"
	FlagEvents        = "events"
	FlagBrokers       = "kafka-brokers"
	FlagTopic         = "kafka-topic"
	FlagAPITarget     = "api-target"
)

// Flags is the registry shared by every chatrelay command.
var Flags = FlagSet{
	FlagListen:        {Name: "listen", Shorthand: "l", ViperKey: "server.listen", Description: "Address for the server to listen on"},
	FlagAllowOrigin:   {Name: "allow-origin", ViperKey: "server.allow_origin", Description: "CORS origin allowed to call the API"},
	FlagRateLimitMax:  {Name: "rate-limit", ViperKey: "server.rate_limit_max", Description: "Requests per client per window on /api (negative disables)"},
	FlagStorageDriver: {Name: "storage", ViperKey: "storage.driver", Description: "Storage driver (inmemory, sqlite, postgres)"},
	FlagSQLite:        {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database"},
	FlagPostgresDSN:   {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagCacheBackend:  {Name: "cache", ViperKey: "cache.backend", Description: "Model listing cache (memory, redis)"},
	FlagRedisAddr:     {Name: "redis-addr", ViperKey: "cache.redis_addr", Description: "Redis address for the model listing cache"},
	FlagJWTSecret:     {Name: "jwt-secret", ViperKey: "auth.jwt_secret", Description: "Secret used to verify access tokens"},
	FlagTerminal:      {Name: "sse-terminal", ViperKey: "sse.terminal", Description: "Final SSE frame (json, sentinel)"},
	FlagEvents:        {Name: "events", ViperKey: "events.backend", Description: "Generation event publisher (nop, kafka)"},
	FlagBrokers:       {Name: "kafka-brokers", ViperKey: "events.brokers", Description: "Comma separated Kafka brokers"},
	FlagTopic:         {Name: "kafka-topic", ViperKey: "events.topic", Description: "Kafka topic for generation events"},
	FlagAPITarget:     {Name: "api-target", Shorthand: "a", ViperKey: "client.api_target", Description: "chatrelay server URL"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *int) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultInt returns the default int value for a viper key from NewDefaultConfig.
func defaultInt(viperKey string) int {
	v := viper.New()
	setViperDefaults(v)
	return v.GetInt(viperKey)
}
