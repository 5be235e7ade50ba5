// Package servecmder provides the serve command that runs the chatrelay
// server: the /api/chat relay plus the REST API.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/pkg/auth"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/metrics"
	"github.com/papercomputeco/chatrelay/pkg/ollama"
	"github.com/papercomputeco/chatrelay/pkg/sse"
	"github.com/papercomputeco/chatrelay/relay"
	"github.com/papercomputeco/chatrelay/relay/worker"
)

type serveCommander struct {
	flags struct {
		listen, allowOrigin                      string
		rateLimit                                int
		storage, sqlite, postgresDSN             string
		cache, redisAddr, jwtSecret, sseTerminal string
		events, brokers, topic                   string
	}

	viper  *viper.Viper
	debug  bool
	logger *slog.Logger
}

// serveFlags are bound to viper so flag > env > file > default.
var serveFlags = []string{
	config.FlagListen,
	config.FlagAllowOrigin,
	config.FlagRateLimitMax,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagCacheBackend,
	config.FlagRedisAddr,
	config.FlagJWTSecret,
	config.FlagTerminal,
	config.FlagEvents,
	config.FlagBrokers,
	config.FlagTopic,
}

const serveLongDesc string = `Run the chatrelay server.

Every setting can come from a flag, a CHATRELAY_ environment variable
(CHATRELAY_AUTH_JWT_SECRET, CHATRELAY_STORAGE_DRIVER, ...) or config.toml in
the .chatrelay/ directory, in that order of precedence.

Examples:
  chatrelay serve --jwt-secret $SUPABASE_JWT_SECRET
  chatrelay serve --storage sqlite --sqlite ./chatrelay.db
  chatrelay serve --storage postgres --postgres-dsn postgres://... --cache redis
  chatrelay serve --events kafka --kafka-brokers kafka:9092`

const serveShortDesc string = "Run the chatrelay server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &f.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagAllowOrigin, &f.allowOrigin)
	config.AddIntFlag(cmd, config.Flags, config.FlagRateLimitMax, &f.rateLimit)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &f.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.sqlite)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &f.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagCacheBackend, &f.cache)
	config.AddStringFlag(cmd, config.Flags, config.FlagRedisAddr, &f.redisAddr)
	config.AddStringFlag(cmd, config.Flags, config.FlagJWTSecret, &f.jwtSecret)
	config.AddStringFlag(cmd, config.Flags, config.FlagTerminal, &f.sseTerminal)
	config.AddStringFlag(cmd, config.Flags, config.FlagEvents, &f.events)
	config.AddStringFlag(cmd, config.Flags, config.FlagBrokers, &f.brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagTopic, &f.topic)

	return cmd
}

func (c *serveCommander) run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	v := c.viper

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(interactive),
		logger.WithJSON(!interactive),
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	terminal, err := sse.ParseTerminal(v.GetString("sse.terminal"))
	if err != nil {
		return err
	}

	verifier, err := auth.NewHMACVerifier(v.GetString("auth.jwt_secret"), v.GetString("auth.audience"))
	if err != nil {
		return fmt.Errorf("configuring auth (set auth.jwt_secret or CHATRELAY_AUTH_JWT_SECRET): %w", err)
	}

	m := metrics.New()

	driver, err := newDriver(ctx, v, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	modelCache, err := newModelCache(ctx, v, c.logger)
	if err != nil {
		return err
	}

	client := ollama.NewClient(ollama.Config{
		Cache:           modelCache,
		CacheTTL:        v.GetDuration("ollama.cache_ttl"),
		GenerateTimeout: v.GetDuration("ollama.generate_timeout"),
		IdleTimeout:     v.GetDuration("ollama.idle_timeout"),
		Logger:          c.logger,
		Metrics:         m,
	})

	publisher, err := newPublisher(v, c.logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	workers := v.GetInt("events.workers")
	if workers < 0 {
		workers = 0
	}
	pool, err := worker.NewPool(&worker.Config{
		Publisher:  publisher,
		NumWorkers: uint(workers),
		Logger:     c.logger,
		Metrics:    m,
	})
	if err != nil {
		return fmt.Errorf("creating event worker pool: %w", err)
	}
	defer pool.Close()

	allowOrigin := v.GetString("server.allow_origin")
	rly := relay.New(relay.Config{
		Terminal:    terminal,
		AllowOrigin: allowOrigin,
		Events:      pool,
		Metrics:     m,
	}, driver, client, c.logger)

	server, err := api.NewServer(api.Config{
		ListenAddr:      v.GetString("server.listen"),
		AllowOrigin:     allowOrigin,
		RateLimitMax:    v.GetInt("server.rate_limit_max"),
		RateLimitWindow: v.GetDuration("server.rate_limit_window"),
		Relay:           rly,
		Authenticator:   auth.NewAuthenticator(verifier, driver, c.logger),
		Upstream:        client,
		Metrics:         m,
	}, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
	}

	timeout := v.GetDuration("server.shutdown_timeout")
	if err := server.Shutdown(timeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		c.logger.Error("server shutdown failed", "error", err)
	}

	// Open streams have finished or been cut; drain queued events before the
	// publisher and store close.
	drained := make(chan struct{})
	go func() {
		pool.Close()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(timeout):
		c.logger.Warn("event queue not drained before shutdown timeout")
	}

	return nil
}
