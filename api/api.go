package api

import (
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/papercomputeco/chatrelay/pkg/auth"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// Server is the chatrelay HTTP server.
type Server struct {
	config Config
	driver storage.Driver
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server and registers every route.
// The driver is injected to allow sharing with the relay.
func NewServer(config Config, driver storage.Driver, log *slog.Logger) (*Server, error) {
	switch {
	case config.Relay == nil:
		return nil, errors.New("api server requires a relay")
	case config.Authenticator == nil:
		return nil, errors.New("api server requires an authenticator")
	case config.Upstream == nil:
		return nil, errors.New("api server requires an upstream client")
	}

	if config.AllowOrigin == "" {
		config.AllowOrigin = DefaultAllowOrigin
	}
	if config.RateLimitMax == 0 {
		config.RateLimitMax = DefaultRateLimitMax
	}
	if config.RateLimitWindow <= 0 {
		config.RateLimitWindow = DefaultRateLimitWindow
	}
	if log == nil {
		log = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})

	s := &Server{
		config: config,
		driver: driver,
		logger: log,
		app:    app,
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	app := s.app

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestLogger(s.logger, s.config.Metrics))
	app.Use(helmet.New(helmet.Config{
		// The web UI is served from another origin.
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowOrigin,
		AllowCredentials: s.config.AllowOrigin != "*",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PATCH, DELETE, OPTIONS",
	}))

	app.Get("/health", s.handleHealth)
	if s.config.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(s.config.Metrics.Handler()))
	}

	api := app.Group("/api")
	if s.config.RateLimitMax > 0 {
		api.Use(limiter.New(limiter.Config{
			Max:        s.config.RateLimitMax,
			Expiration: s.config.RateLimitWindow,
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
					Error: "Too many requests from this IP, please try again later.",
				})
			},
		}))
	}

	user := auth.Middleware(s.config.Authenticator, auth.MiddlewareConfig{})
	streamUser := auth.Middleware(s.config.Authenticator, auth.MiddlewareConfig{AllowQueryToken: true})
	admin := auth.RequireAdmin()

	api.Get("/chat", streamUser, s.config.Relay.Stream)
	api.Post("/chat", user, s.config.Relay.Chat)

	api.Post("/conversations", user, s.handleCreateConversation)
	api.Get("/conversations", user, s.handleListConversations)
	api.Get("/conversations/:id", user, s.handleGetConversation)
	api.Patch("/conversations/:id", user, s.handleUpdateConversation)
	api.Delete("/conversations/:id", user, s.handleDeleteConversation)
	api.Get("/conversations/:id/messages", user, s.handleListMessages)

	api.Get("/models", user, s.handleListModels)
	api.Get("/models/:id", user, s.handleGetModel)
	api.Post("/models", user, admin, s.handleCreateModel)
	api.Patch("/models/:id", user, admin, s.handleUpdateModel)
	api.Delete("/models/:id", user, admin, s.handleDeleteModel)

	api.Get("/endpoints", user, s.handleListEndpoints)
	api.Get("/endpoints/:id", user, s.handleGetEndpoint)
	api.Post("/endpoints", user, admin, s.handleCreateEndpoint)
	api.Patch("/endpoints/:id", user, admin, s.handleUpdateEndpoint)
	api.Delete("/endpoints/:id", user, admin, s.handleDeleteEndpoint)
	api.Post("/endpoints/:id/health", user, admin, s.handleCheckEndpointHealth)
	api.Get("/endpoints/:id/upstream-models", user, s.handleListUpstreamModels)

	api.Get("/metrics/usage/user", user, s.handleUserUsage)
	api.Get("/metrics/usage/all", user, admin, s.handleAllUsage)

	api.Post("/admin/sync-models/:endpointId", user, admin, s.handleSyncModels)
	api.Delete("/admin/cache", user, admin, s.handleClearCache)
	api.Get("/admin/audit-logs", user, admin, s.handleListAuditLogs)
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server",
		"listen", listener.Addr().String(),
	)
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server, waiting up to timeout for
// open streams to finish.
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}
