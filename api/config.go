// Package api is chatrelay's HTTP surface: the chat relay routes plus the
// REST API for conversations, the model catalogue, endpoints, usage and
// administration.
package api

import (
	"context"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/auth"
	"github.com/papercomputeco/chatrelay/pkg/metrics"
	"github.com/papercomputeco/chatrelay/pkg/ollama"
	"github.com/papercomputeco/chatrelay/relay"
)

const (
	// DefaultAllowOrigin matches the web UI's dev server.
	DefaultAllowOrigin = "http://localhost:5173"

	// DefaultRateLimitMax is the per-IP request budget per window on /api.
	DefaultRateLimitMax = 100

	// DefaultRateLimitWindow is the rate limiter window.
	DefaultRateLimitWindow = 15 * time.Minute
)

// Upstream is the part of the Ollama client the REST API uses.
// *ollama.Client satisfies it.
type Upstream interface {
	ListModels(ctx context.Context, ep ollama.Endpoint) ([]ollama.Model, error)
	Health(ctx context.Context, ep ollama.Endpoint) bool
	ClearCache(ctx context.Context, baseURL string)
}

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":3001")
	ListenAddr string

	// AllowOrigin is the CORS origin allowed to call the API with
	// credentials. "*" disables credentials.
	AllowOrigin string

	// RateLimitMax requests per RateLimitWindow per client IP on /api.
	// Negative disables the limiter.
	RateLimitMax    int
	RateLimitWindow time.Duration

	// Relay serves /api/chat. Required.
	Relay *relay.Relay

	// Authenticator resolves bearer tokens. Required.
	Authenticator *auth.Authenticator

	// Upstream talks to Ollama for health checks, listings and sync.
	// Required.
	Upstream Upstream

	// Metrics, when set, is exposed on /metrics and records every request.
	Metrics *metrics.Metrics
}
