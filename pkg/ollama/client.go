// Package ollama is the HTTP client chatrelay uses to talk to Ollama servers:
// unary and streaming generation, model listing and health checks.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/cache"
	"github.com/papercomputeco/chatrelay/pkg/cache/memory"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/metrics"
)

const (
	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultGenerateTimeout bounds a unary generation call.
	DefaultGenerateTimeout = 120 * time.Second

	// DefaultIdleTimeout fails a streaming generation when no bytes arrive
	// for this long.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultListTimeout bounds GET /api/tags.
	DefaultListTimeout = 10 * time.Second

	// DefaultHealthTimeout bounds GET /api/version.
	DefaultHealthTimeout = 5 * time.Second
)

// Client issues requests to Ollama servers. A single Client serves every
// configured endpoint; the target is passed per call.
type Client struct {
	httpClient *http.Client
	models     cache.Cache[[]Model]
	cacheTTL   time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics

	generateTimeout time.Duration
	idleTimeout     time.Duration
	listTimeout     time.Duration
	healthTimeout   time.Duration
}

// Config holds configuration for the Client. Zero values fall back to the
// package defaults.
type Config struct {
	// HTTPClient is used for all requests. It must not set a global Timeout,
	// which would cut long streams short; deadlines are applied per call.
	HTTPClient *http.Client

	// Cache memoizes model listings keyed by base URL. Defaults to an
	// in-process cache.
	Cache cache.Cache[[]Model]

	// CacheTTL is the freshness window of a cached listing.
	CacheTTL time.Duration

	GenerateTimeout time.Duration
	IdleTimeout     time.Duration
	ListTimeout     time.Duration
	HealthTimeout   time.Duration

	Logger *slog.Logger

	// Metrics receives cache hit/miss counts. Optional.
	Metrics *metrics.Metrics
}

// NewClient creates a new Client.
func NewClient(cfg Config) *Client {
	c := &Client{
		httpClient:      cfg.HTTPClient,
		models:          cfg.Cache,
		cacheTTL:        cfg.CacheTTL,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		generateTimeout: cfg.GenerateTimeout,
		idleTimeout:     cfg.IdleTimeout,
		listTimeout:     cfg.ListTimeout,
		healthTimeout:   cfg.HealthTimeout,
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.models == nil {
		c.models = memory.New[[]Model]()
	}
	if c.cacheTTL <= 0 {
		c.cacheTTL = cache.DefaultTTL
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	if c.generateTimeout <= 0 {
		c.generateTimeout = DefaultGenerateTimeout
	}
	if c.idleTimeout <= 0 {
		c.idleTimeout = DefaultIdleTimeout
	}
	if c.listTimeout <= 0 {
		c.listTimeout = DefaultListTimeout
	}
	if c.healthTimeout <= 0 {
		c.healthTimeout = DefaultHealthTimeout
	}

	return c
}

// Generate performs a unary (stream=false) generation.
func (c *Client) Generate(ctx context.Context, req GenerateRequest, ep Endpoint) (*GenerateResult, error) {
	req.Stream = false

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling generate request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.generateTimeout)
	defer cancel()

	c.logger.Debug("generating", "endpoint", ep.BaseURL, "model", req.Model)

	resp, err := c.do(callCtx, http.MethodPost, ep, "/api/generate", body)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result GenerateResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, transportError(ctx, fmt.Errorf("decoding generate response: %w", err))
	}

	return &result, nil
}

// GenerateStream starts a streaming generation. The returned Stream must be
// closed by the caller. Errors opening the stream (non-2xx, connection
// refused, no response headers within the idle window) are returned here as
// *UpstreamError.
func (c *Client) GenerateStream(ctx context.Context, req GenerateRequest, ep Endpoint) (*Stream, error) {
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling generate request: %w", err)
	}

	streamCtx, cancel := context.WithCancelCause(ctx)
	timer := time.AfterFunc(c.idleTimeout, func() { cancel(errIdleTimeout) })

	c.logger.Debug("starting stream generation", "endpoint", ep.BaseURL, "model", req.Model)

	resp, err := c.do(streamCtx, http.MethodPost, ep, "/api/generate", body)
	if err != nil {
		timer.Stop()
		err = streamError(ctx, streamCtx, err)
		cancel(nil)
		return nil, err
	}

	if err := checkStatus(resp); err != nil {
		timer.Stop()
		resp.Body.Close()
		cancel(nil)
		return nil, err
	}

	return newStream(ctx, streamCtx, cancel, resp.Body, timer, c.idleTimeout, c.logger), nil
}

// ListModels returns the models installed on ep, served from cache when a
// fresh listing exists.
func (c *Client) ListModels(ctx context.Context, ep Endpoint) ([]Model, error) {
	key := normalizeBaseURL(ep.BaseURL)

	models, ok := c.models.Get(ctx, key)
	c.metrics.ModelCacheLookup(ok)
	if ok {
		c.logger.Debug("using cached models", "endpoint", key, "count", len(models))
		return models, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()

	resp, err := c.do(callCtx, http.MethodGet, ep, "/api/tags", nil)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, transportError(ctx, fmt.Errorf("decoding tags response: %w", err))
	}
	if tags.Models == nil {
		tags.Models = []Model{}
	}

	c.models.Put(ctx, key, tags.Models, c.cacheTTL)
	c.logger.Info("fetched models", "endpoint", key, "count", len(tags.Models))

	return tags.Models, nil
}

// Health reports whether ep answers GET /api/version with a 2xx status.
func (c *Client) Health(ctx context.Context, ep Endpoint) bool {
	callCtx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	resp, err := c.do(callCtx, http.MethodGet, ep, "/api/version", nil)
	if err != nil {
		c.logger.Warn("health check failed", "endpoint", ep.BaseURL, "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Version returns the server version reported by GET /api/version.
func (c *Client) Version(ctx context.Context, ep Endpoint) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	resp, err := c.do(callCtx, http.MethodGet, ep, "/api/version", nil)
	if err != nil {
		return "", transportError(ctx, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var v versionResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return "", transportError(ctx, fmt.Errorf("decoding version response: %w", err))
	}
	return v.Version, nil
}

// ClearCache drops the cached listing for baseURL, or every listing when
// baseURL is empty.
func (c *Client) ClearCache(ctx context.Context, baseURL string) {
	c.models.Invalidate(ctx, normalizeBaseURL(baseURL))
}

func (c *Client) do(ctx context.Context, method string, ep Endpoint, path string, body []byte) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, normalizeBaseURL(ep.BaseURL)+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ep.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}

	return c.httpClient.Do(req)
}

func normalizeBaseURL(u string) string {
	return strings.TrimRight(u, "/")
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &UpstreamError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}

// transportError classifies a failed round trip. Cancellation by the caller
// is returned unchanged; everything else becomes an *UpstreamError.
func transportError(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	return &UpstreamError{Timeout: isTimeout(err), Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
