// Package apiclient is the HTTP client the chatrelay CLI uses to talk to a
// running chatrelay server.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/sse"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/relay"
)

// defaultTimeout covers a whole streamed generation.
const defaultTimeout = 5 * time.Minute

// Client calls the chatrelay REST API with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the debug logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.logger = log
	}
}

// New returns a client for the server at baseURL.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// CreateConversation starts a conversation, optionally bound to modelID.
func (c *Client) CreateConversation(ctx context.Context, title, modelID string) (*storage.Conversation, error) {
	req := api.CreateConversationRequest{Title: title}
	if modelID != "" {
		req.ModelID = &modelID
	}

	var conv storage.Conversation
	if err := c.do(ctx, http.MethodPost, "/api/conversations", req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetConversation fetches one of the caller's conversations.
func (c *Client) GetConversation(ctx context.Context, id string) (*storage.Conversation, error) {
	var conv storage.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations/"+id, nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListModels lists the enabled models with their endpoints.
func (c *Client) ListModels(ctx context.Context) ([]*storage.ModelWithEndpoint, error) {
	var models []*storage.ModelWithEndpoint
	if err := c.do(ctx, http.MethodGet, "/api/models", nil, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// CheckEndpointHealth checks an endpoint. Admin only.
func (c *Client) CheckEndpointHealth(ctx context.Context, endpointID string) (*api.HealthResponse, error) {
	var health api.HealthResponse
	if err := c.do(ctx, http.MethodPost, "/api/endpoints/"+endpointID+"/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// ErrStreamEnded is returned when the stream closes without a terminal frame.
var ErrStreamEnded = errors.New("stream ended before completion")

// StreamError is an in-band error frame.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return "generation failed: " + e.Message
}

// Chat sends message over POST /api/chat as a stream, calling onContent for
// each content delta. It returns the terminal frame.
func (c *Client) Chat(ctx context.Context, conversationID, modelID, message string, onContent func(string)) (*sse.Frame, error) {
	stream := true
	body := relay.ChatRequest{
		ConversationID: conversationID,
		ModelID:        modelID,
		Message:        message,
		Stream:         &stream,
	}

	resp, err := c.send(ctx, http.MethodPost, "/api/chat", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	reader := sse.NewReader(resp.Body)
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil, ErrStreamEnded
		}
		if err != nil {
			return nil, fmt.Errorf("reading stream: %w", err)
		}

		frame, err := sse.DecodeFrame(ev)
		if err != nil {
			c.logger.Debug("skipping undecodable frame", "data", ev.Data, "error", err)
			continue
		}

		switch {
		case frame.Error != "":
			return &frame, &StreamError{Message: frame.Error}
		case frame.Done:
			return &frame, nil
		case frame.Content != "" && onContent != nil:
			onContent(frame.Content)
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// send issues the request and turns non-2xx answers into an APIError. The
// caller closes the body of a successful response.
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("calling chatrelay API", "method", method, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request to %s: %w", c.baseURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode}

		data, _ := io.ReadAll(resp.Body)
		var errBody api.ErrorResponse
		if json.Unmarshal(data, &errBody) == nil && errBody.Error != "" {
			apiErr.Message = errBody.Error
			apiErr.Details = errBody.Details
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return nil, apiErr
	}

	return resp, nil
}
