// Package relay serves chat generations: it resolves the conversation and
// model, records the user's message, and relays the Ollama NDJSON stream to
// the browser as Server-Sent Events while accumulating the reply for
// persistence.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/auth"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/metrics"
	"github.com/papercomputeco/chatrelay/pkg/ollama"
	"github.com/papercomputeco/chatrelay/pkg/sse"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/validate"
	"github.com/papercomputeco/chatrelay/relay/worker"
)

// DefaultPersistTimeout bounds the finalization writes of one session.
const DefaultPersistTimeout = 10 * time.Second

// Store is the persistence the relay needs: the sink operations plus an
// ownership check on the conversation.
type Store interface {
	storage.Sink
	GetConversation(ctx context.Context, userID, id string) (*storage.Conversation, error)
}

// Generator runs generations against an Ollama endpoint. *ollama.Client
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, req ollama.GenerateRequest, ep ollama.Endpoint) (*ollama.GenerateResult, error)
	GenerateStream(ctx context.Context, req ollama.GenerateRequest, ep ollama.Endpoint) (*ollama.Stream, error)
}

// EventQueue accepts generation events without blocking. *worker.Pool
// satisfies it.
type EventQueue interface {
	Enqueue(job worker.Job) bool
}

// Config is the relay configuration.
type Config struct {
	// Terminal selects the frame that ends a successful stream.
	Terminal sse.Terminal

	// AllowOrigin is echoed in the stream's CORS headers.
	AllowOrigin string

	// PersistTimeout bounds the finalization writes of one session.
	PersistTimeout time.Duration

	// Events receives a generation.completed event per finalized session.
	// Optional.
	Events EventQueue

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Relay serves GET and POST /api/chat.
type Relay struct {
	config    Config
	store     Store
	generator Generator
	logger    *slog.Logger
}

// New creates a Relay.
func New(config Config, store Store, generator Generator, log *slog.Logger) *Relay {
	if config.Terminal == "" {
		config.Terminal = sse.TerminalJSON
	}
	if config.PersistTimeout <= 0 {
		config.PersistTimeout = DefaultPersistTimeout
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Relay{
		config:    config,
		store:     store,
		generator: generator,
		logger:    log,
	}
}

// ChatRequest carries the parameters of a chat call, from the query string
// (GET) or a JSON body (POST).
type ChatRequest struct {
	ConversationID string `json:"conversation_id" query:"conversation_id" validate:"required,uuid"`
	ModelID        string `json:"model_id" query:"model_id" validate:"required,uuid"`
	Message        string `json:"message" query:"message" validate:"required"`

	// Stream defaults to true when absent.
	Stream *bool `json:"stream" query:"-"`
}

// ChatResponse is the body of a non-streaming chat call.
type ChatResponse struct {
	UserMessage      *storage.Message `json:"userMessage"`
	AssistantMessage *storage.Message `json:"assistantMessage"`
	Response         string           `json:"response"`
}

// requestError ends a request before the transport opens.
type requestError struct {
	status  int
	message string
	err     error
}

func (e *requestError) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *requestError) Unwrap() error {
	return e.err
}

// Stream serves GET /api/chat. Browsers' EventSource can only issue GETs, so
// parameters come from the query string and the response always streams.
func (r *Relay) Stream(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.QueryParser(&req); err != nil {
		return r.reject(c, &requestError{status: fiber.StatusBadRequest, message: "Invalid query parameters", err: err})
	}
	return r.serve(c, req, true)
}

// Chat serves POST /api/chat.
func (r *Relay) Chat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return r.reject(c, &requestError{status: fiber.StatusBadRequest, message: "Invalid request body", err: err})
	}
	return r.serve(c, req, req.Stream == nil || *req.Stream)
}

func (r *Relay) serve(c *fiber.Ctx, req ChatRequest, stream bool) error {
	user := auth.UserFrom(c)
	if user == nil {
		return r.reject(c, &requestError{status: fiber.StatusUnauthorized, message: auth.ErrMissingToken.Error()})
	}

	sess, model, userMsg, err := r.prepare(c.UserContext(), user, req, stream)
	if err != nil {
		return r.reject(c, err)
	}

	if stream {
		return r.openStream(c, sess, model, req.Message)
	}
	return r.generate(c, sess, model, req.Message, userMsg)
}

// prepare runs every step that can still fail with a plain HTTP error:
// validation, ownership, model resolution and the user message write.
func (r *Relay) prepare(ctx context.Context, user *auth.User, req ChatRequest, stream bool) (*Session, *storage.ModelWithEndpoint, *storage.Message, error) {
	if err := validate.Struct(req); err != nil {
		var verr *validate.Error
		if errors.As(err, &verr) && verr.Missing() {
			return nil, nil, nil, &requestError{status: fiber.StatusBadRequest, message: "Missing required parameters"}
		}
		return nil, nil, nil, &requestError{status: fiber.StatusBadRequest, message: err.Error()}
	}

	if _, err := r.store.GetConversation(ctx, user.ID, req.ConversationID); err != nil {
		if storage.IsNotFound(err) {
			return nil, nil, nil, &requestError{status: fiber.StatusNotFound, message: "Conversation not found"}
		}
		return nil, nil, nil, &requestError{status: fiber.StatusInternalServerError, message: "Failed to load conversation", err: err}
	}

	model, err := r.store.GetModelWithEndpoint(ctx, req.ModelID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil, nil, &requestError{status: fiber.StatusNotFound, message: "Model not found"}
		}
		return nil, nil, nil, &requestError{status: fiber.StatusInternalServerError, message: "Failed to load model", err: err}
	}
	if !model.IsEnabled || !model.Endpoint.IsEnabled {
		return nil, nil, nil, &requestError{status: fiber.StatusNotFound, message: "Model not found"}
	}

	userMsg, err := r.store.InsertMessage(ctx, req.ConversationID, storage.MessageRoleUser, req.Message, nil)
	if err != nil {
		return nil, nil, nil, &requestError{status: fiber.StatusInternalServerError, message: "Failed to save message", err: err}
	}

	sess := &Session{
		UserID:          user.ID,
		ConversationID:  req.ConversationID,
		ModelID:         model.ID,
		Model:           model.ModelID,
		EndpointID:      model.EndpointID,
		EndpointBaseURL: model.Endpoint.BaseURL,
		Streaming:       stream,
		StartedAt:       time.Now(),
	}
	return sess, model, userMsg, nil
}

func (r *Relay) reject(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Internal server error"

	var reqErr *requestError
	if errors.As(err, &reqErr) {
		status = reqErr.status
		message = reqErr.message
	}

	if status >= fiber.StatusInternalServerError {
		r.logger.Error("chat request failed", "status", status, "error", err)
	} else {
		r.logger.Debug("chat request rejected", "status", status, "error", err)
	}

	r.config.Metrics.SessionRejected()
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// upstreamRequest builds the generate call for a resolved model.
func upstreamRequest(model *storage.ModelWithEndpoint, prompt string, stream bool) (ollama.GenerateRequest, ollama.Endpoint) {
	return ollama.GenerateRequest{
			Model:   model.ModelID,
			Prompt:  prompt,
			Stream:  stream,
			Options: model.Parameters,
		}, ollama.Endpoint{
			BaseURL: model.Endpoint.BaseURL,
			APIKey:  model.Endpoint.APIKey,
		}
}

// upstreamKind labels an upstream failure for metrics.
func upstreamKind(err error) string {
	var upErr *ollama.UpstreamError
	switch {
	case errors.Is(err, ollama.ErrTruncated):
		return "truncated"
	case errors.As(err, &upErr) && upErr.Timeout:
		return "timeout"
	case errors.As(err, &upErr) && upErr.StatusCode != 0:
		return "status"
	default:
		return "transport"
	}
}
