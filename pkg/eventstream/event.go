// Package eventstream defines the transport-neutral events chatrelay emits
// after a generation has been persisted, and the publishers that carry them.
package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeGenerationCompleted is emitted after a relay session finalizes.
	EventTypeGenerationCompleted = "chatrelay.generation.completed"
)

// GenerationCompletedEvent describes one finished generation.
type GenerationCompletedEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Source        EventSource    `json:"source"`
	RequestMeta   RequestMeta    `json:"request_meta"`
	Generation    GenerationMeta `json:"generation"`
}

// EventSource identifies who asked for the generation and where it ran.
type EventSource struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	ModelID        string `json:"model_id"`
	Model          string `json:"model"`
	EndpointID     string `json:"endpoint_id"`
}

// RequestMeta captures request lifecycle metadata for the event.
type RequestMeta struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Streaming   bool      `json:"streaming"`
}

// GenerationMeta summarizes the stored result.
type GenerationMeta struct {
	MessageID  string `json:"message_id,omitempty"`
	TokensUsed int    `json:"tokens_used"`
	Chars      int    `json:"chars"`
}

// NewGenerationCompleted stamps a new event with schema, type, ID and emit time.
func NewGenerationCompleted(src EventSource, meta RequestMeta, gen GenerationMeta) *GenerationCompletedEvent {
	return &GenerationCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeGenerationCompleted,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        src,
		RequestMeta:   meta,
		Generation:    gen,
	}
}
