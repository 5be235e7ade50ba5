// Package sse implements the Server-Sent Events framing chatrelay speaks to
// browsers: a Writer for the relay's outbound stream and a Reader for
// clients (the chatrelay chat command and tests) consuming it.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event represents a single parsed SSE event, delimited by a blank line
// in the byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n".
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}

// DoneSentinel is the legacy literal terminal payload.
const DoneSentinel = "[DONE]"

// ContentFrame carries one content delta.
type ContentFrame struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// DoneFrame is the canonical terminal frame.
type DoneFrame struct {
	Done bool `json:"done"`

	// MessageID is the persisted assistant message, omitted when the
	// message could not be stored.
	MessageID string `json:"message_id,omitempty"`

	TokensUsed int `json:"tokens_used"`
}

// ErrorFrame reports an in-band failure. It is always the last frame.
type ErrorFrame struct {
	Error string `json:"error"`
}

// Frame is the union of every frame the relay emits, as decoded by clients.
type Frame struct {
	Content    string `json:"content,omitempty"`
	Done       bool   `json:"done"`
	MessageID  string `json:"message_id,omitempty"`
	TokensUsed *int   `json:"tokens_used,omitempty"`
	Error      string `json:"error,omitempty"`
}
