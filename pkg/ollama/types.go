package ollama

import (
	"encoding/json"
	"time"
)

// Endpoint addresses one Ollama server.
type Endpoint struct {
	// BaseURL is the server root, e.g. "http://localhost:11434".
	BaseURL string

	// APIKey, when set, is sent as a bearer token. Plain Ollama ignores it;
	// reverse proxies in front of it commonly require one.
	APIKey string
}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// GenerateResult is the unary /api/generate response.
type GenerateResult struct {
	Model              string    `json:"model"`
	CreatedAt          time.Time `json:"created_at"`
	Response           string    `json:"response"`
	Done               bool      `json:"done"`
	DoneReason         string    `json:"done_reason,omitempty"`
	TotalDuration      int64     `json:"total_duration,omitempty"`
	LoadDuration       int64     `json:"load_duration,omitempty"`
	PromptEvalCount    int       `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64     `json:"prompt_eval_duration,omitempty"`
	EvalCount          *int      `json:"eval_count,omitempty"`
	EvalDuration       int64     `json:"eval_duration,omitempty"`
}

// Record is one decoded line of a streaming /api/generate response.
type Record struct {
	// ContentDelta is the "response" fragment, possibly empty.
	ContentDelta string

	// IsFinal mirrors "done".
	IsFinal bool

	// EvalCount is set when the upstream reports "eval_count",
	// normally only on the final record.
	EvalCount *int

	// Raw is the undecoded line.
	Raw json.RawMessage
}

// streamLine is the subset of a streaming line the relay cares about.
type streamLine struct {
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	EvalCount *int   `json:"eval_count"`
}

// Model is one entry of GET /api/tags.
type Model struct {
	Name       string       `json:"name"`
	Model      string       `json:"model"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details"`
}

// ModelDetails carries the optional model metadata Ollama reports.
type ModelDetails struct {
	Format            string   `json:"format,omitempty"`
	Family            string   `json:"family,omitempty"`
	Families          []string `json:"families,omitempty"`
	ParameterSize     string   `json:"parameter_size,omitempty"`
	QuantizationLevel string   `json:"quantization_level,omitempty"`
}

type tagsResponse struct {
	Models []Model `json:"models"`
}

type versionResponse struct {
	Version string `json:"version"`
}
