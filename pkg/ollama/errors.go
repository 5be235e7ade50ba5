package ollama

import (
	"errors"
	"fmt"
)

// ErrTruncated is returned by Stream.Next when the upstream body ends before
// a record with done=true was seen.
var ErrTruncated = errors.New("upstream stream ended before final record")

// maxErrorBody bounds how much of a failed response body is kept.
const maxErrorBody = 512

// UpstreamError describes a failed call to an Ollama server: a non-2xx
// response, a network failure, or a timeout.
type UpstreamError struct {
	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int

	// Status is the HTTP status line text, e.g. "503 Service Unavailable".
	Status string

	// Body is the (truncated) response body of a non-2xx response.
	Body string

	// Timeout is set when the call exceeded its deadline or idle window.
	Timeout bool

	// Err is the underlying transport error, if any.
	Err error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("upstream timed out: %v", e.Err)
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("upstream returned %s: %s", e.Status, e.Body)
	case e.StatusCode != 0:
		return "upstream returned " + e.Status
	default:
		return fmt.Sprintf("upstream unreachable: %v", e.Err)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
