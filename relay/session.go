package relay

import (
	"strings"
	"time"
)

// State is a relay session's lifecycle position.
type State int

const (
	// StateOpen is streaming content deltas.
	StateOpen State = iota

	// StateFinalizing has seen the final record and is persisting.
	StateFinalizing

	// StateClosed sent its terminal frame.
	StateClosed

	// StateFailed ended without a final record, or lost its client.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is the state of one generation, owned by exactly one relay
// invocation.
type Session struct {
	UserID          string
	ConversationID  string
	ModelID         string
	Model           string
	EndpointID      string
	EndpointBaseURL string
	Streaming       bool
	StartedAt       time.Time

	text   strings.Builder
	deltas int
	tokens int
	state  State
}

// Append adds a non-empty delta and reports whether it was kept.
func (s *Session) Append(delta string) bool {
	if delta == "" {
		return false
	}
	s.text.WriteString(delta)
	s.deltas++
	return true
}

// Finalize moves an open session to FINALIZING. The token count is the
// upstream's eval count when reported, else the number of deltas seen.
func (s *Session) Finalize(evalCount *int) {
	if s.state != StateOpen {
		return
	}
	s.tokens = s.deltas
	if evalCount != nil {
		s.tokens = *evalCount
	}
	s.state = StateFinalizing
}

// Close marks a finalizing session as done.
func (s *Session) Close() {
	if s.state == StateFinalizing {
		s.state = StateClosed
	}
}

// Fail marks a session that has not finished as failed.
func (s *Session) Fail() {
	if s.state == StateOpen || s.state == StateFinalizing {
		s.state = StateFailed
	}
}

// Text returns the accumulated assistant text.
func (s *Session) Text() string {
	return s.text.String()
}

// TokenCount is valid once the session has been finalized.
func (s *Session) TokenCount() int {
	return s.tokens
}

// Deltas is the number of non-empty content deltas appended.
func (s *Session) Deltas() int {
	return s.deltas
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Elapsed is the wall-clock time since the request started.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.StartedAt)
}
