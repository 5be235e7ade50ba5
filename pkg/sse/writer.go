package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrClosed is returned by writes after a terminal frame.
var ErrClosed = errors.New("sse: writer closed")

// Terminal selects how a completed stream is announced.
type Terminal string

const (
	// TerminalJSON ends streams with a typed {"done":true,...} frame.
	TerminalJSON Terminal = "json"

	// TerminalSentinel ends streams with the legacy literal [DONE] frame.
	TerminalSentinel Terminal = "sentinel"
)

// ParseTerminal validates a configured terminal style. Empty means
// TerminalJSON.
func ParseTerminal(s string) (Terminal, error) {
	switch Terminal(s) {
	case "", TerminalJSON:
		return TerminalJSON, nil
	case TerminalSentinel:
		return TerminalSentinel, nil
	default:
		return "", fmt.Errorf("unknown sse terminal %q: must be %q or %q", s, TerminalJSON, TerminalSentinel)
	}
}

// Headers returns the response headers for an event stream. They must be set
// before the first frame is written.
func Headers(allowOrigin string) map[string]string {
	h := map[string]string{
		"Content-Type":      "text/event-stream",
		"Cache-Control":     "no-cache",
		"Connection":        "keep-alive",
		"X-Accel-Buffering": "no",
	}
	if allowOrigin != "" {
		h["Access-Control-Allow-Origin"] = allowOrigin
		if allowOrigin != "*" {
			h["Access-Control-Allow-Credentials"] = "true"
		}
	}
	return h
}

type flusher interface {
	Flush() error
}

// Writer emits "data: <JSON>\n\n" frames. Once a terminal frame (done or
// error) has been attempted the Writer is closed and further writes return
// ErrClosed. A Writer is not safe for concurrent use.
type Writer struct {
	w        io.Writer
	terminal Terminal
	closed   bool
	frames   int
}

// NewWriter returns a Writer on w. If w has a Flush() error method it is
// called after every frame.
func NewWriter(w io.Writer, terminal Terminal) *Writer {
	if terminal == "" {
		terminal = TerminalJSON
	}
	return &Writer{w: w, terminal: terminal}
}

// Send writes v as a non-terminal data frame.
func (w *Writer) Send(v any) error {
	if w.closed {
		return ErrClosed
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding sse frame: %w", err)
	}
	return w.write(data)
}

// Content writes a {"content":delta,"done":false} frame.
func (w *Writer) Content(delta string) error {
	return w.Send(ContentFrame{Content: delta})
}

// Done writes the typed terminal frame and closes the Writer.
func (w *Writer) Done(f DoneFrame) error {
	if w.closed {
		return ErrClosed
	}
	f.Done = true
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding sse frame: %w", err)
	}
	w.closed = true
	return w.write(data)
}

// DoneSentinel writes the legacy "data: [DONE]" frame and closes the Writer.
func (w *Writer) DoneSentinel() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	return w.write([]byte(DoneSentinel))
}

// Finish ends a successful stream in the configured terminal style. The
// sentinel style carries no metadata, so f is dropped.
func (w *Writer) Finish(f DoneFrame) error {
	if w.terminal == TerminalSentinel {
		return w.DoneSentinel()
	}
	return w.Done(f)
}

// Error writes an {"error":msg} frame and closes the Writer.
func (w *Writer) Error(msg string) error {
	if w.closed {
		return ErrClosed
	}
	data, err := json.Marshal(ErrorFrame{Error: msg})
	if err != nil {
		return fmt.Errorf("encoding sse frame: %w", err)
	}
	w.closed = true
	return w.write(data)
}

// Closed reports whether a terminal frame has been written.
func (w *Writer) Closed() bool {
	return w.closed
}

// Frames reports how many frames have been written successfully.
func (w *Writer) Frames() int {
	return w.frames
}

func (w *Writer) write(data []byte) error {
	buf := make([]byte, 0, len(data)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, data...)
	buf = append(buf, '\n', '\n')

	if _, err := w.w.Write(buf); err != nil {
		return err
	}
	if f, ok := w.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return err
		}
	}
	w.frames++
	return nil
}
