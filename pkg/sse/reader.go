package sse

import (
	"bufio"
	"io"
	"strings"
)

// Reader parses SSE events from a source io.Reader. When a tee destination is
// configured every raw line is also written through to it verbatim, so a
// caller can inspect events while forwarding the exact byte stream.
type Reader struct {
	scanner *bufio.Scanner
	tee     io.Writer

	// current accumulates fields for the event being built.
	current *Event
	hasData bool
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithTee writes every raw line read from the source to w.
func WithTee(w io.Writer) ReaderOption {
	return func(r *Reader) { r.tee = w }
}

// NewReader returns a Reader that parses SSE events from src.
func NewReader(src io.Reader, opts ...ReaderOption) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	r := &Reader{
		scanner: scanner,
		current: &Event{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Next blocks until a complete event is available and returns it. It returns
// io.EOF once the source is exhausted. An event still open when the source
// ends (no trailing blank line) is yielded before io.EOF.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Text()

		if r.tee != nil {
			// Scan strips the newline; put it back for the verbatim copy.
			if _, err := io.WriteString(r.tee, raw+"\n"); err != nil {
				return nil, err
			}
		}

		line := strings.TrimSuffix(raw, "\r")

		if line == "" {
			if r.hasData {
				ev := r.current
				r.reset()
				return ev, nil
			}
			// Leading blank lines and keep-alives.
			continue
		}

		// Comments.
		if strings.HasPrefix(line, ":") {
			continue
		}

		r.parseLine(line)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	if r.hasData {
		ev := r.current
		r.reset()
		return ev, nil
	}

	return nil, io.EOF
}

// parseLine accumulates a single "field:value" line into the current event.
// The first space after the colon is optional and stripped; a line with no
// colon is a field name with an empty value.
func (r *Reader) parseLine(line string) {
	field, value, ok := strings.Cut(line, ":")
	if ok {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		if r.hasData && r.current.Data != "" {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.hasData = true
	case "event":
		r.current.Type = value
		r.hasData = true
	case "id":
		r.current.ID = value
		r.hasData = true
	default:
		// "retry" and unknown fields are ignored.
	}
}

func (r *Reader) reset() {
	r.current = &Event{}
	r.hasData = false
}
