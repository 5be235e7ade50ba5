package ndjson

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
)

const defaultChunkSize = 32 * 1024

// Reader decodes a newline-delimited JSON stream one record at a time.
//
// Lines that are not valid JSON are logged and skipped: one malformed frame
// from upstream must not take down the whole relay. The residual fragment at
// end of stream gets a single parse attempt and is dropped quietly on failure,
// since upstreams commonly die mid-frame when they error out.
type Reader struct {
	src    io.Reader
	buf    []byte
	split  Splitter
	queue  [][]byte
	done   bool
	err    error
	logger *slog.Logger

	skipped int
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithLogger sets the logger used to report skipped lines.
func WithLogger(l *slog.Logger) ReaderOption {
	return func(r *Reader) { r.logger = l }
}

// WithMaxLineSize caps the length of a single line. A longer line fails the
// Reader with ErrLineTooLong.
func WithMaxLineSize(n int) ReaderOption {
	return func(r *Reader) { r.split.MaxLineSize = n }
}

// WithChunkSize sets the size of each read from the source.
func WithChunkSize(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.buf = make([]byte, n)
		}
	}
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader, opts ...ReaderOption) *Reader {
	r := &Reader{
		src:    src,
		buf:    make([]byte, defaultChunkSize),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Next returns the next well-formed JSON record. It blocks on the source
// until a complete line is available. Next returns io.EOF once the source is
// exhausted and every buffered line has been yielded; any other error is a
// read error from the source, or ErrLineTooLong, and is sticky.
func (r *Reader) Next() (json.RawMessage, error) {
	for {
		for len(r.queue) > 0 {
			line := r.queue[0]
			r.queue = r.queue[1:]

			if !json.Valid(line) {
				r.skipped++
				r.logger.Warn("skipping malformed ndjson line",
					"line", truncate(line, 256),
				)
				continue
			}
			return json.RawMessage(line), nil
		}

		if r.err != nil {
			return nil, r.err
		}
		if r.done {
			return nil, io.EOF
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.queue = append(r.queue, r.split.Feed(r.buf[:n])...)
			if serr := r.split.Err(); serr != nil {
				r.err = serr
				continue
			}
		}

		switch {
		case errors.Is(err, io.EOF):
			r.done = true
			if rest := r.split.Flush(); rest != nil {
				if json.Valid(rest) {
					r.queue = append(r.queue, rest)
				} else {
					r.skipped++
					r.logger.Debug("dropping unterminated ndjson fragment",
						"fragment", truncate(rest, 256),
					)
				}
			}
		case err != nil:
			r.err = err
		}
	}
}

// Skipped reports how many malformed lines or fragments were discarded.
func (r *Reader) Skipped() int {
	return r.skipped
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
