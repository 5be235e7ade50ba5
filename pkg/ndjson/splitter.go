// Package ndjson reassembles newline-delimited JSON records from a byte
// stream whose chunk boundaries are arbitrary.
//
// Ollama streams generation output as one JSON object per line. A single
// TCP read may carry several lines, a fraction of a line, or a line split
// across many reads; the Splitter hides all of that behind whole lines and
// the Reader turns those lines into decoded records.
package ndjson

import (
	"bytes"
	"errors"
)

// DefaultMaxLineSize bounds a single line when Splitter.MaxLineSize is zero.
const DefaultMaxLineSize = 1 << 20

// ErrLineTooLong is reported once the unterminated segment outgrows the
// line limit.
var ErrLineTooLong = errors.New("ndjson: line exceeds maximum size")

// Splitter holds the pending, not yet newline-terminated bytes of a stream.
// The zero value is ready to use.
type Splitter struct {
	// MaxLineSize caps the unterminated segment. Zero means
	// DefaultMaxLineSize.
	MaxLineSize int

	pending []byte
	err     error
}

// Feed appends chunk to the pending buffer and returns every complete line it
// now contains, without the trailing "\n" (and "\r", if any). Blank and
// whitespace-only lines are dropped. The last unterminated segment is kept
// for the next call. Returned slices do not alias chunk or internal state.
//
// When the kept segment grows past the line limit it is discarded, Err
// reports ErrLineTooLong and every later Feed returns nothing.
func (s *Splitter) Feed(chunk []byte) [][]byte {
	if s.err != nil {
		return nil
	}
	s.pending = append(s.pending, chunk...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(s.pending, '\n')
		if i < 0 {
			break
		}

		line := bytes.TrimRight(s.pending[:i], "\r")
		if len(bytes.TrimSpace(line)) > 0 {
			lines = append(lines, bytes.Clone(line))
		}
		s.pending = s.pending[i+1:]
	}

	if len(s.pending) > s.maxLineSize() {
		s.pending = nil
		s.err = ErrLineTooLong
		return lines
	}

	// Compact so a long-lived stream does not pin an ever-growing backing array.
	if len(s.pending) == 0 {
		s.pending = nil
	} else if cap(s.pending) > 4*len(s.pending) && cap(s.pending) > 64*1024 {
		s.pending = bytes.Clone(s.pending)
	}

	return lines
}

// Flush returns the residual unterminated segment, or nil when it is empty or
// whitespace only, and resets the Splitter.
func (s *Splitter) Flush() []byte {
	rest := bytes.TrimSpace(s.pending)
	s.pending = nil
	if len(rest) == 0 {
		return nil
	}
	return bytes.Clone(rest)
}

// Err returns ErrLineTooLong once a line has overflowed, nil otherwise.
func (s *Splitter) Err() error {
	return s.err
}

func (s *Splitter) maxLineSize() int {
	if s.MaxLineSize > 0 {
		return s.MaxLineSize
	}
	return DefaultMaxLineSize
}

// Pending reports the number of buffered bytes not yet returned as a line.
func (s *Splitter) Pending() int {
	return len(s.pending)
}
