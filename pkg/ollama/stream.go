package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/ndjson"
)

// ErrClosed is returned by Stream.Next after Close.
var ErrClosed = errors.New("stream closed")

var errIdleTimeout = errors.New("no data from upstream within idle window")

// Stream is a pull iterator over the records of one streaming generation.
// Next and Close may be called from different goroutines; Next itself is not
// safe for concurrent use.
type Stream struct {
	parent context.Context
	ctx    context.Context
	cancel context.CancelCauseFunc

	body   io.ReadCloser
	reader *ndjson.Reader
	timer  *time.Timer
	logger *slog.Logger

	finished  bool
	err       error
	closed    atomic.Bool
	closeOnce sync.Once
}

func newStream(
	parent, ctx context.Context,
	cancel context.CancelCauseFunc,
	body io.ReadCloser,
	timer *time.Timer,
	idle time.Duration,
	log *slog.Logger,
) *Stream {
	s := &Stream{
		parent: parent,
		ctx:    ctx,
		cancel: cancel,
		body:   body,
		timer:  timer,
		logger: log,
	}

	timer.Reset(idle)
	s.reader = ndjson.NewReader(&idleReader{r: body, timer: timer, idle: idle}, ndjson.WithLogger(log))
	return s
}

// Next returns the next record. After the record with IsFinal set has been
// returned, Next returns io.EOF without reading further from the upstream.
// If the upstream body ends first, Next returns ErrTruncated. Transport
// failures and idle timeouts are *UpstreamError; cancellation of the
// caller's context is returned as the context's error.
func (s *Stream) Next() (*Record, error) {
	if s.finished {
		return nil, io.EOF
	}
	if s.err != nil {
		return nil, s.err
	}

	for {
		raw, err := s.reader.Next()
		if err != nil {
			s.err = s.classify(err)
			s.Close()
			return nil, s.err
		}

		var line streamLine
		if err := json.Unmarshal(raw, &line); err != nil {
			s.logger.Warn("skipping non-object generate record", "error", err)
			continue
		}

		rec := &Record{
			ContentDelta: line.Response,
			IsFinal:      line.Done,
			EvalCount:    line.EvalCount,
			Raw:          raw,
		}

		if rec.IsFinal {
			s.finished = true
			s.Close()
		}
		return rec, nil
	}
}

// Close aborts the upstream request and releases its connection. It is safe
// to call more than once and concurrently with Next.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.timer.Stop()
		s.cancel(ErrClosed)
		err = s.body.Close()
	})
	return err
}

func (s *Stream) classify(err error) error {
	if errors.Is(err, io.EOF) {
		return ErrTruncated
	}
	if s.parent.Err() != nil {
		return s.parent.Err()
	}
	if errors.Is(context.Cause(s.ctx), errIdleTimeout) {
		return &UpstreamError{Timeout: true, Err: errIdleTimeout}
	}
	if s.closed.Load() {
		return ErrClosed
	}
	return &UpstreamError{Timeout: isTimeout(err), Err: err}
}

// streamError classifies a failure to obtain response headers.
func streamError(parent, ctx context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(context.Cause(ctx), errIdleTimeout) {
		return &UpstreamError{Timeout: true, Err: errIdleTimeout}
	}
	return &UpstreamError{Timeout: isTimeout(err), Err: err}
}

// idleReader re-arms the idle timer on every read that makes progress.
type idleReader struct {
	r     io.Reader
	timer *time.Timer
	idle  time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.idle)
	}
	return n, err
}
