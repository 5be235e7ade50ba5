package relay

import (
	"context"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/metrics"
	"github.com/papercomputeco/chatrelay/pkg/ollama"
	"github.com/papercomputeco/chatrelay/pkg/sse"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// openStream starts the upstream generation and, once it has answered,
// hands the response body to the relay loop. Upstream failures up to this
// point are still plain JSON errors.
func (r *Relay) openStream(c *fiber.Ctx, sess *Session, model *storage.ModelWithEndpoint, prompt string) error {
	genReq, ep := upstreamRequest(model, prompt, true)

	// The loop outlives the handler and fasthttp recycles its RequestCtx,
	// so the upstream call hangs off a fresh context.
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := r.generator.GenerateStream(ctx, genReq, ep)
	if err != nil {
		cancel()
		r.config.Metrics.UpstreamError(upstreamKind(err))
		return r.reject(c, &requestError{status: fiber.StatusBadGateway, message: "Failed to reach model server", err: err})
	}

	for k, v := range sse.Headers(r.config.AllowOrigin) {
		c.Set(k, v)
	}

	// io.Pipe gives per-frame backpressure: each write blocks until fasthttp
	// has taken the frame for the socket, and fails once the client is gone.
	pr, pw := io.Pipe()
	r.config.Metrics.SessionStarted()
	r.logger.Debug("relay session opened",
		"conversation_id", sess.ConversationID,
		"model", sess.Model,
		"endpoint", sess.EndpointBaseURL,
	)

	go func() {
		defer cancel()
		r.run(sess, stream, pw)
	}()

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// run is the relay loop. It forwards deltas in arrival order, finalizes on
// the first final record, and always leaves the downstream closed and the
// upstream released.
func (r *Relay) run(sess *Session, stream *ollama.Stream, downstream io.WriteCloser) {
	defer stream.Close()
	defer downstream.Close()

	w := sse.NewWriter(downstream, r.config.Terminal)

	for {
		rec, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ollama.ErrTruncated
			}
			r.fail(sess, w, err)
			return
		}

		if sess.Append(rec.ContentDelta) {
			if err := w.Content(rec.ContentDelta); err != nil {
				// Client went away. Drop the upstream now rather than
				// draining it into a closed pipe.
				stream.Close()
				sess.Fail()
				r.logger.Info("client disconnected mid-stream",
					"conversation_id", sess.ConversationID,
					"deltas", sess.Deltas(),
					"error", err,
				)
				r.config.Metrics.SessionEnded(metrics.OutcomeFailed, sess.Model, sess.Elapsed())
				return
			}
		}

		if rec.IsFinal {
			sess.Finalize(rec.EvalCount)
			break
		}
	}

	msg := r.finalize(sess)

	done := sse.DoneFrame{TokensUsed: sess.TokenCount()}
	if msg != nil {
		done.MessageID = msg.ID
	}
	if err := w.Finish(done); err != nil {
		r.logger.Debug("client left before terminal frame",
			"conversation_id", sess.ConversationID,
			"error", err,
		)
	}

	sess.Close()
	r.config.Metrics.SessionEnded(metrics.OutcomeClosed, sess.Model, sess.Elapsed())
	r.logger.Info("relay session closed",
		"conversation_id", sess.ConversationID,
		"model", sess.Model,
		"tokens", sess.TokenCount(),
		"elapsed_ms", sess.Elapsed().Milliseconds(),
	)
}

// fail reports an upstream failure in-band and ends the session without
// persisting anything.
func (r *Relay) fail(sess *Session, w *sse.Writer, err error) {
	sess.Fail()
	r.config.Metrics.UpstreamError(upstreamKind(err))
	r.config.Metrics.SessionEnded(metrics.OutcomeFailed, sess.Model, sess.Elapsed())
	r.logger.Error("relay session failed",
		"conversation_id", sess.ConversationID,
		"model", sess.Model,
		"deltas", sess.Deltas(),
		"error", err,
	)

	if werr := w.Error(describe(err)); werr != nil {
		r.logger.Debug("could not deliver error frame", "error", werr)
	}
}

// describe turns an upstream failure into the client-facing error text.
func describe(err error) string {
	var upErr *ollama.UpstreamError
	switch {
	case errors.Is(err, ollama.ErrTruncated):
		return "Model stream ended unexpectedly"
	case errors.As(err, &upErr) && upErr.Timeout:
		return "Model server timed out"
	case errors.As(err, &upErr) && upErr.StatusCode != 0:
		return "Model server returned " + upErr.Status
	default:
		return "Model server connection failed"
	}
}
