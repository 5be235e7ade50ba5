package relay

import (
	"context"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/relay/worker"
)

// finalize persists a FINALIZING session: the assistant message, a usage
// log and the conversation touch. Each write is best-effort; failures are
// logged and counted and never stop the stream from completing. The stored
// message is returned, or nil when it could not be written.
func (r *Relay) finalize(sess *Session) *storage.Message {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.PersistTimeout)
	defer cancel()

	tokens := sess.TokenCount()
	elapsed := sess.Elapsed()

	msg, err := r.store.InsertMessage(ctx, sess.ConversationID, storage.MessageRoleAssistant, sess.Text(), &tokens)
	if err != nil {
		msg = nil
		r.persistFailed("assistant_message", sess, err)
	}

	err = r.store.InsertUsageLog(ctx, &storage.UsageLog{
		UserID:         sess.UserID,
		ModelID:        sess.ModelID,
		EndpointID:     sess.EndpointID,
		TokensUsed:     tokens,
		ResponseTimeMs: elapsed.Milliseconds(),
	})
	if err != nil {
		r.persistFailed("usage_log", sess, err)
	}

	if err := r.store.TouchConversation(ctx, sess.ConversationID); err != nil {
		r.persistFailed("conversation_touch", sess, err)
	}

	r.config.Metrics.TokensGenerated(sess.Model, tokens)
	r.publish(sess, msg, elapsed)

	return msg
}

func (r *Relay) persistFailed(op string, sess *Session, err error) {
	r.config.Metrics.PersistFailed(op)
	r.logger.Error("failed to persist generation",
		"op", op,
		"conversation_id", sess.ConversationID,
		"error", err,
	)
}

// publish hands a generation.completed event to the worker pool.
func (r *Relay) publish(sess *Session, msg *storage.Message, elapsed time.Duration) {
	if r.config.Events == nil {
		return
	}

	gen := eventstream.GenerationMeta{
		TokensUsed: sess.TokenCount(),
		Chars:      len(sess.Text()),
	}
	if msg != nil {
		gen.MessageID = msg.ID
	}

	event := eventstream.NewGenerationCompleted(
		eventstream.EventSource{
			UserID:         sess.UserID,
			ConversationID: sess.ConversationID,
			ModelID:        sess.ModelID,
			Model:          sess.Model,
			EndpointID:     sess.EndpointID,
		},
		eventstream.RequestMeta{
			StartedAt:   sess.StartedAt,
			CompletedAt: sess.StartedAt.Add(elapsed),
			DurationMs:  elapsed.Milliseconds(),
			Streaming:   sess.Streaming,
		},
		gen,
	)

	r.config.Events.Enqueue(worker.Job{Event: event})
}
