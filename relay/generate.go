package relay

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/metrics"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// generate serves a non-streaming chat call: one unary generation, the same
// best-effort finalization as a stream, and a JSON reply.
func (r *Relay) generate(c *fiber.Ctx, sess *Session, model *storage.ModelWithEndpoint, prompt string, userMsg *storage.Message) error {
	genReq, ep := upstreamRequest(model, prompt, false)

	result, err := r.generator.Generate(c.UserContext(), genReq, ep)
	if err != nil {
		sess.Fail()
		r.config.Metrics.UpstreamError(upstreamKind(err))
		return r.reject(c, &requestError{status: fiber.StatusBadGateway, message: describe(err), err: err})
	}

	r.config.Metrics.SessionStarted()
	sess.Append(result.Response)
	sess.Finalize(result.EvalCount)
	msg := r.finalize(sess)
	sess.Close()
	r.config.Metrics.SessionEnded(metrics.OutcomeClosed, sess.Model, sess.Elapsed())

	return c.JSON(ChatResponse{
		UserMessage:      userMsg,
		AssistantMessage: msg,
		Response:         result.Response,
	})
}
