package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/kafka"
)

type recordingWriter struct {
	mu       sync.Mutex
	msgs     []kafkago.Message
	err      error
	closed   bool
	deadline time.Time
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deadline, _ = ctx.Deadline()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		writer *recordingWriter
		pub    *kafka.Publisher
	)

	BeforeEach(func() {
		writer = &recordingWriter{}
		pub = kafka.NewPublisherWithWriter(writer, time.Second)
	})

	It("rejects a config without brokers", func() {
		_, err := kafka.NewPublisher(kafka.Config{Brokers: []string{" "}, Topic: "t"})
		Expect(err).To(MatchError(ContainSubstring("broker")))
	})

	It("rejects a config without a topic", func() {
		_, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
		Expect(err).To(MatchError(ContainSubstring("topic")))
	})

	It("builds a publisher from a valid config without dialing", func() {
		p, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}, Topic: "generations"})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Close()).To(Succeed())
	})

	It("returns ErrNilEvent for nil events", func() {
		Expect(pub.Publish(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
		Expect(writer.msgs).To(BeEmpty())
	})

	It("writes the event as JSON keyed by conversation", func() {
		event := eventstream.NewGenerationCompleted(
			eventstream.EventSource{ConversationID: "conv-1", Model: "llama3"},
			eventstream.RequestMeta{Streaming: true},
			eventstream.GenerationMeta{MessageID: "m-1", TokensUsed: 3},
		)
		Expect(pub.Publish(context.Background(), event)).To(Succeed())

		Expect(writer.msgs).To(HaveLen(1))
		msg := writer.msgs[0]
		Expect(string(msg.Key)).To(Equal("conv-1"))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{
			Key: "event_type", Value: []byte(eventstream.EventTypeGenerationCompleted),
		}))

		var decoded eventstream.GenerationCompletedEvent
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.EventID).To(Equal(event.EventID))
		Expect(decoded.Generation.TokensUsed).To(Equal(3))
		Expect(writer.deadline).NotTo(BeZero())
	})

	It("wraps writer failures", func() {
		writer.err = errors.New("broker down")
		event := eventstream.NewGenerationCompleted(eventstream.EventSource{}, eventstream.RequestMeta{}, eventstream.GenerationMeta{})
		err := pub.Publish(context.Background(), event)
		Expect(err).To(MatchError(ContainSubstring("broker down")))
		Expect(err).To(MatchError(ContainSubstring(event.EventID)))
	})

	It("closes the writer", func() {
		Expect(pub.Close()).To(Succeed())
		Expect(writer.closed).To(BeTrue())
	})
})
