// Package kafka publishes generation events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
)

const defaultWriteTimeout = 10 * time.Second

// Config configures the Kafka publisher.
type Config struct {
	// Brokers is the list of bootstrap broker addresses (host:port).
	Brokers []string

	// Topic receives every event.
	Topic string

	// ClientID is attached to the writer's transport. Optional.
	ClientID string

	// WriteTimeout bounds a single publish. Defaults to 10s.
	WriteTimeout time.Duration
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes events as JSON, keyed by conversation ID so a
// conversation's events stay ordered within one partition.
type Publisher struct {
	writer  MessageWriter
	timeout time.Duration
}

// NewPublisher builds a publisher backed by a synchronous kafka.Writer.
func NewPublisher(cfg Config) (*Publisher, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka publisher requires a topic")
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
	}
	if cfg.ClientID != "" {
		w.Transport = &kafkago.Transport{ClientID: cfg.ClientID}
	}

	return NewPublisherWithWriter(w, cfg.WriteTimeout), nil
}

// NewPublisherWithWriter wraps an existing writer.
func NewPublisherWithWriter(w MessageWriter, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	return &Publisher{writer: w, timeout: timeout}
}

// Publish encodes and writes one event.
func (p *Publisher) Publish(ctx context.Context, event *eventstream.GenerationCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafkago.Message{
		Key:   []byte(event.Source.ConversationID),
		Value: value,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: fmt.Appendf(nil, "%d", event.SchemaVersion)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing event %s: %w", event.EventID, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
