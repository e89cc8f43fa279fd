package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/config"
)

// Header names set on every published message.
const (
	HeaderContentType = "content-type"
	HeaderEventType   = "event-type"
)

// Event is one message to publish. Key picks the partition, Value is encoded
// as JSON and Type, when set, travels in the event-type header.
type Event struct {
	Key   string
	Type  string
	Value any
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes JSON events to one topic.
type Producer struct {
	writer messageWriter
	logger *slog.Logger
	now    func() time.Time
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Lz4,
	}
	return newProducer(w, topic)
}

func newProducer(w messageWriter, topic string) *Producer {
	return &Producer{
		writer: w,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
		now:    time.Now,
	}
}

// PublishBatch encodes events and writes them in one call. Nothing is
// written when any event fails to encode.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	now := p.now()
	messages := make([]kafka.Message, len(events))
	for i, event := range events {
		msg, err := encode(event, now)
		if err != nil {
			return err
		}
		messages[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.Error("failed to publish batch", "count", len(messages), "error", err)
		return fmt.Errorf("publishing %d events: %w", len(messages), err)
	}
	p.logger.Debug("batch published", "count", len(messages))
	return nil
}

func encode(event Event, at time.Time) (kafka.Message, error) {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding event %q: %w", event.Key, err)
	}
	headers := []kafka.Header{{Key: HeaderContentType, Value: []byte("application/json")}}
	if event.Type != "" {
		headers = append(headers, kafka.Header{Key: HeaderEventType, Value: []byte(event.Type)})
	}
	return kafka.Message{
		Key:     []byte(event.Key),
		Value:   value,
		Headers: headers,
		Time:    at,
	}, nil
}

// Close flushes pending writes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
