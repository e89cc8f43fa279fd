// Package kafka wraps segmentio/kafka-go for the two event streams of the
// query service: query events published by the analytics collector and
// document events that keep the catalog current.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/resilience"
)

// MessageHandler processes one message. A handler error is retried; once
// retries run out the message is logged, dropped and committed.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader     messageReader
	handler    MessageHandler
	retry      resilience.RetryConfig
	fetchDelay time.Duration
	logger     *slog.Logger
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, topic, handler)
}

func newConsumer(r messageReader, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:  r,
		handler: handler,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		},
		fetchDelay: time.Second,
		logger:     slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled or the reader is closed. Fetch
// errors back off for fetchDelay before the next attempt.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		switch {
		case ctx.Err() != nil || errors.Is(err, context.Canceled):
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return nil
		case errors.Is(err, io.EOF):
			c.logger.Info("consumer reader closed")
			return nil
		case err != nil:
			c.logger.Error("failed to fetch message", "error", err, "backoff", c.fetchDelay)
			if !sleep(ctx, c.fetchDelay) {
				return nil
			}
			continue
		}

		c.process(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	_, err := resilience.Retry(ctx, "handle-message", c.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.handler(ctx, msg.Key, msg.Value)
	})
	if err != nil {
		c.logger.Error("dropping message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"event_type", header(msg, HeaderEventType),
			"error", err,
		)
	}
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
