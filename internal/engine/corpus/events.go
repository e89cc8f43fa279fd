package corpus

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/catalog"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/metrics"
)

type EventOp string

const (
	OpUpsert EventOp = "upsert"
	OpDelete EventOp = "delete"
)

// DocumentEvent is the Kafka payload announcing a document change.
type DocumentEvent struct {
	Op         EventOp   `json:"op"`
	Source     string    `json:"source"`
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title,omitempty"`
	Body       string    `json:"body,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// HandleEvent returns a Kafka MessageHandler applying document events to c.
// Undecodable or invalid events are logged and skipped so they do not block
// the partition. onApplied, when non-nil, runs after every applied event; m
// may be nil.
func HandleEvent(c *catalog.Catalog, m *metrics.Metrics, onApplied func(ctx context.Context, ev DocumentEvent)) kafka.MessageHandler {
	logger := slog.Default().With("component", "document-consumer")
	count := func(op EventOp, status string) {
		if m != nil {
			m.DocumentEventsTotal.WithLabelValues(string(op), status).Inc()
		}
	}
	return func(ctx context.Context, key []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[DocumentEvent](value)
		if err != nil {
			logger.Error("failed to decode document event", "error", err, "key", string(key))
			count("unknown", "invalid")
			return nil
		}
		if ev.Source == "" || ev.DocumentID == "" {
			logger.Error("document event without source or id", "key", string(key), "op", ev.Op)
			count(ev.Op, "invalid")
			return nil
		}

		switch ev.Op {
		case OpUpsert:
			c.Upsert(ev.Source, ev.DocumentID, ev.Title, ev.Body)
			logger.Info("document indexed", "source", ev.Source, "doc_id", ev.DocumentID)
		case OpDelete:
			if !c.Delete(ev.Source, ev.DocumentID) {
				logger.Warn("delete for unknown document", "source", ev.Source, "doc_id", ev.DocumentID)
				count(ev.Op, "missing")
				return nil
			}
			logger.Info("document deleted", "source", ev.Source, "doc_id", ev.DocumentID)
		default:
			logger.Error("unknown document event op", "op", ev.Op, "doc_id", ev.DocumentID)
			count(ev.Op, "invalid")
			return nil
		}
		count(ev.Op, "applied")
		if m != nil {
			for source, s := range c.Stats() {
				m.SourceDocCount.WithLabelValues(source).Set(float64(s.Docs))
			}
		}
		if onApplied != nil {
			onApplied(ctx, ev)
		}
		return nil
	}
}
