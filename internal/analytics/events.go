// Package analytics tracks query outcomes: the collector publishes one event
// per query to Kafka in batches, and the aggregator consumes them back into
// rolling statistics served over HTTP.
package analytics

import "time"

// EventType tags query events on the wire.
const EventType = "fts.query"

type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeMalformed Outcome = "malformed"
	OutcomeAmbiguous Outcome = "ambiguous"
	OutcomeError     Outcome = "error"
)

type QueryEvent struct {
	Outcome    Outcome   `json:"outcome"`
	Query      string    `json:"query"`
	Constraint string    `json:"constraint,omitempty"`
	Selectors  []string  `json:"selectors"`
	Rows       int       `json:"rows"`
	HasMore    bool      `json:"has_more"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}
