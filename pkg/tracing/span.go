// Package tracing provides a lightweight span-based tracing system that
// propagates trace context through Go contexts. Spans form parent-child trees
// and are logged as structured records via slog once the root finishes.
package tracing

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

type contextKey struct{}

// Span represents a timed operation within a trace.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Children  []*Span
	Attrs     map[string]any
	sampled   bool
	mu        sync.Mutex
}

// Tracer decides which traces get logged.
type Tracer struct {
	enabled    bool
	sampleRate float64
	logger     *slog.Logger
}

// NewTracer returns a tracer logging a sampleRate fraction of traces.
func NewTracer(enabled bool, sampleRate float64) *Tracer {
	return &Tracer{
		enabled:    enabled,
		sampleRate: sampleRate,
		logger:     slog.Default().With("component", "tracing"),
	}
}

// StartSpan creates a new root span and stores it in the returned context.
func (t *Tracer) StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	span := newSpan(name)
	span.TraceID = traceID
	span.sampled = t != nil && t.enabled && rand.Float64() < t.sampleRate
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChildSpan creates a child span linked to the parent in ctx. Without a
// parent the span is detached and never logged.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	child := newSpan(name)
	if parent != nil {
		child.TraceID = parent.TraceID
		child.sampled = parent.sampled
		parent.mu.Lock()
		parent.Children = append(parent.Children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, child), child
}

func newSpan(name string) *Span {
	return &Span{
		Name:      name,
		StartTime: time.Now(),
		Children:  make([]*Span, 0),
		Attrs:     make(map[string]any),
	}
}

// End records the span's end time and duration.
func (s *Span) End() {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// Finish ends a root span and logs its tree if the trace was sampled.
func (s *Span) Finish() {
	s.End()
	if s.sampled {
		s.logRecursive(0)
	}
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// Sampled reports whether the span's trace will be logged.
func (s *Span) Sampled() bool {
	return s.sampled
}

// SpanFromContext extracts the current Span from ctx, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(contextKey{}).(*Span); ok {
		return span
	}
	return nil
}

func (s *Span) logRecursive(depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()
	slog.Info("span", attrs...)

	for _, child := range children {
		child.logRecursive(depth + 1)
	}
}
