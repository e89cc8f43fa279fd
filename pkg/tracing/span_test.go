package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	tracer := NewTracer(true, 1.0)
	ctx, root := tracer.StartSpan(context.Background(), "query", "trace-1")
	require.True(t, root.Sampled())

	_, compile := StartChildSpan(ctx, "compile")
	compile.SetAttr("leaves", 2)
	compile.End()
	_, execute := StartChildSpan(ctx, "execute")
	execute.End()
	root.Finish()

	require.Len(t, root.Children, 2)
	assert.Equal(t, "trace-1", root.Children[0].TraceID)
	assert.Equal(t, 2, root.Children[0].Attrs["leaves"])
	assert.Same(t, root, SpanFromContext(ctx))
}

func TestSampling(t *testing.T) {
	_, off := NewTracer(false, 1.0).StartSpan(context.Background(), "q", "t")
	assert.False(t, off.Sampled())
	_, zero := NewTracer(true, 0).StartSpan(context.Background(), "q", "t")
	assert.False(t, zero.Sampled())

	var nilTracer *Tracer
	ctx, span := nilTracer.StartSpan(context.Background(), "q", "t")
	assert.False(t, span.Sampled())
	_, child := StartChildSpan(ctx, "c")
	assert.False(t, child.Sampled())

	_, detached := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, detached.TraceID)
}
