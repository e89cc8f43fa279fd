package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/kafka"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (p *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	cp := make([]kafka.Event, len(events))
	copy(cp, events)
	p.batches = append(p.batches, cp)
	return nil
}

func (p *fakePublisher) events() []kafka.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var all []kafka.Event
	for _, b := range p.batches {
		all = append(all, b...)
	}
	return all
}

func (p *fakePublisher) batchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

func TestCollector_FlushesFullBatches(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 16, 2, time.Hour)
	c.Start(context.Background())

	c.Track(QueryEvent{Query: "a", Outcome: OutcomeOK})
	c.Track(QueryEvent{Query: "b", Outcome: OutcomeOK})
	require.Eventually(t, func() bool { return pub.batchCount() == 1 }, time.Second, 5*time.Millisecond)

	c.Track(QueryEvent{Query: "c", Outcome: OutcomeOK})
	c.Close()

	events := pub.events()
	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].Key)
	assert.Equal(t, "c", events[2].Key)
	assert.Equal(t, 2, pub.batchCount())
}

func TestCollector_FlushesOnInterval(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 16, 100, 10*time.Millisecond)
	c.Start(context.Background())
	defer c.Close()

	c.Track(QueryEvent{Query: "a"})
	assert.Eventually(t, func() bool { return len(pub.events()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestCollector_FlushesOnCancel(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 16, 100, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	c.Track(QueryEvent{Query: "a"})
	c.Track(QueryEvent{Query: "b"})
	cancel()
	<-c.done
	assert.Len(t, pub.events(), 2)
}

func TestCollector_PublishFailureIsDropped(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	c := NewCollector(pub, 16, 1, time.Hour)
	c.Start(context.Background())
	c.Track(QueryEvent{Query: "a"})
	c.Close()
	assert.Empty(t, pub.events())
}

func TestCollector_DropsWhenBufferFull(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 1, 10, time.Hour)
	c.Track(QueryEvent{Query: "a"})
	c.Track(QueryEvent{Query: "b"})
	assert.Len(t, c.eventCh, 1)
}

func TestAggregator_Stats(t *testing.T) {
	t.Parallel()
	agg := NewAggregator()
	agg.Record(QueryEvent{Outcome: OutcomeOK, Query: "cat", Rows: 3, LatencyMs: 10})
	agg.Record(QueryEvent{Outcome: OutcomeOK, Query: "cat", Rows: 3, LatencyMs: 20, CacheHit: true})
	agg.Record(QueryEvent{Outcome: OutcomeOK, Query: "zebra", Rows: 0, LatencyMs: 30})
	agg.Record(QueryEvent{Outcome: OutcomeMalformed, Query: "(cat"})
	agg.Record(QueryEvent{Outcome: OutcomeAmbiguous, Query: "cat dog"})

	stats := agg.Stats()
	assert.Equal(t, int64(5), stats.TotalQueries)
	assert.Equal(t, int64(3), stats.Outcomes[OutcomeOK])
	assert.Equal(t, int64(1), stats.Outcomes[OutcomeMalformed])
	assert.Equal(t, int64(1), stats.Outcomes[OutcomeAmbiguous])
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.InDelta(t, 20.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(20), stats.P50LatencyMs)
	assert.Equal(t, int64(30), stats.P99LatencyMs)
	assert.Equal(t, []QueryCount{{Query: "cat", Count: 2}, {Query: "zebra", Count: 1}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{Query: "zebra", Count: 1}}, stats.ZeroResultQueries)
	assert.Equal(t, []QueryCount{{Query: "(cat", Count: 1}, {Query: "cat dog", Count: 1}}, stats.FailedQueries)
}

func TestAggregator_LatencyWindow(t *testing.T) {
	t.Parallel()
	agg := NewAggregator()
	for i := 0; i < maxLatencySamples+5; i++ {
		agg.Record(QueryEvent{Outcome: OutcomeOK, Query: "q", Rows: 1, LatencyMs: int64(i)})
	}
	assert.Len(t, agg.latencies, maxLatencySamples)
	assert.Equal(t, int64(maxLatencySamples+5), agg.Stats().TotalQueries)
}

func TestHandleEvent(t *testing.T) {
	t.Parallel()
	agg := NewAggregator()
	handle := HandleEvent(agg)

	value, err := json.Marshal(QueryEvent{Outcome: OutcomeOK, Query: "cat", Rows: 1})
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), []byte("cat"), value))
	require.NoError(t, handle(context.Background(), []byte("junk"), []byte("{not json")))

	assert.Equal(t, int64(1), agg.Stats().TotalQueries)
}

func TestHandler_Stats(t *testing.T) {
	t.Parallel()
	agg := NewAggregator()
	agg.Record(QueryEvent{Outcome: OutcomeOK, Query: "cat", Rows: 1})
	h := NewHandler(agg)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(1), got.TotalQueries)
	assert.Equal(t, int64(1), got.Outcomes[OutcomeOK])
}

func TestHandler_StatsTop(t *testing.T) {
	t.Parallel()
	agg := NewAggregator()
	for _, q := range []string{"cat", "cat", "dog", "bird"} {
		agg.Record(QueryEvent{Outcome: OutcomeOK, Query: q, Rows: 1})
	}
	h := NewHandler(agg)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []QueryCount{{Query: "cat", Count: 2}, {Query: "bird", Count: 1}}, got.TopQueries)

	for _, bad := range []string{"0", "x", "101"} {
		rec := httptest.NewRecorder()
		h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top="+bad, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
		assert.Contains(t, rec.Body.String(), "invalid_input")
	}
}
