package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/kafka"
)

const (
	// maxLatencySamples bounds the latency window used for percentiles.
	maxLatencySamples = 10000

	DefaultTop = 10
	MaxTop     = 100
)

type AggregatedStats struct {
	TotalQueries      int64             `json:"total_queries"`
	Outcomes          map[Outcome]int64 `json:"outcomes"`
	CacheHits         int64             `json:"cache_hits"`
	CacheMisses       int64             `json:"cache_misses"`
	ZeroResultCount   int64             `json:"zero_result_count"`
	AvgLatencyMs      float64           `json:"avg_latency_ms"`
	P50LatencyMs      int64             `json:"p50_latency_ms"`
	P95LatencyMs      int64             `json:"p95_latency_ms"`
	P99LatencyMs      int64             `json:"p99_latency_ms"`
	TopQueries        []QueryCount      `json:"top_queries"`
	ZeroResultQueries []QueryCount      `json:"zero_result_queries"`
	FailedQueries     []QueryCount      `json:"failed_queries"`
	QueriesPerMinute  float64           `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds query events into rolling statistics. Latency percentiles
// cover the most recent maxLatencySamples successful queries.
type Aggregator struct {
	mu                sync.RWMutex
	totalQueries      atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	zeroResults       atomic.Int64
	outcomes          map[Outcome]int64
	latencies         []int64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	failedQueries     map[string]int64
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		outcomes:          make(map[Outcome]int64),
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		failedQueries:     make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent adapts the aggregator to the query-events consumer. Messages
// that do not decode are logged and committed.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[QueryEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode query event",
				"key", string(key),
				"error", err,
			)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Track records event in-process, for deployments without Kafka.
func (a *Aggregator) Track(event QueryEvent) {
	a.Record(event)
}

func (a *Aggregator) Record(event QueryEvent) {
	a.totalQueries.Add(1)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.outcomes[event.Outcome]++
	if event.Outcome != OutcomeOK {
		a.failedQueries[event.Query]++
		return
	}

	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	a.queryCounts[event.Query]++
	if event.Rows == 0 && !event.HasMore {
		a.zeroResults.Add(1)
		a.zeroResultQueries[event.Query]++
	}
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	return a.Snapshot(DefaultTop)
}

// Snapshot is Stats with the query lists cut to top entries each.
func (a *Aggregator) Snapshot(top int) AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalQueries:    a.totalQueries.Load(),
		Outcomes:        make(map[Outcome]int64, len(a.outcomes)),
		CacheHits:       a.cacheHits.Load(),
		CacheMisses:     a.cacheMisses.Load(),
		ZeroResultCount: a.zeroResults.Load(),
	}
	for outcome, n := range a.outcomes {
		stats.Outcomes[outcome] = n
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, top)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, top)
	stats.FailedQueries = topN(a.failedQueries, top)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count descending, then query text.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
