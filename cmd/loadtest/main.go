package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/proto"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Selectors   []string
	Queries     []string
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	cacheHits     atomic.Int64
	emptyPages    atomic.Int64

	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
	errorKinds  map[string]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
		errorKinds:  make(map[string]int64),
	}
}

// result is what one request reported back; status 0 means transport failure.
type result struct {
	duration time.Duration
	status   int
	page     *proto.QueryPage
	errKind  string
}

func (s *Stats) Record(r result) {
	s.totalRequests.Add(1)
	if r.status == 0 {
		s.errorCount.Add(1)
		return
	}
	if r.page != nil {
		s.successCount.Add(1)
		if r.page.CacheHit {
			s.cacheHits.Add(1)
		}
		if len(r.page.Rows) == 0 {
			s.emptyPages.Add(1)
		}
	} else {
		s.errorCount.Add(1)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, r.duration)
	s.statusCodes[r.status]++
	if r.errKind != "" {
		s.errorKinds[r.errKind]++
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the fts query service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	selectors := flag.String("selectors", "", "comma-separated selectors sent with every query (alias or alias:source)")
	flag.Parse()

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Queries: []string{
			"contract",
			"contract renewal",
			"contract OR invoice",
			"budget -draft",
			`"annual report"`,
			`"annual report" OR summary`,
			"invoice -overdue -paid",
			"renewal OR extension OR termination",
			`policy -"draft policy"`,
			"quarterly budget OR forecast",
			"-draft",
			"meeting notes",
			`"service level" agreement`,
			"the",
			"cat OR",
		},
	}
	if *selectors != "" {
		cfg.Selectors = strings.Split(*selectors, ",")
	}

	fmt.Println("=== FTS Query Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	if len(cfg.Selectors) > 0 {
		fmt.Printf("Selectors:   %s\n", strings.Join(cfg.Selectors, ", "))
	}
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	fmt.Print("Running")
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	for w := range cfg.Concurrency {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				query := cfg.Queries[i%len(cfg.Queries)]
				r := doQuery(ctx, client, queryURL(cfg, query))
				if ctx.Err() != nil && r.status == 0 {
					return nil
				}
				stats.Record(r)
			}
			return nil
		})
	}
	_ = g.Wait()

	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func queryURL(cfg Config, query string) string {
	params := url.Values{"q": {query}, "limit": {"10"}}
	for _, sel := range cfg.Selectors {
		params.Add("selector", sel)
	}
	return cfg.BaseURL + "/api/v1/query?" + params.Encode()
}

func doQuery(ctx context.Context, client *http.Client, rawURL string) result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		panic(fmt.Sprintf("creating request: %v", err))
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return result{duration: time.Since(start)}
	}
	defer resp.Body.Close()

	r := result{status: resp.StatusCode}
	if resp.StatusCode == http.StatusOK {
		var page proto.QueryPage
		if err := json.NewDecoder(resp.Body).Decode(&page); err == nil {
			r.page = &page
		} else {
			r.errKind = "undecodable"
		}
	} else {
		var body proto.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Kind != "" {
			r.errKind = body.Kind
		} else {
			r.errKind = http.StatusText(resp.StatusCode)
		}
	}
	r.duration = time.Since(start)
	return r
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)

	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(errors)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}
	if success > 0 {
		fmt.Printf("Cache Hit Rate:  %.2f%%\n", float64(stats.cacheHits.Load())/float64(success)*100)
		fmt.Printf("Empty Pages:     %d\n", stats.emptyPages.Load())
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()

	latencies := stats.latencies
	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])

		var sumSquared float64
		for _, l := range latencies {
			diff := float64(l - avg)
			sumSquared += diff * diff
		}
		fmt.Printf("StdDev: %s\n", time.Duration(math.Sqrt(sumSquared/float64(len(latencies)))))
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code])
	}

	if len(stats.errorKinds) > 0 {
		fmt.Println()
		fmt.Println("=== Error Kinds ===")
		kinds := make([]string, 0, len(stats.errorKinds))
		for k := range stats.errorKinds {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Printf("  %s: %d\n", k, stats.errorKinds[k])
		}
	}

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
