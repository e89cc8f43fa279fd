// Package middleware provides reusable HTTP middleware for request IDs,
// Prometheus metrics, request timeouts, rate limiting and CORS.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/metrics"
)

// Metrics records request count, latency and the in-flight gauge. Paths are
// labelled as-is when listed in routes and as "other" otherwise; without
// routes every /api/v1/ and /health/ path is kept.
func Metrics(m *metrics.Metrics, routes ...string) func(http.Handler) http.Handler {
	label := prefixLabel
	if len(routes) > 0 {
		known := make(map[string]struct{}, len(routes))
		for _, r := range routes {
			known[r] = struct{}{}
		}
		label = func(path string) string {
			if _, ok := known[path]; ok {
				return path
			}
			return "other"
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			path := label(r.URL.Path)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.code())).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// statusWriter remembers the first status code written.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	if sw.status == 0 {
		sw.status = code
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	return sw.ResponseWriter.Write(b)
}

func (sw *statusWriter) code() int {
	if sw.status == 0 {
		return http.StatusOK
	}
	return sw.status
}

func prefixLabel(path string) string {
	if strings.HasPrefix(path, "/api/v1/") || strings.HasPrefix(path, "/health/") || path == "/metrics" {
		return path
	}
	return "other"
}
