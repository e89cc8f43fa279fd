package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/logger"
)

// Timeout gives each request a deadline. The handler writes into a buffer
// that is flushed when it returns in time; otherwise the client gets a 504
// error body and whatever the handler writes afterwards is discarded.
func Timeout(limit time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), limit)
			defer cancel()

			buf := &bufferedWriter{header: make(http.Header)}
			finished := make(chan struct{})
			go func() {
				defer close(finished)
				next.ServeHTTP(buf, r.WithContext(ctx))
			}()

			select {
			case <-finished:
				buf.flushTo(w)
			case <-ctx.Done():
				buf.abandon()
				logger.FromContext(r.Context()).Warn("request timed out",
					"method", r.Method, "path", r.URL.Path, "limit", limit)
				writeJSONError(w, r, http.StatusGatewayTimeout, "timeout", "request timeout")
			}
		})
	}
}

type bufferedWriter struct {
	mu        sync.Mutex
	header    http.Header
	status    int
	body      bytes.Buffer
	abandoned bool
}

func (b *bufferedWriter) Header() http.Header {
	return b.header
}

func (b *bufferedWriter) WriteHeader(code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.abandoned {
		return 0, http.ErrHandlerTimeout
	}
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedWriter) abandon() {
	b.mu.Lock()
	b.abandoned = true
	b.mu.Unlock()
}

func (b *bufferedWriter) flushTo(w http.ResponseWriter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range b.header {
		w.Header()[k] = v
	}
	if b.status == 0 {
		b.status = http.StatusOK
	}
	w.WriteHeader(b.status)
	_, _ = w.Write(b.body.Bytes())
}
