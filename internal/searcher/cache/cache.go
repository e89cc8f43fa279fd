// Package cache stores composed query pages in Redis. Concurrent misses for
// one key are collapsed with singleflight, and Redis calls go through a
// circuit breaker so an unreachable cache degrades to direct execution.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/proto"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/resilience"
)

const keyPrefix = "fts:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache over store. m may be nil.
func New(store Store, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	cbCfg := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		IsFailure: func(err error) bool {
			return !errors.Is(err, pkgredis.ErrMiss)
		},
	}
	if m != nil {
		cbCfg.OnStateChange = func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &QueryCache{
		store:   store,
		ttl:     cfg.CacheTTL,
		breaker: resilience.NewCircuitBreaker("redis-cache", cbCfg),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Key derives the cache key of one query page. The constraint is keyed by its
// canonical rendering, so queries that differ only in layout share a key.
func Key(constraint string, selectors []string, field string, skip, limit int) string {
	raw := fmt.Sprintf("%s|sel=%s|field=%s|skip=%d|limit=%d",
		constraint, strings.Join(selectors, ","), field, skip, limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func (c *QueryCache) Get(ctx context.Context, key string) (*proto.QueryPage, bool) {
	data, err := resilience.Call(c.breaker, func() ([]byte, error) {
		return c.store.Get(ctx, key)
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) && !errors.Is(err, pkgredis.ErrMiss) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.recordMiss()
		return nil, false
	}
	var page proto.QueryPage
	if err := json.Unmarshal(data, &page); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	c.logger.Debug("cache hit", "key", key)
	return &page, true
}

func (c *QueryCache) Set(ctx context.Context, key string, page *proto.QueryPage) {
	data, err := json.Marshal(page)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached page for key, or runs computeFn once per
// key across concurrent callers and caches its result. The bool reports a
// cache hit. Callers must not modify the returned page.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key string,
	computeFn func() (*proto.QueryPage, error),
) (*proto.QueryPage, bool, error) {
	if page, ok := c.Get(ctx, key); ok {
		return page, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		page, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, page)
		return page, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*proto.QueryPage), false, nil
}

// Invalidate drops every cached page and returns how many were removed.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := resilience.Call(c.breaker, func() (int64, error) {
		return c.store.FlushByPattern(ctx, keyPrefix+"*")
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BreakerState reports the state of the circuit guarding Redis.
func (c *QueryCache) BreakerState() resilience.State {
	return c.breaker.State()
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
