// Command analytics starts the standalone query analytics service.
//
// It consumes query events from Kafka in its own consumer group, aggregates
// them in memory (outcomes, latency percentiles, cache hit rate, top and
// zero-result queries) and serves GET /api/v1/analytics for dashboards. A
// searcher aggregates the same events for itself; this service gives one
// view across every searcher replica.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml] [-port 8083]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8083, "HTTP port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if !cfg.Kafka.Enabled {
		slog.Error("analytics service needs kafka.enabled: query events arrive only through kafka")
		os.Exit(1)
	}
	slog.Info("starting analytics service", "port", *port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	kcfg := cfg.Kafka
	kcfg.ConsumerGroup += "-analytics"
	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(kcfg, kcfg.Topics.QueryEvents, analytics.HandleEvent(aggregator))
	defer consumer.Close()

	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- consumer.Start(ctx)
	}()
	slog.Info("analytics consumer started", "topic", kcfg.Topics.QueryEvents, "group", kcfg.ConsumerGroup)

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		select {
		case err := <-consumerErr:
			consumerErr <- err
			msg := "consumer stopped"
			if err != nil {
				msg = fmt.Sprintf("consumer stopped: %v", err)
			}
			return health.ComponentHealth{Status: health.StatusDown, Message: msg}
		default:
			return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
		}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      middleware.Chain(mux, middleware.RequestID, middleware.Metrics(m)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
