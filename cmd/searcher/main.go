package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/catalog"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/corpus"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/executor"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting fts query service", "port", cfg.Server.Port, "rpc_port", cfg.Server.RPCPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		metricsServer.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	cat := catalog.New(cfg.Search.Sources...)
	if cfg.Corpus.File != "" {
		docs, err := corpus.LoadYAML(cfg.Corpus.File)
		if err != nil {
			slog.Error("failed to load corpus file", "error", err)
			os.Exit(1)
		}
		corpus.Index(cat, docs)
	}

	var pg *postgres.Client
	if cfg.Postgres.Enabled {
		pg, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		docs, err := corpus.LoadSQL(ctx, pg.DB, cfg.Corpus.Table)
		if err != nil {
			slog.Error("failed to load corpus table", "table", cfg.Corpus.Table, "error", err)
			os.Exit(1)
		}
		corpus.Index(cat, docs)
	}
	for source, s := range cat.Stats() {
		m.SourceDocCount.WithLabelValues(source).Set(float64(s.Docs))
	}

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, query caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis, m)
			slog.Info("query cache enabled",
				"addr", cfg.Redis.Addr,
				"ttl", cfg.Redis.CacheTTL,
			)
		}
	}

	aggregator := analytics.NewAggregator()
	var tracker searcher.Tracker = aggregator
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 10000, 100, 5*time.Second)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector

		queryConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents, analytics.HandleEvent(aggregator))
		defer queryConsumer.Close()
		go func() {
			if err := queryConsumer.Start(ctx); err != nil {
				slog.Error("query event consumer error", "error", err)
			}
		}()

		onApplied := func(ctx context.Context, ev corpus.DocumentEvent) {
			if queryCache == nil {
				return
			}
			if _, err := queryCache.Invalidate(ctx); err != nil {
				slog.Warn("cache invalidation after document event failed", "doc_id", ev.DocumentID, "error", err)
			}
		}
		docConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentEvents, corpus.HandleEvent(cat, m, onApplied))
		defer docConsumer.Close()
		go func() {
			if err := docConsumer.Start(ctx); err != nil {
				slog.Error("document event consumer error", "error", err)
			}
		}()
		slog.Info("kafka consumers started",
			"document_topic", cfg.Kafka.Topics.DocumentEvents,
			"query_topic", cfg.Kafka.Topics.QueryEvents,
		)
	}

	defaultSelector := ""
	if len(cfg.Search.Sources) > 0 {
		defaultSelector = cfg.Search.Sources[0]
	} else if names := cat.Names(); len(names) > 0 {
		defaultSelector = names[0]
	}
	svc := searcher.NewService(
		executor.New(cat),
		queryCache,
		tracker,
		m,
		tracing.NewTracer(cfg.Tracing.Enabled, cfg.Tracing.SampleRate),
		searcher.Options{
			DefaultSelector: defaultSelector,
			DefaultField:    cfg.Search.DefaultField,
			DefaultLimit:    cfg.Search.DefaultLimit,
			MaxResults:      cfg.Search.MaxResults,
			QueryTimeout:    cfg.Search.QueryTimeout,
		},
	)

	checker := health.NewChecker()
	checker.Register("catalog", func(ctx context.Context) health.ComponentHealth {
		docs := cat.TotalDocs()
		if docs == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "no documents indexed"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents in %d sources", docs, len(cat.Names()))}
	})
	checker.RegisterOptional("redis", health.OptionalCheck(redisClient != nil, "redis", func(ctx context.Context) health.ComponentHealth {
		res := health.PingCheck(redisClient.Ping)(ctx)
		if res.Status == health.StatusUp {
			ps := redisClient.PoolStats()
			res.Message = fmt.Sprintf("%d/%d idle connections, %d timeouts", ps.IdleConns, ps.TotalConns, ps.Timeouts)
		}
		return res
	}))
	checker.RegisterOptional("postgres", health.OptionalCheck(pg != nil, "postgres", func(ctx context.Context) health.ComponentHealth {
		res := health.PingCheck(pg.Ping)(ctx)
		if res.Status == health.StatusUp {
			res.Message = fmt.Sprintf("%d connections in use", pg.InUse())
		}
		return res
	}))

	if cfg.Server.RPCPort > 0 {
		rpcServer := grpc.NewServer()
		svc.RegisterRPC(rpcServer)
		go func() {
			if err := rpcServer.Serve(ctx, fmt.Sprintf(":%d", cfg.Server.RPCPort)); err != nil {
				slog.Error("rpc server error", "error", err)
			}
		}()
		defer rpcServer.Stop()
	}

	h := handler.New(svc, cat)
	analyticsH := analytics.NewHandler(aggregator)

	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"GET /api/v1/query", h.Query},
		{"POST /api/v1/query", h.Query},
		{"GET /api/v1/compile", h.Compile},
		{"GET /api/v1/sources", h.Sources},
		{"GET /api/v1/cache/stats", h.CacheStats},
		{"POST /api/v1/cache/invalidate", h.CacheInvalidate},
		{"GET /api/v1/analytics", analyticsH.Stats},
		{"GET /health/live", checker.LiveHandler()},
		{"GET /health/ready", checker.ReadyHandler()},
	}
	mux := http.NewServeMux()
	paths := make([]string, 0, len(routes))
	for _, rt := range routes {
		mux.HandleFunc(rt.pattern, rt.handler)
		_, path, _ := strings.Cut(rt.pattern, " ")
		paths = append(paths, path)
	}

	stack := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Metrics(m, paths...),
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		stack = append(stack, middleware.CORS(cfg.Server.CORSOrigins))
	}
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		go limiter.Run(ctx, 5*time.Minute)
		stack = append(stack, middleware.RateLimit(limiter))
		slog.Info("rate limiting enabled", "requests_per_minute", cfg.Server.RateLimit)
	}
	stack = append(stack, middleware.Timeout(cfg.Server.WriteTimeout))
	chain := middleware.Chain(mux, stack...)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
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

	slog.Info("fts query service listening", "addr", server.Addr, "sources", cat.Names(), "default_selector", defaultSelector)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("fts query service stopped")
}
