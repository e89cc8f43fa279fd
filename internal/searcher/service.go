// Package searcher is the query service: it compiles FTS expressions, runs
// them against the engine, composes the per-selector pages into rows and
// serves them over HTTP and RPC.
package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/compose"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/executor"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/fts/compiler"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/fts/constraint"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/searcher/cache"
	apperrors "github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/tracing"
)

// Engine runs a compiled query and answers whether a document still exists.
type Engine interface {
	Execute(ctx context.Context, q executor.Query) (map[string]compose.HitStream, error)
	Exists(docID string) bool
}

// Tracker receives one analytics event per query.
type Tracker interface {
	Track(event analytics.QueryEvent)
}

type Options struct {
	// DefaultSelector is used when a request names no selectors.
	DefaultSelector string
	DefaultField    string
	DefaultLimit    int
	MaxResults      int
	QueryTimeout    time.Duration
}

type Service struct {
	engine  Engine
	cache   *cache.QueryCache
	tracker Tracker
	metrics *metrics.Metrics
	tracer  *tracing.Tracer
	opts    Options
	logger  *slog.Logger
}

// NewService wires the query service. queryCache, tracker, m and tracer may
// be nil.
func NewService(engine Engine, queryCache *cache.QueryCache, tracker Tracker, m *metrics.Metrics, tracer *tracing.Tracer, opts Options) *Service {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = executor.DefaultLimit
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = opts.DefaultLimit
	}
	return &Service{
		engine:  engine,
		cache:   queryCache,
		tracker: tracker,
		metrics: m,
		tracer:  tracer,
		opts:    opts,
		logger:  slog.Default().With("component", "query-service"),
	}
}

func (s *Service) Cache() *cache.QueryCache {
	return s.cache
}

// Compile parses and compiles an expression without running it.
func (s *Service) Compile(ctx context.Context, req proto.CompileRequest) (*proto.CompileResponse, error) {
	start := time.Now()
	tree, err := compiler.Parse(req.Query)
	if err != nil {
		return nil, err
	}
	root, err := compiler.Compile(tree)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.CompileDuration.Observe(time.Since(start).Seconds())
	}
	logger.FromContext(ctx).Debug("expression compiled", "query", req.Query, "constraint", root.String())
	return &proto.CompileResponse{
		Query:      req.Query,
		ParseTree:  tree.String(),
		Constraint: root.String(),
		Leaves:     len(constraint.Leaves(root)),
	}, nil
}

// Query compiles req.Query, executes it for every selector and returns one
// composed page. Rows whose documents were deleted after execution are
// dropped and counted in Filtered.
func (s *Service) Query(ctx context.Context, req proto.QueryRequest) (*proto.QueryPage, error) {
	start := time.Now()
	requestID, _ := logger.RequestID(ctx)
	ctx, span := s.tracer.StartSpan(ctx, "fts.query", requestID)
	defer span.Finish()
	span.SetAttr("query", req.Query)

	page, err := s.query(ctx, req)
	latency := time.Since(start)

	outcome := outcomeOf(err)
	span.SetAttr("outcome", string(outcome))
	if s.metrics != nil {
		s.metrics.QueriesTotal.WithLabelValues(string(outcome)).Inc()
	}
	event := analytics.QueryEvent{
		Outcome:   outcome,
		Query:     req.Query,
		Selectors: req.Selectors,
		LatencyMs: latency.Milliseconds(),
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
	if err != nil {
		logger.FromContext(ctx).Warn("query failed", "query", req.Query, "outcome", outcome, "error", err)
		s.track(event)
		return nil, err
	}

	page.LatencyMs = latency.Milliseconds()
	event.Constraint = page.Constraint
	event.Rows = len(page.Rows)
	event.HasMore = page.HasMore
	event.CacheHit = page.CacheHit
	s.track(event)

	if s.metrics != nil {
		status := "miss"
		if page.CacheHit {
			status = "hit"
		}
		s.metrics.QueryLatency.WithLabelValues(status).Observe(latency.Seconds())
		s.metrics.RowsReturned.Observe(float64(len(page.Rows)))
	}
	logger.FromContext(ctx).Info("query completed",
		"query", req.Query,
		"rows", len(page.Rows),
		"has_more", page.HasMore,
		"cache_hit", page.CacheHit,
		"latency_ms", page.LatencyMs,
	)
	return page, nil
}

func (s *Service) query(ctx context.Context, req proto.QueryRequest) (*proto.QueryPage, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query must not be empty")
	}
	if req.Skip < 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "skip must not be negative, got %d", req.Skip)
	}
	limit := req.Limit
	switch {
	case limit < 0:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must not be negative, got %d", limit)
	case limit == 0:
		limit = s.opts.DefaultLimit
	case limit > s.opts.MaxResults:
		limit = s.opts.MaxResults
	}
	field := req.Field
	if field == "" {
		field = s.opts.DefaultField
	}
	selectors, err := s.selectors(req.Selectors)
	if err != nil {
		return nil, err
	}

	_, compileSpan := tracing.StartChildSpan(ctx, "fts.compile")
	compileStart := time.Now()
	root, err := compiler.CompileString(req.Query)
	compileSpan.End()
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.CompileDuration.Observe(time.Since(compileStart).Seconds())
	}

	q := executor.Query{
		Selectors:    selectors,
		Constraint:   root,
		DefaultField: field,
		Skip:         req.Skip,
		Limit:        limit,
	}
	compute := func() (*proto.QueryPage, error) {
		page, err := s.execute(ctx, q)
		if err != nil {
			return nil, err
		}
		page.Query = req.Query
		return page, nil
	}
	if s.cache == nil {
		return compute()
	}
	key := cache.Key(root.String(), canonical(selectors), field, req.Skip, limit)
	cached, hit, err := s.cache.GetOrCompute(ctx, key, compute)
	if err != nil {
		return nil, err
	}
	page := *cached
	page.Query = req.Query
	page.CacheHit = hit
	return &page, nil
}

// execute runs q under the query timeout and composes the resulting page.
func (s *Service) execute(ctx context.Context, q executor.Query) (*proto.QueryPage, error) {
	execCtx, span := tracing.StartChildSpan(ctx, "fts.execute")
	defer span.End()

	streams, err := resilience.WithTimeout(execCtx, s.opts.QueryTimeout, "query execution",
		func(ctx context.Context) (map[string]compose.HitStream, error) {
			return s.engine.Execute(ctx, q)
		})
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, apperrors.Newf(apperrors.ErrInternal, http.StatusGatewayTimeout, "%v", err)
	}
	if err != nil {
		return nil, err
	}

	rs := compose.Compose(streams, q.Skip)
	defer func() {
		if err := rs.Close(); err != nil {
			s.logger.Error("closing result set failed", "error", err)
		}
	}()
	return s.page(rs, q.Constraint)
}

func (s *Service) page(rs *compose.ResultSet, root constraint.Node) (*proto.QueryPage, error) {
	all, err := rs.Rows()
	if err != nil {
		return nil, err
	}
	kept := compose.Filter(all, s.engine.Exists)
	single := len(rs.Selectors()) == 1

	page := &proto.QueryPage{
		Constraint: root.String(),
		Selectors:  rs.Selectors(),
		Columns:    rs.Columns(),
		Start:      rs.Start(),
		HasMore:    rs.HasMore(),
		Rows:       make([]proto.Row, 0, len(kept)),
		Filtered:   len(all) - len(kept),
	}
	for _, row := range kept {
		id, err := row.Identifier()
		if err != nil {
			return nil, err
		}
		score := row.OverallScore()
		if single {
			if score, err = row.Score(); err != nil {
				return nil, err
			}
		}
		out := proto.Row{
			Index:     row.Index(),
			ID:        id,
			Score:     score,
			Selectors: make(map[string]proto.SelectorHit, len(page.Selectors)),
		}
		scores := row.Scores()
		for name, selID := range row.Identifiers() {
			out.Selectors[name] = proto.SelectorHit{ID: selID, Score: scores[name]}
		}
		page.Rows = append(page.Rows, out)
	}
	return page, nil
}

// selectors turns "alias" and "alias:source" entries into an alias to source
// map. With no entries the default selector is used.
func (s *Service) selectors(specs []string) (map[string]string, error) {
	if len(specs) == 0 {
		if s.opts.DefaultSelector == "" {
			return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"no selectors given and no default source configured")
		}
		specs = []string{s.opts.DefaultSelector}
	}
	out := make(map[string]string, len(specs))
	for _, spec := range specs {
		alias, source, found := strings.Cut(strings.TrimSpace(spec), ":")
		if !found {
			source = alias
		}
		if alias == "" || source == "" {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"selector %q must be alias or alias:source", spec)
		}
		if _, dup := out[alias]; dup {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"selector alias %q is used twice", alias)
		}
		out[alias] = source
	}
	return out, nil
}

func canonical(selectors map[string]string) []string {
	out := make([]string, 0, len(selectors))
	for alias, source := range selectors {
		out = append(out, fmt.Sprintf("%s:%s", alias, source))
	}
	sort.Strings(out)
	return out
}

func (s *Service) track(event analytics.QueryEvent) {
	if s.tracker != nil {
		s.tracker.Track(event)
	}
}

func outcomeOf(err error) analytics.Outcome {
	switch {
	case err == nil:
		return analytics.OutcomeOK
	case apperrors.Is(err, apperrors.ErrMalformedExpression),
		apperrors.Is(err, apperrors.ErrUnsupportedEscape):
		return analytics.OutcomeMalformed
	case apperrors.Is(err, apperrors.ErrAmbiguousSelector):
		return analytics.OutcomeAmbiguous
	default:
		return analytics.OutcomeError
	}
}
