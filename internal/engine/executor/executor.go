// Package executor evaluates compiled FTS constraints against the catalog and
// returns one page of ranked hits per query selector.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/compose"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/catalog"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/ranker"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/fts/constraint"
	apperrors "github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/errors"
)

const DefaultLimit = 10

// Query binds a constraint to the selectors it is evaluated for.
type Query struct {
	// Selectors maps alias to source name. Several aliases may name one source.
	Selectors    map[string]string
	Constraint   constraint.Node
	DefaultField string
	Skip         int
	Limit        int
}

type Executor struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

func New(c *catalog.Catalog) *Executor {
	return &Executor{
		catalog: c,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Exists reports whether a document is still indexed by any source.
func (e *Executor) Exists(docID string) bool {
	return e.catalog.Exists(docID)
}

// Execute evaluates q once per distinct source. With several sources, only
// documents matched by all of them are kept, ranked by their blended score.
func (e *Executor) Execute(ctx context.Context, q Query) (map[string]compose.HitStream, error) {
	start := time.Now()
	if err := validate(q); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	sources := distinctSources(q.Selectors)
	perSource := make([]map[string]float64, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range sources {
		g.Go(func() error {
			src, err := e.catalog.Source(name)
			if err != nil {
				return err
			}
			idx, err := src.Field(q.DefaultField)
			if err != nil {
				return err
			}
			m, err := newEvaluator(idx).eval(gctx, q.Constraint)
			if err != nil {
				return fmt.Errorf("evaluating source %q: %w", name, err)
			}
			perSource[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ranked := join(sources, perSource)
	total := len(ranked)
	from := min(q.Skip, total)
	to := min(from+limit, total)
	window := ranked[from:to]

	pages := make(map[string]*Page, len(sources))
	for i, name := range sources {
		page := &Page{
			source:  name,
			ids:     make([]string, len(window)),
			scores:  make([]float64, len(window)),
			hasMore: to < total,
			logger:  e.logger,
		}
		for j, hit := range window {
			page.ids[j] = hit.id
			page.scores[j] = hit.scores[i]
		}
		pages[name] = page
	}
	streams := make(map[string]compose.HitStream, len(q.Selectors))
	for alias, source := range q.Selectors {
		streams[alias] = pages[source]
	}

	e.logger.Info("query executed",
		"constraint", q.Constraint.String(),
		"sources", sources,
		"matches", total,
		"returned", len(window),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return streams, nil
}

func validate(q Query) error {
	if len(q.Selectors) == 0 {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query has no selectors")
	}
	if q.Constraint == nil {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query has no constraint")
	}
	if q.Skip < 0 {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "skip must not be negative, got %d", q.Skip)
	}
	for alias, source := range q.Selectors {
		if alias == "" || source == "" {
			return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"selector %q -> %q needs both an alias and a source", alias, source)
		}
	}
	return nil
}

func distinctSources(selectors map[string]string) []string {
	seen := make(map[string]struct{}, len(selectors))
	sources := make([]string, 0, len(selectors))
	for _, source := range selectors {
		if _, ok := seen[source]; ok {
			continue
		}
		seen[source] = struct{}{}
		sources = append(sources, source)
	}
	sort.Strings(sources)
	return sources
}

type hit struct {
	id     string
	scores []float64
}

// join keeps the documents every source matched. Scores are rounded per
// source and blended with the running mean in source order; hits come back
// in ranker order over the blended score.
func join(sources []string, perSource []map[string]float64) []hit {
	if len(sources) == 0 {
		return nil
	}
	scores := make(map[string][]float64, len(perSource[0]))
	blended := make(map[string]float64, len(perSource[0]))
	for id := range perSource[0] {
		s := make([]float64, len(sources))
		matchedAll := true
		for i, m := range perSource {
			score, ok := m[id]
			if !ok {
				matchedAll = false
				break
			}
			s[i] = ranker.Round(score)
		}
		if !matchedAll {
			continue
		}
		scores[id] = s
		blended[id] = compose.RunningMean(s)
	}
	ranked := ranker.Rank(blended)
	hits := make([]hit, len(ranked))
	for i, doc := range ranked {
		hits[i] = hit{id: doc.DocID, scores: scores[doc.DocID]}
	}
	return hits
}
