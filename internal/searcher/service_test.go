package searcher

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/compose"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/catalog"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/executor"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/proto"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/tracing"
)

type recordingTracker struct {
	mu     sync.Mutex
	events []analytics.QueryEvent
}

func (r *recordingTracker) Track(e analytics.QueryEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingTracker) last() analytics.QueryEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, pkgredis.ErrMiss
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.data))
	s.data = make(map[string][]byte)
	return n, nil
}

// countingEngine counts Execute calls on the wrapped engine.
type countingEngine struct {
	Engine
	calls atomic.Int64
}

func (c *countingEngine) Execute(ctx context.Context, q executor.Query) (map[string]compose.HitStream, error) {
	c.calls.Add(1)
	return c.Engine.Execute(ctx, q)
}

type fakeStream struct {
	ids    []string
	scores []float64
	closed bool
}

func (s *fakeStream) Len() int            { return len(s.ids) }
func (s *fakeStream) ID(i int) string     { return s.ids[i] }
func (s *fakeStream) Score(i int) float64 { return s.scores[i] }
func (s *fakeStream) HasMore() bool       { return false }
func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeEngine struct {
	streams map[string]compose.HitStream
	deleted map[string]bool
	block   bool
}

func (f *fakeEngine) Execute(ctx context.Context, _ executor.Query) (map[string]compose.HitStream, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.streams, nil
}

func (f *fakeEngine) Exists(id string) bool {
	return !f.deleted[id]
}

func newCatalog() *catalog.Catalog {
	c := catalog.New()
	c.Upsert("doc", "d1", "Cats", "black cat sits on the mat")
	c.Upsert("doc", "d2", "Dogs", "brown dog runs in the park")
	c.Upsert("doc", "d3", "Pets", "a cat and a dog share the house")
	c.Upsert("doc", "d4", "Birds", "parrot sings loudly")
	c.Upsert("note", "d1", "", "cat notes")
	c.Upsert("note", "d3", "", "cat and dog notes")
	c.Upsert("note", "n9", "", "unrelated memo")
	c.Upsert("note", "n8", "", "another memo")
	return c
}

func testOptions() Options {
	return Options{
		DefaultSelector: "doc",
		DefaultField:    catalog.FieldText,
		DefaultLimit:    10,
		MaxResults:      50,
		QueryTimeout:    time.Second,
	}
}

func ids(page *proto.QueryPage) []string {
	out := make([]string, len(page.Rows))
	for i, r := range page.Rows {
		out[i] = r.ID
	}
	return out
}

func TestService_QuerySingleSelector(t *testing.T) {
	t.Parallel()
	tracker := &recordingTracker{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	svc := NewService(executor.New(newCatalog()), nil, tracker, m, tracing.NewTracer(false, 0), testOptions())

	page, err := svc.Query(context.Background(), proto.QueryRequest{Query: "cat"})
	require.NoError(t, err)

	assert.Equal(t, "cat", page.Query)
	assert.Equal(t, `term("cat")`, page.Constraint)
	assert.Equal(t, []string{"doc"}, page.Selectors)
	assert.Equal(t, []string{"doc.id", "doc.score"}, page.Columns)
	assert.ElementsMatch(t, []string{"d1", "d3"}, ids(page))
	assert.False(t, page.HasMore)
	assert.False(t, page.CacheHit)
	for i, row := range page.Rows {
		assert.Equal(t, i, row.Index)
		assert.Equal(t, row.Score, row.Selectors["doc"].Score)
		assert.Equal(t, row.ID, row.Selectors["doc"].ID)
	}

	ev := tracker.last()
	assert.Equal(t, analytics.OutcomeOK, ev.Outcome)
	assert.Equal(t, 2, ev.Rows)
	assert.Equal(t, page.Constraint, ev.Constraint)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues(metrics.OutcomeOK)))
}

func TestService_QueryJoinsSources(t *testing.T) {
	t.Parallel()
	svc := NewService(executor.New(newCatalog()), nil, nil, nil, nil, testOptions())

	page, err := svc.Query(context.Background(), proto.QueryRequest{
		Query:     "cat",
		Selectors: []string{"a:doc", "b:note"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, page.Selectors)
	assert.Equal(t, []string{"a.id", "a.score", "b.id", "b.score"}, page.Columns)
	assert.ElementsMatch(t, []string{"d1", "d3"}, ids(page))
	for _, row := range page.Rows {
		a, b := row.Selectors["a"], row.Selectors["b"]
		assert.Equal(t, row.ID, a.ID)
		assert.Equal(t, row.ID, b.ID)
		assert.InDelta(t, (a.Score+b.Score)/2, row.Score, 1e-9)
	}
}

func TestService_QueryAliasesOfOneSource(t *testing.T) {
	t.Parallel()
	svc := NewService(executor.New(newCatalog()), nil, nil, nil, nil, testOptions())

	page, err := svc.Query(context.Background(), proto.QueryRequest{
		Query:     "dog",
		Selectors: []string{"x:doc", "y:doc"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"d2", "d3"}, ids(page))
	for _, row := range page.Rows {
		assert.Equal(t, row.Selectors["x"], row.Selectors["y"])
	}
}

func TestService_QueryFieldAndPaging(t *testing.T) {
	t.Parallel()
	svc := NewService(executor.New(newCatalog()), nil, nil, nil, nil, testOptions())
	ctx := context.Background()

	page, err := svc.Query(ctx, proto.QueryRequest{Query: "cat", Field: catalog.FieldTitle})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, ids(page))

	first, err := svc.Query(ctx, proto.QueryRequest{Query: "cat", Limit: 1})
	require.NoError(t, err)
	require.Len(t, first.Rows, 1)
	assert.True(t, first.HasMore)

	second, err := svc.Query(ctx, proto.QueryRequest{Query: "cat", Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, second.Rows, 1)
	assert.Equal(t, 1, second.Start)
	assert.False(t, second.HasMore)
	assert.NotEqual(t, first.Rows[0].ID, second.Rows[0].ID)
}

func TestService_QueryErrors(t *testing.T) {
	t.Parallel()
	tracker := &recordingTracker{}
	svc := NewService(executor.New(newCatalog()), nil, tracker, nil, nil, testOptions())

	tests := []struct {
		name    string
		req     proto.QueryRequest
		want    error
		status  int
		outcome analytics.Outcome
	}{
		{"empty", proto.QueryRequest{Query: "  "}, apperrors.ErrInvalidInput, 400, analytics.OutcomeError},
		{"malformed", proto.QueryRequest{Query: "cat OR"}, apperrors.ErrMalformedExpression, 400, analytics.OutcomeMalformed},
		{"negative skip", proto.QueryRequest{Query: "cat", Skip: -1}, apperrors.ErrInvalidInput, 400, analytics.OutcomeError},
		{"negative limit", proto.QueryRequest{Query: "cat", Limit: -1}, apperrors.ErrInvalidInput, 400, analytics.OutcomeError},
		{"bad selector", proto.QueryRequest{Query: "cat", Selectors: []string{":doc"}}, apperrors.ErrInvalidInput, 400, analytics.OutcomeError},
		{"duplicate alias", proto.QueryRequest{Query: "cat", Selectors: []string{"a:doc", "a:note"}}, apperrors.ErrInvalidInput, 400, analytics.OutcomeError},
		{"unknown source", proto.QueryRequest{Query: "cat", Selectors: []string{"x:missing"}}, apperrors.ErrUnknownSource, 400, analytics.OutcomeError},
		{"unknown field", proto.QueryRequest{Query: "cat", Field: "author"}, apperrors.ErrInvalidInput, 400, analytics.OutcomeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Query(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.status, apperrors.HTTPStatusCode(err))
			assert.Equal(t, tt.outcome, tracker.last().Outcome)
		})
	}
}

func TestService_NoDefaultSelector(t *testing.T) {
	t.Parallel()
	opts := testOptions()
	opts.DefaultSelector = ""
	svc := NewService(executor.New(newCatalog()), nil, nil, nil, nil, opts)
	_, err := svc.Query(context.Background(), proto.QueryRequest{Query: "cat"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestService_LimitClamped(t *testing.T) {
	t.Parallel()
	c := catalog.New()
	for i := 0; i < 8; i++ {
		c.Upsert("doc", strings.Repeat("x", i+1), "", "report")
	}
	opts := testOptions()
	opts.DefaultLimit = 2
	opts.MaxResults = 5
	svc := NewService(executor.New(c), nil, nil, nil, nil, opts)

	page, err := svc.Query(context.Background(), proto.QueryRequest{Query: "report", Limit: 100})
	require.NoError(t, err)
	assert.Len(t, page.Rows, 5)
	assert.True(t, page.HasMore)

	page, err = svc.Query(context.Background(), proto.QueryRequest{Query: "report"})
	require.NoError(t, err)
	assert.Len(t, page.Rows, 2)
}

func TestService_FiltersDeletedDocuments(t *testing.T) {
	t.Parallel()
	stream := &fakeStream{ids: []string{"a", "b", "c"}, scores: []float64{3, 2, 1}}
	engine := &fakeEngine{
		streams: map[string]compose.HitStream{"doc": stream},
		deleted: map[string]bool{"b": true},
	}
	svc := NewService(engine, nil, nil, nil, nil, testOptions())

	page, err := svc.Query(context.Background(), proto.QueryRequest{Query: "cat"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(page))
	assert.Equal(t, []int{0, 2}, []int{page.Rows[0].Index, page.Rows[1].Index})
	assert.Equal(t, 1, page.Filtered)
	assert.True(t, stream.closed)
}

func TestService_AmbiguousIdentifier(t *testing.T) {
	t.Parallel()
	tracker := &recordingTracker{}
	engine := &fakeEngine{streams: map[string]compose.HitStream{
		"a": &fakeStream{ids: []string{"x"}, scores: []float64{1}},
		"b": &fakeStream{ids: []string{"y"}, scores: []float64{1}},
	}}
	svc := NewService(engine, nil, tracker, nil, nil, testOptions())

	_, err := svc.Query(context.Background(), proto.QueryRequest{Query: "cat", Selectors: []string{"a", "b"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAmbiguousSelector)
	assert.Equal(t, http.StatusConflict, apperrors.HTTPStatusCode(err))
	assert.Equal(t, analytics.OutcomeAmbiguous, tracker.last().Outcome)
}

func TestService_QueryTimeout(t *testing.T) {
	t.Parallel()
	opts := testOptions()
	opts.QueryTimeout = 20 * time.Millisecond
	svc := NewService(&fakeEngine{block: true}, nil, nil, nil, nil, opts)

	_, err := svc.Query(context.Background(), proto.QueryRequest{Query: "cat"})
	require.Error(t, err)
	assert.Equal(t, http.StatusGatewayTimeout, apperrors.HTTPStatusCode(err))
}

func TestService_QueryCached(t *testing.T) {
	t.Parallel()
	engine := &countingEngine{Engine: executor.New(newCatalog())}
	qc := cache.New(&memStore{data: make(map[string][]byte)}, config.RedisConfig{CacheTTL: time.Minute}, nil)
	svc := NewService(engine, qc, nil, nil, nil, testOptions())
	ctx := context.Background()

	first, err := svc.Query(ctx, proto.QueryRequest{Query: "cat"})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := svc.Query(ctx, proto.QueryRequest{Query: "  cat  "})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, "  cat  ", second.Query)
	assert.Equal(t, ids(first), ids(second))
	assert.Equal(t, int64(1), engine.calls.Load())

	_, err = svc.Query(ctx, proto.QueryRequest{Query: "cat", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), engine.calls.Load())
}

func TestService_Compile(t *testing.T) {
	t.Parallel()
	svc := NewService(executor.New(newCatalog()), nil, nil, nil, nil, testOptions())

	resp, err := svc.Compile(context.Background(), proto.CompileRequest{Query: `cat -"black dog"`})
	require.NoError(t, err)
	assert.Equal(t, `AND(term("cat"), -phrase("black dog"))`, resp.Constraint)
	assert.Equal(t, 2, resp.Leaves)
	assert.NotEmpty(t, resp.ParseTree)

	_, err = svc.Compile(context.Background(), proto.CompileRequest{Query: "cat OR"})
	assert.ErrorIs(t, err, apperrors.ErrMalformedExpression)
}

func TestService_RPC(t *testing.T) {
	t.Parallel()
	svc := NewService(executor.New(newCatalog()), nil, nil, nil, nil, testOptions())
	srv := grpc.NewServer()
	svc.RegisterRPC(srv)
	require.NoError(t, srv.Listen("127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx, "") }()
	defer srv.Stop()

	client, err := grpc.Dial(srv.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	var page proto.QueryPage
	require.NoError(t, client.Call(ctx, proto.MethodQuery, proto.QueryRequest{Query: "parrot"}, &page))
	assert.Equal(t, []string{"d4"}, ids(&page))

	var compiled proto.CompileResponse
	require.NoError(t, client.Call(ctx, proto.MethodCompile, proto.CompileRequest{Query: "cat"}, &compiled))
	assert.Equal(t, `term("cat")`, compiled.Constraint)

	err = client.Call(ctx, proto.MethodQuery, proto.QueryRequest{Query: "cat OR"}, &page)
	remote, ok := grpc.IsRemote(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, remote.Code)
}
