package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/compose"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/catalog"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/fts/compiler"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/fts/constraint"
	apperrors "github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/errors"
)

func newCatalog() *catalog.Catalog {
	c := catalog.New()
	c.Upsert("doc", "d1", "Cats", "black cat sits on the mat")
	c.Upsert("doc", "d2", "Dogs", "brown dog runs in the park")
	c.Upsert("doc", "d3", "Pets", "a cat and a dog share the house")
	c.Upsert("doc", "d4", "Birds", "parrot sings loudly")
	return c
}

func run(t *testing.T, e *Executor, fts string, selectors map[string]string, skip, limit int) map[string]compose.HitStream {
	t.Helper()
	c, err := compiler.CompileString(fts)
	require.NoError(t, err)
	streams, err := e.Execute(context.Background(), Query{
		Selectors:  selectors,
		Constraint: c,
		Skip:       skip,
		Limit:      limit,
	})
	require.NoError(t, err)
	return streams
}

func ids(s compose.HitStream) []string {
	out := make([]string, s.Len())
	for i := range out {
		out[i] = s.ID(i)
	}
	return out
}

func TestExecute_BooleanSemantics(t *testing.T) {
	t.Parallel()
	e := New(newCatalog())
	sel := map[string]string{"d": "doc"}

	tests := []struct {
		query string
		want  []string
	}{
		{"cat", []string{"d1", "d3"}},
		{"cat dog", []string{"d3"}},
		{"cat -dog", []string{"d1"}},
		{"-cat", []string{"d2", "d4"}},
		{"-cat -dog", []string{"d4"}},
		{"parrot OR dog", []string{"d2", "d3", "d4"}},
		{"parrot OR -cat", []string{"d2", "d4"}},
		{`"black cat"`, []string{"d1"}},
		{`"mat black"`, nil},
		{"the", nil},
		{"elephant", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := ids(run(t, e, tt.query, sel, 0, 10)["d"])
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestExecute_OrderedByScore(t *testing.T) {
	t.Parallel()
	c := catalog.New()
	c.Upsert("doc", "a", "", "cat")
	c.Upsert("doc", "b", "", "cat cat cat dog")
	c.Upsert("doc", "z", "", "cat")
	c.Upsert("doc", "m", "", "mouse")
	s := run(t, New(c), "cat", map[string]string{"d": "doc"}, 0, 10)["d"]

	require.Equal(t, 3, s.Len())
	assert.Equal(t, "b", s.ID(0))
	assert.Equal(t, []string{"a", "z"}, ids(s)[1:], "equal scores order by ID")
	assert.Greater(t, s.Score(0), s.Score(1))
	assert.Equal(t, s.Score(1), s.Score(2))
}

func TestExecute_Paging(t *testing.T) {
	t.Parallel()
	c := catalog.New()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		c.Upsert("doc", id, "", "report")
	}
	e := New(c)
	sel := map[string]string{"d": "doc"}

	first := run(t, e, "report", sel, 0, 2)["d"]
	assert.Equal(t, []string{"a", "b"}, ids(first))
	assert.True(t, first.HasMore())

	last := run(t, e, "report", sel, 4, 2)["d"]
	assert.Equal(t, []string{"e"}, ids(last))
	assert.False(t, last.HasMore())

	past := run(t, e, "report", sel, 10, 2)["d"]
	assert.Zero(t, past.Len())
	assert.False(t, past.HasMore())
}

func TestExecute_AliasesShareOnePage(t *testing.T) {
	t.Parallel()
	e := New(newCatalog())
	streams := run(t, e, "cat", map[string]string{"a": "doc", "b": "doc"}, 0, 10)

	require.Len(t, streams, 2)
	assert.Same(t, streams["a"], streams["b"])

	rs := compose.Compose(streams, 0)
	require.NoError(t, rs.Close())
	assert.True(t, streams["a"].(*Page).Closed())
}

func TestExecute_JoinsDistinctSources(t *testing.T) {
	t.Parallel()
	c := catalog.New()
	c.Upsert("doc", "x", "", "contract signed")
	c.Upsert("doc", "y", "", "contract draft")
	c.Upsert("archive", "x", "", "contract contract archived")
	c.Upsert("archive", "z", "", "contract")
	c.Upsert("doc", "w", "", "unrelated memo")
	c.Upsert("archive", "v", "", "old memo")
	streams := run(t, New(c), "contract", map[string]string{"live": "doc", "old": "archive"}, 0, 10)

	assert.Equal(t, []string{"x"}, ids(streams["live"]))
	assert.Equal(t, []string{"x"}, ids(streams["old"]))

	rs := compose.Compose(streams, 0)
	row, err := rs.Row(0)
	require.NoError(t, err)
	id, err := row.Identifier()
	require.NoError(t, err)
	assert.Equal(t, "x", id)
	assert.NotEqual(t, streams["live"].Score(0), streams["old"].Score(0))
}

func TestExecute_DefaultField(t *testing.T) {
	t.Parallel()
	e := New(newCatalog())
	c, err := compiler.CompileString("cats")
	require.NoError(t, err)

	streams, err := e.Execute(context.Background(), Query{
		Selectors: map[string]string{"d": "doc"}, Constraint: c, DefaultField: catalog.FieldTitle,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, ids(streams["d"]))

	_, err = e.Execute(context.Background(), Query{
		Selectors: map[string]string{"d": "doc"}, Constraint: c, DefaultField: "author",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestExecute_Errors(t *testing.T) {
	t.Parallel()
	e := New(newCatalog())
	leaf := &constraint.Leaf{Kind: constraint.Term, Text: "cat", Mode: constraint.Tokenise}
	ctx := context.Background()

	_, err := e.Execute(ctx, Query{Constraint: leaf})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = e.Execute(ctx, Query{Selectors: map[string]string{"d": "doc"}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = e.Execute(ctx, Query{Selectors: map[string]string{"d": "doc"}, Constraint: leaf, Skip: -1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = e.Execute(ctx, Query{Selectors: map[string]string{"d": "nope"}, Constraint: leaf})
	assert.ErrorIs(t, err, apperrors.ErrUnknownSource)

	odd := &constraint.Leaf{Kind: constraint.Term, Text: "cat", Mode: "VERBATIM"}
	_, err = e.Execute(ctx, Query{Selectors: map[string]string{"d": "doc"}, Constraint: odd})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Execute(cancelled, Query{Selectors: map[string]string{"d": "doc"}, Constraint: leaf})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecute_ExistsFollowsDeletes(t *testing.T) {
	t.Parallel()
	c := newCatalog()
	e := New(c)
	assert.True(t, e.Exists("d1"))
	c.Delete("doc", "d1")
	assert.False(t, e.Exists("d1"))
}

func TestPage_CloseIdempotent(t *testing.T) {
	t.Parallel()
	e := New(newCatalog())
	p := run(t, e, "cat", map[string]string{"d": "doc"}, 0, 10)["d"].(*Page)
	assert.Equal(t, "doc", p.Source())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, p.Closed())
}
