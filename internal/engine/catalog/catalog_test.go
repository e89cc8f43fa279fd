package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/errors"
)

func TestCatalog_UpsertDeleteExists(t *testing.T) {
	t.Parallel()
	c := New("doc")
	c.Upsert("doc", "1", "hello", "world")
	c.Upsert("note", "2", "hello", "")

	assert.Equal(t, []string{"doc", "note"}, c.Names())
	assert.True(t, c.Exists("1"))
	assert.True(t, c.Exists("2"))
	assert.False(t, c.Exists("3"))
	assert.Equal(t, 2, c.TotalDocs())

	assert.True(t, c.Delete("doc", "1"))
	assert.False(t, c.Delete("doc", "1"))
	assert.False(t, c.Delete("missing", "2"))
	assert.False(t, c.Exists("1"))

	stats := c.Stats()
	assert.Equal(t, 0, stats["doc"].Docs)
	assert.Equal(t, 1, stats["note"].Docs)
}

func TestCatalog_UnknownSource(t *testing.T) {
	t.Parallel()
	c := New()
	_, err := c.Source("doc")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnknownSource)
	assert.Equal(t, 400, apperrors.HTTPStatusCode(err))
}

func TestSource_Fields(t *testing.T) {
	t.Parallel()
	c := New()
	c.Upsert("doc", "1", "quarterly report", "budget figures")
	src, err := c.Source("doc")
	require.NoError(t, err)

	text, err := src.Field("")
	require.NoError(t, err)
	assert.Len(t, text.Search("report"), 1)
	assert.Len(t, text.Search("budget"), 1)

	title, err := src.Field(FieldTitle)
	require.NoError(t, err)
	assert.Len(t, title.Search("report"), 1)
	assert.Empty(t, title.Search("budget"))

	body, err := src.Field(FieldBody)
	require.NoError(t, err)
	assert.Empty(t, body.Search("report"))
	assert.Len(t, body.Search("budget"), 1)

	_, err = src.Field("author")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
