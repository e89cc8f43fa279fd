// Package catalog maps source names (the queryable document types) to their
// in-memory indexes. A selector in a query names one of these sources.
package catalog

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/errors"
)

// Searchable fields. FieldText covers title and body together.
const (
	FieldText  = "text"
	FieldTitle = "title"
	FieldBody  = "body"

	DefaultField = FieldText
)

// Source is one document type, indexed once per field.
type Source struct {
	name   string
	fields map[string]*index.MemoryIndex
}

func newSource(name string) *Source {
	return &Source{
		name: name,
		fields: map[string]*index.MemoryIndex{
			FieldText:  index.NewMemoryIndex(),
			FieldTitle: index.NewMemoryIndex(),
			FieldBody:  index.NewMemoryIndex(),
		},
	}
}

func (s *Source) Name() string {
	return s.name
}

// Field returns the index of one field. An empty name selects DefaultField.
func (s *Source) Field(name string) (*index.MemoryIndex, error) {
	if name == "" {
		name = DefaultField
	}
	idx, ok := s.fields[name]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"field %q is not searchable (want %s, %s or %s)", name, FieldText, FieldTitle, FieldBody)
	}
	return idx, nil
}

func (s *Source) upsert(docID, title, body string) {
	s.fields[FieldText].AddDocument(docID, title, body)
	s.fields[FieldTitle].AddDocument(docID, title, "")
	s.fields[FieldBody].AddDocument(docID, "", body)
}

func (s *Source) remove(docID string) bool {
	removed := s.fields[FieldText].Remove(docID)
	s.fields[FieldTitle].Remove(docID)
	s.fields[FieldBody].Remove(docID)
	return removed
}

// Catalog owns the sources.
type Catalog struct {
	sources map[string]*Source
	mu      sync.RWMutex
	logger  *slog.Logger
}

// New creates a catalog with an empty source for every name.
func New(names ...string) *Catalog {
	c := &Catalog{
		sources: make(map[string]*Source, len(names)),
		logger:  slog.Default().With("component", "catalog"),
	}
	for _, name := range names {
		c.sources[name] = newSource(name)
	}
	return c
}

// Source returns a known source.
func (c *Catalog) Source(name string) (*Source, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src, ok := c.sources[name]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrUnknownSource, http.StatusBadRequest, "source %q is not defined", name)
	}
	return src, nil
}

// Upsert indexes a document into source, creating the source on first use.
func (c *Catalog) Upsert(source, docID, title, body string) {
	c.mu.Lock()
	src, ok := c.sources[source]
	if !ok {
		src = newSource(source)
		c.sources[source] = src
		c.logger.Info("source created", "source", source)
	}
	c.mu.Unlock()
	src.upsert(docID, title, body)
}

// Delete removes a document from source and reports whether it existed.
func (c *Catalog) Delete(source, docID string) bool {
	src, err := c.Source(source)
	if err != nil {
		return false
	}
	return src.remove(docID)
}

// Exists reports whether any source still holds docID.
func (c *Catalog) Exists(docID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, src := range c.sources {
		if src.fields[FieldText].Has(docID) {
			return true
		}
	}
	return false
}

// Names returns the source names in ascending order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.sources))
	for name := range c.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns a snapshot of the text index statistics per source.
func (c *Catalog) Stats() map[string]index.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := make(map[string]index.Stats, len(c.sources))
	for name, src := range c.sources {
		stats[name] = src.fields[FieldText].Stats()
	}
	return stats
}

// TotalDocs sums the document counts of every source.
func (c *Catalog) TotalDocs() int {
	total := 0
	for _, s := range c.Stats() {
		total += s.Docs
	}
	return total
}
