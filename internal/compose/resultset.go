// Package compose merges the per-selector hit streams of one query page into
// rows that expose a single identifier and score.
//
// Every selector describes the same logical row at a given position: for a
// single selector that is trivial, for several it holds because the engine
// equality-joins the sources. Disagreement is only reported when a caller
// asks for the single value, so rows whose identifier or score is never read
// never fail.
package compose

import (
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/errors"
)

// HitStream is one selector's page of scored hits as produced by the query
// engine. ID and Score are only called with 0 <= i < Len().
type HitStream interface {
	Len() int
	ID(i int) string
	Score(i int) float64
	// HasMore reports whether rows exist beyond this page.
	HasMore() bool
	Close() error
}

const (
	ColumnID    = "id"
	ColumnScore = "score"
)

// ResultSet is one page of composed rows. It is not safe for concurrent use.
type ResultSet struct {
	streams   map[string]HitStream
	selectors []string
	start     int
	closed    bool
	logger    *slog.Logger
}

// Metadata describes a result set without reading its rows.
type Metadata struct {
	Selectors []string `json:"selectors"`
	Columns   []string `json:"columns"`
	Start     int      `json:"start"`
	Length    int      `json:"length"`
	HasMore   bool     `json:"has_more"`
}

// Compose builds a result set over streams keyed by selector name. skip is
// the number of rows the engine skipped before this page and is echoed back
// by Start.
func Compose(streams map[string]HitStream, skip int) *ResultSet {
	selectors := make([]string, 0, len(streams))
	for name := range streams {
		selectors = append(selectors, name)
	}
	sort.Strings(selectors)
	return &ResultSet{
		streams:   streams,
		selectors: selectors,
		start:     skip,
		logger:    slog.Default().With("component", "result-composer"),
	}
}

// Len returns the row count shared by every selector stream.
func (rs *ResultSet) Len() (int, error) {
	length := 0
	for i, name := range rs.selectors {
		n := rs.streams[name].Len()
		if i == 0 {
			length = n
			continue
		}
		if n != length {
			return 0, apperrors.Newf(apperrors.ErrInternalInconsistency, http.StatusInternalServerError,
				"selector %q has %d rows but %q has %d", name, n, rs.selectors[0], length)
		}
	}
	return length, nil
}

// HasMore reports whether any selector stream has rows past this page.
func (rs *ResultSet) HasMore() bool {
	for _, name := range rs.selectors {
		if rs.streams[name].HasMore() {
			return true
		}
	}
	return false
}

func (rs *ResultSet) Start() int {
	return rs.start
}

// Selectors returns the selector names in ascending order.
func (rs *ResultSet) Selectors() []string {
	out := make([]string, len(rs.selectors))
	copy(out, rs.selectors)
	return out
}

// Columns lists "<selector>.id" and "<selector>.score" for every selector.
func (rs *ResultSet) Columns() []string {
	columns := make([]string, 0, 2*len(rs.selectors))
	for _, name := range rs.selectors {
		columns = append(columns, name+"."+ColumnID, name+"."+ColumnScore)
	}
	return columns
}

func (rs *ResultSet) Metadata() (Metadata, error) {
	length, err := rs.Len()
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{
		Selectors: rs.Selectors(),
		Columns:   rs.Columns(),
		Start:     rs.start,
		Length:    length,
		HasMore:   rs.HasMore(),
	}, nil
}

// Row assembles the row at position i of this page.
func (rs *ResultSet) Row(i int) (*Row, error) {
	if err := rs.checkOpen(); err != nil {
		return nil, err
	}
	length, err := rs.Len()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= length {
		return nil, apperrors.Newf(apperrors.ErrNoSuchRow, http.StatusInternalServerError,
			"row %d outside [0, %d)", i, length)
	}
	row := &Row{
		rs:     rs,
		index:  i,
		ids:    make(map[string]string, len(rs.selectors)),
		scores: make(map[string]float64, len(rs.selectors)),
	}
	for _, name := range rs.selectors {
		stream := rs.streams[name]
		row.ids[name] = stream.ID(i)
		row.scores[name] = stream.Score(i)
	}
	return row, nil
}

// Rows assembles every row of the page.
func (rs *ResultSet) Rows() ([]*Row, error) {
	length, err := rs.Len()
	if err != nil {
		return nil, err
	}
	rows := make([]*Row, 0, length)
	for i := 0; i < length; i++ {
		row, err := rs.Row(i)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Close releases every distinct underlying stream once, even when several
// selectors share one stream. Closing twice is a no-op.
func (rs *ResultSet) Close() error {
	if rs.closed {
		return nil
	}
	rs.closed = true

	released := make(map[streamIdentity]struct{}, len(rs.selectors))
	var firstErr error
	for _, name := range rs.selectors {
		stream := rs.streams[name]
		if id, ok := identityOf(stream); ok {
			if _, done := released[id]; done {
				continue
			}
			released[id] = struct{}{}
		}
		if err := stream.Close(); err != nil {
			rs.logger.Error("closing hit stream failed", "selector", name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("closing stream for selector %q: %w", name, err)
			}
		}
	}
	return firstErr
}

func (rs *ResultSet) checkOpen() error {
	if rs.closed {
		return apperrors.New(apperrors.ErrResultSetClosed, http.StatusInternalServerError, "")
	}
	return nil
}

type streamIdentity struct {
	typ reflect.Type
	ptr uintptr
}

// identityOf returns the reference identity of a stream. Streams that are not
// reference types have none and are always treated as distinct.
func identityOf(s HitStream) (streamIdentity, bool) {
	v := reflect.ValueOf(s)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan:
		return streamIdentity{typ: v.Type(), ptr: v.Pointer()}, true
	default:
		return streamIdentity{}, false
	}
}

// splitColumn splits "<selector>.<field>" at the last dot.
func splitColumn(column string) (selector, field string, ok bool) {
	i := strings.LastIndexByte(column, '.')
	if i <= 0 || i == len(column)-1 {
		return "", "", false
	}
	return column[:i], column[i+1:], true
}
