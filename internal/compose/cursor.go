package compose

import (
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/errors"
)

// Cursor walks a result set in both directions. It starts before the first
// row; Next and Previous move one row and return the row they land on.
// Callers guard moves with HasNext and HasPrevious.
type Cursor struct {
	rs     *ResultSet
	length int
	pos    int
}

// Cursor returns a cursor positioned before the first row.
func (rs *ResultSet) Cursor() (*Cursor, error) {
	if err := rs.checkOpen(); err != nil {
		return nil, err
	}
	length, err := rs.Len()
	if err != nil {
		return nil, err
	}
	return &Cursor{rs: rs, length: length, pos: -1}, nil
}

func (c *Cursor) HasNext() bool {
	return c.pos+1 < c.length
}

func (c *Cursor) HasPrevious() bool {
	return c.pos > 0
}

// NextIndex is the position Next would move to.
func (c *Cursor) NextIndex() int {
	return c.pos + 1
}

// PreviousIndex is the position Previous would move to.
func (c *Cursor) PreviousIndex() int {
	return c.pos - 1
}

func (c *Cursor) Next() (*Row, error) {
	if !c.HasNext() {
		return nil, apperrors.Newf(apperrors.ErrNoSuchRow, http.StatusInternalServerError,
			"no row after position %d of %d", c.pos, c.length)
	}
	row, err := c.rs.Row(c.pos + 1)
	if err != nil {
		return nil, err
	}
	c.pos++
	return row, nil
}

func (c *Cursor) Previous() (*Row, error) {
	if !c.HasPrevious() {
		return nil, apperrors.Newf(apperrors.ErrNoSuchRow, http.StatusInternalServerError,
			"no row before position %d", c.pos)
	}
	row, err := c.rs.Row(c.pos - 1)
	if err != nil {
		return nil, err
	}
	c.pos--
	return row, nil
}

// Insert, Remove and Replace fail with ErrUnsupportedOperation; result sets
// are read-only.
func (c *Cursor) Insert(*Row) error {
	return unsupported("insert")
}

func (c *Cursor) Remove() error {
	return unsupported("remove")
}

func (c *Cursor) Replace(*Row) error {
	return unsupported("replace")
}

func unsupported(op string) error {
	return apperrors.Newf(apperrors.ErrUnsupportedOperation, http.StatusInternalServerError, "%s on a result cursor", op)
}

// Filter keeps the rows whose every selector identifier passes exists. Rows
// are returned unchanged, index included.
func Filter(rows []*Row, exists func(id string) bool) []*Row {
	kept := make([]*Row, 0, len(rows))
	for _, row := range rows {
		ok := true
		for _, id := range row.ids {
			if !exists(id) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, row)
		}
	}
	return kept
}
