package executor

import (
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/compose"
)

// Page is one source's slice of ranked hits. Every alias selecting the same
// source receives the same *Page.
type Page struct {
	source  string
	ids     []string
	scores  []float64
	hasMore bool
	closed  bool
	logger  *slog.Logger
}

var _ compose.HitStream = (*Page)(nil)

func (p *Page) Source() string      { return p.source }
func (p *Page) Len() int            { return len(p.ids) }
func (p *Page) ID(i int) string     { return p.ids[i] }
func (p *Page) Score(i int) float64 { return p.scores[i] }
func (p *Page) HasMore() bool       { return p.hasMore }

// Closed reports whether Close has been called.
func (p *Page) Closed() bool {
	return p.closed
}

// Close drops the page's hits. Closing twice is a no-op.
func (p *Page) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.logger.Debug("hit page released", "source", p.source, "hits", len(p.ids))
	p.ids, p.scores = nil, nil
	return nil
}
