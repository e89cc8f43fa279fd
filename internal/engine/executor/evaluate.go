package executor

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/index"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/ranker"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/fts/constraint"
	apperrors "github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/errors"
)

// matches maps matching document IDs to their summed BM25 score.
type matches map[string]float64

// evaluator runs one constraint tree against one field index.
type evaluator struct {
	idx      *index.MemoryIndex
	params   ranker.Params
	universe []string
}

func newEvaluator(idx *index.MemoryIndex) *evaluator {
	return &evaluator{
		idx:    idx,
		params: ranker.ParamsFrom(idx.Stats()),
	}
}

func (ev *evaluator) eval(ctx context.Context, n constraint.Node) (matches, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch n := n.(type) {
	case *constraint.Conjunction:
		return ev.conjunction(ctx, n.Children)
	case *constraint.Disjunction:
		return ev.disjunction(ctx, n.Children)
	case *constraint.Leaf:
		// A lone excluded leaf means "everything but".
		if n.Occur == constraint.Excluded {
			return ev.conjunction(ctx, []constraint.Node{n})
		}
		return ev.leaf(n)
	default:
		return nil, apperrors.Newf(apperrors.ErrInternal, http.StatusInternalServerError, "unknown constraint node %T", n)
	}
}

// conjunction intersects the default children and removes every document an
// excluded leaf matches. Without default children it starts from all
// documents.
func (ev *evaluator) conjunction(ctx context.Context, children []constraint.Node) (matches, error) {
	var result matches
	var excluded []*constraint.Leaf
	for _, child := range children {
		if leaf, ok := child.(*constraint.Leaf); ok && leaf.Occur == constraint.Excluded {
			excluded = append(excluded, leaf)
			continue
		}
		m, err := ev.eval(ctx, child)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = m
			continue
		}
		result = intersect(result, m)
	}
	if result == nil {
		result = ev.all()
	}
	for _, leaf := range excluded {
		m, err := ev.leaf(leaf)
		if err != nil {
			return nil, err
		}
		for docID := range m {
			delete(result, docID)
		}
	}
	return result, nil
}

// disjunction unions its children. An excluded child contributes every
// document it does not match, unscored.
func (ev *evaluator) disjunction(ctx context.Context, children []constraint.Node) (matches, error) {
	result := make(matches)
	for _, child := range children {
		var m matches
		var err error
		if leaf, ok := child.(*constraint.Leaf); ok && leaf.Occur == constraint.Excluded {
			m, err = ev.complement(leaf)
		} else {
			m, err = ev.eval(ctx, child)
		}
		if err != nil {
			return nil, err
		}
		for docID, score := range m {
			result[docID] += score
		}
	}
	return result, nil
}

func (ev *evaluator) complement(leaf *constraint.Leaf) (matches, error) {
	m, err := ev.leaf(leaf)
	if err != nil {
		return nil, err
	}
	out := make(matches)
	for _, docID := range ev.docIDs() {
		if _, hit := m[docID]; !hit {
			out[docID] = 0
		}
	}
	return out, nil
}

func (ev *evaluator) leaf(leaf *constraint.Leaf) (matches, error) {
	if leaf.Mode != constraint.Tokenise {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"analysis mode %q is not supported", leaf.Mode)
	}
	terms := tokenizer.Terms(leaf.Text)
	if len(terms) == 0 {
		return make(matches), nil
	}
	postings := make([]index.PostingList, len(terms))
	for i, term := range terms {
		postings[i] = ev.idx.Search(term)
		if len(postings[i]) == 0 {
			return make(matches), nil
		}
	}
	switch leaf.Kind {
	case constraint.Term:
		return ev.scoreAll(postings, nil), nil
	case constraint.Phrase:
		if len(terms) == 1 {
			return ev.scoreAll(postings, nil), nil
		}
		counts := phraseCounts(postings)
		return ev.scoreAll(postings, func(p index.Posting) int { return counts[p.DocID] }), nil
	default:
		return nil, fmt.Errorf("leaf kind %s: %w", leaf.Kind, apperrors.ErrInternal)
	}
}

// scoreAll keeps documents present in every posting list and sums their
// per-term scores.
func (ev *evaluator) scoreAll(postings []index.PostingList, frequency func(index.Posting) int) matches {
	var result matches
	for _, pl := range postings {
		scores := ranker.ScoreTerm(pl, ev.params, ev.idx.DocLength, frequency)
		if result == nil {
			result = scores
			continue
		}
		result = intersect(result, scores)
	}
	return result
}

func (ev *evaluator) docIDs() []string {
	if ev.universe == nil {
		ev.universe = ev.idx.DocIDs()
	}
	return ev.universe
}

func (ev *evaluator) all() matches {
	out := make(matches)
	for _, docID := range ev.docIDs() {
		out[docID] = 0
	}
	return out
}

// phraseCounts counts, per document, the positions where the terms of
// postings occur consecutively in order.
func phraseCounts(postings []index.PostingList) map[string]int {
	positions := make([]map[string]map[int]struct{}, len(postings))
	for i, pl := range postings {
		byDoc := make(map[string]map[int]struct{}, len(pl))
		for _, p := range pl {
			set := make(map[int]struct{}, len(p.Positions))
			for _, pos := range p.Positions {
				set[pos] = struct{}{}
			}
			byDoc[p.DocID] = set
		}
		positions[i] = byDoc
	}

	counts := make(map[string]int)
	for _, first := range postings[0] {
	start:
		for _, pos := range first.Positions {
			for i := 1; i < len(positions); i++ {
				set, ok := positions[i][first.DocID]
				if !ok {
					break start
				}
				if _, ok := set[pos+i]; !ok {
					continue start
				}
			}
			counts[first.DocID]++
		}
	}
	return counts
}

func intersect(a, b matches) matches {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(matches, len(a))
	for docID, score := range a {
		if other, ok := b[docID]; ok {
			out[docID] = score + other
		}
	}
	return out
}
