package compose

import (
	"net/http"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/errors"
)

// Row is one composed result row. Its values are fixed at construction, but
// the single-value accessors fail once the owning result set is closed.
type Row struct {
	rs     *ResultSet
	index  int
	ids    map[string]string
	scores map[string]float64
}

// Index is the row's position within its page.
func (r *Row) Index() int {
	return r.index
}

// Identifier returns the identifier all selectors agree on.
func (r *Row) Identifier() (string, error) {
	if err := r.rs.checkOpen(); err != nil {
		return "", err
	}
	return reconcile(r.ids, "identifier", func(a, b string) bool { return a == b })
}

// Score returns the score all selectors agree on.
func (r *Row) Score() (float64, error) {
	if err := r.rs.checkOpen(); err != nil {
		return 0, err
	}
	return reconcile(r.scores, "score", func(a, b float64) bool { return a == b })
}

// OverallScore blends the selector scores into their running mean. A row
// without selectors scores 0.
func (r *Row) OverallScore() float64 {
	values := make([]float64, 0, len(r.scores))
	for _, name := range sortedKeys(r.scores) {
		values = append(values, r.scores[name])
	}
	return RunningMean(values)
}

func (r *Row) IdentifierFor(selector string) (string, bool) {
	id, ok := r.ids[selector]
	return id, ok
}

func (r *Row) ScoreFor(selector string) (float64, bool) {
	score, ok := r.scores[selector]
	return score, ok
}

// Identifiers returns a copy of the per-selector identifiers.
func (r *Row) Identifiers() map[string]string {
	out := make(map[string]string, len(r.ids))
	for k, v := range r.ids {
		out[k] = v
	}
	return out
}

// Scores returns a copy of the per-selector scores.
func (r *Row) Scores() map[string]float64 {
	out := make(map[string]float64, len(r.scores))
	for k, v := range r.scores {
		out[k] = v
	}
	return out
}

// Value reads one of the result set's columns from the row.
func (r *Row) Value(column string) (any, error) {
	if err := r.rs.checkOpen(); err != nil {
		return nil, err
	}
	selector, field, ok := splitColumn(column)
	if ok {
		switch field {
		case ColumnID:
			if id, found := r.ids[selector]; found {
				return id, nil
			}
		case ColumnScore:
			if score, found := r.scores[selector]; found {
				return score, nil
			}
		}
	}
	return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown column %q", column)
}

// RunningMean folds values into their mean one value at a time:
// mean_n = mean_{n-1} * (n-1)/n + value_n/n. It returns 0 for no values.
func RunningMean(values []float64) float64 {
	mean := 0.0
	for i, v := range values {
		n := float64(i + 1)
		mean = mean*(n-1)/n + v/n
	}
	return mean
}

// reconcile returns the value every selector holds, or ErrAmbiguousSelector
// naming the first pair of selectors that disagree.
func reconcile[V any](values map[string]V, field string, equal func(a, b V) bool) (V, error) {
	var zero V
	names := sortedKeys(values)
	if len(names) == 0 {
		return zero, apperrors.Newf(apperrors.ErrInternalInconsistency, http.StatusInternalServerError,
			"row has no selectors to take the %s from", field)
	}
	first := values[names[0]]
	for _, name := range names[1:] {
		if !equal(first, values[name]) {
			return zero, apperrors.Newf(apperrors.ErrAmbiguousSelector, http.StatusConflict,
				"%s differs between selectors %q (%v) and %q (%v)", field, names[0], first, name, values[name])
		}
	}
	return first, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
