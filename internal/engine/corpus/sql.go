package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/resilience"
)

var errBadTable = errors.New("invalid table name")

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// LoadSQL reads every row of table, which needs id, source, title and body
// columns. Transient failures are retried with backoff.
func LoadSQL(ctx context.Context, db *sql.DB, table string) ([]Document, error) {
	query, err := selectDocuments(table)
	if err != nil {
		return nil, err
	}
	docs, err := resilience.Retry(ctx, "load-corpus", resilience.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 200 * time.Millisecond,
		Retryable: func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
	}, func(ctx context.Context) ([]Document, error) {
		return queryDocuments(ctx, db, query)
	})
	if err != nil {
		return nil, fmt.Errorf("loading corpus from %s: %w", table, err)
	}
	if err := checkDocuments(docs); err != nil {
		return nil, fmt.Errorf("corpus table %s: %w", table, err)
	}
	return docs, nil
}

func selectDocuments(table string) (string, error) {
	if !tableName.MatchString(table) {
		return "", fmt.Errorf("%w: %q", errBadTable, table)
	}
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return fmt.Sprintf(
		`SELECT id, source, COALESCE(title, ''), COALESCE(body, '') FROM %s ORDER BY source, id`,
		strings.Join(parts, "."),
	), nil
}

func queryDocuments(ctx context.Context, db *sql.DB, query string) ([]Document, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Source, &d.Title, &d.Body); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
