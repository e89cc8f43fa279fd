// Package postgres opens the lib/pq connection pool the corpus loader reads
// documents through.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/config"
)

const connectTimeout = 5 * time.Second

type Client struct {
	DB     *sql.DB
	target string
}

// New opens the pool and waits for one successful ping, bounded by ctx and
// connectTimeout.
func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	target := fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres %s: %w", target, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres %s: %w", target, err)
	}
	slog.Default().With("component", "postgres").Info("connected",
		"target", target, "max_open_conns", cfg.MaxOpenConns)
	return &Client{DB: db, target: target}, nil
}

// Ping checks that the pool can reach the server.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres %s: %w", c.target, err)
	}
	return nil
}

// InUse returns how many pooled connections are currently checked out.
func (c *Client) InUse() int {
	return c.DB.Stats().InUse
}

func (c *Client) Close() error {
	return c.DB.Close()
}
