// Package store is the durable persistence layer on Postgres.
//
// Layout:
//
//   - odds_market_current: one row per (event, bookmaker, market, line),
//     upserted every cycle
//   - odds_market_history: append-only change log, partitioned monthly
//   - scrape_runs / scrape_phase_logs / scrape_errors: run lifecycle
//   - risk_alerts, unmapped_market_log, user_market_mappings, settings
//
// All writes from the pipeline go through the bounded Queue and the Writer;
// read paths (API fallback, warmup) query the pool directly.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps the connection pool. Sub-stores (runs, alerts, mappings) hang
// off it so callers share one pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to Postgres and verifies the connection.
func New(ctx context.Context, dsn string, maxConns int, logger *slog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &Store{pool: pool, logger: logger.With("component", "store")}, nil
}

// Pool exposes the underlying pool for the migration runner.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Ping verifies connectivity, for the health endpoint.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close shuts the pool down.
func (s *Store) Close() { s.pool.Close() }
