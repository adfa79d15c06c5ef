package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pawarisk/pkg/types"
)

const upsertCurrentSQL = `
INSERT INTO odds_market_current (
	event_id, bookmaker_slug, canonical_market_id, market_name, line,
	handicap, outcomes, market_groups, unavailable_at,
	last_updated_at, last_confirmed_at
) VALUES (
	@event_id, @bookmaker_slug, @canonical_market_id, @market_name, @line,
	@handicap, @outcomes, @market_groups, @unavailable_at,
	@captured_at, @captured_at
)
ON CONFLICT (event_id, bookmaker_slug, canonical_market_id, (COALESCE(line, 0)))
DO UPDATE SET
	market_name     = EXCLUDED.market_name,
	handicap        = EXCLUDED.handicap,
	outcomes        = EXCLUDED.outcomes,
	market_groups   = EXCLUDED.market_groups,
	unavailable_at  = EXCLUDED.unavailable_at,
	last_confirmed_at = EXCLUDED.last_confirmed_at,
	last_updated_at = CASE WHEN @changed::boolean
		THEN EXCLUDED.last_updated_at
		ELSE odds_market_current.last_updated_at END`

const insertHistorySQL = `
INSERT INTO odds_market_history (
	event_id, bookmaker_slug, canonical_market_id, market_name, line,
	handicap, outcomes, market_groups, unavailable_at, captured_at
) VALUES (
	@event_id, @bookmaker_slug, @canonical_market_id, @market_name, @line,
	@handicap, @outcomes, @market_groups, @unavailable_at, @captured_at
)`

const insertAlertSQL = `
INSERT INTO risk_alerts (
	event_id, bookmaker_slug, canonical_market_id, line, outcome_name,
	alert_type, severity, change_percent, old_value, new_value,
	competitor_direction, detected_at, status
) VALUES (
	@event_id, @bookmaker_slug, @canonical_market_id, @line, @outcome_name,
	@alert_type, @severity, @change_percent, @old_value, @new_value,
	@competitor_direction, @detected_at, @status
)`

// Writer is the write-queue consumer. One goroutine per writer; each batch
// gets a fresh transaction, so a poisoned batch cannot leak state into the
// next one.
type Writer struct {
	store  *Store
	queue  *Queue
	logger *slog.Logger

	maxRetryTime time.Duration
}

// NewWriter creates a writer over the shared store and queue.
func NewWriter(store *Store, queue *Queue, logger *slog.Logger) *Writer {
	return &Writer{
		store:        store,
		queue:        queue,
		logger:       logger.With("component", "write-handler"),
		maxRetryTime: 30 * time.Second,
	}
}

// Run consumes batches until the queue closes or ctx is cancelled.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.queue.Dequeue():
			if !ok {
				return
			}
			w.handle(ctx, batch)
		}
	}
}

// handle writes one batch, retrying transient failures with exponential
// backoff, then dropping the batch so the stream keeps moving. Integrity
// violations are dropped immediately; retrying a constraint breach only
// burns the backoff budget.
func (w *Writer) handle(ctx context.Context, batch types.WriteBatch) {
	start := time.Now()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, classifyWriteErr(w.applyBatch(ctx, batch))
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(w.maxRetryTime),
	)
	if err != nil {
		w.logger.Error("batch dropped after retries",
			"run_id", batch.RunID,
			"markets", len(batch.Markets),
			"alerts", len(batch.Alerts),
			"error", err)
		return
	}

	w.logger.Debug("batch committed",
		"run_id", batch.RunID,
		"markets", len(batch.Markets),
		"alerts", len(batch.Alerts),
		"duration_ms", time.Since(start).Milliseconds(),
		"queue_depth", w.queue.Depth())
}

// classifyWriteErr marks Postgres integrity violations (class 23) permanent
// so the retry loop gives up on them at once; everything else is assumed
// transient.
func classifyWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return backoff.Permanent(err)
	}
	return err
}

// applyBatch runs the whole batch in one transaction: current upserts,
// history rows for changed markets, then alerts.
func (w *Writer) applyBatch(ctx context.Context, batch types.WriteBatch) error {
	tx, err := w.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, m := range batch.Markets {
		args, err := marketArgs(m)
		if err != nil {
			// Serialisation failures are permanent; skip the row, keep
			// the batch.
			w.logger.Error("skipping unserialisable market",
				"event_id", m.EventID, "market", m.CanonicalID, "error", err)
			continue
		}
		if _, err := tx.Exec(ctx, upsertCurrentSQL, args); err != nil {
			return fmt.Errorf("upsert current %s/%s: %w", m.Bookmaker, m.CanonicalID, err)
		}
		if !m.Changed {
			continue
		}
		delete(args, "changed")
		if _, err := tx.Exec(ctx, insertHistorySQL, args); err != nil {
			return fmt.Errorf("insert history %s/%s: %w", m.Bookmaker, m.CanonicalID, err)
		}
	}

	for _, a := range batch.Alerts {
		if _, err := tx.Exec(ctx, insertAlertSQL, alertArgs(a)); err != nil {
			return fmt.Errorf("insert alert %s/%s: %w", a.Bookmaker, a.CanonicalID, err)
		}
	}

	return tx.Commit(ctx)
}

func marketArgs(m types.MarketCurrentWrite) (pgx.NamedArgs, error) {
	outcomes, err := json.Marshal(m.Outcomes)
	if err != nil {
		return nil, fmt.Errorf("marshal outcomes: %w", err)
	}
	var handicap []byte
	if m.Handicap != nil {
		if handicap, err = json.Marshal(m.Handicap); err != nil {
			return nil, fmt.Errorf("marshal handicap: %w", err)
		}
	}
	return pgx.NamedArgs{
		"event_id":            m.EventID,
		"bookmaker_slug":      string(m.Bookmaker),
		"canonical_market_id": m.CanonicalID,
		"market_name":         m.Name,
		"line":                m.Line,
		"handicap":            handicap,
		"outcomes":            outcomes,
		"market_groups":       m.Groups,
		"unavailable_at":      m.UnavailableAt,
		"captured_at":         m.CapturedAt,
		"changed":             m.Changed,
	}, nil
}

func alertArgs(a types.RiskAlert) pgx.NamedArgs {
	return pgx.NamedArgs{
		"event_id":             a.EventID,
		"bookmaker_slug":       string(a.Bookmaker),
		"canonical_market_id":  a.CanonicalID,
		"line":                 a.Line,
		"outcome_name":         a.OutcomeName,
		"alert_type":           string(a.Type),
		"severity":             string(a.Severity),
		"change_percent":       a.ChangePercent,
		"old_value":            a.OldValue,
		"new_value":            a.NewValue,
		"competitor_direction": a.CompetitorDirection,
		"detected_at":          a.DetectedAt,
		"status":               string(a.Status),
	}
}
