package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pawarisk/internal/mapper"
)

const upsertUnmappedSQL = `
INSERT INTO unmapped_market_log (platform, raw_key, first_seen_at, occurrence_count, status, example_raw_outcomes)
VALUES (@platform, @raw_key, now(), 1, 'new', @example)
ON CONFLICT (platform, raw_key) DO UPDATE SET
	occurrence_count = unmapped_market_log.occurrence_count + 1`

// RecordUnmapped accumulates unmapped-market sightings: first sighting
// inserts a row, repeats only bump the counter. Status transitions (mapped,
// ignored) are operator actions, never touched here.
func (s *Store) RecordUnmapped(ctx context.Context, items []mapper.Unmapped) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, u := range items {
		batch.Queue(upsertUnmappedSQL, pgx.NamedArgs{
			"platform": string(u.Platform),
			"raw_key":  u.RawKey,
			"example":  u.SampleData,
		})
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("record unmapped: %w", err)
	}
	return nil
}

// UnmappedEntry is one accumulator row for the operator endpoint.
type UnmappedEntry struct {
	Platform        string `json:"platform"`
	RawKey          string `json:"raw_key"`
	FirstSeenAt     string `json:"first_seen_at"`
	OccurrenceCount int64  `json:"occurrence_count"`
	Status          string `json:"status"`
	ExampleOutcomes string `json:"example_raw_outcomes"`
}

// ListUnmapped returns accumulator rows, most frequent first.
func (s *Store) ListUnmapped(ctx context.Context, status string, limit int) ([]UnmappedEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT platform, raw_key, first_seen_at::text, occurrence_count, status, example_raw_outcomes
		FROM unmapped_market_log`
	args := pgx.NamedArgs{"limit": limit}
	if status != "" {
		q += ` WHERE status = @status`
		args["status"] = status
	}
	q += ` ORDER BY occurrence_count DESC LIMIT @limit`

	rows, err := s.pool.Query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("list unmapped: %w", err)
	}
	defer rows.Close()

	var out []UnmappedEntry
	for rows.Next() {
		var e UnmappedEntry
		if err := rows.Scan(&e.Platform, &e.RawKey, &e.FirstSeenAt,
			&e.OccurrenceCount, &e.Status, &e.ExampleOutcomes); err != nil {
			return nil, fmt.Errorf("scan unmapped: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
