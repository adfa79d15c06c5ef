package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pawarisk/pkg/types"
)

const upsertEventSQL = `
INSERT INTO events (id, sportradar_id, kickoff_time, home_team, away_team, tournament, updated_at)
VALUES (@id, @sportradar_id, @kickoff_time, @home_team, @away_team, @tournament, now())
ON CONFLICT (id) DO UPDATE SET
	kickoff_time = EXCLUDED.kickoff_time,
	home_team    = EXCLUDED.home_team,
	away_team    = EXCLUDED.away_team,
	tournament   = EXCLUDED.tournament,
	updated_at   = now()`

// EnsureEvents upserts the discovered targets into the events table so
// market rows always have an event to join against.
func (s *Store) EnsureEvents(ctx context.Context, targets []types.EventTarget) error {
	if len(targets) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range targets {
		var sr *int64
		if t.SportradarID != 0 {
			v := t.SportradarID
			sr = &v
		}
		batch.Queue(upsertEventSQL, pgx.NamedArgs{
			"id":            t.EventID,
			"sportradar_id": sr,
			"kickoff_time":  t.Kickoff,
			"home_team":     t.Home,
			"away_team":     t.Away,
			"tournament":    t.Tournament,
		})
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("ensure events: %w", err)
	}
	return nil
}
