package store

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"pawarisk/pkg/types"
)

const selectCurrentSinceSQL = `
SELECT c.event_id, c.bookmaker_slug, c.canonical_market_id, c.market_name,
	c.line, c.handicap, c.outcomes, c.market_groups, c.unavailable_at,
	c.last_confirmed_at
FROM odds_market_current c
JOIN events e ON e.id = c.event_id
WHERE e.kickoff_time > @cutoff`

const selectCurrentForEventsSQL = `
SELECT event_id, bookmaker_slug, canonical_market_id, market_name,
	line, handicap, outcomes, market_groups, unavailable_at,
	last_confirmed_at
FROM odds_market_current
WHERE event_id = ANY(@event_ids)`

// LoadCurrentSince reads current rows for events kicking off after cutoff
// and folds them into snapshots keyed by (event, bookmaker). Snapshot
// timestamps come from last_confirmed_at, the newest across the rows, so
// warmup preserves real freshness.
func (s *Store) LoadCurrentSince(ctx context.Context, cutoff time.Time) ([]types.CachedSnapshot, error) {
	rows, err := s.pool.Query(ctx, selectCurrentSinceSQL, pgx.NamedArgs{"cutoff": cutoff})
	if err != nil {
		return nil, fmt.Errorf("query current: %w", err)
	}
	defer rows.Close()
	return foldSnapshots(rows)
}

// CurrentForEvents reads snapshots for a set of events, used when the odds
// cache misses.
func (s *Store) CurrentForEvents(ctx context.Context, eventIDs []int64) ([]types.CachedSnapshot, error) {
	rows, err := s.pool.Query(ctx, selectCurrentForEventsSQL, pgx.NamedArgs{"event_ids": eventIDs})
	if err != nil {
		return nil, fmt.Errorf("query current: %w", err)
	}
	defer rows.Close()
	return foldSnapshots(rows)
}

func foldSnapshots(rows pgx.Rows) ([]types.CachedSnapshot, error) {
	type pair struct {
		eventID   int64
		bookmaker types.Platform
	}
	snaps := make(map[pair]*types.CachedSnapshot)

	for rows.Next() {
		var (
			eventID       int64
			bookmaker     string
			market        types.CachedMarket
			line          *decimal.Decimal
			handicapJSON  []byte
			outcomesJSON  []byte
			groups        []string
			unavailableAt *time.Time
			confirmedAt   time.Time
		)
		if err := rows.Scan(&eventID, &bookmaker, &market.CanonicalID, &market.Name,
			&line, &handicapJSON, &outcomesJSON, &groups, &unavailableAt, &confirmedAt); err != nil {
			return nil, fmt.Errorf("scan current row: %w", err)
		}
		market.Line = line
		market.Groups = groups
		market.UnavailableAt = unavailableAt
		if len(handicapJSON) > 0 {
			market.Handicap = &types.Handicap{}
			if err := json.Unmarshal(handicapJSON, market.Handicap); err != nil {
				return nil, fmt.Errorf("decode handicap: %w", err)
			}
		}
		if err := json.Unmarshal(outcomesJSON, &market.Outcomes); err != nil {
			return nil, fmt.Errorf("decode outcomes: %w", err)
		}

		k := pair{eventID: eventID, bookmaker: types.Platform(bookmaker)}
		snap, ok := snaps[k]
		if !ok {
			snap = &types.CachedSnapshot{
				EventID:   eventID,
				Bookmaker: k.bookmaker,
				Markets:   make(map[types.MarketKey]types.CachedMarket),
			}
			snaps[k] = snap
		}
		snap.Markets[market.Key()] = market
		if confirmedAt.After(snap.LastConfirmedAt) {
			snap.LastConfirmedAt = confirmedAt
			snap.CapturedAt = confirmedAt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate current rows: %w", err)
	}

	out := make([]types.CachedSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, *snap)
	}
	return out, nil
}
