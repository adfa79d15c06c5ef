package store

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"pawarisk/internal/mapping"
	"pawarisk/pkg/types"
)

// LoadUserMappings reads operator-created market mappings, including
// soft-deleted ones; the catalogue merge decides what wins.
func (s *Store) LoadUserMappings(ctx context.Context) ([]mapping.MarketMapping, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT canonical_id, name, handler, betpawa_id, sportybet_id, bet9ja_key,
			outcomes, priority, is_active
		FROM user_market_mappings`)
	if err != nil {
		return nil, fmt.Errorf("load user mappings: %w", err)
	}
	defer rows.Close()

	var out []mapping.MarketMapping
	for rows.Next() {
		var (
			m            mapping.MarketMapping
			handler      string
			betpawaID    *string
			sportybetID  *string
			bet9jaKey    *string
			outcomesJSON []byte
		)
		if err := rows.Scan(&m.CanonicalID, &m.Name, &handler, &betpawaID,
			&sportybetID, &bet9jaKey, &outcomesJSON, &m.Priority, &m.Active); err != nil {
			return nil, fmt.Errorf("scan user mapping: %w", err)
		}
		m.Handler = types.HandlerKind(handler)
		if betpawaID != nil {
			m.BetPawaID = *betpawaID
		}
		if sportybetID != nil {
			m.SportyBetID = *sportybetID
		}
		if bet9jaKey != nil {
			m.Bet9jaKey = *bet9jaKey
		}
		if len(outcomesJSON) > 0 {
			if err := json.Unmarshal(outcomesJSON, &m.Outcomes); err != nil {
				return nil, fmt.Errorf("decode mapping outcomes %s: %w", m.CanonicalID, err)
			}
		}
		m.Source = "db"
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveUserMapping upserts an operator mapping and appends an audit row in
// the same transaction.
func (s *Store) SaveUserMapping(ctx context.Context, m mapping.MarketMapping, actor string) error {
	outcomes, err := json.Marshal(m.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	args := pgx.NamedArgs{
		"canonical_id": m.CanonicalID,
		"name":         m.Name,
		"handler":      string(m.Handler),
		"betpawa_id":   nullable(m.BetPawaID),
		"sportybet_id": nullable(m.SportyBetID),
		"bet9ja_key":   nullable(m.Bet9jaKey),
		"outcomes":     outcomes,
		"priority":     m.Priority,
		"is_active":    m.Active,
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO user_market_mappings (
			canonical_id, name, handler, betpawa_id, sportybet_id, bet9ja_key,
			outcomes, priority, is_active, created_at, updated_at
		) VALUES (
			@canonical_id, @name, @handler, @betpawa_id, @sportybet_id, @bet9ja_key,
			@outcomes, @priority, @is_active, now(), now()
		)
		ON CONFLICT (canonical_id) DO UPDATE SET
			name = EXCLUDED.name,
			handler = EXCLUDED.handler,
			betpawa_id = EXCLUDED.betpawa_id,
			sportybet_id = EXCLUDED.sportybet_id,
			bet9ja_key = EXCLUDED.bet9ja_key,
			outcomes = EXCLUDED.outcomes,
			priority = EXCLUDED.priority,
			is_active = EXCLUDED.is_active,
			updated_at = now()`, args); err != nil {
		return fmt.Errorf("upsert user mapping: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO mapping_audit_log (canonical_id, action, actor, payload, occurred_at)
		VALUES (@canonical_id, 'upsert', @actor, @payload, now())`,
		pgx.NamedArgs{"canonical_id": m.CanonicalID, "actor": actor, "payload": outcomes}); err != nil {
		return fmt.Errorf("audit mapping: %w", err)
	}

	return tx.Commit(ctx)
}

// DeactivateUserMapping soft-deletes an operator mapping.
func (s *Store) DeactivateUserMapping(ctx context.Context, canonicalID, actor string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE user_market_mappings
		SET is_active = false, updated_at = now()
		WHERE canonical_id = @canonical_id`,
		pgx.NamedArgs{"canonical_id": canonicalID}); err != nil {
		return fmt.Errorf("deactivate mapping: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO mapping_audit_log (canonical_id, action, actor, occurred_at)
		VALUES (@canonical_id, 'deactivate', @actor, now())`,
		pgx.NamedArgs{"canonical_id": canonicalID, "actor": actor}); err != nil {
		return fmt.Errorf("audit mapping: %w", err)
	}
	return tx.Commit(ctx)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
