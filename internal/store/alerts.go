package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"pawarisk/pkg/types"
)

// AlertFilter narrows ListAlerts. Zero values mean "no filter".
type AlertFilter struct {
	EventID   int64
	Bookmaker types.Platform
	Type      types.AlertType
	Severity  types.Severity
	Status    types.AlertStatus
	Since     time.Time
	Limit     int
}

// ListAlerts returns persisted alerts, newest first.
func (s *Store) ListAlerts(ctx context.Context, f AlertFilter) ([]types.RiskAlert, error) {
	var (
		conds []string
		args  = pgx.NamedArgs{}
	)
	if f.EventID != 0 {
		conds = append(conds, "event_id = @event_id")
		args["event_id"] = f.EventID
	}
	if f.Bookmaker != "" {
		conds = append(conds, "bookmaker_slug = @bookmaker")
		args["bookmaker"] = string(f.Bookmaker)
	}
	if f.Type != "" {
		conds = append(conds, "alert_type = @type")
		args["type"] = string(f.Type)
	}
	if f.Severity != "" {
		conds = append(conds, "severity = @severity")
		args["severity"] = string(f.Severity)
	}
	if f.Status != "" {
		conds = append(conds, "status = @status")
		args["status"] = string(f.Status)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "detected_at >= @since")
		args["since"] = f.Since
	}

	q := `SELECT id, event_id, bookmaker_slug, canonical_market_id, line,
		outcome_name, alert_type, severity, change_percent, old_value,
		new_value, competitor_direction, detected_at, status
	FROM risk_alerts`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY detected_at DESC"
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args["limit"] = limit
	q += " LIMIT @limit"

	rows, err := s.pool.Query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []types.RiskAlert
	for rows.Next() {
		var (
			a         types.RiskAlert
			bookmaker string
			line      *decimal.Decimal
			alertType string
			severity  string
			status    string
		)
		if err := rows.Scan(&a.ID, &a.EventID, &bookmaker, &a.CanonicalID, &line,
			&a.OutcomeName, &alertType, &severity, &a.ChangePercent, &a.OldValue,
			&a.NewValue, &a.CompetitorDirection, &a.DetectedAt, &status); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Bookmaker = types.Platform(bookmaker)
		a.Line = line
		a.Type = types.AlertType(alertType)
		a.Severity = types.Severity(severity)
		a.Status = types.AlertStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

// AcknowledgeAlert transitions one alert new→acknowledged. Returns false if
// the alert does not exist or is not in state new.
func (s *Store) AcknowledgeAlert(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE risk_alerts
		SET status = @acknowledged
		WHERE id = @id AND status = @new`,
		pgx.NamedArgs{
			"id":           id,
			"acknowledged": string(types.AlertAcknowledged),
			"new":          string(types.AlertNew),
		})
	if err != nil {
		return false, fmt.Errorf("acknowledge alert: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SweepPastAlerts marks alerts whose event has kicked off as past. Run by a
// periodic background sweep.
func (s *Store) SweepPastAlerts(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE risk_alerts a
		SET status = @past
		FROM events e
		WHERE e.id = a.event_id
		  AND e.kickoff_time < now()
		  AND a.status IN (@new, @acknowledged)`,
		pgx.NamedArgs{
			"past":         string(types.AlertPast),
			"new":          string(types.AlertNew),
			"acknowledged": string(types.AlertAcknowledged),
		})
	if err != nil {
		return 0, fmt.Errorf("sweep past alerts: %w", err)
	}
	return tag.RowsAffected(), nil
}
