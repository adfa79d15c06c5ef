package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"pawarisk/pkg/types"
)

// activeRunStatuses are the non-terminal run states: a PENDING run has been
// inserted but logged no phase yet, a RUNNING one is mid-cycle. The watchdog
// and the startup sweep treat both as failover candidates.
var activeRunStatuses = []string{string(types.RunPending), string(types.RunRunning)}

const createRunSQL = `
INSERT INTO scrape_runs (id, status, started_at)
VALUES (@id, @pending, now())`

const finishRunSQL = `
UPDATE scrape_runs
SET status = @status, completed_at = now()
WHERE id = @id`

const insertPhaseLogSQL = `
INSERT INTO scrape_phase_logs (scrape_run_id, phase, platform, entered_at)
VALUES (@run_id, @phase, @platform, now())`

// mirrorPhaseSQL also promotes PENDING to RUNNING: entering the first phase
// is the state-machine transition into the cycle proper.
const mirrorPhaseSQL = `
UPDATE scrape_runs
SET current_phase = @phase,
	current_platform = @platform,
	status = CASE WHEN status = @pending THEN @running ELSE status END
WHERE id = @run_id`

const staleRunsSQL = `
SELECT r.id,
	COALESCE(MAX(p.entered_at), r.started_at) AS last_activity,
	COALESCE(r.current_phase, '') AS last_phase,
	COALESCE(r.current_platform, '') AS last_platform
FROM scrape_runs r
LEFT JOIN scrape_phase_logs p ON p.scrape_run_id = r.id
WHERE r.status = ANY(@active)
GROUP BY r.id
HAVING COALESCE(MAX(p.entered_at), r.started_at) < now() - @threshold::interval`

const failRunSQL = `
UPDATE scrape_runs
SET status = @failed, completed_at = now()
WHERE id = @id AND status = ANY(@active)`

const failAllActiveSQL = `
UPDATE scrape_runs
SET status = @failed, completed_at = now()
WHERE status = ANY(@active)`

// CreateRun inserts a new scrape run in PENDING state and returns its id.
// The run moves to RUNNING when its first phase is logged.
func (s *Store) CreateRun(ctx context.Context) (string, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx, createRunSQL,
		pgx.NamedArgs{"id": id, "pending": string(types.RunPending)})
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// FinishRun records the terminal status of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, status types.RunStatus) error {
	_, err := s.pool.Exec(ctx, finishRunSQL,
		pgx.NamedArgs{"id": runID, "status": string(status)})
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// LogPhase appends a phase-log row and mirrors the phase onto the run row,
// promoting a PENDING run to RUNNING. Phase logs double as the activity
// heartbeat the watchdog reads.
func (s *Store) LogPhase(ctx context.Context, runID string, phase types.Phase, platform types.Platform) error {
	var p *string
	if platform != "" {
		v := string(platform)
		p = &v
	}
	batch := &pgx.Batch{}
	batch.Queue(insertPhaseLogSQL,
		pgx.NamedArgs{"run_id": runID, "phase": string(phase), "platform": p})
	batch.Queue(mirrorPhaseSQL,
		pgx.NamedArgs{
			"run_id":   runID,
			"phase":    string(phase),
			"platform": p,
			"pending":  string(types.RunPending),
			"running":  string(types.RunRunning),
		})

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("log phase: %w", err)
	}
	return nil
}

// RecordError appends a scrape error row.
func (s *Store) RecordError(ctx context.Context, runID, errorType, message string, platform types.Platform) error {
	var p *string
	if platform != "" {
		v := string(platform)
		p = &v
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scrape_errors (scrape_run_id, error_type, error_message, platform, occurred_at)
		VALUES (@run_id, @error_type, @error_message, @platform, now())`,
		pgx.NamedArgs{"run_id": runID, "error_type": errorType, "error_message": message, "platform": p})
	if err != nil {
		return fmt.Errorf("record error: %w", err)
	}
	return nil
}

// StaleRun is one active run the watchdog flagged.
type StaleRun struct {
	ID           string
	LastActivity time.Time
	LastPhase    string
	LastPlatform string
}

// StaleRuns lists active runs whose last activity (newest phase log, else
// started_at) is older than the threshold.
func (s *Store) StaleRuns(ctx context.Context, threshold time.Duration) ([]StaleRun, error) {
	rows, err := s.pool.Query(ctx, staleRunsSQL,
		pgx.NamedArgs{"active": activeRunStatuses, "threshold": threshold})
	if err != nil {
		return nil, fmt.Errorf("list stale runs: %w", err)
	}
	defer rows.Close()

	var out []StaleRun
	for rows.Next() {
		var r StaleRun
		if err := rows.Scan(&r.ID, &r.LastActivity, &r.LastPhase, &r.LastPlatform); err != nil {
			return nil, fmt.Errorf("scan stale run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FailRunIfRunning transitions one active run to FAILED and records the
// error in the same transaction. The status re-check under the transaction
// makes the failover optimistic: if the coordinator finished concurrently,
// nothing happens and ok is false.
func (s *Store) FailRunIfRunning(ctx context.Context, runID, errorType, message string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, failRunSQL,
		pgx.NamedArgs{
			"id":     runID,
			"failed": string(types.RunFailed),
			"active": activeRunStatuses,
		})
	if err != nil {
		return false, fmt.Errorf("fail run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO scrape_errors (scrape_run_id, error_type, error_message, occurred_at)
		VALUES (@run_id, @error_type, @error_message, now())`,
		pgx.NamedArgs{"run_id": runID, "error_type": errorType, "error_message": message}); err != nil {
		return false, fmt.Errorf("record stale error: %w", err)
	}

	return true, tx.Commit(ctx)
}

// FailAllRunning marks every active run FAILED. Called once at startup:
// anything still PENDING or RUNNING belonged to a crashed process.
func (s *Store) FailAllRunning(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, failAllActiveSQL,
		pgx.NamedArgs{"failed": string(types.RunFailed), "active": activeRunStatuses})
	if err != nil {
		return 0, fmt.Errorf("fail running runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
