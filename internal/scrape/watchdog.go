package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pawarisk/internal/store"
)

// Watchdog fails RUNNING runs that stopped making phase-log progress. The
// transition is optimistic: the store re-checks the status inside the
// failover transaction, so a run the coordinator finished concurrently is
// left alone.
type Watchdog struct {
	store    *store.Store
	interval time.Duration
	logger   *slog.Logger
}

// NewWatchdog creates a watchdog ticking at the given interval.
func NewWatchdog(st *store.Store, interval time.Duration, logger *slog.Logger) *Watchdog {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &Watchdog{
		store:    st,
		interval: interval,
		logger:   logger.With("component", "watchdog"),
	}
}

// Run ticks until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Watchdog) sweep(ctx context.Context) {
	settings, err := w.store.LoadSettings(ctx)
	if err != nil {
		w.logger.Error("settings load failed", "error", err)
		return
	}

	stale, err := w.store.StaleRuns(ctx, settings.StalenessThreshold())
	if err != nil {
		w.logger.Error("stale-run query failed", "error", err)
		return
	}

	for _, run := range stale {
		msg := fmt.Sprintf("no progress since %s (phase %s",
			run.LastActivity.UTC().Format(time.RFC3339), run.LastPhase)
		if run.LastPlatform != "" {
			msg += ", platform " + run.LastPlatform
		}
		msg += ")"

		ok, err := w.store.FailRunIfRunning(ctx, run.ID, "stale", msg)
		if err != nil {
			w.logger.Error("stale failover failed", "run_id", run.ID, "error", err)
			continue
		}
		if ok {
			w.logger.Warn("failed stale run", "run_id", run.ID, "last_activity", run.LastActivity)
		}
	}
}
