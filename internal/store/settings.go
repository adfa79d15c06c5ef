package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pawarisk/internal/config"
	"pawarisk/pkg/types"
)

// LoadSettings reads the singleton settings row, falling back to coded
// defaults when the row is missing.
func (s *Store) LoadSettings(ctx context.Context) (config.Settings, error) {
	out := config.DefaultSettings()

	var enabled []string
	err := s.pool.QueryRow(ctx, `
		SELECT scrape_interval_minutes, enabled_platforms,
			betpawa_concurrency, sportybet_concurrency, bet9ja_concurrency,
			bet9ja_delay_ms, batch_size,
			odds_retention_days, historical_retention_days,
			price_change_threshold_pct_warning,
			price_change_threshold_pct_elevated,
			price_change_threshold_pct_critical,
			staleness_threshold_minutes, imminent_window_minutes
		FROM settings
		WHERE id = 1`).Scan(
		&out.ScrapeIntervalMinutes, &enabled,
		&out.BetPawaConcurrency, &out.SportyBetConcurrency, &out.Bet9jaConcurrency,
		&out.Bet9jaDelayMS, &out.BatchSize,
		&out.OddsRetentionDays, &out.HistoricalRetentionDays,
		&out.PriceChangeWarningPct,
		&out.PriceChangeElevatedPct,
		&out.PriceChangeCriticalPct,
		&out.StalenessThresholdMinutes, &out.ImminentWindowMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Warn("settings row missing, using defaults")
		return config.DefaultSettings(), nil
	}
	if err != nil {
		return config.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	if len(enabled) > 0 {
		out.EnabledPlatforms = out.EnabledPlatforms[:0]
		for _, p := range enabled {
			out.EnabledPlatforms = append(out.EnabledPlatforms, types.Platform(p))
		}
	}
	return out, nil
}
