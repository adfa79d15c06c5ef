package config

import (
	"time"

	"pawarisk/pkg/types"
)

// Settings is the operator-tunable runtime configuration, stored as a
// singleton row in the settings table and loaded at startup. Every field
// has a coded default so the pipeline runs before the row exists.
type Settings struct {
	ScrapeIntervalMinutes int
	EnabledPlatforms      []types.Platform

	BetPawaConcurrency   int
	SportyBetConcurrency int
	Bet9jaConcurrency    int
	Bet9jaDelayMS        int

	BatchSize int

	OddsRetentionDays       int
	HistoricalRetentionDays int

	// Price-change severity bands, integer percent.
	PriceChangeWarningPct  int
	PriceChangeElevatedPct int
	PriceChangeCriticalPct int

	StalenessThresholdMinutes int
	ImminentWindowMinutes     int
}

// DefaultSettings returns the coded defaults used when the settings row is
// missing or partially populated.
func DefaultSettings() Settings {
	return Settings{
		ScrapeIntervalMinutes:     5,
		EnabledPlatforms:          []types.Platform{types.PlatformBetPawa, types.PlatformSportyBet, types.PlatformBet9ja},
		BetPawaConcurrency:        50,
		SportyBetConcurrency:      50,
		Bet9jaConcurrency:         15,
		Bet9jaDelayMS:             0,
		BatchSize:                 50,
		OddsRetentionDays:         14,
		HistoricalRetentionDays:   90,
		PriceChangeWarningPct:     10,
		PriceChangeElevatedPct:    20,
		PriceChangeCriticalPct:    35,
		StalenessThresholdMinutes: 10,
		ImminentWindowMinutes:     45,
	}
}

// PlatformEnabled reports whether the given bookmaker participates in cycles.
func (s Settings) PlatformEnabled(p types.Platform) bool {
	for _, e := range s.EnabledPlatforms {
		if e == p {
			return true
		}
	}
	return false
}

// Concurrency returns the per-platform semaphore size.
func (s Settings) Concurrency(p types.Platform) int {
	switch p {
	case types.PlatformBetPawa:
		return s.BetPawaConcurrency
	case types.PlatformSportyBet:
		return s.SportyBetConcurrency
	case types.PlatformBet9ja:
		return s.Bet9jaConcurrency
	}
	return 1
}

// StalenessThreshold is the watchdog's no-progress cutoff.
func (s Settings) StalenessThreshold() time.Duration {
	return time.Duration(s.StalenessThresholdMinutes) * time.Minute
}

// ImminentWindow is the pre-kickoff window inside which availability
// changes raise alerts.
func (s Settings) ImminentWindow() time.Duration {
	return time.Duration(s.ImminentWindowMinutes) * time.Minute
}

// ScrapeInterval is the scheduler period.
func (s Settings) ScrapeInterval() time.Duration {
	return time.Duration(s.ScrapeIntervalMinutes) * time.Minute
}
