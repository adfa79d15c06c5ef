// pawaRisk — odds aggregation and risk monitoring across BetPawa, SportyBet,
// and Bet9ja pre-match football markets.
//
// Architecture:
//
//	main.go                 — entry point: config, warmup, scheduler, API, shutdown
//	platform/               — the three bookmaker HTTP clients (resty, bounded retry)
//	mapping/                — canonical market catalogue: code + operator entries, per-platform indexes
//	mapper/                 — per-platform raw market → canonical MappedMarket translation
//	odds/                   — in-memory odds cache + per-cycle change classification
//	risk/                   — price-move, direction-disagreement, and availability alerts
//	store/                  — Postgres persistence: current/history upserts, runs, alerts, settings
//	scrape/                 — cycle coordinator, priority batching, scheduler, stale-run watchdog
//	broadcast/              — in-process pub/sub bus feeding the WebSocket stream
//	api/                    — HTTP read API, scrape control, WebSocket fan-out
//
// Startup order matters: mapping cache, then odds-cache warmup from the
// store, then stale-run recovery, and only then the scheduler and the API
// listener. Clients are never served from a cold cache.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pawarisk/internal/api"
	"pawarisk/internal/broadcast"
	"pawarisk/internal/config"
	"pawarisk/internal/mapper"
	"pawarisk/internal/mapping"
	"pawarisk/internal/odds"
	"pawarisk/internal/platform"
	"pawarisk/internal/risk"
	"pawarisk/internal/scrape"
	"pawarisk/internal/store"
	"pawarisk/pkg/types"
)

const warmupLookback = 2 * time.Hour

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("PAWARISK_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.New(ctx, cfg.Database.DSN, cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Error("failed to connect to store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	settings, err := st.LoadSettings(ctx)
	if err != nil {
		logger.Warn("settings load failed, using defaults", "error", err)
		settings = config.DefaultSettings()
	}

	// Warmup: mapping cache, odds cache, stale-run recovery. The API is not
	// served until all three are done.
	warmupStart := time.Now()

	mappingCache := mapping.NewCache(logger)
	dbMappings, err := st.LoadUserMappings(ctx)
	if err != nil {
		logger.Warn("operator mappings unavailable, using code mappings only", "error", err)
	}
	mappingCache.Initialize(dbMappings)

	oddsCache := odds.NewCache(logger)
	snapshots, err := st.LoadCurrentSince(ctx, time.Now().Add(-warmupLookback))
	if err != nil {
		logger.Warn("odds warmup load failed, starting cold", "error", err)
	}
	for _, snap := range snapshots {
		oddsCache.Load(snap)
	}

	failed, err := st.FailAllRunning(ctx)
	if err != nil {
		logger.Error("stale-run recovery failed", "error", err)
		os.Exit(1)
	}

	logger.Info("warmup complete",
		"duration_ms", time.Since(warmupStart).Milliseconds(),
		"snapshots", len(snapshots),
		"recovered_runs", failed,
		"mappings", mappingCache.Stats())

	bus := broadcast.NewBus(256, logger)
	defer bus.Close()

	// Cache puts feed the odds_updates topic.
	oddsCache.OnUpdate(func(eventID int64, bookmaker types.Platform) {
		bus.Publish(broadcast.TopicOddsUpdates, broadcast.NewMessage("odds_updates",
			broadcast.OddsUpdateData{EventIDs: []int64{eventID}, Source: bookmaker}))
	})

	clients := map[types.Platform]platform.Client{
		types.PlatformBetPawa: platform.NewBetPawa(cfg.Platforms.BetPawa,
			settings.BetPawaConcurrency, logger),
		types.PlatformSportyBet: platform.NewSportyBet(cfg.Platforms.SportyBet,
			settings.SportyBetConcurrency, logger),
		types.PlatformBet9ja: platform.NewBet9ja(cfg.Platforms.Bet9ja,
			settings.Bet9jaConcurrency, time.Duration(settings.Bet9jaDelayMS)*time.Millisecond, logger),
	}

	mappers := scrape.Mappers{
		BetPawa:   mapper.NewBetPawa(mappingCache, logger),
		SportyBet: mapper.NewSportyBet(mappingCache, logger),
		Bet9ja:    mapper.NewBet9ja(mappingCache, logger),
	}

	queue := store.NewQueue(cfg.Database.QueueSize, logger)
	writers := cfg.Database.WriteWorkers
	if writers <= 0 {
		writers = 1
	}
	for i := 0; i < writers; i++ {
		go store.NewWriter(st, queue, logger).Run(ctx)
	}

	detector := risk.NewDetector(logger)
	coordinator := scrape.NewCoordinator(clients, mappers, oddsCache, detector,
		st, queue, bus, cfg.Scrape, logger)
	scheduler := scrape.NewScheduler(coordinator, st, logger)
	watchdog := scrape.NewWatchdog(st, cfg.Scrape.WatchdogInterval, logger)

	go scheduler.Run(ctx)
	go watchdog.Run(ctx)
	go maintenance(ctx, st, oddsCache, logger)

	server := api.NewServer(cfg.API, oddsCache, st, mappingCache, scheduler, queue, bus, logger)
	go func() {
		if err := server.Start(ctx); err != nil {
			logger.Error("api server failed", "error", err)
			cancel()
		}
	}()

	logger.Info("pawarisk started",
		"url", fmt.Sprintf("http://localhost:%d", cfg.API.Port),
		"platforms", settings.EnabledPlatforms,
		"interval_min", settings.ScrapeIntervalMinutes)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	if err := server.Stop(); err != nil {
		logger.Error("failed to stop api server", "error", err)
	}
	cancel()
	queue.Close()
}

// maintenance runs the background sweeps: past-alert transitions and
// odds-cache pruning for long-finished events.
func maintenance(ctx context.Context, st *store.Store, cache *odds.Cache, logger *slog.Logger) {
	log := logger.With("component", "maintenance")
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := st.SweepPastAlerts(ctx); err != nil {
				log.Error("past-alert sweep failed", "error", err)
			} else if n > 0 {
				log.Info("swept past alerts", "count", n)
			}
			cache.Prune(time.Now().Add(-warmupLookback))
		}
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
