package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pawarisk/internal/broadcast"
	"pawarisk/internal/config"
	"pawarisk/internal/mapper"
	"pawarisk/internal/odds"
	"pawarisk/internal/platform"
	"pawarisk/internal/risk"
	"pawarisk/internal/store"
	"pawarisk/pkg/types"
)

// Mappers bundles the three per-platform mappers.
type Mappers struct {
	BetPawa   *mapper.BetPawa
	SportyBet *mapper.SportyBet
	Bet9ja    *mapper.Bet9ja
}

// Store is the slice of the durable store the cycle pipeline touches.
// *store.Store satisfies it.
type Store interface {
	LoadSettings(ctx context.Context) (config.Settings, error)
	CreateRun(ctx context.Context) (string, error)
	FinishRun(ctx context.Context, runID string, status types.RunStatus) error
	LogPhase(ctx context.Context, runID string, phase types.Phase, platform types.Platform) error
	RecordError(ctx context.Context, runID, errorType, message string, platform types.Platform) error
	EnsureEvents(ctx context.Context, targets []types.EventTarget) error
	RecordUnmapped(ctx context.Context, items []mapper.Unmapped) error
}

// Coordinator drives one scrape cycle end to end: discovery, priority
// batching, per-event fetch/map/classify/detect, cache update, and write
// enqueue. Single-instance; the scheduler serialises cycles.
type Coordinator struct {
	clients  map[types.Platform]platform.Client
	mappers  Mappers
	cache    *odds.Cache
	detector *risk.Detector
	store    Store
	queue    *store.Queue
	bus      *broadcast.Bus
	cfg      config.ScrapeConfig
	logger   *slog.Logger
}

// NewCoordinator wires the cycle pipeline.
func NewCoordinator(
	clients map[types.Platform]platform.Client,
	mappers Mappers,
	cache *odds.Cache,
	detector *risk.Detector,
	st Store,
	queue *store.Queue,
	bus *broadcast.Bus,
	cfg config.ScrapeConfig,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		clients:  clients,
		mappers:  mappers,
		cache:    cache,
		detector: detector,
		store:    st,
		queue:    queue,
		bus:      bus,
		cfg:      cfg,
		logger:   logger.With("component", "coordinator"),
	}
}

// CycleResult summarises one finished cycle.
type CycleResult struct {
	RunID    string
	Status   types.RunStatus
	Events   int
	Batches  int
	Duration time.Duration
}

// Cycle runs one scrape cycle. Returns the terminal status even on failure;
// the error describes why a FAILED cycle failed.
func (c *Coordinator) Cycle(ctx context.Context) (CycleResult, error) {
	start := time.Now()

	settings, err := c.store.LoadSettings(ctx)
	if err != nil {
		c.logger.Warn("settings load failed, using defaults", "error", err)
		settings = config.DefaultSettings()
	}

	runID, err := c.store.CreateRun(ctx)
	if err != nil {
		return CycleResult{}, fmt.Errorf("create run: %w", err)
	}
	res := CycleResult{RunID: runID}

	c.phase(ctx, runID, types.PhaseCycleStart, "", nil)

	status, cycleErr := c.run(ctx, runID, settings, &res)
	res.Status = status
	res.Duration = time.Since(start)

	if err := c.store.FinishRun(ctx, runID, status); err != nil {
		c.logger.Error("finish run failed", "run_id", runID, "error", err)
	}
	if status == types.RunFailed {
		reason := "unknown"
		if cycleErr != nil {
			reason = cycleErr.Error()
		}
		c.phase(ctx, runID, types.PhaseCycleFailed, "", map[string]any{"reason": reason})
	} else {
		c.phase(ctx, runID, types.PhaseCycleComplete, "", map[string]any{
			"status":      string(status),
			"events":      res.Events,
			"duration_ms": res.Duration.Milliseconds(),
		})
	}

	c.logger.Info("cycle finished",
		"run_id", runID, "status", status,
		"events", res.Events, "batches", res.Batches,
		"duration_ms", res.Duration.Milliseconds())
	return res, cycleErr
}

func (c *Coordinator) run(ctx context.Context, runID string, settings config.Settings, res *CycleResult) (types.RunStatus, error) {
	enabled := make(map[types.Platform]platform.Client)
	for p, client := range c.clients {
		if settings.PlatformEnabled(p) {
			enabled[p] = client
		}
	}
	if len(enabled) == 0 {
		return types.RunFailed, errors.New("no platforms enabled")
	}

	d := discover(ctx, enabled)
	for p, err := range d.errs {
		if errors.Is(err, context.Canceled) {
			continue
		}
		c.logger.Error("discovery failed", "platform", p, "error", err)
		c.recordError(ctx, runID, err, p)
	}
	if err := ctx.Err(); err != nil {
		return types.RunFailed, errors.New("cancelled")
	}
	if len(d.errs) == len(enabled) {
		return types.RunFailed, errors.New("discovery failed on every platform")
	}

	if err := c.store.EnsureEvents(ctx, d.targets); err != nil {
		c.logger.Error("event upsert failed", "error", err)
		c.recordError(ctx, runID, err, "")
	}

	c.phase(ctx, runID, types.PhaseDiscoveryComplete, "", map[string]any{
		"events": len(d.targets), "platforms": len(enabled) - len(d.errs),
	})

	ordered := Prioritize(d.targets)
	batches := Batches(ordered, settings.BatchSize)
	res.Batches = len(batches)

	degraded := len(d.errs) > 0
	stored := 0

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return types.RunFailed, errors.New("cancelled")
		}
		c.phase(ctx, runID, types.PhaseBatchStart, "", map[string]any{
			"batch": i + 1, "of": len(batches), "events": len(batch),
		})

		wb, errCount := c.processBatch(ctx, runID, settings, batch, d.betpawaMarkets)
		if errCount > 0 {
			degraded = true
		}
		stored += len(wb.Markets)
		res.Events += len(batch)

		if len(wb.Markets) > 0 || len(wb.Alerts) > 0 {
			wb.RunID = runID
			wb.EnqueuedAt = time.Now()
			c.queue.Enqueue(wb)
		}
		c.phase(ctx, runID, types.PhaseBatchComplete, "", map[string]any{
			"batch": i + 1, "markets": len(wb.Markets), "alerts": len(wb.Alerts),
		})
	}

	if err := ctx.Err(); err != nil {
		return types.RunFailed, errors.New("cancelled")
	}
	if stored == 0 {
		return types.RunFailed, errors.New("cycle stored zero markets")
	}
	if degraded {
		return types.RunPartial, nil
	}
	return types.RunCompleted, nil
}

// processBatch scrapes one batch with bounded per-event concurrency and
// accumulates one WriteBatch.
func (c *Coordinator) processBatch(ctx context.Context, runID string, settings config.Settings, batch []types.EventTarget, betpawaMarkets map[int64]*platform.EventMarkets) (types.WriteBatch, int) {
	var (
		mu       sync.Mutex
		wb       types.WriteBatch
		failures int
	)

	concurrency := c.cfg.EventConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, target := range batch {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(target types.EventTarget) {
			defer wg.Done()
			defer func() { <-sem }()

			writes, alerts, unmapped, errCount := c.processEvent(ctx, runID, settings, target, betpawaMarkets[target.EventID])

			if len(unmapped) > 0 {
				if err := c.store.RecordUnmapped(ctx, unmapped); err != nil {
					c.logger.Error("unmapped log write failed", "error", err)
				}
			}

			mu.Lock()
			wb.Markets = append(wb.Markets, writes...)
			wb.Alerts = append(wb.Alerts, alerts...)
			failures += errCount
			mu.Unlock()
		}(target)
	}
	wg.Wait()

	return wb, failures
}

// fetchResult is one platform's raw payload for one event.
type fetchResult struct {
	platform types.Platform
	markets  *platform.EventMarkets
	err      error
	duration time.Duration
}

// processEvent runs the full per-event pipeline: parallel fetch across the
// event's platforms, then map, classify, detect, cache update. All HTTP
// completes before any store-bound work accumulates (fetch-then-store).
func (c *Coordinator) processEvent(ctx context.Context, runID string, settings config.Settings, target types.EventTarget, listed *platform.EventMarkets) ([]types.MarketCurrentWrite, []types.RiskAlert, []mapper.Unmapped, int) {
	eventCtx := ctx
	if c.cfg.EventDeadline > 0 {
		var cancel context.CancelFunc
		eventCtx, cancel = context.WithTimeout(ctx, c.cfg.EventDeadline)
		defer cancel()
	}

	c.phase(eventCtx, runID, types.PhaseEventScraping, "", map[string]any{
		"event_id": target.EventID, "coverage": target.Coverage(),
	})

	results := make(chan fetchResult, len(target.Platforms))
	var wg sync.WaitGroup
	for p, ref := range target.Platforms {
		client, ok := c.clients[p]
		if !ok || !settings.PlatformEnabled(p) {
			continue
		}
		wg.Add(1)
		go func(p types.Platform, ref types.PlatformRef) {
			defer wg.Done()
			start := time.Now()

			if p == types.PlatformBetPawa {
				// Captured at listing time; no per-event endpoint exists.
				results <- fetchResult{platform: p, markets: listed, duration: time.Since(start)}
				return
			}

			if err := client.Acquire(eventCtx); err != nil {
				results <- fetchResult{platform: p, err: err, duration: time.Since(start)}
				return
			}
			markets, err := client.FetchEvent(eventCtx, ref.FetchID)
			client.Release()
			results <- fetchResult{platform: p, markets: markets, err: err, duration: time.Since(start)}
		}(p, ref)
	}
	wg.Wait()
	close(results)

	now := time.Now()
	label := target.Home + " v " + target.Away
	perPlatform := make(map[types.Platform]odds.Classification)

	var (
		writes   []types.MarketCurrentWrite
		unmapped []mapper.Unmapped
		errCount int
	)

	for res := range results {
		detail := map[string]any{
			"event_id":    target.EventID,
			"success":     res.err == nil,
			"duration_ms": res.duration.Milliseconds(),
		}
		if res.err != nil {
			detail["error_kind"] = string(platform.KindOf(res.err))
		}
		c.phase(eventCtx, runID, types.PhaseEventScraped, res.platform, detail)

		if res.err != nil {
			errCount++
			if !errors.Is(res.err, context.Canceled) {
				c.recordError(ctx, runID, res.err, res.platform)
			}
			continue
		}
		if res.markets == nil {
			continue
		}

		var mr mapper.Result
		switch res.platform {
		case types.PlatformBetPawa:
			mr = c.mappers.BetPawa.MapEvent(target.EventID, label, res.markets.Structured)
		case types.PlatformSportyBet:
			mr = c.mappers.SportyBet.MapEvent(target.EventID, label, res.markets.Structured)
		case types.PlatformBet9ja:
			mr = c.mappers.Bet9ja.MapEvent(target.EventID, label, res.markets.Flat)
		}
		unmapped = append(unmapped, mr.Unmapped...)

		var cached *types.CachedSnapshot
		if snap, ok := c.cache.Snapshot(target.EventID, res.platform); ok {
			cached = &snap
		}
		cls := odds.Classify(target.EventID, res.platform, cached, mr.Markets, now)
		perPlatform[res.platform] = cls
		writes = append(writes, cls.Writes...)
	}

	alerts := c.detector.Detect(settings, risk.EventInput{
		EventID:     target.EventID,
		Kickoff:     target.Kickoff,
		PerPlatform: perPlatform,
	}, now)

	// Cache updates come last, after detection read the old state.
	for p, cls := range perPlatform {
		c.cache.Put(target.EventID, p, cls.Next, now)
	}

	if len(alerts) > 0 {
		c.publishAlertSummary(alerts)
	}

	return writes, alerts, unmapped, errCount
}

func (c *Coordinator) publishAlertSummary(alerts []types.RiskAlert) {
	data := broadcast.AlertSummaryData{AlertCount: len(alerts)}
	seenEvents := make(map[int64]bool)
	seenSev := make(map[types.Severity]bool)
	for _, a := range alerts {
		if !seenEvents[a.EventID] {
			seenEvents[a.EventID] = true
			data.EventIDs = append(data.EventIDs, a.EventID)
		}
		if !seenSev[a.Severity] {
			seenSev[a.Severity] = true
			data.Severities = append(data.Severities, a.Severity)
		}
	}
	c.bus.Publish(broadcast.TopicRiskAlerts, broadcast.NewMessage("risk_alerts", data))
}

// phase logs a progress transition to the store and the bus.
func (c *Coordinator) phase(ctx context.Context, runID string, phase types.Phase, p types.Platform, detail map[string]any) {
	if err := c.store.LogPhase(ctx, runID, phase, p); err != nil &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		c.logger.Error("phase log failed", "run_id", runID, "phase", phase, "error", err)
	}
	c.bus.Publish(broadcast.TopicScrapeProgress, broadcast.NewMessage("scrape_progress", broadcast.ProgressData{
		RunID:    runID,
		Phase:    phase,
		Platform: p,
		Detail:   detail,
	}))
}

func (c *Coordinator) recordError(ctx context.Context, runID string, err error, p types.Platform) {
	if rerr := c.store.RecordError(ctx, runID, string(platform.KindOf(err)), err.Error(), p); rerr != nil {
		c.logger.Error("error record failed", "run_id", runID, "error", rerr)
	}
}
