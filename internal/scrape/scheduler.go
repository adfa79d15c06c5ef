package scrape

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned by Trigger while a cycle is in flight or
// already queued.
var ErrAlreadyRunning = errors.New("a scrape cycle is already running")

// Scheduler runs cycles on the configured interval and accepts manual
// triggers. At most one cycle runs at a time; a trigger during a running
// cycle is refused, a tick during one is skipped.
type Scheduler struct {
	coordinator *Coordinator
	store       Store
	logger      *slog.Logger

	mu      sync.Mutex
	running bool
	paused  bool
	trigger chan struct{}
}

// NewScheduler creates a scheduler around the coordinator.
func NewScheduler(coordinator *Coordinator, st Store, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		coordinator: coordinator,
		store:       st,
		logger:      logger.With("component", "scheduler"),
		trigger:     make(chan struct{}, 1),
	}
}

// Run loops until ctx is cancelled. The interval is re-read from settings
// after every cycle, so operators can retune without a restart.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		interval := s.interval(ctx)
		timer := time.NewTimer(interval)

		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case <-s.trigger:
			timer.Stop()
			if err := s.runCycle(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
				s.logger.Error("triggered cycle failed", "error", err)
			}

		case <-timer.C:
			if s.Paused() {
				continue
			}
			if err := s.runCycle(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
				s.logger.Error("scheduled cycle failed", "error", err)
			}
		}
	}
}

// Trigger queues a one-off cycle and returns immediately; the cycle runs
// asynchronously on the Run loop. Refused while one is already running or
// queued. Callers watch the scrape_progress topic for the outcome.
func (s *Scheduler) Trigger() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	select {
	case s.trigger <- struct{}{}:
		return nil
	default:
		return ErrAlreadyRunning
	}
}

// Pause stops scheduled cycles; manual triggers still work.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	s.logger.Info("scheduler paused")
}

// Resume re-arms scheduled cycles.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.logger.Info("scheduler resumed")
}

// Paused reports whether scheduled cycles are suspended.
func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Running reports whether a cycle is in flight.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runCycle(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	_, err := s.coordinator.Cycle(ctx)
	return err
}

func (s *Scheduler) interval(ctx context.Context) time.Duration {
	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		s.logger.Warn("settings load failed, keeping default interval", "error", err)
		return 5 * time.Minute
	}
	if settings.ScrapeIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return settings.ScrapeInterval()
}
