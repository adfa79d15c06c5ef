package scrape

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pawarisk/internal/config"
	"pawarisk/internal/platform"
	"pawarisk/pkg/types"
)

func TestSchedulerTriggerReturnsBeforeCycleCompletes(t *testing.T) {
	t.Parallel()
	fs := newFakeStore(config.DefaultSettings())

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	client := &fakeClient{
		p:           types.PlatformSportyBet,
		tournaments: []platform.Tournament{{ExternalID: "sr:tournament:17", Name: "League"}},
		events:      []platform.Event{sportyFixture(500, time.Now().Add(time.Hour))},
		markets:     map[string]*platform.EventMarkets{"sr:match:500": sporty1X2Markets()},
	}
	client.onTournaments = func() {
		once.Do(func() { close(entered) })
		<-release
	}

	c, _ := newTestCoordinator(t, clients1(client), fs)
	sched := NewScheduler(c, fs, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	// Trigger must hand the cycle to the run loop and return at once,
	// even though the cycle itself is blocked inside discovery.
	if err := sched.Trigger(); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("triggered cycle never started")
	}

	if err := sched.Trigger(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("trigger mid-cycle = %v, want ErrAlreadyRunning", err)
	}
	if !sched.Running() {
		t.Error("Running() = false while a cycle is in flight")
	}

	close(release)
	select {
	case <-fs.done:
	case <-time.After(5 * time.Second):
		t.Fatal("cycle never finished")
	}
	if fs.finishedStatus() != types.RunCompleted {
		t.Errorf("stored status = %s, want completed", fs.finishedStatus())
	}
}

func TestSchedulerSecondQueuedTriggerRefused(t *testing.T) {
	t.Parallel()
	fs := newFakeStore(config.DefaultSettings())
	c, _ := newTestCoordinator(t, clients1(&fakeClient{p: types.PlatformSportyBet}), fs)
	sched := NewScheduler(c, fs, testLogger())

	// Run loop not started: the first trigger occupies the queue slot and
	// the second must be refused, not blocked.
	if err := sched.Trigger(); err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if err := sched.Trigger(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second trigger = %v, want ErrAlreadyRunning", err)
	}
}

func TestSchedulerPauseResume(t *testing.T) {
	t.Parallel()
	fs := newFakeStore(config.DefaultSettings())
	c, _ := newTestCoordinator(t, clients1(&fakeClient{p: types.PlatformSportyBet}), fs)
	sched := NewScheduler(c, fs, testLogger())

	if sched.Paused() {
		t.Error("paused at construction")
	}
	sched.Pause()
	if !sched.Paused() {
		t.Error("Pause() did not take")
	}
	sched.Resume()
	if sched.Paused() {
		t.Error("Resume() did not take")
	}
}
