package odds

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"pawarisk/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func markets1X2() map[types.MarketKey]types.CachedMarket {
	m := types.CachedMarket{
		CanonicalID: "1x2",
		Name:        "1X2 | Full Time",
		Outcomes: []types.MappedOutcome{
			{Name: "home", Odds: dec("2.0"), IsActive: true},
			{Name: "draw", Odds: dec("3.3"), IsActive: true},
			{Name: "away", Odds: dec("3.5"), IsActive: true},
		},
	}
	return map[types.MarketKey]types.CachedMarket{m.Key(): m}
}

func TestCachePutAndSnapshot(t *testing.T) {
	t.Parallel()
	c := NewCache(testLogger())
	now := time.Now()

	c.Put(10, types.PlatformBetPawa, markets1X2(), now)

	snap, ok := c.Snapshot(10, types.PlatformBetPawa)
	if !ok {
		t.Fatal("snapshot missing after put")
	}
	if !snap.CapturedAt.Equal(now) || !snap.LastConfirmedAt.Equal(now) {
		t.Errorf("timestamps = %v/%v, want both %v", snap.CapturedAt, snap.LastConfirmedAt, now)
	}
	if len(snap.Markets) != 1 {
		t.Errorf("markets = %d, want 1", len(snap.Markets))
	}

	if _, ok := c.Snapshot(10, types.PlatformSportyBet); ok {
		t.Error("snapshot leaked across bookmakers")
	}
}

func TestCacheSnapshotIsACopy(t *testing.T) {
	t.Parallel()
	c := NewCache(testLogger())
	c.Put(10, types.PlatformBetPawa, markets1X2(), time.Now())

	snap, _ := c.Snapshot(10, types.PlatformBetPawa)
	for k := range snap.Markets {
		delete(snap.Markets, k)
	}

	again, _ := c.Snapshot(10, types.PlatformBetPawa)
	if len(again.Markets) != 1 {
		t.Error("mutating a returned snapshot reached the cache")
	}
}

func TestCacheCallbacks(t *testing.T) {
	t.Parallel()
	c := NewCache(testLogger())

	type update struct {
		eventID   int64
		bookmaker types.Platform
	}
	var got []update
	c.OnUpdate(func(eventID int64, bookmaker types.Platform) {
		panic("first callback fails")
	})
	c.OnUpdate(func(eventID int64, bookmaker types.Platform) {
		got = append(got, update{eventID, bookmaker})
	})

	c.Put(10, types.PlatformSportyBet, markets1X2(), time.Now())

	if len(got) != 1 || got[0].eventID != 10 || got[0].bookmaker != types.PlatformSportyBet {
		t.Errorf("callbacks got %v, want the panicking one isolated", got)
	}
}

func TestCacheLoadSkipsCallbacks(t *testing.T) {
	t.Parallel()
	c := NewCache(testLogger())

	fired := false
	c.OnUpdate(func(int64, types.Platform) { fired = true })

	confirmed := time.Now().Add(-30 * time.Minute)
	c.Load(types.CachedSnapshot{
		EventID:         11,
		Bookmaker:       types.PlatformBetPawa,
		CapturedAt:      confirmed,
		LastConfirmedAt: confirmed,
		Markets:         markets1X2(),
	})

	if fired {
		t.Error("warmup load fired update callbacks")
	}
	snap, ok := c.Snapshot(11, types.PlatformBetPawa)
	if !ok || !snap.LastConfirmedAt.Equal(confirmed) {
		t.Error("warmup load must preserve stored timestamps")
	}
}

func TestCacheBetPawaSnapshots(t *testing.T) {
	t.Parallel()
	c := NewCache(testLogger())
	now := time.Now()
	c.Put(1, types.PlatformBetPawa, markets1X2(), now)
	c.Put(2, types.PlatformBetPawa, markets1X2(), now)
	c.Put(3, types.PlatformSportyBet, markets1X2(), now)

	got := c.BetPawaSnapshots([]int64{1, 2, 3, 4})
	if len(got) != 2 {
		t.Errorf("snapshots = %d, want 2 reference-platform entries", len(got))
	}
}

func TestCachePrune(t *testing.T) {
	t.Parallel()
	c := NewCache(testLogger())
	old := time.Now().Add(-3 * time.Hour)
	c.Put(1, types.PlatformBetPawa, markets1X2(), old)
	c.Put(2, types.PlatformBetPawa, markets1X2(), time.Now())

	if removed := c.Prune(time.Now().Add(-2 * time.Hour)); removed != 1 {
		t.Errorf("pruned = %d, want 1", removed)
	}
	if _, ok := c.Snapshot(1, types.PlatformBetPawa); ok {
		t.Error("stale snapshot survived prune")
	}
	if _, ok := c.Snapshot(2, types.PlatformBetPawa); !ok {
		t.Error("fresh snapshot pruned")
	}
}
