package odds

import (
	"log/slog"
	"sync"
	"time"

	"pawarisk/pkg/types"
)

// snapshotKey identifies one cache slot.
type snapshotKey struct {
	EventID   int64
	Bookmaker types.Platform
}

// UpdateFunc receives every committed put. Callbacks run synchronously on
// the putter's goroutine and must not block.
type UpdateFunc func(eventID int64, bookmaker types.Platform)

// Cache is the process-wide in-memory odds state: at most one snapshot per
// (event, bookmaker), always the latest. History lives only in the store.
type Cache struct {
	logger *slog.Logger

	mu        sync.RWMutex
	snapshots map[snapshotKey]types.CachedSnapshot

	cbMu      sync.RWMutex
	callbacks []UpdateFunc
}

// NewCache creates an empty odds cache.
func NewCache(logger *slog.Logger) *Cache {
	return &Cache{
		logger:    logger.With("component", "odds-cache"),
		snapshots: make(map[snapshotKey]types.CachedSnapshot),
	}
}

// OnUpdate registers a callback fired on every put. Registration order is
// invocation order; a panicking callback is isolated and logged.
func (c *Cache) OnUpdate(fn UpdateFunc) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

// Put replaces the snapshot for one (event, bookmaker) and fires update
// callbacks. Both timestamps are set to now: captured_at and
// last_confirmed_at mean "when this scrape ran", not "when odds changed".
func (c *Cache) Put(eventID int64, bookmaker types.Platform, markets map[types.MarketKey]types.CachedMarket, now time.Time) {
	snap := types.CachedSnapshot{
		EventID:         eventID,
		Bookmaker:       bookmaker,
		CapturedAt:      now,
		LastConfirmedAt: now,
		Markets:         markets,
	}

	c.mu.Lock()
	c.snapshots[snapshotKey{EventID: eventID, Bookmaker: bookmaker}] = snap
	c.mu.Unlock()

	c.fire(eventID, bookmaker)
}

// Load inserts a snapshot preserving its stored timestamps, without firing
// callbacks. Used by warmup only.
func (c *Cache) Load(snap types.CachedSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[snapshotKey{EventID: snap.EventID, Bookmaker: snap.Bookmaker}] = snap
}

// Snapshot returns the cached snapshot for one (event, bookmaker). The
// returned market map is a copy; callers may not observe later puts.
func (c *Cache) Snapshot(eventID int64, bookmaker types.Platform) (types.CachedSnapshot, bool) {
	c.mu.RLock()
	snap, ok := c.snapshots[snapshotKey{EventID: eventID, Bookmaker: bookmaker}]
	c.mu.RUnlock()
	if !ok {
		return types.CachedSnapshot{}, false
	}
	return copySnapshot(snap), true
}

// BetPawaSnapshots bulk-reads reference-platform snapshots for the read API.
func (c *Cache) BetPawaSnapshots(eventIDs []int64) map[int64]types.CachedSnapshot {
	out := make(map[int64]types.CachedSnapshot, len(eventIDs))
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range eventIDs {
		if snap, ok := c.snapshots[snapshotKey{EventID: id, Bookmaker: types.PlatformBetPawa}]; ok {
			out[id] = copySnapshot(snap)
		}
	}
	return out
}

// Prune drops snapshots last confirmed before the cutoff. Run out-of-band;
// never during a cycle.
func (c *Cache) Prune(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, snap := range c.snapshots {
		if snap.LastConfirmedAt.Before(cutoff) {
			delete(c.snapshots, key)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Info("pruned stale snapshots", "removed", removed, "cutoff", cutoff)
	}
	return removed
}

// CacheStats summarises cache occupancy.
type CacheStats struct {
	Snapshots   int                    `json:"snapshots"`
	Markets     int                    `json:"markets"`
	ByBookmaker map[types.Platform]int `json:"by_bookmaker"`
}

// Stats returns occupancy counts.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := CacheStats{ByBookmaker: make(map[types.Platform]int)}
	for key, snap := range c.snapshots {
		stats.Snapshots++
		stats.Markets += len(snap.Markets)
		stats.ByBookmaker[key.Bookmaker]++
	}
	return stats
}

func (c *Cache) fire(eventID int64, bookmaker types.Platform) {
	c.cbMu.RLock()
	callbacks := c.callbacks
	c.cbMu.RUnlock()
	for _, fn := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("update callback panicked",
						"event_id", eventID, "bookmaker", bookmaker, "panic", r)
				}
			}()
			fn(eventID, bookmaker)
		}()
	}
}

func copySnapshot(snap types.CachedSnapshot) types.CachedSnapshot {
	markets := make(map[types.MarketKey]types.CachedMarket, len(snap.Markets))
	for k, v := range snap.Markets {
		markets[k] = v
	}
	snap.Markets = markets
	return snap
}
