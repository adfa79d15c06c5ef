package mapping

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Cache is the process-wide mapping lookup. It is read-mostly: lookups load
// an immutable index snapshot, so Refresh can swap in a new build without
// invalidating in-flight readers. Initialize must be called before the
// coordinator starts.
type Cache struct {
	logger *slog.Logger

	mu   sync.Mutex // serialises Initialize/Refresh
	idx  atomic.Pointer[index]
	code []MarketMapping
}

// Stats summarises the merged catalogue for the stats endpoint.
type Stats struct {
	CodeCount      int `json:"code_count"`
	DBCount        int `json:"db_count"`
	BetPawaCount   int `json:"betpawa_count"`
	SportyBetCount int `json:"sportybet_count"`
	Bet9jaCount    int `json:"bet9ja_count"`
}

// NewCache creates a cache seeded with the built-in code mappings.
func NewCache(logger *slog.Logger) *Cache {
	return &Cache{
		logger: logger.With("component", "mapping-cache"),
		code:   CodeMappings(),
	}
}

// Initialize builds all indexes from code plus operator mappings.
func (c *Cache) Initialize(dbMappings []MarketMapping) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := buildIndex(c.code, dbMappings)
	c.idx.Store(idx)
	c.logger.Info("mapping cache initialized",
		"code", idx.codeCount,
		"db", idx.dbCount,
		"betpawa", len(idx.byBetPawa),
		"sportybet", len(idx.bySportyBet),
		"bet9ja", len(idx.byBet9ja),
	)
}

// Refresh atomically replaces the indexes with a fresh merge. Readers never
// observe a partial index.
func (c *Cache) Refresh(dbMappings []MarketMapping) {
	c.Initialize(dbMappings)
}

// Ready reports whether Initialize has run.
func (c *Cache) Ready() bool { return c.idx.Load() != nil }

// FindByBetPawa resolves a reference-platform market type id.
func (c *Cache) FindByBetPawa(id string) (MarketMapping, bool) {
	idx := c.idx.Load()
	if idx == nil {
		return MarketMapping{}, false
	}
	m, ok := idx.byBetPawa[id]
	return m, ok
}

// FindBySportyBet resolves a SportyBet market id.
func (c *Cache) FindBySportyBet(id string) (MarketMapping, bool) {
	idx := c.idx.Load()
	if idx == nil {
		return MarketMapping{}, false
	}
	m, ok := idx.bySportyBet[id]
	return m, ok
}

// FindByBet9ja resolves a raw Bet9ja key by longest stored prefix.
func (c *Cache) FindByBet9ja(rawKey string) (MarketMapping, bool) {
	idx := c.idx.Load()
	if idx == nil {
		return MarketMapping{}, false
	}
	return idx.findBet9ja(rawKey)
}

// FindByCanonical resolves a canonical id in the merged catalogue.
func (c *Cache) FindByCanonical(id string) (MarketMapping, bool) {
	idx := c.idx.Load()
	if idx == nil {
		return MarketMapping{}, false
	}
	m, ok := idx.byCanonical[id]
	return m, ok
}

// Stats returns merged catalogue counts.
func (c *Cache) Stats() Stats {
	idx := c.idx.Load()
	if idx == nil {
		return Stats{}
	}
	return Stats{
		CodeCount:      idx.codeCount,
		DBCount:        idx.dbCount,
		BetPawaCount:   len(idx.byBetPawa),
		SportyBetCount: len(idx.bySportyBet),
		Bet9jaCount:    len(idx.byBet9ja),
	}
}
