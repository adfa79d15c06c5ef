// Package mapping holds the canonical market catalogue and its lookup cache.
//
// The catalogue merges two sources: code mappings shipped with the binary and
// operator mappings loaded from the store. For a given canonical id the
// operator entry wins. The merged set is indexed per platform; Bet9ja lookups
// are longest-prefix matches because Bet9ja embeds outcome and line into the
// raw key (e.g. "S_OU@2.5_O" must resolve via the stored key "S_OU").
package mapping

import (
	"sort"
	"strings"

	"pawarisk/pkg/types"
)

// OutcomeMapping maps one canonical outcome to its per-platform descriptors.
type OutcomeMapping struct {
	CanonicalID   string
	BetPawaName   string
	SportyBetDesc string
	Bet9jaSuffix  string
	Position      int
}

// MarketMapping is one canonical catalogue entry. Any platform id may be
// empty: an entry with no BetPawaID is intentionally unmappable on the
// reference platform (UNSUPPORTED_PLATFORM at mapping time).
type MarketMapping struct {
	CanonicalID string
	Name        string
	Handler     types.HandlerKind
	BetPawaID   string
	SportyBetID string
	Bet9jaKey   string
	Outcomes    []OutcomeMapping
	Source      string // "code" or "db"
	Priority    int
	Active      bool
}

// index is one immutable build of the merged catalogue. Readers hold a
// snapshot, so a refresh never invalidates in-flight lookups.
type index struct {
	byCanonical map[string]MarketMapping
	byBetPawa   map[string]MarketMapping
	bySportyBet map[string]MarketMapping
	byBet9ja    map[string]MarketMapping
	bet9jaKeys  []string // sorted longest-first for prefix matching

	codeCount int
	dbCount   int
}

// buildIndex merges code and operator mappings (operator wins per canonical
// id) and builds the per-platform lookup tables.
func buildIndex(code, db []MarketMapping) *index {
	idx := &index{
		byCanonical: make(map[string]MarketMapping),
		byBetPawa:   make(map[string]MarketMapping),
		bySportyBet: make(map[string]MarketMapping),
		byBet9ja:    make(map[string]MarketMapping),
	}

	for _, m := range code {
		m.Source = "code"
		m.Active = true
		idx.byCanonical[m.CanonicalID] = m
		idx.codeCount++
	}
	for _, m := range db {
		m.Source = "db"
		if !m.Active {
			// Soft-deleted operator entries suppress nothing; the code
			// entry (if any) stays in force.
			continue
		}
		idx.byCanonical[m.CanonicalID] = m
		idx.dbCount++
	}

	for _, m := range idx.byCanonical {
		if m.BetPawaID != "" {
			idx.byBetPawa[m.BetPawaID] = pickWinner(idx.byBetPawa[m.BetPawaID], m)
		}
		if m.SportyBetID != "" {
			idx.bySportyBet[m.SportyBetID] = pickWinner(idx.bySportyBet[m.SportyBetID], m)
		}
		if m.Bet9jaKey != "" {
			idx.byBet9ja[m.Bet9jaKey] = pickWinner(idx.byBet9ja[m.Bet9jaKey], m)
		}
	}

	idx.bet9jaKeys = make([]string, 0, len(idx.byBet9ja))
	for k := range idx.byBet9ja {
		idx.bet9jaKeys = append(idx.bet9jaKeys, k)
	}
	sort.Slice(idx.bet9jaKeys, func(i, j int) bool {
		if len(idx.bet9jaKeys[i]) != len(idx.bet9jaKeys[j]) {
			return len(idx.bet9jaKeys[i]) > len(idx.bet9jaKeys[j])
		}
		return idx.bet9jaKeys[i] < idx.bet9jaKeys[j]
	})

	return idx
}

// pickWinner resolves two mappings claiming the same platform id: at most one
// active mapping wins, by source (db over code) then priority.
func pickWinner(existing, candidate MarketMapping) MarketMapping {
	if existing.CanonicalID == "" {
		return candidate
	}
	if existing.Source != candidate.Source {
		if candidate.Source == "db" {
			return candidate
		}
		return existing
	}
	if candidate.Priority > existing.Priority {
		return candidate
	}
	return existing
}

// findBet9ja resolves a raw Bet9ja key by exact match first, then by the
// longest stored key the raw key starts with.
func (idx *index) findBet9ja(rawKey string) (MarketMapping, bool) {
	if m, ok := idx.byBet9ja[rawKey]; ok {
		return m, true
	}
	for _, k := range idx.bet9jaKeys {
		if strings.HasPrefix(rawKey, k) {
			return idx.byBet9ja[k], true
		}
	}
	return MarketMapping{}, false
}
