// Package odds holds the in-memory odds cache and the change classifier
// that decides, per market, whether this cycle's scrape differs from the
// cached state.
package odds

import (
	"sort"
	"time"

	"pawarisk/pkg/types"
)

// MarketChange is one market whose content differs from the cache, paired
// with the prior state for downstream movement analysis. Old is nil for
// markets seen for the first time.
type MarketChange struct {
	Key types.MarketKey
	Old *types.CachedMarket
	New types.CachedMarket
}

// Classification is the classifier output for one (event, bookmaker).
type Classification struct {
	// Writes carries one row per market this cycle touched, changed or
	// merely confirmed. Disappearances ride along as phantom rows.
	Writes []types.MarketCurrentWrite
	// Next is the snapshot content the cache should store after this cycle.
	Next map[types.MarketKey]types.CachedMarket
	// Changed lists markets with content changes, for the risk detector.
	Changed []MarketChange
	// Disappeared and Returned track availability flips, for the risk
	// detector's imminent-window check.
	Disappeared []types.MarketKey
	Returned    []types.MarketKey
}

// Classify compares this cycle's mapped markets against the cached snapshot.
// cached may be nil (first sighting of the pair). Every mapped market
// produces exactly one write; cached markets absent from the payload produce
// a phantom unavailable write once, then stay quiet until they return.
func Classify(eventID int64, bookmaker types.Platform, cached *types.CachedSnapshot, mapped []types.MappedMarket, now time.Time) Classification {
	res := Classification{
		Next: make(map[types.MarketKey]types.CachedMarket, len(mapped)),
	}

	seen := make(map[types.MarketKey]bool, len(mapped))
	for _, m := range mapped {
		key := m.Key()
		if seen[key] {
			// Platforms occasionally duplicate a market in one payload;
			// first occurrence wins.
			continue
		}
		seen[key] = true

		next := types.CachedMarket{
			CanonicalID: m.CanonicalID,
			Name:        m.Name,
			Line:        m.Line,
			Handicap:    m.Handicap,
			Outcomes:    canonicalOutcomes(m.Outcomes),
			Groups:      m.Groups,
		}

		var old *types.CachedMarket
		if cached != nil {
			if prev, ok := cached.Markets[key]; ok {
				old = &prev
			}
		}

		changed := false
		switch {
		case old == nil:
			changed = true
		case old.UnavailableAt != nil:
			changed = true
			res.Returned = append(res.Returned, key)
		default:
			changed = !outcomesEqual(old.Outcomes, next.Outcomes)
		}

		if changed {
			res.Changed = append(res.Changed, MarketChange{Key: key, Old: old, New: next})
		}
		res.Next[key] = next
		res.Writes = append(res.Writes, writeFor(eventID, bookmaker, next, changed, now))
	}

	// Cached markets this payload omitted: persist the disappearance once.
	if cached != nil {
		keys := make([]types.MarketKey, 0, len(cached.Markets))
		for key := range cached.Markets {
			if !seen[key] {
				keys = append(keys, key)
			}
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].CanonicalID != keys[j].CanonicalID {
				return keys[i].CanonicalID < keys[j].CanonicalID
			}
			return keys[i].Line < keys[j].Line
		})
		for _, key := range keys {
			prev := cached.Markets[key]
			if prev.UnavailableAt != nil {
				// Already recorded as unavailable; carry forward unchanged.
				res.Next[key] = prev
				continue
			}
			phantom := prev
			ts := now
			phantom.UnavailableAt = &ts
			res.Next[key] = phantom
			res.Disappeared = append(res.Disappeared, key)
			res.Writes = append(res.Writes, writeFor(eventID, bookmaker, phantom, true, now))
		}
	}

	return res
}

func writeFor(eventID int64, bookmaker types.Platform, m types.CachedMarket, changed bool, now time.Time) types.MarketCurrentWrite {
	return types.MarketCurrentWrite{
		EventID:       eventID,
		Bookmaker:     bookmaker,
		CanonicalID:   m.CanonicalID,
		Name:          m.Name,
		Line:          m.Line,
		Handicap:      m.Handicap,
		Outcomes:      m.Outcomes,
		Groups:        m.Groups,
		Changed:       changed,
		UnavailableAt: m.UnavailableAt,
		CapturedAt:    now,
	}
}

// canonicalOutcomes sorts outcomes by (name, odds, is_active) so that
// equality checks and stored rows are order-independent.
func canonicalOutcomes(outcomes []types.MappedOutcome) []types.MappedOutcome {
	out := make([]types.MappedOutcome, len(outcomes))
	copy(out, outcomes)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		oi, oj := out[i].Odds.String(), out[j].Odds.String()
		if oi != oj {
			return oi < oj
		}
		return !out[i].IsActive && out[j].IsActive
	})
	return out
}

// outcomesEqual reports byte-equality of two canonicalised outcome lists.
func outcomesEqual(a, b []types.MappedOutcome) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name ||
			a[i].IsActive != b[i].IsActive ||
			a[i].Odds.String() != b[i].Odds.String() {
			return false
		}
	}
	return true
}
