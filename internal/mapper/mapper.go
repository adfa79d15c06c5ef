// Package mapper translates raw platform markets into canonical form.
//
// One mapper per platform, all sharing the catalogue cache. A single market
// that fails to map is skipped and recorded, never fatal: the rest of the
// event still maps. Outputs follow catalogue outcome positions so every
// platform emits the same outcome ordering for the same canonical market.
package mapper

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"pawarisk/internal/mapping"
	"pawarisk/pkg/types"
)

// Mapping failure reasons. UnsupportedPlatform marks catalogue entries with
// no reference-platform id: deliberately unmappable, not an operator gap.
const (
	ReasonUnknownMarket      = "UNKNOWN_MARKET"
	ReasonUnknownParamMarket = "UNKNOWN_PARAM_MARKET"
	ReasonNoMatchingOutcomes = "NO_MATCHING_OUTCOMES"
	ReasonUnsupported        = "UNSUPPORTED_PLATFORM"
)

// MappingError describes why one raw market could not be mapped.
type MappingError struct {
	Platform types.Platform
	RawKey   string
	Reason   string
	Detail   string
}

func (e *MappingError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s %q", e.Platform, e.Reason, e.RawKey)
	}
	return fmt.Sprintf("%s: %s %q: %s", e.Platform, e.Reason, e.RawKey, e.Detail)
}

func mapErr(p types.Platform, rawKey, reason, detail string) *MappingError {
	return &MappingError{Platform: p, RawKey: rawKey, Reason: reason, Detail: detail}
}

// Unmapped is one market the mapper could not place, destined for the
// persistent unmapped-market accumulator.
type Unmapped struct {
	Platform   types.Platform
	RawKey     string
	Reason     string
	SampleData string // raw outcome names / suffixes seen, for triage
	EventID    int64
	EventLabel string // "Home v Away"
}

// Result is one platform's mapping output for one event.
type Result struct {
	Markets  []types.MappedMarket
	Unmapped []Unmapped
}

// orderedOutcomes arranges matched outcomes by catalogue position. Returns
// false if none of the catalogue's outcomes matched.
func orderedOutcomes(m mapping.MarketMapping, matched map[string]types.MappedOutcome) ([]types.MappedOutcome, bool) {
	type positioned struct {
		pos int
		out types.MappedOutcome
	}
	rows := make([]positioned, 0, len(matched))
	for _, om := range m.Outcomes {
		if o, ok := matched[om.CanonicalID]; ok {
			o.Name = om.CanonicalID
			rows = append(rows, positioned{pos: om.Position, out: o})
		}
	}
	if len(rows) == 0 {
		return nil, false
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].pos < rows[j].pos })
	out := make([]types.MappedOutcome, len(rows))
	for i, r := range rows {
		out[i] = r.out
	}
	return out, true
}

// parseHandicap decomposes a handicap parameter. European "0:1" means home
// gives one goal (home=-1, away=+1); Asian "-0.5" is symmetric around zero.
func parseHandicap(raw string) (*types.Handicap, error) {
	for i := 0; i < len(raw); i++ {
		if raw[i] != ':' {
			continue
		}
		home, err := decimal.NewFromString(raw[:i])
		if err != nil {
			return nil, fmt.Errorf("european handicap %q: %w", raw, err)
		}
		away, err := decimal.NewFromString(raw[i+1:])
		if err != nil {
			return nil, fmt.Errorf("european handicap %q: %w", raw, err)
		}
		return &types.Handicap{Type: "european", Home: home.Sub(away), Away: away.Sub(home)}, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("asian handicap %q: %w", raw, err)
	}
	return &types.Handicap{Type: "asian", Home: v, Away: v.Neg()}, nil
}
