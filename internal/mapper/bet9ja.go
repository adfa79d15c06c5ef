package mapper

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"pawarisk/internal/mapping"
	"pawarisk/pkg/types"
)

// bet9jaKeyPattern decomposes a flat odds key into market, optional
// parameter, and outcome suffix: "S_OU@2.5_O" → ("OU", "2.5", "O").
var bet9jaKeyPattern = regexp.MustCompile(`^S_([A-Z0-9_\-]+?)(?:@([^_]+))?_(.+)$`)

// Bet9ja maps Bet9ja's flat key→odds shape. Keys are decomposed, grouped by
// (market, parameter), and resolved against the catalogue by longest stored
// prefix. Routing follows the matched entry's handler kind: parameterised
// groups become over/under or handicap markets, the rest map as simple.
type Bet9ja struct {
	cache  *mapping.Cache
	logger *slog.Logger
}

// NewBet9ja creates the Bet9ja mapper.
func NewBet9ja(cache *mapping.Cache, logger *slog.Logger) *Bet9ja {
	return &Bet9ja{
		cache:  cache,
		logger: logger.With("component", "mapper", "platform", "bet9ja"),
	}
}

// oddsGroup is one (market, parameter) group of decomposed keys.
type oddsGroup struct {
	marketKey string // with the "S_" prefix restored, for catalogue lookup
	param     string
	suffixes  map[string]decimal.Decimal
}

// MapEvent maps one event's flat odds map.
func (m *Bet9ja) MapEvent(eventID int64, label string, flat map[string]decimal.Decimal) Result {
	var res Result

	groups := groupBet9jaKeys(flat)
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, gk := range keys {
		g := groups[gk]
		mapped, err := m.mapGroup(g)
		if err != nil {
			merr, ok := err.(*MappingError)
			if !ok {
				merr = mapErr(types.PlatformBet9ja, g.marketKey, ReasonUnknownParamMarket, err.Error())
			}
			m.logger.Debug("market skipped",
				"market_key", g.marketKey, "param", g.param, "reason", merr.Reason)
			res.Unmapped = append(res.Unmapped, Unmapped{
				Platform:   types.PlatformBet9ja,
				RawKey:     g.marketKey,
				Reason:     merr.Reason,
				SampleData: sampleSuffixes(g.suffixes),
				EventID:    eventID,
				EventLabel: label,
			})
			continue
		}
		res.Markets = append(res.Markets, mapped)
	}
	return res
}

// groupBet9jaKeys decomposes every raw key and buckets odds by
// (market, parameter). Keys the pattern rejects are dropped silently; Bet9ja
// payloads carry presentation keys that are not markets.
func groupBet9jaKeys(flat map[string]decimal.Decimal) map[string]oddsGroup {
	groups := make(map[string]oddsGroup)
	for raw, odds := range flat {
		parts := bet9jaKeyPattern.FindStringSubmatch(raw)
		if parts == nil {
			continue
		}
		marketKey, param, suffix := "S_"+parts[1], parts[2], parts[3]
		gk := marketKey + "@" + param
		g, ok := groups[gk]
		if !ok {
			g = oddsGroup{marketKey: marketKey, param: param, suffixes: make(map[string]decimal.Decimal)}
		}
		g.suffixes[suffix] = odds
		groups[gk] = g
	}
	return groups
}

func (m *Bet9ja) mapGroup(g oddsGroup) (types.MappedMarket, error) {
	entry, ok := m.cache.FindByBet9ja(g.marketKey)
	if !ok {
		return types.MappedMarket{}, mapErr(types.PlatformBet9ja, g.marketKey, ReasonUnknownMarket, "")
	}
	if entry.BetPawaID == "" {
		return types.MappedMarket{}, mapErr(types.PlatformBet9ja, g.marketKey, ReasonUnsupported, "")
	}

	out := types.MappedMarket{
		CanonicalID: entry.CanonicalID,
		Name:        entry.Name,
	}

	switch entry.Handler {
	case types.HandlerOverUnder:
		if g.param == "" {
			return types.MappedMarket{}, mapErr(types.PlatformBet9ja, g.marketKey, ReasonUnknownParamMarket, "over/under without parameter")
		}
		line, err := decimal.NewFromString(g.param)
		if err != nil {
			return types.MappedMarket{}, mapErr(types.PlatformBet9ja, g.marketKey, ReasonUnknownParamMarket, "bad line "+g.param)
		}
		out.Line = &line

	case types.HandlerHandicap:
		if g.param == "" {
			return types.MappedMarket{}, mapErr(types.PlatformBet9ja, g.marketKey, ReasonUnknownParamMarket, "handicap without parameter")
		}
		h, err := parseHandicap(g.param)
		if err != nil {
			return types.MappedMarket{}, mapErr(types.PlatformBet9ja, g.marketKey, ReasonUnknownParamMarket, err.Error())
		}
		line := h.Home
		out.Line = &line
		out.Handicap = h

	case types.HandlerSimple:
		// no parameter expected; a stray one still maps (Bet9ja reuses
		// parameterised keys for promoted lines)

	default:
		return types.MappedMarket{}, mapErr(types.PlatformBet9ja, g.marketKey, ReasonUnsupported, "")
	}

	outcomes, ok := matchBySuffix(entry, g.suffixes)
	if !ok {
		return types.MappedMarket{}, mapErr(types.PlatformBet9ja, g.marketKey, ReasonNoMatchingOutcomes, "")
	}
	out.Outcomes = outcomes
	return out, nil
}

// matchBySuffix matches decomposed outcome suffixes to the catalogue's
// bet9ja descriptors. Matching is case-sensitive; Bet9ja distinguishes
// "O"/"o" style suffixes on some markets.
func matchBySuffix(entry mapping.MarketMapping, suffixes map[string]decimal.Decimal) ([]types.MappedOutcome, bool) {
	matched := make(map[string]types.MappedOutcome, len(suffixes))
	for _, om := range entry.Outcomes {
		if odds, ok := suffixes[om.Bet9jaSuffix]; ok {
			// Bet9ja publishes no per-outcome active flag; a listed price
			// is an offered price.
			matched[om.CanonicalID] = types.MappedOutcome{Odds: odds, IsActive: true}
		}
	}
	return orderedOutcomes(entry, matched)
}

func sampleSuffixes(suffixes map[string]decimal.Decimal) string {
	names := make([]string, 0, len(suffixes))
	for s := range suffixes {
		names = append(names, s)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
