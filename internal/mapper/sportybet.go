package mapper

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"pawarisk/internal/mapping"
	"pawarisk/internal/platform"
	"pawarisk/pkg/types"
)

// SportyBet maps SportyBet's structured markets. Parameterised markets carry
// a semicolon-delimited specifier string ("total=2.5", "hcp=0:1") that
// determines the line and, for handicaps, the decomposed triple.
type SportyBet struct {
	cache  *mapping.Cache
	logger *slog.Logger
}

// NewSportyBet creates the SportyBet mapper.
func NewSportyBet(cache *mapping.Cache, logger *slog.Logger) *SportyBet {
	return &SportyBet{
		cache:  cache,
		logger: logger.With("component", "mapper", "platform", "sportybet"),
	}
}

// MapEvent maps one event's raw markets. Markets that fail map are skipped
// and reported in Result.Unmapped.
func (m *SportyBet) MapEvent(eventID int64, label string, raw []platform.RawMarket) Result {
	var res Result
	for _, rm := range raw {
		mapped, err := m.mapMarket(rm)
		if err != nil {
			var merr *MappingError
			if me, ok := err.(*MappingError); ok {
				merr = me
			} else {
				merr = mapErr(types.PlatformSportyBet, rm.ID, ReasonUnknownParamMarket, err.Error())
			}
			m.logger.Debug("market skipped",
				"market_id", rm.ID, "specifier", rm.Specifier, "reason", merr.Reason)
			res.Unmapped = append(res.Unmapped, Unmapped{
				Platform:   types.PlatformSportyBet,
				RawKey:     rawKeySporty(rm),
				Reason:     merr.Reason,
				SampleData: sampleOutcomes(rm.Outcomes),
				EventID:    eventID,
				EventLabel: label,
			})
			continue
		}
		res.Markets = append(res.Markets, mapped)
	}
	return res
}

func (m *SportyBet) mapMarket(rm platform.RawMarket) (types.MappedMarket, error) {
	entry, ok := m.cache.FindBySportyBet(rm.ID)
	if !ok {
		return types.MappedMarket{}, mapErr(types.PlatformSportyBet, rm.ID, ReasonUnknownMarket, "")
	}
	if entry.BetPawaID == "" {
		return types.MappedMarket{}, mapErr(types.PlatformSportyBet, rm.ID, ReasonUnsupported, "")
	}

	spec := parseSpecifier(rm.Specifier)

	out := types.MappedMarket{
		CanonicalID: entry.CanonicalID,
		Name:        entry.Name,
		Groups:      rm.Groups,
	}

	switch entry.Handler {
	case types.HandlerSimple:
		outcomes, ok := matchByDesc(entry, rm.Outcomes)
		if !ok {
			return types.MappedMarket{}, mapErr(types.PlatformSportyBet, rm.ID, ReasonNoMatchingOutcomes, "")
		}
		out.Outcomes = outcomes

	case types.HandlerOverUnder:
		total, ok := spec["total"]
		if !ok {
			return types.MappedMarket{}, mapErr(types.PlatformSportyBet, rm.ID, ReasonUnknownParamMarket, "over/under without total specifier")
		}
		line, err := decimal.NewFromString(total)
		if err != nil {
			return types.MappedMarket{}, mapErr(types.PlatformSportyBet, rm.ID, ReasonUnknownParamMarket, "bad total "+total)
		}
		outcomes, ok := matchOverUnder(rm.Outcomes)
		if !ok {
			return types.MappedMarket{}, mapErr(types.PlatformSportyBet, rm.ID, ReasonNoMatchingOutcomes, "")
		}
		out.Line = &line
		out.Outcomes = outcomes

	case types.HandlerHandicap:
		hcp, ok := spec["hcp"]
		if !ok {
			return types.MappedMarket{}, mapErr(types.PlatformSportyBet, rm.ID, ReasonUnknownParamMarket, "handicap without hcp specifier")
		}
		h, err := parseHandicap(hcp)
		if err != nil {
			return types.MappedMarket{}, mapErr(types.PlatformSportyBet, rm.ID, ReasonUnknownParamMarket, err.Error())
		}
		outcomes, ok := matchByDesc(entry, rm.Outcomes)
		if !ok {
			// Handicap outcome descs often repeat the line ("Home (-0.5)");
			// fall back to positional matching.
			outcomes, ok = matchByPosition(entry, rm.Outcomes)
		}
		if !ok {
			return types.MappedMarket{}, mapErr(types.PlatformSportyBet, rm.ID, ReasonNoMatchingOutcomes, "")
		}
		line := h.Home
		out.Line = &line
		out.Handicap = h
		out.Outcomes = outcomes

	default:
		return types.MappedMarket{}, mapErr(types.PlatformSportyBet, rm.ID, ReasonUnsupported, "")
	}

	return out, nil
}

// parseSpecifier splits a semicolon-delimited key=value specifier string.
// Malformed segments are dropped.
func parseSpecifier(s string) map[string]string {
	out := make(map[string]string)
	if s == "" {
		return out
	}
	for _, part := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// matchByDesc matches raw outcomes to catalogue outcomes by descriptor,
// case-insensitive.
func matchByDesc(entry mapping.MarketMapping, raw []platform.RawOutcome) ([]types.MappedOutcome, bool) {
	matched := make(map[string]types.MappedOutcome, len(raw))
	for _, om := range entry.Outcomes {
		for _, ro := range raw {
			if strings.EqualFold(ro.Name, om.SportyBetDesc) {
				matched[om.CanonicalID] = types.MappedOutcome{Odds: ro.Odds, IsActive: ro.Active}
				break
			}
		}
	}
	return orderedOutcomes(entry, matched)
}

// matchByPosition pairs raw outcomes to catalogue outcomes in declared order.
// Only valid when the counts line up.
func matchByPosition(entry mapping.MarketMapping, raw []platform.RawOutcome) ([]types.MappedOutcome, bool) {
	if len(raw) != len(entry.Outcomes) {
		return nil, false
	}
	matched := make(map[string]types.MappedOutcome, len(raw))
	for i, om := range entry.Outcomes {
		matched[om.CanonicalID] = types.MappedOutcome{Odds: raw[i].Odds, IsActive: raw[i].Active}
	}
	return orderedOutcomes(entry, matched)
}

// matchOverUnder resolves Over/Under outcomes by descriptor prefix, so
// "Over", "Over 2.5", and "over" all land on the over side.
func matchOverUnder(raw []platform.RawOutcome) ([]types.MappedOutcome, bool) {
	var over, under *types.MappedOutcome
	for _, ro := range raw {
		name := strings.ToLower(strings.TrimSpace(ro.Name))
		o := types.MappedOutcome{Odds: ro.Odds, IsActive: ro.Active}
		switch {
		case strings.HasPrefix(name, "over"):
			o.Name = "over"
			over = &o
		case strings.HasPrefix(name, "under"):
			o.Name = "under"
			under = &o
		}
	}
	if over == nil || under == nil {
		return nil, false
	}
	return []types.MappedOutcome{*over, *under}, true
}

func rawKeySporty(rm platform.RawMarket) string {
	if rm.Specifier == "" {
		return rm.ID
	}
	return rm.ID + "|" + rm.Specifier
}

func sampleOutcomes(raw []platform.RawOutcome) string {
	names := make([]string, 0, len(raw))
	for _, ro := range raw {
		names = append(names, ro.Name)
	}
	return strings.Join(names, ",")
}
