package mapper

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"pawarisk/internal/mapping"
	"pawarisk/internal/platform"
	"pawarisk/pkg/types"
)

// BetPawa maps the reference platform's structured markets. These arrive
// already shaped (market type id, formatted handicap, named outcomes), so
// mapping is a catalogue lookup plus copying the handicap value into the
// line so the cross-platform join key matches the competitors'.
type BetPawa struct {
	cache  *mapping.Cache
	logger *slog.Logger
}

// NewBetPawa creates the reference-platform mapper.
func NewBetPawa(cache *mapping.Cache, logger *slog.Logger) *BetPawa {
	return &BetPawa{
		cache:  cache,
		logger: logger.With("component", "mapper", "platform", "betpawa"),
	}
}

// MapEvent maps one event's raw markets.
func (m *BetPawa) MapEvent(eventID int64, label string, raw []platform.RawMarket) Result {
	var res Result
	for _, rm := range raw {
		mapped, err := m.mapMarket(rm)
		if err != nil {
			merr, ok := err.(*MappingError)
			if !ok {
				merr = mapErr(types.PlatformBetPawa, rm.ID, ReasonUnknownParamMarket, err.Error())
			}
			m.logger.Debug("market skipped",
				"market_id", rm.ID, "handicap", rm.Handicap, "reason", merr.Reason)
			res.Unmapped = append(res.Unmapped, Unmapped{
				Platform:   types.PlatformBetPawa,
				RawKey:     rm.ID,
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

func (m *BetPawa) mapMarket(rm platform.RawMarket) (types.MappedMarket, error) {
	entry, ok := m.cache.FindByBetPawa(rm.ID)
	if !ok {
		return types.MappedMarket{}, mapErr(types.PlatformBetPawa, rm.ID, ReasonUnknownMarket, "")
	}
	if entry.Handler == types.HandlerUnsupported {
		return types.MappedMarket{}, mapErr(types.PlatformBetPawa, rm.ID, ReasonUnsupported, "")
	}

	out := types.MappedMarket{
		CanonicalID: entry.CanonicalID,
		Name:        entry.Name,
		Groups:      rm.Groups,
	}

	switch entry.Handler {
	case types.HandlerOverUnder:
		if rm.Handicap == "" {
			return types.MappedMarket{}, mapErr(types.PlatformBetPawa, rm.ID, ReasonUnknownParamMarket, "over/under without handicap value")
		}
		line, err := decimal.NewFromString(rm.Handicap)
		if err != nil {
			return types.MappedMarket{}, mapErr(types.PlatformBetPawa, rm.ID, ReasonUnknownParamMarket, "bad handicap "+rm.Handicap)
		}
		out.Line = &line

	case types.HandlerHandicap:
		if rm.Handicap == "" {
			return types.MappedMarket{}, mapErr(types.PlatformBetPawa, rm.ID, ReasonUnknownParamMarket, "handicap without handicap value")
		}
		h, err := parseHandicap(rm.Handicap)
		if err != nil {
			return types.MappedMarket{}, mapErr(types.PlatformBetPawa, rm.ID, ReasonUnknownParamMarket, err.Error())
		}
		line := h.Home
		out.Line = &line
		out.Handicap = h
	}

	outcomes, ok := matchByBetPawaName(entry, rm.Outcomes)
	if !ok {
		return types.MappedMarket{}, mapErr(types.PlatformBetPawa, rm.ID, ReasonNoMatchingOutcomes, "")
	}
	out.Outcomes = outcomes
	return out, nil
}

// matchByBetPawaName matches raw outcomes by the catalogue's reference
// platform names. Over/under outcomes carry the line in their display name
// ("Over 2.5"), so prefix matching covers them too.
func matchByBetPawaName(entry mapping.MarketMapping, raw []platform.RawOutcome) ([]types.MappedOutcome, bool) {
	matched := make(map[string]types.MappedOutcome, len(raw))
	for _, om := range entry.Outcomes {
		for _, ro := range raw {
			if strings.EqualFold(ro.Name, om.BetPawaName) ||
				strings.HasPrefix(strings.ToLower(ro.Name), strings.ToLower(om.BetPawaName)+" ") {
				matched[om.CanonicalID] = types.MappedOutcome{Odds: ro.Odds, IsActive: ro.Active}
				break
			}
		}
	}
	return orderedOutcomes(entry, matched)
}
