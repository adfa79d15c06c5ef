// Package risk turns classified market changes into risk alerts.
//
// The detector runs per event, after change classification and before the
// cache update, over every platform scraped in that pass. Three alert kinds:
// price moves beyond configured bands, the reference platform moving against
// a competitor, and markets vanishing or returning close to kickoff.
package risk

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"pawarisk/internal/config"
	"pawarisk/internal/odds"
	"pawarisk/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// Detector emits RiskAlert records from per-event classification results.
type Detector struct {
	logger *slog.Logger
}

// NewDetector creates a detector.
func NewDetector(logger *slog.Logger) *Detector {
	return &Detector{logger: logger.With("component", "risk-detector")}
}

// EventInput is one event's classified results across every platform
// scraped in this pass.
type EventInput struct {
	EventID     int64
	Kickoff     time.Time
	PerPlatform map[types.Platform]odds.Classification
}

// outcomeMove is one outcome's price movement within a cycle.
type outcomeMove struct {
	bookmaker types.Platform
	key       types.MarketKey
	line      *decimal.Decimal
	outcome   string
	old, new  decimal.Decimal
	pct       decimal.Decimal // signed percent
}

// Detect runs all three checks over one event. Alerts are deduplicated
// within the call: at most one price_change alert per
// (event, bookmaker, market, outcome).
func (d *Detector) Detect(s config.Settings, in EventInput, now time.Time) []types.RiskAlert {
	moves := collectMoves(in)

	var alerts []types.RiskAlert
	seen := make(map[string]bool)

	emit := func(a types.RiskAlert) {
		a.EventID = in.EventID
		a.DetectedAt = now
		a.Status = types.AlertNew
		k := a.DedupeKey()
		if seen[k] {
			return
		}
		seen[k] = true
		alerts = append(alerts, a)
	}

	for _, m := range moves {
		sev, ok := severityFor(m.pct, s)
		if !ok {
			continue
		}
		emit(types.RiskAlert{
			Bookmaker:     m.bookmaker,
			CanonicalID:   m.key.CanonicalID,
			Line:          m.line,
			OutcomeName:   m.outcome,
			Type:          types.AlertPriceChange,
			Severity:      sev,
			ChangePercent: m.pct,
			OldValue:      m.old,
			NewValue:      m.new,
		})
	}

	for _, a := range d.directionDisagreements(s, moves) {
		emit(a)
	}

	// Availability flips matter only when kickoff is imminent.
	if until := in.Kickoff.Sub(now); until > 0 && until < s.ImminentWindow() {
		for bm, cls := range in.PerPlatform {
			for _, key := range cls.Disappeared {
				emit(availabilityAlert(bm, key, cls.Next[key].Line))
			}
			for _, key := range cls.Returned {
				emit(availabilityAlert(bm, key, cls.Next[key].Line))
			}
		}
	}

	if len(alerts) > 0 {
		d.logger.Info("alerts emitted", "event_id", in.EventID, "count", len(alerts))
	}
	return alerts
}

// collectMoves extracts every priced outcome movement where both sides are
// active and the old price is usable as a denominator.
func collectMoves(in EventInput) []outcomeMove {
	var moves []outcomeMove
	for bm, cls := range in.PerPlatform {
		for _, ch := range cls.Changed {
			if ch.Old == nil || ch.Old.UnavailableAt != nil {
				continue
			}
			oldByName := make(map[string]types.MappedOutcome, len(ch.Old.Outcomes))
			for _, o := range ch.Old.Outcomes {
				oldByName[o.Name] = o
			}
			for _, o := range ch.New.Outcomes {
				prev, ok := oldByName[o.Name]
				if !ok || !o.IsActive || !prev.IsActive {
					continue
				}
				if prev.Odds.IsZero() || prev.Odds.Equal(o.Odds) {
					continue
				}
				pct := o.Odds.Sub(prev.Odds).Div(prev.Odds).Mul(hundred)
				moves = append(moves, outcomeMove{
					bookmaker: bm,
					key:       ch.Key,
					line:      ch.New.Line,
					outcome:   o.Name,
					old:       prev.Odds,
					new:       o.Odds,
					pct:       pct,
				})
			}
		}
	}
	return moves
}

// directionDisagreements finds outcomes where the reference platform moved
// one way while a competitor moved the other way by at least the elevated
// band. Alerts are attributed to the reference platform with the
// competitor's direction attached.
func (d *Detector) directionDisagreements(s config.Settings, moves []outcomeMove) []types.RiskAlert {
	type slot struct {
		key     types.MarketKey
		outcome string
	}

	bySlot := make(map[slot][]outcomeMove)
	for _, m := range moves {
		k := slot{key: m.key, outcome: m.outcome}
		bySlot[k] = append(bySlot[k], m)
	}

	elevated := decimal.NewFromInt(int64(s.PriceChangeElevatedPct))

	var alerts []types.RiskAlert
	for _, group := range bySlot {
		var ref *outcomeMove
		for i := range group {
			if group[i].bookmaker == types.PlatformBetPawa {
				ref = &group[i]
				break
			}
		}
		if ref == nil {
			continue
		}
		refUp := ref.pct.IsPositive()
		for _, m := range group {
			if m.bookmaker == types.PlatformBetPawa {
				continue
			}
			if m.pct.IsPositive() == refUp {
				continue
			}
			if m.pct.Abs().LessThan(elevated) {
				continue
			}
			dir := "down"
			if m.pct.IsPositive() {
				dir = "up"
			}
			alerts = append(alerts, types.RiskAlert{
				Bookmaker:           types.PlatformBetPawa,
				CanonicalID:         ref.key.CanonicalID,
				Line:                ref.line,
				OutcomeName:         ref.outcome,
				Type:                types.AlertDirectionDisagreement,
				Severity:            types.SeverityElevated,
				ChangePercent:       ref.pct,
				OldValue:            ref.old,
				NewValue:            ref.new,
				CompetitorDirection: dir,
			})
			break
		}
	}
	return alerts
}

// severityFor bands an absolute percent move. Below the warning band no
// alert is emitted.
func severityFor(pct decimal.Decimal, s config.Settings) (types.Severity, bool) {
	abs := pct.Abs()
	switch {
	case abs.GreaterThanOrEqual(decimal.NewFromInt(int64(s.PriceChangeCriticalPct))):
		return types.SeverityCritical, true
	case abs.GreaterThanOrEqual(decimal.NewFromInt(int64(s.PriceChangeElevatedPct))):
		return types.SeverityElevated, true
	case abs.GreaterThanOrEqual(decimal.NewFromInt(int64(s.PriceChangeWarningPct))):
		return types.SeverityWarning, true
	}
	return "", false
}

func availabilityAlert(bm types.Platform, key types.MarketKey, line *decimal.Decimal) types.RiskAlert {
	return types.RiskAlert{
		Bookmaker:   bm,
		CanonicalID: key.CanonicalID,
		Line:        line,
		Type:        types.AlertAvailability,
		Severity:    types.SeverityElevated,
	}
}
