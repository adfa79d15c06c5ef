package risk

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pawarisk/internal/config"
	"pawarisk/internal/odds"
	"pawarisk/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// change builds a single-outcome MarketChange from old to new odds.
func change(name, oldOdds, newOdds string) odds.MarketChange {
	old := types.CachedMarket{
		CanonicalID: "1x2",
		Outcomes:    []types.MappedOutcome{{Name: name, Odds: dec(oldOdds), IsActive: true}},
	}
	return odds.MarketChange{
		Key: types.MarketKey{CanonicalID: "1x2", Line: "0"},
		Old: &old,
		New: types.CachedMarket{
			CanonicalID: "1x2",
			Outcomes:    []types.MappedOutcome{{Name: name, Odds: dec(newOdds), IsActive: true}},
		},
	}
}

func singleChange(bm types.Platform, ch odds.MarketChange) map[types.Platform]odds.Classification {
	return map[types.Platform]odds.Classification{
		bm: {Changed: []odds.MarketChange{ch}},
	}
}

func TestDetectPriceChangeBands(t *testing.T) {
	t.Parallel()
	d := NewDetector(testLogger())
	s := config.DefaultSettings() // bands 10/20/35
	kickoff := time.Now().Add(24 * time.Hour)

	cases := []struct {
		name    string
		oldOdds string
		newOdds string
		want    types.Severity
		none    bool
	}{
		{name: "below warning", oldOdds: "2.00", newOdds: "2.10", none: true},
		{name: "warning", oldOdds: "2.00", newOdds: "2.30", want: types.SeverityWarning},
		{name: "elevated", oldOdds: "2.00", newOdds: "2.50", want: types.SeverityElevated},
		{name: "critical drop", oldOdds: "2.00", newOdds: "1.20", want: types.SeverityCritical},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			in := EventInput{
				EventID:     1,
				Kickoff:     kickoff,
				PerPlatform: singleChange(types.PlatformSportyBet, change("home", tc.oldOdds, tc.newOdds)),
			}
			alerts := d.Detect(s, in, time.Now())

			if tc.none {
				if len(alerts) != 0 {
					t.Fatalf("alerts = %+v, want none", alerts)
				}
				return
			}
			if len(alerts) != 1 {
				t.Fatalf("alerts = %d, want 1", len(alerts))
			}
			a := alerts[0]
			if a.Type != types.AlertPriceChange || a.Severity != tc.want {
				t.Errorf("alert = %s/%s, want price_change/%s", a.Type, a.Severity, tc.want)
			}
			if a.Status != types.AlertNew {
				t.Errorf("status = %q, want new", a.Status)
			}
			if !a.OldValue.Equal(dec(tc.oldOdds)) || !a.NewValue.Equal(dec(tc.newOdds)) {
				t.Errorf("old/new = %s/%s", a.OldValue, a.NewValue)
			}
		})
	}
}

func TestDetectBandBoundaryIsInclusive(t *testing.T) {
	t.Parallel()
	d := NewDetector(testLogger())
	s := config.DefaultSettings()

	// Exactly +10% lands on the warning band.
	in := EventInput{
		EventID:     1,
		Kickoff:     time.Now().Add(time.Hour),
		PerPlatform: singleChange(types.PlatformBet9ja, change("home", "2.00", "2.20")),
	}
	alerts := d.Detect(s, in, time.Now())
	if len(alerts) != 1 || alerts[0].Severity != types.SeverityWarning {
		t.Fatalf("alerts = %+v, want exactly one warning", alerts)
	}
}

func TestDetectDedupePerOutcome(t *testing.T) {
	t.Parallel()
	d := NewDetector(testLogger())
	s := config.DefaultSettings()

	// The same (market, outcome) appearing twice in one cycle's changes
	// must emit one price_change alert.
	ch := change("home", "2.00", "2.60")
	in := EventInput{
		EventID: 1,
		Kickoff: time.Now().Add(time.Hour),
		PerPlatform: map[types.Platform]odds.Classification{
			types.PlatformSportyBet: {Changed: []odds.MarketChange{ch, ch}},
		},
	}
	alerts := d.Detect(s, in, time.Now())
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1 after dedupe", len(alerts))
	}
}

func TestDetectDirectionDisagreement(t *testing.T) {
	t.Parallel()
	d := NewDetector(testLogger())
	s := config.DefaultSettings()

	// Reference up, competitor down by more than the elevated band.
	in := EventInput{
		EventID: 1,
		Kickoff: time.Now().Add(time.Hour),
		PerPlatform: map[types.Platform]odds.Classification{
			types.PlatformBetPawa:   {Changed: []odds.MarketChange{change("home", "2.00", "2.40")}},
			types.PlatformSportyBet: {Changed: []odds.MarketChange{change("home", "2.00", "1.50")}},
		},
	}
	alerts := d.Detect(s, in, time.Now())

	var found *types.RiskAlert
	for i := range alerts {
		if alerts[i].Type == types.AlertDirectionDisagreement {
			found = &alerts[i]
		}
	}
	if found == nil {
		t.Fatalf("alerts = %+v, want a direction_disagreement", alerts)
	}
	if found.Bookmaker != types.PlatformBetPawa {
		t.Errorf("bookmaker = %s, want the reference platform", found.Bookmaker)
	}
	if found.CompetitorDirection != "down" {
		t.Errorf("competitor_direction = %q, want down", found.CompetitorDirection)
	}
}

func TestDetectNoDisagreementWhenAligned(t *testing.T) {
	t.Parallel()
	d := NewDetector(testLogger())
	s := config.DefaultSettings()

	in := EventInput{
		EventID: 1,
		Kickoff: time.Now().Add(time.Hour),
		PerPlatform: map[types.Platform]odds.Classification{
			types.PlatformBetPawa:   {Changed: []odds.MarketChange{change("home", "2.00", "2.40")}},
			types.PlatformSportyBet: {Changed: []odds.MarketChange{change("home", "2.00", "2.60")}},
		},
	}
	for _, a := range d.Detect(s, in, time.Now()) {
		if a.Type == types.AlertDirectionDisagreement {
			t.Fatalf("got disagreement alert for same-direction moves: %+v", a)
		}
	}
}

func TestDetectAvailabilityOnlyInImminentWindow(t *testing.T) {
	t.Parallel()
	d := NewDetector(testLogger())
	s := config.DefaultSettings() // imminent window 45 min
	now := time.Now()

	key := types.MarketKey{CanonicalID: "1x2", Line: "0"}
	gone := map[types.Platform]odds.Classification{
		types.PlatformBet9ja: {
			Disappeared: []types.MarketKey{key},
			Next:        map[types.MarketKey]types.CachedMarket{key: {CanonicalID: "1x2"}},
		},
	}

	// Kickoff in 30 minutes: inside the window.
	alerts := d.Detect(s, EventInput{EventID: 1, Kickoff: now.Add(30 * time.Minute), PerPlatform: gone}, now)
	if len(alerts) != 1 || alerts[0].Type != types.AlertAvailability || alerts[0].Severity != types.SeverityElevated {
		t.Fatalf("alerts = %+v, want one elevated availability alert", alerts)
	}

	// Kickoff in 3 hours: outside the window.
	if alerts := d.Detect(s, EventInput{EventID: 1, Kickoff: now.Add(3 * time.Hour), PerPlatform: gone}, now); len(alerts) != 0 {
		t.Fatalf("alerts = %+v, want none outside the imminent window", alerts)
	}

	// Kickoff already passed: no alert either.
	if alerts := d.Detect(s, EventInput{EventID: 1, Kickoff: now.Add(-time.Minute), PerPlatform: gone}, now); len(alerts) != 0 {
		t.Fatalf("alerts = %+v, want none after kickoff", alerts)
	}
}
