package mapper

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"pawarisk/internal/mapping"
	"pawarisk/internal/platform"
	"pawarisk/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCache(t *testing.T) *mapping.Cache {
	t.Helper()
	c := mapping.NewCache(testLogger())
	c.Initialize(nil)
	return c
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ———— shared helpers ————

func TestParseHandicapEuropean(t *testing.T) {
	t.Parallel()
	h, err := parseHandicap("0:1")
	if err != nil {
		t.Fatalf("parseHandicap: %v", err)
	}
	if h.Type != "european" {
		t.Errorf("type = %q, want european", h.Type)
	}
	if !h.Home.Equal(dec("-1")) || !h.Away.Equal(dec("1")) {
		t.Errorf("home/away = %s/%s, want -1/1", h.Home, h.Away)
	}
}

func TestParseHandicapAsian(t *testing.T) {
	t.Parallel()
	h, err := parseHandicap("-0.5")
	if err != nil {
		t.Fatalf("parseHandicap: %v", err)
	}
	if h.Type != "asian" {
		t.Errorf("type = %q, want asian", h.Type)
	}
	if !h.Home.Equal(dec("-0.5")) || !h.Away.Equal(dec("0.5")) {
		t.Errorf("home/away = %s/%s, want -0.5/0.5", h.Home, h.Away)
	}
}

func TestParseHandicapMalformed(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "abc", "1:", ":2", "0:x"} {
		if _, err := parseHandicap(raw); err == nil {
			t.Errorf("parseHandicap(%q) succeeded, want error", raw)
		}
	}
}

func TestParseSpecifier(t *testing.T) {
	t.Parallel()
	got := parseSpecifier("total=2.5;variant=sr:exact_goals:4+")
	if got["total"] != "2.5" {
		t.Errorf("total = %q, want 2.5", got["total"])
	}
	if got["variant"] != "sr:exact_goals:4+" {
		t.Errorf("variant = %q", got["variant"])
	}
	if len(parseSpecifier("")) != 0 {
		t.Error("empty specifier produced entries")
	}
}

// ———— SportyBet ————

func sportyRaw1X2() platform.RawMarket {
	return platform.RawMarket{
		ID: "1",
		Outcomes: []platform.RawOutcome{
			{Name: "Home", Odds: dec("2.10"), Active: true},
			{Name: "Draw", Odds: dec("3.30"), Active: true},
			{Name: "Away", Odds: dec("3.50"), Active: true},
		},
	}
}

func TestSportyBetSimpleMarket(t *testing.T) {
	t.Parallel()
	m := NewSportyBet(testCache(t), testLogger())

	res := m.MapEvent(1, "A v B", []platform.RawMarket{sportyRaw1X2()})
	if len(res.Unmapped) != 0 {
		t.Fatalf("unmapped = %v", res.Unmapped)
	}
	if len(res.Markets) != 1 {
		t.Fatalf("markets = %d, want 1", len(res.Markets))
	}

	got := res.Markets[0]
	if got.CanonicalID != "1x2" {
		t.Errorf("canonical = %q, want 1x2", got.CanonicalID)
	}
	if got.Line != nil {
		t.Errorf("line = %v, want nil", got.Line)
	}
	wantNames := []string{"home", "draw", "away"}
	for i, o := range got.Outcomes {
		if o.Name != wantNames[i] {
			t.Errorf("outcome[%d] = %q, want %q", i, o.Name, wantNames[i])
		}
	}
	if !got.Outcomes[0].Odds.Equal(dec("2.10")) {
		t.Errorf("home odds = %s, want 2.10", got.Outcomes[0].Odds)
	}
}

func TestSportyBetOverUnder(t *testing.T) {
	t.Parallel()
	m := NewSportyBet(testCache(t), testLogger())

	res := m.MapEvent(1, "A v B", []platform.RawMarket{{
		ID:        "18",
		Specifier: "total=2.5",
		Outcomes: []platform.RawOutcome{
			{Name: "Over 2.5", Odds: dec("1.85"), Active: true},
			{Name: "Under 2.5", Odds: dec("1.95"), Active: true},
		},
	}})
	if len(res.Markets) != 1 {
		t.Fatalf("markets = %d, want 1 (unmapped %v)", len(res.Markets), res.Unmapped)
	}

	got := res.Markets[0]
	if got.CanonicalID != "ou_total" {
		t.Errorf("canonical = %q, want ou_total", got.CanonicalID)
	}
	if got.Line == nil || !got.Line.Equal(dec("2.5")) {
		t.Errorf("line = %v, want 2.5", got.Line)
	}
	if got.Outcomes[0].Name != "over" || got.Outcomes[1].Name != "under" {
		t.Errorf("outcomes = %v, want over/under order", got.Outcomes)
	}
}

func TestSportyBetOverUnderMissingTotal(t *testing.T) {
	t.Parallel()
	m := NewSportyBet(testCache(t), testLogger())

	res := m.MapEvent(1, "A v B", []platform.RawMarket{{
		ID: "18",
		Outcomes: []platform.RawOutcome{
			{Name: "Over", Odds: dec("1.85"), Active: true},
			{Name: "Under", Odds: dec("1.95"), Active: true},
		},
	}})
	if len(res.Markets) != 0 {
		t.Fatalf("markets = %d, want 0", len(res.Markets))
	}
	if len(res.Unmapped) != 1 || res.Unmapped[0].Reason != ReasonUnknownParamMarket {
		t.Fatalf("unmapped = %+v, want one UNKNOWN_PARAM_MARKET", res.Unmapped)
	}
}

func TestSportyBetHandicap(t *testing.T) {
	t.Parallel()
	m := NewSportyBet(testCache(t), testLogger())

	res := m.MapEvent(1, "A v B", []platform.RawMarket{{
		ID:        "16",
		Specifier: "hcp=0:1",
		Outcomes: []platform.RawOutcome{
			{Name: "Home", Odds: dec("3.10"), Active: true},
			{Name: "Draw", Odds: dec("3.60"), Active: true},
			{Name: "Away", Odds: dec("2.05"), Active: true},
		},
	}})
	if len(res.Markets) != 1 {
		t.Fatalf("markets = %d, want 1 (unmapped %v)", len(res.Markets), res.Unmapped)
	}

	got := res.Markets[0]
	if got.Handicap == nil || got.Handicap.Type != "european" {
		t.Fatalf("handicap = %+v, want european triple", got.Handicap)
	}
	if got.Line == nil || !got.Line.Equal(dec("-1")) {
		t.Errorf("line = %v, want handicap home -1", got.Line)
	}
}

func TestSportyBetUnknownMarket(t *testing.T) {
	t.Parallel()
	m := NewSportyBet(testCache(t), testLogger())

	res := m.MapEvent(7, "A v B", []platform.RawMarket{{
		ID:       "99999",
		Outcomes: []platform.RawOutcome{{Name: "Thing", Odds: dec("2.0"), Active: true}},
	}})
	if len(res.Unmapped) != 1 {
		t.Fatalf("unmapped = %d, want 1", len(res.Unmapped))
	}
	u := res.Unmapped[0]
	if u.Reason != ReasonUnknownMarket || u.Platform != types.PlatformSportyBet || u.EventID != 7 {
		t.Errorf("unmapped = %+v", u)
	}
}

func TestSportyBetDeterministic(t *testing.T) {
	t.Parallel()
	m := NewSportyBet(testCache(t), testLogger())
	raw := []platform.RawMarket{sportyRaw1X2(), {
		ID:        "18",
		Specifier: "total=1.5",
		Outcomes: []platform.RawOutcome{
			{Name: "Under 1.5", Odds: dec("2.50"), Active: true},
			{Name: "Over 1.5", Odds: dec("1.50"), Active: true},
		},
	}}

	a := m.MapEvent(1, "A v B", raw)
	b := m.MapEvent(1, "A v B", raw)
	if !reflect.DeepEqual(a, b) {
		t.Error("identical input mapped to different output")
	}
}

// ———— Bet9ja ————

func TestBet9jaFlatMap(t *testing.T) {
	t.Parallel()
	m := NewBet9ja(testCache(t), testLogger())

	res := m.MapEvent(1, "A v B", map[string]decimal.Decimal{
		"S_1X2_1":    dec("2.10"),
		"S_1X2_X":    dec("3.30"),
		"S_1X2_2":    dec("3.50"),
		"S_OU@2.5_O": dec("1.85"),
		"S_OU@2.5_U": dec("1.95"),
		"S_OU@3.5_O": dec("2.80"),
		"S_OU@3.5_U": dec("1.40"),
	})
	if len(res.Markets) != 3 {
		t.Fatalf("markets = %d, want 3 (unmapped %v)", len(res.Markets), res.Unmapped)
	}

	byKey := make(map[types.MarketKey]types.MappedMarket)
	for _, mm := range res.Markets {
		byKey[mm.Key()] = mm
	}

	oneXTwo, ok := byKey[types.MarketKey{CanonicalID: "1x2", Line: "0"}]
	if !ok {
		t.Fatal("1x2 missing")
	}
	if len(oneXTwo.Outcomes) != 3 || oneXTwo.Outcomes[0].Name != "home" {
		t.Errorf("1x2 outcomes = %v", oneXTwo.Outcomes)
	}

	ou25, ok := byKey[types.MarketKey{CanonicalID: "ou_total", Line: "2.5"}]
	if !ok {
		t.Fatal("ou_total@2.5 missing")
	}
	if !ou25.Outcomes[0].Odds.Equal(dec("1.85")) {
		t.Errorf("over 2.5 odds = %s, want 1.85", ou25.Outcomes[0].Odds)
	}
	if _, ok := byKey[types.MarketKey{CanonicalID: "ou_total", Line: "3.5"}]; !ok {
		t.Error("ou_total@3.5 missing: lines must map to distinct markets")
	}
}

func TestBet9jaSuffixCaseSensitive(t *testing.T) {
	t.Parallel()
	m := NewBet9ja(testCache(t), testLogger())

	// Lowercase suffixes must not match the catalogue's "O"/"U".
	res := m.MapEvent(1, "A v B", map[string]decimal.Decimal{
		"S_OU@2.5_o": dec("1.85"),
		"S_OU@2.5_u": dec("1.95"),
	})
	if len(res.Markets) != 0 {
		t.Fatalf("markets = %d, want 0", len(res.Markets))
	}
	if len(res.Unmapped) != 1 || res.Unmapped[0].Reason != ReasonNoMatchingOutcomes {
		t.Fatalf("unmapped = %+v, want NO_MATCHING_OUTCOMES", res.Unmapped)
	}
}

func TestBet9jaUnknownKeysIgnoredOrLogged(t *testing.T) {
	t.Parallel()
	m := NewBet9ja(testCache(t), testLogger())

	res := m.MapEvent(1, "A v B", map[string]decimal.Decimal{
		"S_ZZZUNKNOWN_1": dec("1.10"),
		"not-a-key":      dec("9.99"),
	})
	if len(res.Markets) != 0 {
		t.Fatalf("markets = %d, want 0", len(res.Markets))
	}
	// The undecomposable key is dropped; the unknown market is accumulated.
	if len(res.Unmapped) != 1 || res.Unmapped[0].Reason != ReasonUnknownMarket {
		t.Fatalf("unmapped = %+v", res.Unmapped)
	}
}

// ———— BetPawa ————

func TestBetPawaCatalogueAttach(t *testing.T) {
	t.Parallel()
	m := NewBetPawa(testCache(t), testLogger())

	res := m.MapEvent(1, "A v B", []platform.RawMarket{
		{
			ID: "3743",
			Outcomes: []platform.RawOutcome{
				{Name: "1", Odds: dec("2.04"), Active: true},
				{Name: "X", Odds: dec("3.28"), Active: true},
				{Name: "2", Odds: dec("3.56"), Active: true},
			},
		},
		{
			ID:       "3795",
			Handicap: "2.5",
			Outcomes: []platform.RawOutcome{
				{Name: "Over 2.5", Odds: dec("1.80"), Active: true},
				{Name: "Under 2.5", Odds: dec("2.00"), Active: true},
			},
		},
	})
	if len(res.Markets) != 2 {
		t.Fatalf("markets = %d, want 2 (unmapped %v)", len(res.Markets), res.Unmapped)
	}

	if res.Markets[0].CanonicalID != "1x2" {
		t.Errorf("canonical = %q, want 1x2", res.Markets[0].CanonicalID)
	}
	ou := res.Markets[1]
	if ou.CanonicalID != "ou_total" {
		t.Errorf("canonical = %q, want ou_total", ou.CanonicalID)
	}
	if ou.Line == nil || !ou.Line.Equal(dec("2.5")) {
		t.Errorf("line = %v, want 2.5 copied from the handicap value", ou.Line)
	}
}
