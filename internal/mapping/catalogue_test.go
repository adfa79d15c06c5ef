package mapping

import (
	"testing"

	"pawarisk/pkg/types"
)

func TestCodeMappingsCatalogue(t *testing.T) {
	t.Parallel()
	ms := CodeMappings()

	if len(ms) < 100 {
		t.Fatalf("catalogue has %d entries, want at least 100", len(ms))
	}

	seen := make(map[string]bool, len(ms))
	for _, m := range ms {
		if m.CanonicalID == "" {
			t.Fatalf("entry %q has empty canonical id", m.Name)
		}
		if seen[m.CanonicalID] {
			t.Errorf("duplicate canonical id %q", m.CanonicalID)
		}
		seen[m.CanonicalID] = true
		if m.Handler == types.HandlerUnsupported {
			continue
		}
		if len(m.Outcomes) == 0 {
			t.Errorf("entry %q has no outcomes", m.CanonicalID)
		}
	}
}

func TestBuildIndexOperatorWins(t *testing.T) {
	t.Parallel()
	code := []MarketMapping{
		{CanonicalID: "1x2", Name: "1X2", Handler: types.HandlerSimple, BetPawaID: "3743"},
	}
	db := []MarketMapping{
		{CanonicalID: "1x2", Name: "Match Result", Handler: types.HandlerSimple, BetPawaID: "3743", Active: true},
	}

	idx := buildIndex(code, db)

	got, ok := idx.byBetPawa["3743"]
	if !ok {
		t.Fatal("betpawa id 3743 not indexed")
	}
	if got.Source != "db" || got.Name != "Match Result" {
		t.Errorf("got source=%q name=%q, want operator entry to win", got.Source, got.Name)
	}
	if idx.dbCount != 1 || idx.codeCount != 1 {
		t.Errorf("counts = (code %d, db %d), want (1, 1)", idx.codeCount, idx.dbCount)
	}
}

func TestBuildIndexInactiveOperatorEntryIgnored(t *testing.T) {
	t.Parallel()
	code := []MarketMapping{
		{CanonicalID: "1x2", Name: "1X2", Handler: types.HandlerSimple, BetPawaID: "3743"},
	}
	db := []MarketMapping{
		{CanonicalID: "1x2", Name: "Disabled", BetPawaID: "3743", Active: false},
	}

	idx := buildIndex(code, db)

	got := idx.byBetPawa["3743"]
	if got.Source != "code" {
		t.Errorf("source = %q, want code entry to stay in force", got.Source)
	}
}

func TestFindBet9jaPrefix(t *testing.T) {
	t.Parallel()
	idx := buildIndex([]MarketMapping{
		{CanonicalID: "ou_total", Bet9jaKey: "S_OU"},
		{CanonicalID: "ou_corners", Bet9jaKey: "S_OUCORNER"},
	}, nil)

	// Exact match.
	if m, ok := idx.findBet9ja("S_OU"); !ok || m.CanonicalID != "ou_total" {
		t.Errorf("S_OU resolved to %v, want ou_total", m.CanonicalID)
	}

	// Longest stored prefix wins over the shorter one.
	if m, ok := idx.findBet9ja("S_OUCORNER"); !ok || m.CanonicalID != "ou_corners" {
		t.Errorf("S_OUCORNER resolved to %v, want ou_corners", m.CanonicalID)
	}

	// Prefix law: any extension of a stored key resolves to the same mapping.
	for _, raw := range []string{"S_OU@2.5", "S_OU@0.5_X", "S_OUZZZ"} {
		if m, ok := idx.findBet9ja(raw); !ok || m.CanonicalID != "ou_total" {
			t.Errorf("%s resolved to %v, want ou_total", raw, m.CanonicalID)
		}
	}

	if _, ok := idx.findBet9ja("S_XYZ"); ok {
		t.Error("S_XYZ resolved, want miss")
	}
}

func TestCacheRefreshSwapsAtomically(t *testing.T) {
	t.Parallel()
	c := NewCache(testLogger())
	c.Initialize(nil)

	if _, ok := c.FindByCanonical("custom_market"); ok {
		t.Fatal("custom_market resolved before refresh")
	}

	c.Refresh([]MarketMapping{{
		CanonicalID: "custom_market",
		Name:        "Custom",
		Handler:     types.HandlerSimple,
		BetPawaID:   "9999",
		Active:      true,
	}})

	if _, ok := c.FindByCanonical("custom_market"); !ok {
		t.Error("custom_market missing after refresh")
	}
	if _, ok := c.FindByBetPawa("3743"); !ok {
		t.Error("code mapping 3743 lost after refresh")
	}

	stats := c.Stats()
	if stats.DBCount != 1 {
		t.Errorf("db count = %d, want 1", stats.DBCount)
	}
}
