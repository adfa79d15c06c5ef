package platform

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"pawarisk/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPlatformConfig(baseURL string) config.PlatformConfig {
	return config.PlatformConfig{
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
		Retries: 2,
	}
}

func TestSportyBetFetchEvent(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("eventId"); got != "sr:match:100" {
			t.Errorf("eventId = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"bizCode": 10000,
			"data": {
				"eventId": "sr:match:100",
				"markets": [
					{"id": "18", "desc": "Over/Under", "specifier": "total=2.5", "outcomes": [
						{"desc": "Over 2.5", "odds": "1.85", "isActive": 1},
						{"desc": "Under 2.5", "odds": "1.95", "isActive": 0}
					]}
				]
			}
		}`)
	}))
	defer srv.Close()

	c := NewSportyBet(testPlatformConfig(srv.URL), 2, testLogger())
	got, err := c.FetchEvent(context.Background(), "sr:match:100")
	if err != nil {
		t.Fatalf("FetchEvent: %v", err)
	}
	if len(got.Structured) != 1 {
		t.Fatalf("markets = %d, want 1", len(got.Structured))
	}
	m := got.Structured[0]
	if m.ID != "18" || m.Specifier != "total=2.5" {
		t.Errorf("market = %q/%q", m.ID, m.Specifier)
	}
	if len(m.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(m.Outcomes))
	}
	if m.Outcomes[0].Odds.String() != "1.85" || !m.Outcomes[0].Active {
		t.Errorf("over = %s active=%v", m.Outcomes[0].Odds, m.Outcomes[0].Active)
	}
	if m.Outcomes[1].Active {
		t.Error("isActive=0 must map to inactive")
	}
}

func TestSportyBetFetchEventSkipsMalformedMarket(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"bizCode": 10000,
			"data": {
				"eventId": "sr:match:100",
				"markets": [
					{"id": "1", "desc": "1X2", "outcomes": [
						{"desc": "Home", "odds": "N/A", "isActive": 1}
					]},
					{"id": "18", "desc": "Over/Under", "specifier": "total=2.5", "outcomes": [
						{"desc": "Over 2.5", "odds": "1.85", "isActive": 1},
						{"desc": "Under 2.5", "odds": "1.95", "isActive": 1}
					]}
				]
			}
		}`)
	}))
	defer srv.Close()

	c := NewSportyBet(testPlatformConfig(srv.URL), 2, testLogger())
	got, err := c.FetchEvent(context.Background(), "sr:match:100")
	if err != nil {
		t.Fatalf("one bad market must not fail the event: %v", err)
	}
	if len(got.Structured) != 1 || got.Structured[0].ID != "18" {
		t.Errorf("markets = %+v, want only the parseable one", got.Structured)
	}
}

func TestSportyBetRejectedEnvelopeIsNotRetried(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"bizCode": 19000, "message": "system busy"}`)
	}))
	defer srv.Close()

	c := NewSportyBet(testPlatformConfig(srv.URL), 2, testLogger())
	_, err := c.FetchEvent(context.Background(), "sr:match:100")
	if err == nil {
		t.Fatal("want error for bizCode 19000")
	}
	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != KindAPI {
		t.Errorf("error = %v, want kind api", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("requests = %d, want 1 (no retry on a well-formed rejection)", n)
	}
}

func TestSportyBetRetriesServerErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"bizCode": 10000, "data": []}`)
	}))
	defer srv.Close()

	c := NewSportyBet(testPlatformConfig(srv.URL), 2, testLogger())
	if _, err := c.FetchTournaments(context.Background()); err != nil {
		t.Fatalf("FetchTournaments after one 502: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
}

func TestSportyBetFetchEventsByTournament(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"bizCode": 10000,
			"data": {"events": [{
				"eventId": "sr:match:49231845",
				"estimateStartTime": 1756047600000,
				"homeTeamName": "Arsenal",
				"awayTeamName": "Chelsea"
			}]}
		}`)
	}))
	defer srv.Close()

	c := NewSportyBet(testPlatformConfig(srv.URL), 2, testLogger())
	events, err := c.FetchEventsByTournament(context.Background(), "sr:tournament:17")
	if err != nil {
		t.Fatalf("FetchEventsByTournament: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	e := events[0]
	if e.SportradarID != 49231845 {
		t.Errorf("sportradar id = %d", e.SportradarID)
	}
	if e.FetchID != e.ExternalID {
		t.Errorf("fetch id = %q, want listing id", e.FetchID)
	}
	want := time.UnixMilli(1756047600000).UTC()
	if !e.Kickoff.Equal(want) {
		t.Errorf("kickoff = %v, want %v", e.Kickoff, want)
	}
	if e.Home != "Arsenal" || e.Away != "Chelsea" {
		t.Errorf("teams = %q/%q", e.Home, e.Away)
	}
}

func TestSportradarSuffix(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want int64
	}{
		{"sr:match:49231845", 49231845},
		{"sr:tournament:17", 17},
		{"not-an-id", 0},
		{"sr:match:abc", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := sportradarSuffix(tc.in); got != tc.want {
			t.Errorf("sportradarSuffix(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
