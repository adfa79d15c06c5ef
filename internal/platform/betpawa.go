package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"pawarisk/internal/config"
	"pawarisk/pkg/types"
)

// BetPawa is the reference-platform client. Its event listings carry full
// market depth, so the coordinator never needs a per-event fetch: FetchEvent
// exists only to satisfy the Client interface and is not called for events
// whose listing payload was kept.
type BetPawa struct {
	http   *resty.Client
	sem    semaphore
	logger *slog.Logger
}

// NewBetPawa creates the reference-platform client.
func NewBetPawa(cfg config.PlatformConfig, concurrency int, logger *slog.Logger) *BetPawa {
	return &BetPawa{
		http:   newHTTPClient(cfg),
		sem:    newSemaphore(concurrency),
		logger: logger.With("component", "client", "platform", "betpawa"),
	}
}

func (c *BetPawa) Platform() types.Platform            { return types.PlatformBetPawa }
func (c *BetPawa) Acquire(ctx context.Context) error   { return c.sem.acquire(ctx) }
func (c *BetPawa) Release()                            { c.sem.release() }

// betPawaCategory is the JSON shape of one tournament in the category listing.
type betPawaCategory struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Region struct {
		Name string `json:"name"`
	} `json:"region"`
	SportradarID string `json:"sportradarId"`
}

// betPawaWidget carries cross-platform ids. The Sportradar match id lives
// under the SPORTRADAR widget type as a numeric string.
type betPawaWidget struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type betPawaPrice struct {
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Suspended bool            `json:"suspended"`
}

type betPawaMarket struct {
	MarketType struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"marketType"`
	FormattedHandicap string         `json:"formattedHandicap"`
	Groups            []string       `json:"groups"`
	Prices            []betPawaPrice `json:"prices"`
}

type betPawaEvent struct {
	ID           string `json:"id"`
	StartTime    string `json:"startTime"`
	Participants []struct {
		Name string `json:"name"`
	} `json:"participants"`
	Widgets []betPawaWidget `json:"widgets"`
	Markets []betPawaMarket `json:"markets"`
}

type betPawaEventList struct {
	Events []betPawaEvent `json:"events"`
}

// FetchTournaments lists football tournaments.
func (c *BetPawa) FetchTournaments(ctx context.Context) ([]Tournament, error) {
	const op = "fetch_tournaments"

	var cats []betPawaCategory
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("sportId", "2").
		SetResult(&cats).
		Get("/api/sportsbook/v2/categories")
	if err != nil {
		return nil, netErr(types.PlatformBetPawa, op, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiErr(types.PlatformBetPawa, op, "status %d: %s", resp.StatusCode(), resp.String())
	}

	out := make([]Tournament, 0, len(cats))
	for _, cat := range cats {
		srID, _ := strconv.ParseInt(cat.SportradarID, 10, 64)
		out = append(out, Tournament{
			ExternalID:   cat.ID,
			Name:         cat.Name,
			Country:      cat.Region.Name,
			SportradarID: srID,
		})
	}
	return out, nil
}

// FetchEventsByTournament lists events with their full market depth.
func (c *BetPawa) FetchEventsByTournament(ctx context.Context, tournamentID string) ([]Event, error) {
	const op = "fetch_events"

	var list betPawaEventList
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("categoryId", tournamentID).
		SetResult(&list).
		Get("/api/sportsbook/v2/events/list")
	if err != nil {
		return nil, netErr(types.PlatformBetPawa, op, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiErr(types.PlatformBetPawa, op, "status %d: %s", resp.StatusCode(), resp.String())
	}

	out := make([]Event, 0, len(list.Events))
	for _, raw := range list.Events {
		ev, err := convertBetPawaEvent(raw)
		if err != nil {
			c.logger.Warn("skipping unparseable event", "event_id", raw.ID, "error", err)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// FetchEvent is unused for BetPawa; listings already carry full depth.
func (c *BetPawa) FetchEvent(ctx context.Context, fetchID string) (*EventMarkets, error) {
	return nil, apiErr(types.PlatformBetPawa, "fetch_event", "betpawa events carry markets in the listing")
}

func convertBetPawaEvent(raw betPawaEvent) (Event, error) {
	kickoff, err := time.Parse(time.RFC3339, raw.StartTime)
	if err != nil {
		return Event{}, fmt.Errorf("parse startTime %q: %w", raw.StartTime, err)
	}

	var home, away string
	if len(raw.Participants) >= 2 {
		home = raw.Participants[0].Name
		away = raw.Participants[1].Name
	}

	markets := make([]RawMarket, 0, len(raw.Markets))
	for _, m := range raw.Markets {
		outcomes := make([]RawOutcome, 0, len(m.Prices))
		for _, p := range m.Prices {
			outcomes = append(outcomes, RawOutcome{Name: p.Name, Odds: p.Price, Active: !p.Suspended})
		}
		markets = append(markets, RawMarket{
			ID:       m.MarketType.ID,
			Handicap: m.FormattedHandicap,
			Groups:   m.Groups,
			Outcomes: outcomes,
		})
	}

	return Event{
		ExternalID:   raw.ID,
		FetchID:      raw.ID,
		SportradarID: sportradarFromWidgets(raw.Widgets),
		Kickoff:      kickoff.UTC(),
		Home:         home,
		Away:         away,
		Markets:      &EventMarkets{Structured: markets},
	}, nil
}

// sportradarFromWidgets extracts the numeric Sportradar match id from the
// SPORTRADAR widget, 0 when absent.
func sportradarFromWidgets(widgets []betPawaWidget) int64 {
	for _, w := range widgets {
		if w.Type != "SPORTRADAR" {
			continue
		}
		if id, err := strconv.ParseInt(w.Data.ID, 10, 64); err == nil {
			return id
		}
	}
	return 0
}
