package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"pawarisk/internal/config"
	"pawarisk/pkg/types"
)

// sportyBetSuccess is the bizCode the SportyBet envelope uses for success.
const sportyBetSuccess = 10000

// SportyBet is the SportyBet client. All responses share a bizCode envelope;
// anything other than bizCode=10000 is an API failure and is not retried.
// Event ids arrive Sportradar-prefixed ("sr:match:<n>"); only the numeric
// suffix is stored.
type SportyBet struct {
	http   *resty.Client
	sem    semaphore
	logger *slog.Logger
}

// NewSportyBet creates the SportyBet client.
func NewSportyBet(cfg config.PlatformConfig, concurrency int, logger *slog.Logger) *SportyBet {
	return &SportyBet{
		http:   newHTTPClient(cfg),
		sem:    newSemaphore(concurrency),
		logger: logger.With("component", "client", "platform", "sportybet"),
	}
}

func (c *SportyBet) Platform() types.Platform          { return types.PlatformSportyBet }
func (c *SportyBet) Acquire(ctx context.Context) error { return c.sem.acquire(ctx) }
func (c *SportyBet) Release()                          { c.sem.release() }

type sportyEnvelope[T any] struct {
	BizCode int    `json:"bizCode"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type sportyTournament struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CategoryName string `json:"categoryName"`
}

type sportyEvent struct {
	EventID           string `json:"eventId"` // "sr:match:<n>"
	EstimateStartTime int64  `json:"estimateStartTime"` // unix ms
	HomeTeamName      string `json:"homeTeamName"`
	AwayTeamName      string `json:"awayTeamName"`
}

type sportyOutcome struct {
	Desc     string `json:"desc"`
	Odds     string `json:"odds"`
	IsActive int    `json:"isActive"`
}

type sportyMarket struct {
	ID        string          `json:"id"`
	Desc      string          `json:"desc"`
	Specifier string          `json:"specifier"`
	Outcomes  []sportyOutcome `json:"outcomes"`
}

type sportyEventDetail struct {
	EventID string         `json:"eventId"`
	Markets []sportyMarket `json:"markets"`
}

// FetchTournaments lists football tournaments.
func (c *SportyBet) FetchTournaments(ctx context.Context) ([]Tournament, error) {
	const op = "fetch_tournaments"

	var env sportyEnvelope[[]sportyTournament]
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("sportId", "sr:sport:1").
		SetResult(&env).
		Get("/api/ng/factsCenter/tournaments")
	if err != nil {
		return nil, netErr(types.PlatformSportyBet, op, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiErr(types.PlatformSportyBet, op, "status %d", resp.StatusCode())
	}
	if env.BizCode != sportyBetSuccess {
		return nil, apiErr(types.PlatformSportyBet, op, "bizCode %d: %s", env.BizCode, env.Message)
	}

	out := make([]Tournament, 0, len(env.Data))
	for _, t := range env.Data {
		out = append(out, Tournament{
			ExternalID:   t.ID,
			Name:         t.Name,
			Country:      t.CategoryName,
			SportradarID: sportradarSuffix(t.ID),
		})
	}
	return out, nil
}

// FetchEventsByTournament lists events without market depth; the coordinator
// follows up with FetchEvent per event.
func (c *SportyBet) FetchEventsByTournament(ctx context.Context, tournamentID string) ([]Event, error) {
	const op = "fetch_events"

	var env sportyEnvelope[struct {
		Events []sportyEvent `json:"events"`
	}]
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("tournamentId", tournamentID).
		SetResult(&env).
		Get("/api/ng/factsCenter/events")
	if err != nil {
		return nil, netErr(types.PlatformSportyBet, op, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiErr(types.PlatformSportyBet, op, "status %d", resp.StatusCode())
	}
	if env.BizCode != sportyBetSuccess {
		return nil, apiErr(types.PlatformSportyBet, op, "bizCode %d: %s", env.BizCode, env.Message)
	}

	out := make([]Event, 0, len(env.Data.Events))
	for _, e := range env.Data.Events {
		srID := sportradarSuffix(e.EventID)
		if srID == 0 {
			c.logger.Warn("event without sportradar id", "event_id", e.EventID)
		}
		out = append(out, Event{
			ExternalID:   e.EventID,
			FetchID:      e.EventID,
			SportradarID: srID,
			Kickoff:      time.UnixMilli(e.EstimateStartTime).UTC(),
			Home:         e.HomeTeamName,
			Away:         e.AwayTeamName,
		})
	}
	return out, nil
}

// FetchEvent returns the full market depth for one event.
func (c *SportyBet) FetchEvent(ctx context.Context, fetchID string) (*EventMarkets, error) {
	const op = "fetch_event"

	var env sportyEnvelope[sportyEventDetail]
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("eventId", fetchID).
		SetResult(&env).
		Get("/api/ng/factsCenter/event")
	if err != nil {
		return nil, netErr(types.PlatformSportyBet, op, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiErr(types.PlatformSportyBet, op, "status %d", resp.StatusCode())
	}
	if env.BizCode != sportyBetSuccess {
		return nil, apiErr(types.PlatformSportyBet, op, "bizCode %d: %s", env.BizCode, env.Message)
	}

	markets := make([]RawMarket, 0, len(env.Data.Markets))
	for _, m := range env.Data.Markets {
		outcomes, err := convertSportyOutcomes(m.Outcomes)
		if err != nil {
			// One bad market must not sink the event; drop it and move on.
			c.logger.Warn("skipping market with unparseable odds",
				"event_id", fetchID, "market_id", m.ID,
				"sample", truncateSample(err.Error(), 80))
			continue
		}
		markets = append(markets, RawMarket{ID: m.ID, Specifier: m.Specifier, Outcomes: outcomes})
	}
	return &EventMarkets{Structured: markets}, nil
}

func convertSportyOutcomes(raw []sportyOutcome) ([]RawOutcome, error) {
	out := make([]RawOutcome, 0, len(raw))
	for _, o := range raw {
		odds, err := decimal.NewFromString(o.Odds)
		if err != nil {
			return nil, fmt.Errorf("odds %q: %w", o.Odds, err)
		}
		out = append(out, RawOutcome{Name: o.Desc, Odds: odds, Active: o.IsActive == 1})
	}
	return out, nil
}

func truncateSample(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// sportradarSuffix extracts the numeric suffix of a Sportradar-prefixed id
// like "sr:match:49231845". Returns 0 when the format does not match.
func sportradarSuffix(id string) int64 {
	idx := strings.LastIndexByte(id, ':')
	if idx < 0 {
		return 0
	}
	n, err := strconv.ParseInt(id[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
