package platform

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"pawarisk/internal/config"
	"pawarisk/pkg/types"
)

// Bet9ja is the Bet9ja client. Responses use a success-code envelope whose
// accepted codes differ by endpoint: listings answer R="OK" while the
// per-event endpoint answers R="D" (and "OK" on some gateways — both are
// accepted there). The per-event endpoint also requires the event's IDE
// field rather than the listing ID, so Event.FetchID differs from
// Event.ExternalID on this platform.
//
// Odds arrive as a flat key→price map. Keys embed market, line, and outcome
// (e.g. "S_OU@2.5_O"); the Bet9ja mapper decomposes them.
type Bet9ja struct {
	http   *resty.Client
	sem    semaphore
	delay  time.Duration // inter-request delay, operator-tunable
	logger *slog.Logger
}

// NewBet9ja creates the Bet9ja client.
func NewBet9ja(cfg config.PlatformConfig, concurrency int, delay time.Duration, logger *slog.Logger) *Bet9ja {
	return &Bet9ja{
		http:   newHTTPClient(cfg),
		sem:    newSemaphore(concurrency),
		delay:  delay,
		logger: logger.With("component", "client", "platform", "bet9ja"),
	}
}

func (c *Bet9ja) Platform() types.Platform          { return types.PlatformBet9ja }
func (c *Bet9ja) Acquire(ctx context.Context) error { return c.sem.acquire(ctx) }
func (c *Bet9ja) Release()                          { c.sem.release() }

type bet9jaGroup struct {
	ID string `json:"ID"`
	DS string `json:"DS"`
}

type bet9jaEvent struct {
	ID        string `json:"ID"`
	IDE       string `json:"IDE"` // id the per-event endpoint requires
	STARTDATE string `json:"STARTDATE"`
	DS        string `json:"DS"` // "Home - Away"
}

type bet9jaListEnvelope struct {
	R string `json:"R"`
	D struct {
		G []bet9jaGroup `json:"G"`
		E []bet9jaEvent `json:"E"`
	} `json:"D"`
}

type bet9jaEventEnvelope struct {
	R string `json:"R"`
	D struct {
		E struct {
			O map[string]decimal.Decimal `json:"O"`
		} `json:"E"`
	} `json:"D"`
}

// pause applies the configured inter-request delay, honouring cancellation.
func (c *Bet9ja) pause(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(c.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FetchTournaments lists football groups. Bet9ja exposes no cross-platform
// id at tournament level, so SportradarID is always 0 here.
func (c *Bet9ja) FetchTournaments(ctx context.Context) ([]Tournament, error) {
	const op = "fetch_tournaments"
	if err := c.pause(ctx); err != nil {
		return nil, err
	}

	var env bet9jaListEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("IDSPORT", "S").
		SetResult(&env).
		Get("/feapi/PalimpsestAjax/GetGroups")
	if err != nil {
		return nil, netErr(types.PlatformBet9ja, op, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiErr(types.PlatformBet9ja, op, "status %d", resp.StatusCode())
	}
	if env.R != "OK" {
		return nil, apiErr(types.PlatformBet9ja, op, "response code %q", env.R)
	}

	out := make([]Tournament, 0, len(env.D.G))
	for _, g := range env.D.G {
		out = append(out, Tournament{ExternalID: g.ID, Name: g.DS})
	}
	return out, nil
}

// FetchEventsByTournament lists events in one group, market-shallow.
func (c *Bet9ja) FetchEventsByTournament(ctx context.Context, tournamentID string) ([]Event, error) {
	const op = "fetch_events"
	if err := c.pause(ctx); err != nil {
		return nil, err
	}

	var env bet9jaListEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("IDGROUP", tournamentID).
		SetResult(&env).
		Get("/feapi/PalimpsestAjax/GetEventsInGroup")
	if err != nil {
		return nil, netErr(types.PlatformBet9ja, op, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiErr(types.PlatformBet9ja, op, "status %d", resp.StatusCode())
	}
	if env.R != "OK" {
		return nil, apiErr(types.PlatformBet9ja, op, "response code %q", env.R)
	}

	out := make([]Event, 0, len(env.D.E))
	for _, e := range env.D.E {
		kickoff, err := parseBet9jaTime(e.STARTDATE)
		if err != nil {
			c.logger.Warn("skipping event with unparseable start date",
				"event_id", e.ID, "start_date", e.STARTDATE)
			continue
		}
		home, away := splitBet9jaTeams(e.DS)
		out = append(out, Event{
			ExternalID: e.ID,
			FetchID:    e.IDE,
			Kickoff:    kickoff,
			Home:       home,
			Away:       away,
		})
	}
	return out, nil
}

// FetchEvent returns the full flat odds map for one event. Requires the
// IDE fetch id, not the listing ID. Accepts both "OK" and "D" success codes;
// this endpoint answers "D" on the main gateway.
func (c *Bet9ja) FetchEvent(ctx context.Context, fetchID string) (*EventMarkets, error) {
	const op = "fetch_event"
	if err := c.pause(ctx); err != nil {
		return nil, err
	}

	var env bet9jaEventEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("IDEVENT", fetchID).
		SetResult(&env).
		Get("/feapi/PalimpsestAjax/GetEvent")
	if err != nil {
		return nil, netErr(types.PlatformBet9ja, op, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiErr(types.PlatformBet9ja, op, "status %d", resp.StatusCode())
	}
	if env.R != "OK" && env.R != "D" {
		return nil, apiErr(types.PlatformBet9ja, op, "response code %q", env.R)
	}

	return &EventMarkets{Flat: env.D.E.O}, nil
}

func parseBet9jaTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func splitBet9jaTeams(ds string) (string, string) {
	parts := strings.SplitN(ds, " - ", 2)
	if len(parts) != 2 {
		return ds, ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
