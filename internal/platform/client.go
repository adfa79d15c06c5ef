// Package platform implements the three bookmaker HTTP clients.
//
// Each client exposes the same small, typed fetch surface:
//
//   - FetchTournaments:         list football tournaments
//   - FetchEventsByTournament:  list events (BetPawa listings carry full markets)
//   - FetchEvent:               full market depth for one event
//
// Every request runs through a resty client with bounded retry on transport
// errors and 5xx responses only. API-shaped rejections (wrong success
// envelope) are never retried. Each client holds a per-platform semaphore
// sized from the settings row, so callers can fan out freely.
package platform

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"pawarisk/internal/config"
	"pawarisk/pkg/types"
)

// Tournament is one competition as reported by a platform listing endpoint.
type Tournament struct {
	ExternalID   string
	Name         string
	Country      string
	SportradarID int64 // 0 when the platform exposes none (Bet9ja)
}

// Event is one fixture as reported by a platform listing endpoint.
// Markets is non-nil only when the listing carries full market depth
// (BetPawa); otherwise the coordinator must call FetchEvent with FetchID.
type Event struct {
	ExternalID   string
	FetchID      string // id the per-event endpoint requires; Bet9ja differs from ExternalID
	SportradarID int64
	Kickoff      time.Time
	Home, Away   string
	Markets      *EventMarkets
}

// RawOutcome is one priced outcome before mapping.
type RawOutcome struct {
	Name   string
	Odds   decimal.Decimal
	Active bool
}

// RawMarket is the typed envelope handed to the mappers for structured
// platforms (BetPawa, SportyBet). Bet9ja's flat key/odds shape travels in
// EventMarkets.Flat instead.
type RawMarket struct {
	ID        string // platform market id
	Specifier string // SportyBet specifier string, e.g. "total=2.5"
	Handicap  string // BetPawa formattedHandicap
	Groups    []string
	Outcomes  []RawOutcome
}

// EventMarkets is the full parsed market depth of one event on one platform.
type EventMarkets struct {
	Structured []RawMarket
	Flat       map[string]decimal.Decimal
}

// Client is the common fetch surface of a bookmaker client. Implementations
// are safe for concurrent use; Acquire/Release bound in-flight requests to
// the platform's configured concurrency ceiling.
type Client interface {
	Platform() types.Platform
	FetchTournaments(ctx context.Context) ([]Tournament, error)
	FetchEventsByTournament(ctx context.Context, tournamentID string) ([]Event, error)
	FetchEvent(ctx context.Context, fetchID string) (*EventMarkets, error)

	Acquire(ctx context.Context) error
	Release()
}

// newHTTPClient builds a resty client with the shared retry policy:
// transport errors and 5xx responses retry with backoff, everything else
// surfaces immediately.
func newHTTPClient(cfg config.PlatformConfig) *resty.Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	retries := cfg.Retries
	if retries == 0 {
		retries = 3
	}

	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Accept", "application/json")

	c.JSONMarshal = json.Marshal
	c.JSONUnmarshal = json.Unmarshal

	if cfg.UserAgent != "" {
		c.SetHeader("User-Agent", cfg.UserAgent)
	}
	for k, v := range cfg.Headers {
		c.SetHeader(k, v)
	}
	return c
}

// semaphore is the per-platform concurrency ceiling.
type semaphore chan struct{}

func newSemaphore(n int) semaphore {
	if n <= 0 {
		n = 1
	}
	return make(semaphore, n)
}

func (s semaphore) acquire(ctx context.Context) error {
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s semaphore) release() { <-s }
