// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the pipeline — canonical markets,
// cached snapshots, write-batch DTOs, risk alerts, and scrape-run lifecycle
// values. It has no dependencies on internal packages, so it can be imported
// by any layer.
package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Platform identifies one bookmaker source.
type Platform string

const (
	PlatformBetPawa   Platform = "betpawa"   // reference platform
	PlatformSportyBet Platform = "sportybet" // competitor
	PlatformBet9ja    Platform = "bet9ja"    // competitor
)

// AllPlatforms lists every supported bookmaker, reference platform first.
var AllPlatforms = []Platform{PlatformBetPawa, PlatformSportyBet, PlatformBet9ja}

// HandlerKind routes a raw market to the right outcome-matching strategy.
type HandlerKind string

const (
	HandlerSimple      HandlerKind = "simple"
	HandlerOverUnder   HandlerKind = "over_under"
	HandlerHandicap    HandlerKind = "handicap"
	HandlerUnsupported HandlerKind = "unsupported"
)

// RunStatus is the lifecycle state of one scrape cycle.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// Phase labels a scrape-run progress transition. Phase logs double as the
// activity heartbeat read by the stale-run watchdog.
type Phase string

const (
	PhaseCycleStart        Phase = "CYCLE_START"
	PhaseDiscoveryComplete Phase = "DISCOVERY_COMPLETE"
	PhaseBatchStart        Phase = "BATCH_START"
	PhaseEventScraping     Phase = "EVENT_SCRAPING"
	PhaseEventScraped      Phase = "EVENT_SCRAPED"
	PhaseBatchComplete     Phase = "BATCH_COMPLETE"
	PhaseCycleComplete     Phase = "CYCLE_COMPLETE"
	PhaseCycleFailed       Phase = "CYCLE_FAILED"
)

// ————————————————————————————————————————————————————————————————————————
// Canonical (mapped) markets
// ————————————————————————————————————————————————————————————————————————

// Handicap carries the decomposed handicap of an Asian/European handicap
// market. For "0:1" home is -1 and away is +1; for "-0.5" home is -0.5 and
// away is +0.5.
type Handicap struct {
	Type string          `json:"type"` // "european" or "asian"
	Home decimal.Decimal `json:"home"`
	Away decimal.Decimal `json:"away"`
}

// MappedOutcome is one priced outcome of a canonical market.
type MappedOutcome struct {
	Name     string          `json:"name"`
	Odds     decimal.Decimal `json:"odds"`
	IsActive bool            `json:"is_active"`
}

// MappedMarket is the mapper output for one platform market on one event:
// the platform's raw market translated to the canonical catalogue form.
// Line is populated from the platform's total/handicap parameter so that
// (CanonicalID, Line) is the cross-platform join key.
type MappedMarket struct {
	CanonicalID string           `json:"canonical_id"`
	Name        string           `json:"name"`
	Line        *decimal.Decimal `json:"line,omitempty"`
	Handicap    *Handicap        `json:"handicap,omitempty"`
	Outcomes    []MappedOutcome  `json:"outcomes"`
	Groups      []string         `json:"groups,omitempty"`
}

// MarketKey is the identity of a market instance within one (event, bookmaker):
// canonical id plus the line normalised to "0" when absent.
type MarketKey struct {
	CanonicalID string
	Line        string
}

// Key returns the market's join key. A nil line normalises to "0" so that
// unparameterised markets collide with a stored COALESCE(line, 0).
func (m MappedMarket) Key() MarketKey {
	return MarketKey{CanonicalID: m.CanonicalID, Line: LineKey(m.Line)}
}

// LineKey normalises an optional line to its join-key string form.
func LineKey(line *decimal.Decimal) string {
	if line == nil {
		return "0"
	}
	return line.String()
}

// ————————————————————————————————————————————————————————————————————————
// Odds cache entries
// ————————————————————————————————————————————————————————————————————————

// CachedMarket is what the in-memory odds cache stores for one market
// instance. UnavailableAt is nil while the bookmaker currently offers the
// market, and set to the disappearance time otherwise.
type CachedMarket struct {
	CanonicalID   string           `json:"canonical_id"`
	Name          string           `json:"name"`
	Line          *decimal.Decimal `json:"line,omitempty"`
	Handicap      *Handicap        `json:"handicap,omitempty"`
	Outcomes      []MappedOutcome  `json:"outcomes"`
	Groups        []string         `json:"groups,omitempty"`
	UnavailableAt *time.Time       `json:"unavailable_at,omitempty"`
}

// Key returns the market's join key.
func (m CachedMarket) Key() MarketKey {
	return MarketKey{CanonicalID: m.CanonicalID, Line: LineKey(m.Line)}
}

// CachedSnapshot is the latest scraped state of one (event, bookmaker).
// CapturedAt and LastConfirmedAt are both the wall-clock time of the most
// recent scrape, never the most recent change; the read API's freshness
// indicator must use LastConfirmedAt.
type CachedSnapshot struct {
	EventID         int64                      `json:"event_id"`
	Bookmaker       Platform                   `json:"bookmaker"`
	CapturedAt      time.Time                  `json:"captured_at"`
	LastConfirmedAt time.Time                  `json:"last_confirmed_at"`
	Markets         map[MarketKey]CachedMarket `json:"-"`
}

// ————————————————————————————————————————————————————————————————————————
// Discovery / scheduling
// ————————————————————————————————————————————————————————————————————————

// PlatformRef is one platform's handle on an event: the id the listing
// endpoint reported and the (possibly different) id the per-event fetch
// requires. Bet9ja is the only platform where the two differ.
type PlatformRef struct {
	ExternalID string
	FetchID    string
}

// EventTarget is the per-cycle scheduling record for one event: which
// platforms offer it and how it ranks in the priority queue. Created at
// discovery, destroyed at cycle end.
type EventTarget struct {
	EventID      int64 // internal id: sportradar id, or synthetic for unjoined events
	SportradarID int64 // 0 when no cross-platform id exists
	Kickoff      time.Time
	Home, Away   string
	Tournament   string
	Platforms    map[Platform]PlatformRef
}

// Coverage is the number of platforms offering this event.
func (t EventTarget) Coverage() int { return len(t.Platforms) }

// HasBetPawa reports whether the reference platform offers this event.
func (t EventTarget) HasBetPawa() bool {
	_, ok := t.Platforms[PlatformBetPawa]
	return ok
}

// ————————————————————————————————————————————————————————————————————————
// Write path
// ————————————————————————————————————————————————————————————————————————

// MarketCurrentWrite is one market-granular row bound for the durable store.
// Changed=true obliges the handler to append a history row; Changed=false
// only bumps last_confirmed_at on the current row.
type MarketCurrentWrite struct {
	EventID       int64
	Bookmaker     Platform
	CanonicalID   string
	Name          string
	Line          *decimal.Decimal
	Handicap      *Handicap
	Outcomes      []MappedOutcome
	Groups        []string
	Changed       bool
	UnavailableAt *time.Time
	CapturedAt    time.Time
}

// WriteBatch is the DTO passed from the coordinator to the asynchronous
// write handler. One batch per scraped batch of events.
type WriteBatch struct {
	RunID      string
	Markets    []MarketCurrentWrite
	Alerts     []RiskAlert
	EnqueuedAt time.Time
}

// ————————————————————————————————————————————————————————————————————————
// Risk alerts
// ————————————————————————————————————————————————————————————————————————

// AlertType classifies a risk alert.
type AlertType string

const (
	AlertPriceChange           AlertType = "price_change"
	AlertDirectionDisagreement AlertType = "direction_disagreement"
	AlertAvailability          AlertType = "availability"
)

// Severity bands an alert by configured thresholds.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityElevated Severity = "elevated"
	SeverityCritical Severity = "critical"
)

// AlertStatus is the review lifecycle of a persisted alert.
type AlertStatus string

const (
	AlertNew          AlertStatus = "new"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertPast         AlertStatus = "past"
)

// RiskAlert is one detector emission. All alerts are minted with Status=new;
// past is applied later by a background sweep once the event has kicked off.
type RiskAlert struct {
	ID                  int64            `json:"id,omitempty"`
	EventID             int64            `json:"event_id"`
	Bookmaker           Platform         `json:"bookmaker_slug"`
	CanonicalID         string           `json:"canonical_market_id"`
	Line                *decimal.Decimal `json:"line,omitempty"`
	OutcomeName         string           `json:"outcome_name,omitempty"`
	Type                AlertType        `json:"alert_type"`
	Severity            Severity         `json:"severity"`
	ChangePercent       decimal.Decimal  `json:"change_percent"`
	OldValue            decimal.Decimal  `json:"old_value"`
	NewValue            decimal.Decimal  `json:"new_value"`
	CompetitorDirection string           `json:"competitor_direction,omitempty"`
	DetectedAt          time.Time        `json:"detected_at"`
	Status              AlertStatus      `json:"status"`
}

// DedupeKey identifies an alert for within-cycle deduplication: at most one
// price_change alert per (event, bookmaker, market, outcome) per cycle.
func (a RiskAlert) DedupeKey() string {
	return fmt.Sprintf("%d|%s|%s|%s|%s|%s", a.EventID, a.Bookmaker, a.CanonicalID, LineKey(a.Line), a.OutcomeName, a.Type)
}
