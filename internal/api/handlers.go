package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"pawarisk/internal/mapping"
	"pawarisk/internal/odds"
	"pawarisk/internal/scrape"
	"pawarisk/internal/store"
	"pawarisk/pkg/types"
)

// Handlers holds all HTTP handler dependencies.
type Handlers struct {
	cache     *odds.Cache
	store     *store.Store
	mappings  *mapping.Cache
	scheduler *scrape.Scheduler
	queue     *store.Queue
	hub       *Hub
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(
	cache *odds.Cache,
	st *store.Store,
	mappings *mapping.Cache,
	scheduler *scrape.Scheduler,
	queue *store.Queue,
	hub *Hub,
	allowedOrigins []string,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		cache:     cache,
		store:     st,
		mappings:  mappings,
		scheduler: scheduler,
		queue:     queue,
		hub:       hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger.With("component", "api-handlers"),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		return set[r.Header.Get("Origin")]
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response encode failed", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// HandleHealth reports process and store health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, map[string]any{
		"status":    status,
		"cache":     h.cache.Stats(),
		"paused":    h.scheduler.Paused(),
		"scraping":  h.scheduler.Running(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// oddsResponse is one event's snapshot as served to clients. SnapshotTime
// is last_confirmed_at: the last time the scrape saw the bookmaker, not the
// last time odds moved.
type oddsResponse struct {
	EventID      int64                `json:"event_id"`
	Bookmaker    types.Platform       `json:"bookmaker_slug"`
	SnapshotTime time.Time            `json:"snapshot_time"`
	Markets      []types.CachedMarket `json:"markets"`
}

// HandleOdds serves snapshots for a set of events from the odds cache,
// falling back to the current table for cache misses.
func (h *Handlers) HandleOdds(w http.ResponseWriter, r *http.Request) {
	eventIDs, err := parseEventIDs(r.URL.Query().Get("event_ids"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(eventIDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "event_ids is required")
		return
	}

	bookmaker := types.Platform(r.URL.Query().Get("bookmaker"))
	if bookmaker == "" {
		bookmaker = types.PlatformBetPawa
	}

	var (
		out    []oddsResponse
		missed []int64
	)
	for _, id := range eventIDs {
		snap, ok := h.cache.Snapshot(id, bookmaker)
		if !ok {
			missed = append(missed, id)
			continue
		}
		out = append(out, snapshotResponse(snap))
	}

	if len(missed) > 0 {
		snaps, err := h.store.CurrentForEvents(r.Context(), missed)
		if err != nil {
			h.logger.Error("store fallback failed", "error", err)
		} else {
			for _, snap := range snaps {
				if snap.Bookmaker == bookmaker {
					out = append(out, snapshotResponse(snap))
				}
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	h.writeJSON(w, http.StatusOK, map[string]any{"snapshots": out})
}

func snapshotResponse(snap types.CachedSnapshot) oddsResponse {
	markets := make([]types.CachedMarket, 0, len(snap.Markets))
	for _, m := range snap.Markets {
		markets = append(markets, m)
	}
	sort.Slice(markets, func(i, j int) bool {
		if markets[i].CanonicalID != markets[j].CanonicalID {
			return markets[i].CanonicalID < markets[j].CanonicalID
		}
		return types.LineKey(markets[i].Line) < types.LineKey(markets[j].Line)
	})
	return oddsResponse{
		EventID:      snap.EventID,
		Bookmaker:    snap.Bookmaker,
		SnapshotTime: snap.LastConfirmedAt,
		Markets:      markets,
	}
}

// HandleListAlerts lists persisted alerts with optional filters.
func (h *Handlers) HandleListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AlertFilter{
		Bookmaker: types.Platform(q.Get("bookmaker")),
		Type:      types.AlertType(q.Get("type")),
		Severity:  types.Severity(q.Get("severity")),
		Status:    types.AlertStatus(q.Get("status")),
	}
	if v := q.Get("event_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "bad event_id")
			return
		}
		filter.EventID = id
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "bad limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "bad since, want RFC3339")
			return
		}
		filter.Since = t
	}

	alerts, err := h.store.ListAlerts(r.Context(), filter)
	if err != nil {
		h.logger.Error("alert list failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if alerts == nil {
		alerts = []types.RiskAlert{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// HandleAckAlert transitions one alert new → acknowledged.
func (h *Handlers) HandleAckAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "bad alert id")
		return
	}
	ok, err := h.store.AcknowledgeAlert(r.Context(), id)
	if err != nil {
		h.logger.Error("alert ack failed", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		h.writeError(w, http.StatusConflict, "alert not found or not in state new")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

// HandleTrigger queues a one-off scrape cycle. The cycle runs in the
// background; progress arrives on the scrape_progress topic.
func (h *Handlers) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.Trigger(); err != nil {
		if errors.Is(err, scrape.ErrAlreadyRunning) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("trigger failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// HandlePause suspends the periodic scheduler.
func (h *Handlers) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Pause()
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// HandleResume re-arms the periodic scheduler.
func (h *Handlers) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Resume()
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

// HandleStats reports pipeline counters.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"cache":    h.cache.Stats(),
		"mappings": h.mappings.Stats(),
		"queue": map[string]any{
			"depth":    h.queue.Depth(),
			"overflow": h.queue.Overflow(),
		},
		"paused":   h.scheduler.Paused(),
		"scraping": h.scheduler.Running(),
	})
}

// HandleRefreshMappings reloads operator mappings into the mapping cache.
func (h *Handlers) HandleRefreshMappings(w http.ResponseWriter, r *http.Request) {
	dbMappings, err := h.store.LoadUserMappings(r.Context())
	if err != nil {
		h.logger.Error("mapping reload failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.mappings.Refresh(dbMappings)
	h.writeJSON(w, http.StatusOK, h.mappings.Stats())
}

// HandleListUnmapped serves the unmapped-market accumulator.
func (h *Handlers) HandleListUnmapped(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "bad limit")
			return
		}
		limit = n
	}
	entries, err := h.store.ListUnmapped(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		h.logger.Error("unmapped list failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []store.UnmappedEntry{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"unmapped": entries})
}

// HandleWebSocket upgrades the connection onto the hub.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	NewClient(h.hub, conn)
}

func parseEventIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, errors.New("bad event_ids, want comma-separated integers")
		}
		out = append(out, id)
	}
	return out, nil
}
