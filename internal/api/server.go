// Package api is the HTTP and WebSocket surface: odds reads, alert review,
// scrape control, and the live event stream bridged from the pub/sub bus.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"pawarisk/internal/broadcast"
	"pawarisk/internal/config"
	"pawarisk/internal/mapping"
	"pawarisk/internal/odds"
	"pawarisk/internal/scrape"
	"pawarisk/internal/store"
)

// Server runs the HTTP/WebSocket API.
type Server struct {
	hub      *Hub
	bridge   *bridge
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer wires handlers, hub, and bus bridge.
func NewServer(
	cfg config.APIConfig,
	cache *odds.Cache,
	st *store.Store,
	mappings *mapping.Cache,
	scheduler *scrape.Scheduler,
	queue *store.Queue,
	bus *broadcast.Bus,
	logger *slog.Logger,
) *Server {
	hub := NewHub(logger)
	handlers := NewHandlers(cache, st, mappings, scheduler, queue, hub, cfg.AllowedOrigins, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handlers.HandleHealth)
	mux.HandleFunc("GET /api/odds", handlers.HandleOdds)
	mux.HandleFunc("GET /api/alerts", handlers.HandleListAlerts)
	mux.HandleFunc("PATCH /api/alerts/{id}/ack", handlers.HandleAckAlert)
	mux.HandleFunc("POST /api/scrape/trigger", handlers.HandleTrigger)
	mux.HandleFunc("POST /api/scrape/pause", handlers.HandlePause)
	mux.HandleFunc("POST /api/scrape/resume", handlers.HandleResume)
	mux.HandleFunc("GET /api/stats", handlers.HandleStats)
	mux.HandleFunc("POST /api/mappings/refresh", handlers.HandleRefreshMappings)
	mux.HandleFunc("GET /api/unmapped", handlers.HandleListUnmapped)
	mux.HandleFunc("/ws", handlers.HandleWebSocket)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		hub:      hub,
		bridge:   newBridge(bus, hub, logger),
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// Start runs the hub, the bus bridge, and the HTTP listener. Blocks until
// the listener stops.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run()
	s.bridge.run(ctx)

	s.logger.Info("api server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the listener.
func (s *Server) Stop() error {
	s.logger.Info("stopping api server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
