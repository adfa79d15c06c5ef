package api

import (
	"context"
	"log/slog"

	"pawarisk/internal/broadcast"
)

// bridge forwards the three bus topics onto the WebSocket hub. Each topic
// gets its own subscription and goroutine; if the bus drops us for not
// draining we resubscribe.
type bridge struct {
	bus    *broadcast.Bus
	hub    *Hub
	logger *slog.Logger
}

func newBridge(bus *broadcast.Bus, hub *Hub, logger *slog.Logger) *bridge {
	return &bridge{bus: bus, hub: hub, logger: logger.With("component", "ws-bridge")}
}

func (b *bridge) run(ctx context.Context) {
	for _, topic := range []broadcast.Topic{
		broadcast.TopicScrapeProgress,
		broadcast.TopicOddsUpdates,
		broadcast.TopicRiskAlerts,
	} {
		go b.pump(ctx, topic)
	}
}

func (b *bridge) pump(ctx context.Context, topic broadcast.Topic) {
	for {
		sub := b.bus.Subscribe(topic)
		if !b.drain(ctx, sub) {
			return
		}
		b.logger.Warn("resubscribing after drop", "topic", topic)
	}
}

// drain forwards messages until the subscription closes. Returns false on
// ctx cancellation.
func (b *bridge) drain(ctx context.Context, sub *broadcast.Subscription) bool {
	defer sub.Cancel()
	for {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-sub.C:
			if !ok {
				return true
			}
			b.hub.BroadcastMessage(msg)
		}
	}
}
