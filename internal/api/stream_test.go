package api

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"pawarisk/internal/broadcast"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHubDropsSlowClientOnBroadcast(t *testing.T) {
	t.Parallel()
	h := NewHub(testLogger())
	go h.Run()

	slow := &Client{hub: h, send: make(chan []byte, 1)}
	fast := &Client{hub: h, send: make(chan []byte, 8)}
	h.register <- slow
	h.register <- fast

	h.BroadcastMessage(broadcast.NewMessage("odds_update", nil))
	h.BroadcastMessage(broadcast.NewMessage("odds_update", nil))

	// Draining both from the fast client proves the hub processed both
	// broadcasts; the slow client's buffer held only the first.
	for i := 0; i < 2; i++ {
		select {
		case <-fast.send:
		case <-time.After(5 * time.Second):
			t.Fatal("fast client missed a broadcast")
		}
	}

	if _, ok := <-slow.send; !ok {
		t.Fatal("slow client's buffered message lost")
	}
	select {
	case _, ok := <-slow.send:
		if ok {
			t.Fatal("slow client received past its buffer instead of being dropped")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("slow client channel not closed after drop")
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	t.Parallel()
	h := NewHub(testLogger())
	go h.Run()

	c := &Client{hub: h, send: make(chan []byte, 1)}
	h.register <- c
	h.unregister <- c

	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("unexpected message on unregistered client")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("send channel not closed on unregister")
	}
}
