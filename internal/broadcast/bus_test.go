package broadcast

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBusDeliversToTopicSubscribers(t *testing.T) {
	t.Parallel()
	b := NewBus(4, testLogger())

	progress := b.Subscribe(TopicScrapeProgress)
	alerts := b.Subscribe(TopicRiskAlerts)

	b.Publish(TopicScrapeProgress, NewMessage("scrape_progress", ProgressData{RunID: "r1"}))

	select {
	case msg := <-progress.C:
		if msg.Type != "scrape_progress" {
			t.Errorf("type = %q", msg.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no delivery on subscribed topic")
	}

	select {
	case msg := <-alerts.C:
		t.Fatalf("cross-topic delivery: %+v", msg)
	default:
	}
}

func TestBusDropsSlowSubscriber(t *testing.T) {
	t.Parallel()
	b := NewBus(2, testLogger())
	sub := b.Subscribe(TopicOddsUpdates)

	// Fill the queue, then one more: the subscriber is detached and its
	// channel closed rather than blocking the publisher.
	for i := 0; i < 3; i++ {
		b.Publish(TopicOddsUpdates, NewMessage("odds_update", nil))
	}

	if n := b.SubscriberCount(TopicOddsUpdates); n != 0 {
		t.Fatalf("subscribers = %d, want slow one dropped", n)
	}

	// Buffered messages remain readable, then the channel reports closed.
	for i := 0; i < 2; i++ {
		if _, ok := <-sub.C; !ok {
			t.Fatal("buffered message lost")
		}
	}
	if _, ok := <-sub.C; ok {
		t.Fatal("channel not closed after drop")
	}
}

func TestBusCancelDetaches(t *testing.T) {
	t.Parallel()
	b := NewBus(4, testLogger())
	sub := b.Subscribe(TopicRiskAlerts)

	sub.Cancel()
	sub.Cancel() // idempotent

	if n := b.SubscriberCount(TopicRiskAlerts); n != 0 {
		t.Fatalf("subscribers = %d after cancel", n)
	}
	if _, ok := <-sub.C; ok {
		t.Fatal("channel open after cancel")
	}

	// Publishing to a topic with no subscribers is a no-op.
	b.Publish(TopicRiskAlerts, NewMessage("risk_alert", nil))
}

func TestBusClose(t *testing.T) {
	t.Parallel()
	b := NewBus(4, testLogger())
	s1 := b.Subscribe(TopicScrapeProgress)
	s2 := b.Subscribe(TopicOddsUpdates)

	b.Close()

	if _, ok := <-s1.C; ok {
		t.Error("subscriber 1 channel open after close")
	}
	if _, ok := <-s2.C; ok {
		t.Error("subscriber 2 channel open after close")
	}
}

func TestNewMessageTimestampIsUTC(t *testing.T) {
	t.Parallel()
	msg := NewMessage("odds_update", OddsUpdateData{EventIDs: []int64{1}})
	ts, err := time.Parse(time.RFC3339, msg.Timestamp)
	if err != nil {
		t.Fatalf("timestamp %q not RFC3339: %v", msg.Timestamp, err)
	}
	if ts.Location() != time.UTC {
		t.Errorf("timestamp zone = %v, want UTC", ts.Location())
	}
}
