// Package broadcast is the in-process pub/sub bus between the pipeline and
// the API layer. Topic-keyed, per-subscriber bounded queues; a subscriber
// that stops draining is dropped rather than ever backpressuring a producer.
package broadcast

import (
	"log/slog"
	"sync"
	"time"

	"pawarisk/pkg/types"
)

// Topic names the three streams the API bridge consumes.
type Topic string

const (
	TopicScrapeProgress Topic = "scrape_progress"
	TopicOddsUpdates    Topic = "odds_updates"
	TopicRiskAlerts     Topic = "risk_alerts"
)

// Message is the typed envelope published on every topic.
type Message struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"` // UTC ISO-8601 with Z suffix
	Data      any    `json:"data"`
}

// NewMessage stamps an envelope with the current UTC time.
func NewMessage(msgType string, data any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}
}

// ProgressData is the payload of scrape_progress messages.
type ProgressData struct {
	RunID    string         `json:"run_id"`
	Phase    types.Phase    `json:"phase"`
	Platform types.Platform `json:"platform,omitempty"`
	Detail   map[string]any `json:"detail,omitempty"`
}

// OddsUpdateData is the payload of odds_updates messages.
type OddsUpdateData struct {
	EventIDs []int64        `json:"event_ids"`
	Source   types.Platform `json:"source"`
}

// AlertSummaryData is the payload of risk_alerts messages.
type AlertSummaryData struct {
	AlertCount int              `json:"alert_count"`
	EventIDs   []int64          `json:"event_ids"`
	Severities []types.Severity `json:"severities"`
}

// Subscription is one subscriber's handle. Messages arrive on C; Cancel
// detaches and closes C. C is also closed if the bus drops the subscriber
// for not draining.
type Subscription struct {
	C      <-chan Message
	topic  Topic
	id     uint64
	bus    *Bus
	cancel sync.Once
}

// Cancel detaches the subscription.
func (s *Subscription) Cancel() {
	s.cancel.Do(func() {
		s.bus.remove(s.topic, s.id, true)
	})
}

type subscriber struct {
	ch chan Message
}

// Bus is the topic-keyed broadcaster.
type Bus struct {
	logger    *slog.Logger
	queueSize int

	mu     sync.Mutex
	nextID uint64
	topics map[Topic]map[uint64]*subscriber
}

// NewBus creates a bus. queueSize bounds each subscriber's queue.
func NewBus(queueSize int, logger *slog.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Bus{
		logger:    logger.With("component", "broadcast"),
		queueSize: queueSize,
		topics:    make(map[Topic]map[uint64]*subscriber),
	}
}

// Subscribe attaches a new subscriber to one topic.
func (b *Bus) Subscribe(topic Topic) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscriber{ch: make(chan Message, b.queueSize)}
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[uint64]*subscriber)
	}
	b.topics[topic][b.nextID] = sub

	return &Subscription{C: sub.ch, topic: topic, id: b.nextID, bus: b}
}

// Publish delivers a message to every subscriber of the topic. Non-blocking:
// a subscriber whose queue is full is dropped and its channel closed.
func (b *Bus) Publish(topic Topic, msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.topics[topic] {
		select {
		case sub.ch <- msg:
		default:
			delete(b.topics[topic], id)
			close(sub.ch)
			b.logger.Warn("dropped slow subscriber", "topic", topic, "id", id)
		}
	}
}

// SubscriberCount reports attached subscribers per topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

// Close drops every subscriber on every topic.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, subs := range b.topics {
		for id, sub := range subs {
			close(sub.ch)
			delete(subs, id)
		}
		delete(b.topics, topic)
	}
}

func (b *Bus) remove(topic Topic, id uint64, closeCh bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.topics[topic][id]
	if !ok {
		return
	}
	delete(b.topics[topic], id)
	if closeCh {
		close(sub.ch)
	}
}
