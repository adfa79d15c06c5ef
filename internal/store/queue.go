package store

import (
	"log/slog"
	"sync/atomic"

	"pawarisk/pkg/types"
)

// Queue is the bounded buffer between the coordinator and the write
// handler. Enqueue never blocks: under overload the oldest pending batch is
// dropped to make room, so a slow writer can never stall scraping.
type Queue struct {
	ch       chan types.WriteBatch
	overflow atomic.Int64
	logger   *slog.Logger
}

// NewQueue creates a queue with the given capacity.
func NewQueue(capacity int, logger *slog.Logger) *Queue {
	if capacity <= 0 {
		capacity = 100
	}
	return &Queue{
		ch:     make(chan types.WriteBatch, capacity),
		logger: logger.With("component", "write-queue"),
	}
}

// Enqueue adds a batch, dropping the oldest pending batch if full.
func (q *Queue) Enqueue(batch types.WriteBatch) {
	for {
		select {
		case q.ch <- batch:
			return
		default:
		}
		select {
		case dropped := <-q.ch:
			q.overflow.Add(1)
			q.logger.Warn("queue full, dropped oldest batch",
				"run_id", dropped.RunID,
				"markets", len(dropped.Markets),
				"alerts", len(dropped.Alerts),
				"overflow_total", q.overflow.Load())
		default:
			// Consumer drained between selects; loop and retry the send.
		}
	}
}

// Dequeue returns the receive side for the writer.
func (q *Queue) Dequeue() <-chan types.WriteBatch { return q.ch }

// Depth is the number of pending batches.
func (q *Queue) Depth() int { return len(q.ch) }

// Overflow is the total count of dropped batches.
func (q *Queue) Overflow() int64 { return q.overflow.Load() }

// Close closes the queue; the writer drains remaining batches then exits.
func (q *Queue) Close() { close(q.ch) }
