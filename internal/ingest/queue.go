package ingest

import (
	"context"

	"chime/internal/models"
)

// Queue is the bounded FIFO between the bus callback and the drain
// worker. Capacity is fixed at construction; a full queue rejects new
// samples instead of growing, keeping producer latency bounded under
// load.
type Queue struct {
	ch chan *models.TelemetrySample
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan *models.TelemetrySample, capacity)}
}

// TryEnqueue adds a sample unless the queue is full. Never blocks.
func (q *Queue) TryEnqueue(s *models.TelemetrySample) bool {
	select {
	case q.ch <- s:
		return true
	default:
		return false
	}
}

// Dequeue blocks until a sample is available or the context is
// cancelled. ok is false only on cancellation.
func (q *Queue) Dequeue(ctx context.Context) (*models.TelemetrySample, bool) {
	select {
	case s := <-q.ch:
		return s, true
	case <-ctx.Done():
		return nil, false
	}
}

// Len is the number of queued samples.
func (q *Queue) Len() int { return len(q.ch) }

// Cap is the fixed capacity.
func (q *Queue) Cap() int { return cap(q.ch) }
