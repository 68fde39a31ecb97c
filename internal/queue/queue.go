// Package queue implements the bounded delivery queue decoupling feed
// ingestion from fan-out.
//
// The queue is partitioned per group: a fresher payload for a group
// already pending replaces the stale one in place, so drop-oldest only
// ever discards an unsent update for the same symbol. Order across
// distinct groups is FIFO. Producers never block; exactly one consumer
// drains the queue.
package queue

import (
	"context"
	"sync"

	"github.com/dev-starline/thecalcify/internal/domain"
	"github.com/dev-starline/thecalcify/internal/metrics"
)

// DefaultCapacity bounds how many distinct groups may be pending at once.
const DefaultCapacity = 1024

// Entry is one unit of deliverable work: a group name and the payload to
// fan out to its members. Consumed exactly once, discarded after the
// send attempt.
type Entry struct {
	Group   string
	Payload []byte
}

// DeliveryQueue is a bounded multi-writer, single-reader queue with
// per-group coalescing.
type DeliveryQueue struct {
	mu       sync.Mutex
	pending  map[string][]byte
	order    []string
	capacity int
	closed   bool

	signal chan struct{}
	done   chan struct{}
}

// New creates a delivery queue. capacity <= 0 selects DefaultCapacity.
func New(capacity int) *DeliveryQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &DeliveryQueue{
		pending:  make(map[string][]byte),
		capacity: capacity,
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Enqueue submits a payload for a group. Never blocks. If an entry for
// the same group is already pending, the newer payload replaces it. If
// the queue is at capacity, the oldest pending group is evicted to make
// room: the producer is never stalled by a slow consumer.
func (q *DeliveryQueue) Enqueue(group string, payload []byte) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}

	if _, ok := q.pending[group]; ok {
		q.pending[group] = payload
		metrics.QueueCoalescedTotal.Inc()
	} else {
		if len(q.order) >= q.capacity {
			oldest := q.order[0]
			q.order = q.order[1:]
			delete(q.pending, oldest)
			metrics.QueueEvictedTotal.Inc()
		}
		q.order = append(q.order, group)
		q.pending[group] = payload
	}
	metrics.QueueEnqueuedTotal.Inc()
	metrics.QueueDepth.Set(float64(len(q.order)))
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Dequeue blocks until an entry is available, the context is cancelled,
// or the queue is closed and drained.
func (q *DeliveryQueue) Dequeue(ctx context.Context) (Entry, error) {
	for {
		q.mu.Lock()
		if len(q.order) > 0 {
			group := q.order[0]
			q.order = q.order[1:]
			payload := q.pending[group]
			delete(q.pending, group)
			metrics.QueueDepth.Set(float64(len(q.order)))
			q.mu.Unlock()
			return Entry{Group: group, Payload: payload}, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return Entry{}, domain.ErrQueueClosed
		}

		select {
		case <-q.signal:
		case <-q.done:
		case <-ctx.Done():
			return Entry{}, ctx.Err()
		}
	}
}

// Len returns the number of pending groups.
func (q *DeliveryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Close stops accepting new entries. The consumer may still drain what
// is pending; Dequeue returns ErrQueueClosed once the queue is empty.
func (q *DeliveryQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.done)
}
