// Package dispatch drains the delivery queue and fans entries out to the
// transport layer.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dev-starline/thecalcify/internal/domain"
	"github.com/dev-starline/thecalcify/internal/metrics"
	"github.com/dev-starline/thecalcify/internal/payload"
	"github.com/dev-starline/thecalcify/internal/queue"
)

// Dispatcher is the single consumer of the delivery queue. For each
// entry it compresses the payload once and hands it to the transport's
// group-send primitive. Transport sends are fire-and-forget; a failing
// connection never stops queue draining.
type Dispatcher struct {
	queue     *queue.DeliveryQueue
	transport domain.GroupSender
	clock     clockwork.Clock
	grace     time.Duration
	done      chan struct{}
}

func NewDispatcher(q *queue.DeliveryQueue, transport domain.GroupSender, clock clockwork.Clock, grace time.Duration) *Dispatcher {
	return &Dispatcher{
		queue:     q,
		transport: transport,
		clock:     clock,
		grace:     grace,
		done:      make(chan struct{}),
	}
}

// Run drains the queue until ctx is cancelled or the queue is closed and
// empty. Call from a dedicated goroutine; there must be exactly one.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Dispatcher panic recovered", "panic", r)
		}
	}()

	slog.Info("Dispatcher started")
	for {
		entry, err := d.queue.Dequeue(ctx)
		if errors.Is(err, domain.ErrQueueClosed) {
			slog.Info("Dispatcher drained, exiting")
			return
		}
		if err != nil {
			slog.Info("Dispatcher stopping", "reason", err)
			return
		}
		d.dispatch(entry)
	}
}

func (d *Dispatcher) dispatch(entry queue.Entry) {
	start := d.clock.Now()
	defer func() {
		metrics.DispatchFanoutDuration.Observe(d.clock.Since(start).Seconds())
	}()

	compressed, err := payload.Gzip(entry.Payload)
	if err != nil {
		metrics.DispatchEntriesTotal.WithLabelValues("failed").Inc()
		slog.Error("Failed to compress payload", "group", entry.Group, "error", err)
		return
	}

	d.transport.SendToGroup(entry.Group, compressed)
	metrics.DispatchEntriesTotal.WithLabelValues("sent").Inc()
}

// Stop closes the queue and waits up to the grace period for pending
// entries to drain. After the grace period the remaining entries are
// abandoned; ticks are ephemeral.
func (d *Dispatcher) Stop() {
	d.queue.Close()

	timer := d.clock.NewTimer(d.grace)
	defer timer.Stop()

	select {
	case <-d.done:
		slog.Info("Dispatcher stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Dispatcher drain grace period exceeded, abandoning queue", "grace", d.grace)
	}
}
