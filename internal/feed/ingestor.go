// Package feed subscribes to the upstream tick channel and turns raw
// messages into cache writes and delivery queue entries.
package feed

import (
	"context"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dev-starline/thecalcify/internal/domain"
	"github.com/dev-starline/thecalcify/internal/metrics"
)

// Enqueuer is the slice of the delivery queue the ingestor needs.
type Enqueuer interface {
	Enqueue(group string, payload []byte)
}

// Ingestor consumes the upstream pub/sub channel for the process
// lifetime. Each message is handled on its own goroutine so a slow cache
// write never blocks receipt of the next message.
type Ingestor struct {
	rdb     *goredis.Client
	channel string
	store   domain.TickStore
	queue   Enqueuer
}

func NewIngestor(rdb *goredis.Client, channel string, store domain.TickStore, queue Enqueuer) *Ingestor {
	return &Ingestor{
		rdb:     rdb,
		channel: channel,
		store:   store,
		queue:   queue,
	}
}

// Start subscribes and blocks until ctx is cancelled. go-redis
// re-establishes the subscription after connection loss on its own; the
// message channel stays open across reconnects.
func (i *Ingestor) Start(ctx context.Context) {
	pubsub := i.rdb.Subscribe(ctx, i.channel)
	defer func() { _ = pubsub.Close() }()

	metrics.FeedSubscriptionActive.Set(1)
	defer metrics.FeedSubscriptionActive.Set(0)

	slog.Info("Feed subscription started", "channel", i.channel)

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				slog.Warn("Feed subscription channel closed")
				return
			}
			go i.handle(ctx, []byte(msg.Payload))
		case <-ctx.Done():
			slog.Info("Feed subscription stopping")
			return
		}
	}
}

// handle processes one raw feed message. A malformed message is dropped
// and logged; ingestion continues.
func (i *Ingestor) handle(ctx context.Context, raw []byte) {
	tick, err := domain.ParseTick(raw)
	if err != nil {
		metrics.FeedMessagesTotal.WithLabelValues("malformed").Inc()
		slog.Warn("Dropping malformed feed message", "error", err)
		return
	}

	if err := i.store.Set(ctx, tick); err != nil {
		metrics.FeedCacheWriteFailures.Inc()
		metrics.FeedMessagesTotal.WithLabelValues("dropped").Inc()
		slog.Error("Tick cache write failed, skipping delivery", "symbol", tick.Symbol(), "error", err)
		return
	}

	payload, err := tick.Marshal()
	if err != nil {
		metrics.FeedMessagesTotal.WithLabelValues("dropped").Inc()
		slog.Error("Failed to serialize tick for delivery", "symbol", tick.Symbol(), "error", err)
		return
	}

	i.queue.Enqueue(tick.Symbol(), payload)
	metrics.FeedMessagesTotal.WithLabelValues("ingested").Inc()
}
