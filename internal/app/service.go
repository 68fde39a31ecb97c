package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dev-starline/thecalcify/internal/domain"
	"github.com/dev-starline/thecalcify/internal/metrics"
	"github.com/dev-starline/thecalcify/internal/platform/retry"
)

const refreshQueueCapacity = 64

// Pusher is the slice of the hub the service pushes through.
type Pusher interface {
	PublishToGroup(group string, env domain.Envelope)
	SendToUser(username string, env domain.Envelope) bool
}

// Enqueuer submits live updates to the delivery pipeline.
type Enqueuer interface {
	Enqueue(group string, payload []byte)
}

type refreshJob struct {
	username string
}

// Service implements snapshot assembly and the publish-side operations.
// All reads degrade gracefully: a cache outage yields placeholders or
// empty snapshots, never a failed join.
type Service struct {
	ticks       domain.TickStore
	users       domain.UserStore
	instruments domain.InstrumentResolver
	resolver    domain.GroupResolver
	pusher      Pusher
	queue       Enqueuer
	clock       clockwork.Clock

	jobs chan refreshJob
}

// NewService wires the service. instruments may be nil: symbol lists
// come back empty and display names pass through unresolved.
func NewService(ticks domain.TickStore, users domain.UserStore, instruments domain.InstrumentResolver, resolver domain.GroupResolver, pusher Pusher, queue Enqueuer, clock clockwork.Clock) *Service {
	return &Service{
		ticks:       ticks,
		users:       users,
		instruments: instruments,
		resolver:    resolver,
		pusher:      pusher,
		queue:       queue,
		clock:       clock,
		jobs:        make(chan refreshJob, refreshQueueCapacity),
	}
}

// SetPusher attaches the hub after construction. The hub needs the
// service for join-time snapshots, so one of the two is wired late.
func (s *Service) SetPusher(pusher Pusher) {
	s.pusher = pusher
}

// EnqueueRefresh submits a background entitlement push for a user. The
// calling request path is never blocked: when the job queue is full the
// job is dropped and counted.
func (s *Service) EnqueueRefresh(username string) {
	select {
	case s.jobs <- refreshJob{username: username}:
	default:
		metrics.RefreshJobsTotal.WithLabelValues("dropped").Inc()
		slog.Warn("Refresh job queue full, dropping job", "username", username)
	}
}

var refreshRetryPolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     time.Second,
	Classify:       classifyPushError,
	OnRetry: func(attempt int, err error, wait time.Duration) {
		slog.Warn("Retrying entitlement push", "attempt", attempt, "backoff", wait, "error", err)
	},
}

// classifyPushError keeps the refresh worker from hammering the cache
// over errors another attempt cannot fix: a user with no cached details
// stays detail-less until the next refresh writes them.
func classifyPushError(err error) retry.Action {
	if errors.Is(err, domain.ErrNoUserDetails) {
		return retry.Stop
	}
	return retry.Transient(err)
}

// RunRefreshWorker consumes refresh jobs until ctx is cancelled. Cache
// hiccups are retried with backoff before a job counts as failed. Run
// from a dedicated goroutine.
func (s *Service) RunRefreshWorker(ctx context.Context) {
	for {
		select {
		case job := <-s.jobs:
			err := retry.DoVoid(ctx, refreshRetryPolicy, func() error {
				return s.PushUserDetails(ctx, job.username)
			})
			if err != nil {
				metrics.RefreshJobsTotal.WithLabelValues("failed").Inc()
				slog.Error("Refresh job failed", "username", job.username, "error", err)
				continue
			}
			metrics.RefreshJobsTotal.WithLabelValues("done").Inc()
		case <-ctx.Done():
			return
		}
	}
}
