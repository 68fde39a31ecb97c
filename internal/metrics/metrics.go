package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Feed ingestion metrics
var (
	// FeedMessagesTotal tracks feed messages by outcome (ingested/malformed/dropped)
	FeedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_messages_total",
			Help: "Upstream feed messages by outcome",
		},
		[]string{"outcome"},
	)

	// FeedCacheWriteFailures tracks tick cache write failures
	FeedCacheWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_cache_write_failures_total",
			Help: "Tick cache write failures during ingestion",
		},
	)

	// FeedSubscriptionActive tracks whether the feed subscription is up (1) or reconnecting (0)
	FeedSubscriptionActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_subscription_active",
			Help: "1 if the upstream feed subscription is active, 0 if reconnecting",
		},
	)
)

// Delivery queue metrics
var (
	// QueueDepth tracks the current number of pending groups in the delivery queue
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "delivery_queue_depth",
			Help: "Current number of pending groups in the delivery queue",
		},
	)

	// QueueCoalescedTotal tracks entries replaced by a fresher entry for the same group
	QueueCoalescedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_queue_coalesced_total",
			Help: "Pending entries superseded by a newer entry for the same group",
		},
	)

	// QueueEvictedTotal tracks pending groups dropped to make room at capacity
	QueueEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_queue_evicted_total",
			Help: "Pending groups dropped when the queue was at capacity",
		},
	)

	// QueueEnqueuedTotal tracks total enqueued entries
	QueueEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_queue_enqueued_total",
			Help: "Total entries submitted to the delivery queue",
		},
	)
)

// Dispatch metrics
var (
	// DispatchFanoutDuration tracks time to fan one entry out to a group
	DispatchFanoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_fanout_duration_seconds",
			Help:    "Time from queue read to transport hand-off for one entry",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)

	// DispatchEntriesTotal tracks dispatched entries by status (sent/no_members/failed)
	DispatchEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_entries_total",
			Help: "Delivery queue entries processed by status",
		},
		[]string{"status"},
	)
)

// Hub metrics
var (
	// HubConnectedClients tracks the number of live WebSocket connections
	HubConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connected_clients",
			Help: "Number of live WebSocket connections",
		},
	)

	// HubActiveGroups tracks the number of groups with at least one member
	HubActiveGroups = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_active_groups",
			Help: "Number of groups with at least one live member",
		},
	)

	// HubSlowClientsEvicted tracks clients evicted because their send buffer filled
	HubSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_clients_evicted_total",
			Help: "Clients evicted because their send buffer was full",
		},
	)

	// HubSendFailures tracks per-connection send failures during group fan-out
	HubSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_send_failures_total",
			Help: "Per-connection send failures during fan-out",
		},
	)

	// HubSnapshotDuration tracks snapshot-on-join assembly time
	HubSnapshotDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hub_snapshot_duration_seconds",
			Help:    "Snapshot-on-join assembly and delivery time",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

// Refresh job metrics
var (
	// RefreshJobsTotal tracks background refresh jobs by outcome (done/failed/dropped)
	RefreshJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_jobs_total",
			Help: "Background refresh jobs by outcome",
		},
		[]string{"outcome"},
	)
)
