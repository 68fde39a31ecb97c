package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-starline/thecalcify/internal/domain"
	"github.com/dev-starline/thecalcify/internal/platform/retry"
)

type fakePusher struct {
	mu     sync.Mutex
	groups []string
	events []domain.Envelope
}

func (f *fakePusher) PublishToGroup(group string, env domain.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups = append(f.groups, group)
	f.events = append(f.events, env)
}

func (f *fakePusher) SendToUser(_ string, _ domain.Envelope) bool { return true }

func (f *fakePusher) published() ([]string, []domain.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.groups...), append([]domain.Envelope(nil), f.events...)
}

type fakeEnqueuer struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (f *fakeEnqueuer) Enqueue(group string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entries == nil {
		f.entries = make(map[string][]byte)
	}
	f.entries[group] = payload
}

func TestPushUserDetails_BroadcastsListAndUserSnapshot(t *testing.T) {
	svc, _ := newTestService(t, nil)
	pusher := &fakePusher{}
	svc.pusher = pusher
	seedUserDetails(t, svc, []domain.ClientAccess{{ID: 1, Username: "alice", IsActive: true}})

	require.NoError(t, svc.PushUserDetails(context.Background(), "alice"))

	groups, events := pusher.published()
	require.Len(t, groups, 2)
	assert.Equal(t, "qa:"+domain.AllClientsRoom, groups[0])
	assert.Equal(t, domain.EventReceiveAllClient, events[0].Event)
	assert.Equal(t, "qa:alice", groups[1])
	assert.Equal(t, domain.EventReceiveMessage, events[1].Event)
}

func TestPushUserDetails_NoUsernameSkipsUserRoom(t *testing.T) {
	svc, _ := newTestService(t, nil)
	pusher := &fakePusher{}
	svc.pusher = pusher
	seedUserDetails(t, svc, []domain.ClientAccess{{ID: 1, Username: "alice"}})

	require.NoError(t, svc.PushUserDetails(context.Background(), ""))

	groups, _ := pusher.published()
	require.Len(t, groups, 1)
	assert.Equal(t, "qa:"+domain.AllClientsRoom, groups[0])
}

func TestNotifyNews_OnlyActiveClients(t *testing.T) {
	svc, _ := newTestService(t, nil)
	pusher := &fakePusher{}
	svc.pusher = pusher

	svc.NotifyNews([]domain.ClientAccess{
		{Username: "alice", IsActive: true},
		{Username: "bob", IsActive: false},
		{Username: "carol", IsActive: true},
	}, map[string]string{"title": "CPI release"})

	groups, events := pusher.published()
	assert.Equal(t, []string{"qa:alice", "qa:carol"}, groups)
	for _, env := range events {
		assert.Equal(t, domain.EventReceiveNews, env.Event)
	}
}

func TestUpsertSelfTick_CachesAndEnqueues(t *testing.T) {
	svc, _ := newTestService(t, nil)
	queue := &fakeEnqueuer{}
	svc.queue = queue

	err := svc.UpsertSelfTick(context.Background(), domain.Tick{Identifier: "custom1", LTP: "42.5"})
	require.NoError(t, err)

	cached, ok, err := svc.ticks.Get(context.Background(), "CUSTOM1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.SourceSelf, cached.Source)
	assert.Equal(t, "42.5", cached.LTP)

	queue.mu.Lock()
	defer queue.mu.Unlock()
	assert.Contains(t, queue.entries, "CUSTOM1")
}

func TestRemoveSelfTick_DeletesCacheEntry(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	require.NoError(t, svc.ticks.Set(ctx, domain.Tick{Identifier: "CUSTOM1", LTP: "42.5"}))

	require.NoError(t, svc.RemoveSelfTick(ctx, "custom1"))

	_, ok, err := svc.ticks.Get(ctx, "CUSTOM1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefreshWorker_ProcessesEnqueuedJobs(t *testing.T) {
	svc, _ := newTestService(t, nil)
	pusher := &fakePusher{}
	svc.pusher = pusher
	seedUserDetails(t, svc, []domain.ClientAccess{{ID: 1, Username: "alice"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.RunRefreshWorker(ctx)

	svc.EnqueueRefresh("alice")

	require.Eventually(t, func() bool {
		groups, _ := pusher.published()
		return len(groups) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestClassifyPushError(t *testing.T) {
	// Missing cached details will not appear by retrying; cache hiccups will heal.
	assert.Equal(t, retry.Stop, classifyPushError(domain.ErrNoUserDetails))
	assert.Equal(t, retry.Stop, classifyPushError(context.Canceled))
	assert.Equal(t, retry.Retry, classifyPushError(errors.New("connection refused")))
}

func TestEnqueueRefresh_DropsWhenFull(t *testing.T) {
	svc, _ := newTestService(t, nil)

	// No worker running: fill the job queue and push one past capacity.
	for i := 0; i <= refreshQueueCapacity; i++ {
		svc.EnqueueRefresh("alice")
	}
	assert.Len(t, svc.jobs, refreshQueueCapacity)
}
