package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-starline/thecalcify/internal/payload"
	"github.com/dev-starline/thecalcify/internal/queue"
)

type sentMessage struct {
	group   string
	payload []byte
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeTransport) SendToGroup(group string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{group: group, payload: data})
}

func (f *fakeTransport) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func startDispatcher(t *testing.T) (*queue.DeliveryQueue, *fakeTransport, *Dispatcher) {
	t.Helper()

	q := queue.New(16)
	transport := &fakeTransport{}
	d := NewDispatcher(q, transport, clockwork.NewRealClock(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go d.Run(ctx)

	return q, transport, d
}

func waitForMessages(t *testing.T, transport *fakeTransport, n int) []sentMessage {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(transport.messages()) >= n
	}, 2*time.Second, time.Millisecond)
	return transport.messages()
}

func TestDispatcher_CompressesAndSends(t *testing.T) {
	q, transport, _ := startDispatcher(t)

	raw := []byte(`{"i":"GOLD","ltp":"1925.5"}`)
	q.Enqueue("GOLD", raw)

	msgs := waitForMessages(t, transport, 1)
	assert.Equal(t, "GOLD", msgs[0].group)

	restored, err := payload.Gunzip(msgs[0].payload)
	require.NoError(t, err)
	assert.Equal(t, raw, restored)
}

func TestDispatcher_DrainOrderAcrossGroups(t *testing.T) {
	q := queue.New(16)
	transport := &fakeTransport{}
	d := NewDispatcher(q, transport, clockwork.NewRealClock(), time.Second)

	q.Enqueue("GOLD", []byte("g"))
	q.Enqueue("SILVER", []byte("s"))
	q.Close()

	d.Run(context.Background())

	msgs := transport.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "GOLD", msgs[0].group)
	assert.Equal(t, "SILVER", msgs[1].group)
}

func TestDispatcher_StopDrainsPending(t *testing.T) {
	q, transport, d := startDispatcher(t)

	for _, g := range []string{"A", "B", "C"} {
		q.Enqueue(g, []byte(g))
	}
	d.Stop()

	assert.Len(t, waitForMessages(t, transport, 3), 3)
}

func TestDispatcher_ExitsOnContextCancel(t *testing.T) {
	q := queue.New(16)
	d := NewDispatcher(q, &fakeTransport{}, clockwork.NewRealClock(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not exit on context cancel")
	}
}
