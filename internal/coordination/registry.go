package coordination

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// staleAfter is how long an instance may go without a heartbeat before
// it is considered gone.
const staleAfter = 60 * time.Second

// InstanceRegistry tracks the live fan-out instances of one deployment
// in a shared Redis hash. Every instance heartbeats its own field; peers
// with a stale heartbeat are treated as inactive.
type InstanceRegistry struct {
	rdb        *redis.Client
	key        string
	instanceID string
	heartbeat  time.Duration
	version    string
	clock      clockwork.Clock
	conns      func() int
}

// InstanceInfo is one instance's heartbeat record.
type InstanceInfo struct {
	InstanceID string `json:"instance_id"`
	Timestamp  int64  `json:"timestamp"`
	Version    string `json:"version"`
	Clients    int    `json:"clients"`
}

// NewInstanceRegistry creates a registry scoped to the deployment's
// cache prefix. conns reports this instance's live connection count and
// may be nil.
func NewInstanceRegistry(rdb *redis.Client, prefix, instanceID string, heartbeat time.Duration, version string, clock clockwork.Clock, conns func() int) *InstanceRegistry {
	return &InstanceRegistry{
		rdb:        rdb,
		key:        prefix + "_instances",
		instanceID: instanceID,
		heartbeat:  heartbeat,
		version:    version,
		clock:      clock,
		conns:      conns,
	}
}

// Start registers immediately, then heartbeats until ctx is cancelled,
// then removes this instance's record. Run from a dedicated goroutine.
func (r *InstanceRegistry) Start(ctx context.Context) {
	r.register(ctx)

	ticker := r.clock.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			r.register(ctx)
		case <-ctx.Done():
			r.unregister()
			return
		}
	}
}

func (r *InstanceRegistry) register(ctx context.Context) {
	info := InstanceInfo{
		InstanceID: r.instanceID,
		Timestamp:  r.clock.Now().Unix(),
		Version:    r.version,
	}
	if r.conns != nil {
		info.Clients = r.conns()
	}

	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := r.rdb.HSet(ctx, r.key, r.instanceID, data).Err(); err != nil {
		slog.Warn("Instance heartbeat failed", "instance_id", r.instanceID, "error", err)
	}
}

func (r *InstanceRegistry) unregister() {
	// Fresh context: the caller's is already cancelled during shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = r.rdb.HDel(ctx, r.key, r.instanceID).Err()
}

// ActiveInstances returns the heartbeat records of every instance seen
// within the staleness window.
func (r *InstanceRegistry) ActiveInstances(ctx context.Context) ([]InstanceInfo, error) {
	entries, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}

	now := r.clock.Now().Unix()
	infos := make([]InstanceInfo, 0, len(entries))
	for _, data := range entries {
		var info InstanceInfo
		if err := json.Unmarshal([]byte(data), &info); err != nil {
			continue
		}
		if now-info.Timestamp < int64(staleAfter.Seconds()) {
			infos = append(infos, info)
		}
	}
	return infos, nil
}
