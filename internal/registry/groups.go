package registry

import (
	"sync"

	"github.com/dev-starline/thecalcify/internal/domain"
	"github.com/dev-starline/thecalcify/internal/metrics"
)

// GroupRegistry maintains the group-to-connections map and its inverse.
// The two maps are always mutual inverses: every mutation updates both
// under one lock. All operations are idempotent and safe to repeat.
type GroupRegistry struct {
	mu       sync.RWMutex
	members  map[string]map[string]struct{}
	joined   map[string]map[string]struct{}
	resolver domain.GroupResolver
}

func NewGroupRegistry(resolver domain.GroupResolver) *GroupRegistry {
	return &GroupRegistry{
		members:  make(map[string]map[string]struct{}),
		joined:   make(map[string]map[string]struct{}),
		resolver: resolver,
	}
}

// Join adds a connection to a group.
func (r *GroupRegistry) Join(connID, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.join(connID, group)
}

// JoinRoom subscribes a connection to an identity room, atomically
// evicting any room memberships it held before. Symbol subscriptions are
// untouched: switching identity context must not cancel explicit symbol
// interest.
func (r *GroupRegistry) JoinRoom(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for group := range r.joined[connID] {
		if r.resolver.IsRoom(group) {
			r.leave(connID, group)
		}
	}
	r.join(connID, room)
}

// Leave removes a connection from one group.
func (r *GroupRegistry) Leave(connID, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leave(connID, group)
}

// LeaveAll removes a connection from every group it was in, returning
// the groups it left. Used on disconnect.
func (r *GroupRegistry) LeaveAll(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	groups := make([]string, 0, len(r.joined[connID]))
	for group := range r.joined[connID] {
		groups = append(groups, group)
	}
	for _, group := range groups {
		r.leave(connID, group)
	}
	return groups
}

// Members returns a snapshot of the connections currently in a group.
// The snapshot is safe to iterate while the registry keeps mutating.
func (r *GroupRegistry) Members(group string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]string, 0, len(r.members[group]))
	for connID := range r.members[group] {
		conns = append(conns, connID)
	}
	return conns
}

// Groups returns a snapshot of the groups a connection has joined.
func (r *GroupRegistry) Groups(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups := make([]string, 0, len(r.joined[connID]))
	for group := range r.joined[connID] {
		groups = append(groups, group)
	}
	return groups
}

// GroupCount returns the number of groups with at least one member.
func (r *GroupRegistry) GroupCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *GroupRegistry) join(connID, group string) {
	if r.members[group] == nil {
		r.members[group] = make(map[string]struct{})
	}
	r.members[group][connID] = struct{}{}

	if r.joined[connID] == nil {
		r.joined[connID] = make(map[string]struct{})
	}
	r.joined[connID][group] = struct{}{}

	metrics.HubActiveGroups.Set(float64(len(r.members)))
}

func (r *GroupRegistry) leave(connID, group string) {
	if conns, ok := r.members[group]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.members, group)
		}
	}
	if groups, ok := r.joined[connID]; ok {
		delete(groups, group)
		if len(groups) == 0 {
			delete(r.joined, connID)
		}
	}

	metrics.HubActiveGroups.Set(float64(len(r.members)))
}
