package domain

import "strings"

// AllClientsRoom is the dashboard room receiving the id/username list of
// every client. Resolved through GroupResolver like any identity room.
const AllClientsRoom = "CalcifyAllClient"

// GroupResolver builds environment-prefixed room names so that multiple
// deployments sharing one transport backplane never cross-deliver.
// Symbol groups are intentionally NOT prefixed: the tick feed is shared
// infrastructure and publishes under bare symbol names.
type GroupResolver struct {
	env string
}

func NewGroupResolver(env string) GroupResolver {
	return GroupResolver{env: env}
}

// Room returns the namespaced group name for an identity room.
func (r GroupResolver) Room(name string) string {
	return r.env + ":" + name
}

// DeviceRoom returns the namespaced group name for a single device of an
// identity, used by device-scoped joins.
func (r GroupResolver) DeviceRoom(name, deviceID string) string {
	return r.Room(name) + "_" + deviceID
}

// IsRoom reports whether a group name is an identity room of this
// environment (as opposed to a bare symbol group). Room joins evict prior
// room memberships; symbol subscriptions persist across room switches.
func (r GroupResolver) IsRoom(group string) bool {
	return strings.HasPrefix(group, r.env+":")
}

// Env returns the deployment environment this resolver namespaces for.
func (r GroupResolver) Env() string {
	return r.env
}
