// Package hub is the realization of the transport contract: it owns live
// WebSocket connections, exposes join/leave/send-to-group primitives on
// top of the group registry, and speaks the client command protocol
// (room join with snapshot-on-join, symbol subscription, last-tick
// replay, dashboard room).
package hub
