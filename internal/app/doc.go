// Package app holds the service layer between the transport/API surface
// and the stores: snapshot assembly for join-time delivery, entitlement
// pushes, news fan-out and the background refresh job queue.
package app
