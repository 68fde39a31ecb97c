// Package redis implements the shared-cache access layer on go-redis.
//
// The cache is process-external state shared by every server instance:
// one key per symbol holding the latest tick JSON, plus the entitlement
// and per-user instrument snapshots maintained by the admin system.
package redis
