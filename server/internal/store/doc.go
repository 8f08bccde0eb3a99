// Package store keeps the latest poll cycle per project in memory with TTL
// eviction. It is the read side for the REST API, the WebSocket hub and the
// health service.
package store
