// Package api implements the HTTP REST API and WebSocket server for Bosun Core.
//
// This package provides:
//   - REST endpoints for devices, the public state snapshot and the manufacturer catalog
//   - Write endpoints (device config, advertisement ingest) guarded by JWT bearer tokens
//   - A WebSocket transport for the publisher's state stream
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - Prometheus metrics at /metrics
//
// # WebSocket protocol
//
// Every message is a JSON envelope {"type": ..., "data": ...}. On connect
// the server sends, in order:
//
//	system:welcome     {session_id, version, site, server_time}
//	state:full-update  the complete current snapshot
//	state:patch        [{op, path, value?}, ...] for every later change
//
// A client may send {"type":"state:resync"} to receive a fresh full update.
// Other client message types are ignored.
//
// # Graceful Degradation
//
// The server operates without MQTT, SQLite or Redis. Reads, WebSocket
// streaming and HTTP ingest keep working; only the affected sinks are idle.
package api
