// Package process supervises backend MCP tool-server processes.
//
// # Overview
//
// Each configured server runs as a child process speaking newline-delimited
// JSON-RPC 2.0 over its stdin/stdout. The Manager owns every process handle;
// callers interact only through Spawn, Send, and Stop.
//
// # Lifecycle
//
// A server moves through an explicit state machine:
//
//	absent -> starting -> running -> (crashed | stopping -> stopped)
//
// A process-exit event, whether or not a stop was requested, atomically marks
// the final state and rejects every pending request for that server. Later
// sends fail fast instead of hanging. Crashed and stopped names can be
// respawned.
//
// # Correlation
//
// Concurrent requests to the same server share one stdio pair. Each request
// carries a unique JSON-RPC id; responses are matched by id, never by arrival
// order. A response line that fails to parse rejects only the request it
// correlates to.
package process
