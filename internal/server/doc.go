// Package server is the gateway's HTTP front door.
//
// A single authenticated POST /rpc endpoint accepts JSON-RPC 2.0 requests
// and routes them through the proxy; GET /healthz reports liveness without
// authentication. Protocol failures are JSON-RPC error responses over
// HTTP 200; only transport-level problems surface as HTTP errors.
package server
