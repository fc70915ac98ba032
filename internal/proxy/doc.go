// Package proxy is the request router at the heart of ward-gateway.
//
// # Overview
//
// The MCPProxy presents a single aggregated tool/resource surface to the
// agent. Each request is resolved to its owning backend server by tool
// prefix, authorized against the policy control plane (cache-first,
// fail-closed), forwarded over the process manager's stdio channel, and
// audited with its outcome and latency.
//
// # Error surface
//
// Failures come back as JSON-RPC error responses with distinct codes, so a
// caller can tell "you're not allowed" from "the tool server is down" from
// "unknown tool". Aggregation is the one exception: a single dead server
// contributes an empty list instead of failing the whole call.
package proxy
