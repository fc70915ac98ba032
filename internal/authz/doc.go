// Package authz provides authorization decisions for gateway actions.
//
// # Overview
//
// Every tool call, resource operation, and sampling request is authorized
// against the external policy control plane before it reaches a backend.
// Decisions are cached only when the control plane grants them a TTL via
// decision_ttl_ms; a response without a TTL re-authorizes on every call.
//
// # Fail-closed
//
// Any path that cannot determine a decision, a cache miss combined with an
// unreachable or erroring control plane, is treated as deny.
package authz
