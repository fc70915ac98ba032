// Package rpc provides the JSON-RPC 2.0 envelope used between the agent,
// the gateway, and each backend tool server.
package rpc
