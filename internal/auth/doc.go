// Package auth verifies caller identity for the gateway's HTTP surface.
//
// Agents present HS256-signed JWTs whose sub claim names the actor, typ
// names the actor kind, and tenant scopes the call. The middleware attaches
// the verified Identity to the request context; handlers read it back with
// FromContext.
package auth
