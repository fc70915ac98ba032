// Package store persists the gateway audit log: one entry per
// authorize-then-forward attempt, with tenant, actor, action, decision,
// outcome, and timing. Backed by SQLite or an in-memory implementation.
package store
