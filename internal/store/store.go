// ABOUTME: Audit sink contract and entry types for authorize-then-forward attempts.
// ABOUTME: One entry per attempt: tenant, actor, action, decision, outcome, and timing.

package store

import (
	"context"
	"time"

	"github.com/2389/ward-gateway/internal/authz"
)

// Result classifies the outcome of one gateway attempt.
type Result string

const (
	ResultSuccess Result = "success"
	ResultDenied  Result = "denied"
	ResultError   Result = "error"
)

// AuditEntry records a single authorize-then-forward attempt.
type AuditEntry struct {
	ID         string          // UUID v4, generated if unset
	TenantID   string          // tenant the call ran under
	ActorType  authz.ActorType // who originated the call
	ActorID    string
	Action     string         // canonical action, e.g. "tool:read_file"
	Server     string         // logical backend server name, empty for aggregates
	Decision   authz.Decision // allow or deny; empty when authorization itself errored
	DecisionID string         // control plane decision id, empty on cache-bypass errors
	Result     Result
	Reason     string         // deny reason or error detail
	Params     map[string]any // sanitized request params
	LatencyMS  int64          // end-to-end attempt latency
	Timestamp  time.Time      // when it happened, generated if unset
}

// AuditFilter specifies filtering options for listing audit entries.
type AuditFilter struct {
	Since    *time.Time // entries after this time
	Until    *time.Time // entries before this time
	TenantID *string    // filter by tenant
	ActorID  *string    // filter by actor
	Action   *string    // filter by action
	Result   *Result    // filter by outcome
	Limit    int        // max results (default 100, max 1000)
}

// AuditStore is the sink the proxy emits audit events to.
type AuditStore interface {
	AppendAudit(ctx context.Context, e *AuditEntry) error
	ListAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
	Close() error
}

// normalizeAuditLimit applies default (100) and cap (1000) to audit limit.
func normalizeAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}
