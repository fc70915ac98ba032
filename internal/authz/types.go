// ABOUTME: Authorization request/response types exchanged with the policy control plane.
// ABOUTME: Actors, actions, decisions, and the error surfaced on a deny.

package authz

import "fmt"

// ActorType identifies the kind of caller that originated a request.
type ActorType string

const (
	ActorSystem ActorType = "system"
	ActorUser   ActorType = "user"
	ActorAPIKey ActorType = "api_key"
	ActorAgent  ActorType = "agent"
)

// ParseActorType validates a wire-format actor type string.
func ParseActorType(s string) (ActorType, error) {
	switch ActorType(s) {
	case ActorSystem, ActorUser, ActorAPIKey, ActorAgent:
		return ActorType(s), nil
	default:
		return "", fmt.Errorf("unknown actor type %q", s)
	}
}

// Actor identifies who originated a call. Carried through to authorization
// and audit.
type Actor struct {
	Type ActorType `json:"type"`
	ID   string    `json:"id"`
}

// Decision is the outcome of an authorization check.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// Request asks the control plane whether an actor may perform an action.
type Request struct {
	Action   string         `json:"action"`
	Resource string         `json:"resource,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
	TenantID string         `json:"tenant_id"`
	Actor    Actor          `json:"actor"`
}

// Response is the control plane's decision. A nil DecisionTTLMillis means
// the decision must not be cached; every identical call re-authorizes.
type Response struct {
	DecisionID        string   `json:"decision_id"`
	Decision          Decision `json:"decision"`
	Reason            string   `json:"reason"`
	PolicyVersion     string   `json:"policy_version"`
	DecisionTTLMillis *int64   `json:"decision_ttl_ms,omitempty"`
}

// Allowed reports whether the decision permits the action.
func (r *Response) Allowed() bool {
	return r.Decision == DecisionAllow
}

// ToolAction builds the canonical action string for an unprefixed tool name.
func ToolAction(name string) string { return "tool:" + name }

// ResourceAction builds the canonical action string for a resource operation.
func ResourceAction(name string) string { return "resource:" + name }

// SamplingAction builds the canonical action string for a sampling operation.
func SamplingAction(name string) string { return "sampling:" + name }

// AuthorizationError indicates the policy control plane denied the action.
// Reason is the control plane's human-readable explanation.
type AuthorizationError struct {
	Action string
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization denied for %s: %s", e.Action, e.Reason)
}

// Proposal is the control plane's response to a policy change proposal.
// This is a governance workflow, unrelated to the hot authorization path.
type Proposal struct {
	ProposalID string `json:"proposal_id"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

// Usage reports a tenant's call consumption for a billing period.
type Usage struct {
	TenantID    string `json:"tenant_id"`
	Tier        string `json:"tier"`
	CallsUsed   int    `json:"calls_used"`
	CallsLimit  int    `json:"calls_limit"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

// Remaining returns the calls left in the period, never negative.
func (u *Usage) Remaining() int {
	if u.CallsUsed >= u.CallsLimit {
		return 0
	}
	return u.CallsLimit - u.CallsUsed
}
