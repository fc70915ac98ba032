// ABOUTME: MCPProxy orchestrates resolve, authorize, forward, and audit for each request.
// ABOUTME: Aggregates tool and resource listings across every configured backend.

package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/2389/ward-gateway/internal/authz"
	"github.com/2389/ward-gateway/internal/config"
	"github.com/2389/ward-gateway/internal/namespace"
	"github.com/2389/ward-gateway/internal/rpc"
	"github.com/2389/ward-gateway/internal/store"
)

// latestProtocolVersion is the MCP protocol version advertised in
// initialize responses.
const latestProtocolVersion = "2025-11-25"

// BackendSender forwards one JSON-RPC request to a named backend server.
// Implemented by process.Manager.
type BackendSender interface {
	Send(ctx context.Context, name string, req *rpc.Request) (*rpc.Response, error)
}

// MCPProxy routes agent requests to backend tool servers behind a single
// aggregated surface, enforcing an authorization decision per action.
type MCPProxy struct {
	servers map[string]config.BackendConfig
	sender  BackendSender
	adapter authz.ControlPlaneAdapter
	cache   *authz.Cache
	audit   store.AuditStore
	logger  *slog.Logger
	version string
}

// Config contains the proxy's dependencies. All are injected so parallel
// test instances share no state.
type Config struct {
	Servers map[string]config.BackendConfig
	Sender  BackendSender
	Adapter authz.ControlPlaneAdapter
	Cache   *authz.Cache
	Audit   store.AuditStore
	Logger  *slog.Logger
	Version string
}

// New creates an MCPProxy.
func New(cfg Config) *MCPProxy {
	return &MCPProxy{
		servers: cfg.Servers,
		sender:  cfg.Sender,
		adapter: cfg.Adapter,
		cache:   cfg.Cache,
		audit:   cfg.Audit,
		logger:  cfg.Logger,
		version: cfg.Version,
	}
}

// callParams are the params for tools/call.
type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// resourceParams are the params for resources/read and resources/write.
type resourceParams struct {
	URI      string          `json:"uri"`
	Contents json.RawMessage `json:"contents,omitempty"`
}

// samplingParams carry the target server for sampling/createMessage.
type samplingParams struct {
	Server string `json:"server"`
}

// ToolInfo is one tool in an aggregated tools/list result, with the
// owning server's prefix applied to the name.
type ToolInfo map[string]any

// HandleRequest dispatches one JSON-RPC request under the given tenant and
// actor. Resolution, authorization, and backend failures are returned as
// JSON-RPC error responses, never as Go errors.
func (p *MCPProxy) HandleRequest(ctx context.Context, req *rpc.Request, tenantID string, actor authz.Actor) *rpc.Response {
	switch req.Method {
	case "initialize":
		return p.handleInitialize(req)
	case "ping":
		return mustResponse(req.ID, map[string]any{})
	case "tools/list":
		tools := p.AggregateTools(ctx)
		return mustResponse(req.ID, map[string]any{"tools": tools})
	case "tools/call":
		return p.handleToolCall(ctx, req, tenantID, actor)
	case "resources/list":
		resources := p.AggregateResources(ctx)
		return mustResponse(req.ID, map[string]any{"resources": resources})
	case "resources/read":
		return p.handleResource(ctx, req, tenantID, actor, "resources/read", authz.ResourceAction("read"))
	case "resources/write":
		return p.handleResource(ctx, req, tenantID, actor, "resources/write", authz.ResourceAction("write"))
	case "sampling/createMessage":
		return p.handleSampling(ctx, req, tenantID, actor)
	case "policy/propose":
		return p.handlePropose(ctx, req, tenantID, actor)
	default:
		return rpc.NewErrorResponse(req.ID, rpc.CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil)
	}
}

// handleInitialize advertises the gateway's capabilities.
func (p *MCPProxy) handleInitialize(req *rpc.Request) *rpc.Response {
	return mustResponse(req.ID, map[string]any{
		"protocolVersion": latestProtocolVersion,
		"serverInfo": map[string]any{
			"name":    "ward-gateway",
			"version": p.version,
		},
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
			"sampling":  map[string]any{},
		},
	})
}

// handleToolCall authorizes and forwards one tool invocation.
func (p *MCPProxy) handleToolCall(ctx context.Context, req *rpc.Request, tenantID string, actor authz.Actor) *rpc.Response {
	started := time.Now()

	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return rpc.NewErrorResponse(req.ID, rpc.CodeInvalidParams, fmt.Sprintf("invalid tools/call params: %v", err), nil)
	}
	if params.Name == "" {
		return rpc.NewErrorResponse(req.ID, rpc.CodeInvalidParams, "tool name is required", nil)
	}

	serverName, backend, err := namespace.ServerForTool(params.Name, p.servers)
	if err != nil {
		return errorResponse(req.ID, err)
	}

	action := authz.ToolAction(params.Name)
	auditParams := map[string]any{"name": params.Name}

	decision, err := p.authorize(ctx, tenantID, actor, action, "", auditParams)
	if err != nil {
		p.emitAudit(ctx, tenantID, actor, action, serverName, decision, resultFor(decision), err.Error(), auditParams, started)
		return errorResponse(req.ID, err)
	}

	if err := p.enforceUsage(ctx, tenantID, action); err != nil {
		p.emitAudit(ctx, tenantID, actor, action, serverName, decision, store.ResultDenied, err.Error(), auditParams, started)
		return errorResponse(req.ID, err)
	}

	unprefixed := namespace.StripToolPrefix(params.Name, backend.ToolPrefix)
	forward, err := buildForward("tools/call", callParams{Name: unprefixed, Arguments: params.Arguments})
	if err != nil {
		return rpc.NewErrorResponse(req.ID, rpc.CodeInternalError, err.Error(), nil)
	}

	resp, err := p.sender.Send(ctx, serverName, forward)
	if err != nil {
		p.emitAudit(ctx, tenantID, actor, action, serverName, decision, store.ResultError, err.Error(), auditParams, started)
		return errorResponse(req.ID, err)
	}
	if resp.Error != nil {
		p.emitAudit(ctx, tenantID, actor, action, serverName, decision, store.ResultError, resp.Error.Message, auditParams, started)
		return &rpc.Response{JSONRPC: rpc.Version, ID: req.ID, Error: resp.Error}
	}

	result := relabelToolName(resp.Result, unprefixed, params.Name)

	p.emitAudit(ctx, tenantID, actor, action, serverName, decision, store.ResultSuccess, "", auditParams, started)

	return &rpc.Response{JSONRPC: rpc.Version, ID: req.ID, Result: result}
}

// handleResource authorizes and forwards a resource read or write. Resource
// URIs are namespaced with the owning server's tool prefix, the same way
// tool names are.
func (p *MCPProxy) handleResource(ctx context.Context, req *rpc.Request, tenantID string, actor authz.Actor, method, action string) *rpc.Response {
	started := time.Now()

	var params resourceParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return rpc.NewErrorResponse(req.ID, rpc.CodeInvalidParams, fmt.Sprintf("invalid %s params: %v", method, err), nil)
	}
	if params.URI == "" {
		return rpc.NewErrorResponse(req.ID, rpc.CodeInvalidParams, "resource uri is required", nil)
	}

	serverName, backend, err := namespace.ServerForTool(params.URI, p.servers)
	if err != nil {
		return errorResponse(req.ID, err)
	}

	unprefixed := namespace.StripToolPrefix(params.URI, backend.ToolPrefix)
	auditParams := map[string]any{"uri": params.URI}

	decision, err := p.authorize(ctx, tenantID, actor, action, unprefixed, auditParams)
	if err != nil {
		p.emitAudit(ctx, tenantID, actor, action, serverName, decision, resultFor(decision), err.Error(), auditParams, started)
		return errorResponse(req.ID, err)
	}

	forward, err := buildForward(method, resourceParams{URI: unprefixed, Contents: params.Contents})
	if err != nil {
		return rpc.NewErrorResponse(req.ID, rpc.CodeInternalError, err.Error(), nil)
	}

	resp, err := p.sender.Send(ctx, serverName, forward)
	if err != nil {
		p.emitAudit(ctx, tenantID, actor, action, serverName, decision, store.ResultError, err.Error(), auditParams, started)
		return errorResponse(req.ID, err)
	}
	if resp.Error != nil {
		p.emitAudit(ctx, tenantID, actor, action, serverName, decision, store.ResultError, resp.Error.Message, auditParams, started)
		return &rpc.Response{JSONRPC: rpc.Version, ID: req.ID, Error: resp.Error}
	}

	p.emitAudit(ctx, tenantID, actor, action, serverName, decision, store.ResultSuccess, "", auditParams, started)

	return &rpc.Response{JSONRPC: rpc.Version, ID: req.ID, Result: resp.Result}
}

// handleSampling authorizes and forwards a sampling request to the backend
// named in params.server.
func (p *MCPProxy) handleSampling(ctx context.Context, req *rpc.Request, tenantID string, actor authz.Actor) *rpc.Response {
	started := time.Now()

	var params samplingParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return rpc.NewErrorResponse(req.ID, rpc.CodeInvalidParams, fmt.Sprintf("invalid sampling params: %v", err), nil)
	}
	if params.Server == "" {
		return rpc.NewErrorResponse(req.ID, rpc.CodeInvalidParams, "sampling requests must name a server", nil)
	}
	if _, ok := p.servers[params.Server]; !ok {
		return rpc.NewErrorResponse(req.ID, CodeToolNotFound, fmt.Sprintf("No sampling server named: %s", params.Server), nil)
	}

	action := authz.SamplingAction("createMessage")
	auditParams := map[string]any{"server": params.Server}

	decision, err := p.authorize(ctx, tenantID, actor, action, "", auditParams)
	if err != nil {
		p.emitAudit(ctx, tenantID, actor, action, params.Server, decision, resultFor(decision), err.Error(), auditParams, started)
		return errorResponse(req.ID, err)
	}

	forward := &rpc.Request{JSONRPC: rpc.Version, Method: "sampling/createMessage", Params: req.Params}

	resp, err := p.sender.Send(ctx, params.Server, forward)
	if err != nil {
		p.emitAudit(ctx, tenantID, actor, action, params.Server, decision, store.ResultError, err.Error(), auditParams, started)
		return errorResponse(req.ID, err)
	}
	if resp.Error != nil {
		p.emitAudit(ctx, tenantID, actor, action, params.Server, decision, store.ResultError, resp.Error.Message, auditParams, started)
		return &rpc.Response{JSONRPC: rpc.Version, ID: req.ID, Error: resp.Error}
	}

	p.emitAudit(ctx, tenantID, actor, action, params.Server, decision, store.ResultSuccess, "", auditParams, started)

	return &rpc.Response{JSONRPC: rpc.Version, ID: req.ID, Result: resp.Result}
}

// proposeParams are the params for policy/propose.
type proposeParams struct {
	Action   string         `json:"action"`
	Resource string         `json:"resource,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}

// handlePropose files a policy change proposal with the control plane so an
// actor can request access to an action the current policy denies. This is
// the governance workflow, not the hot authorization path: no decision is
// made and nothing is forwarded to a backend.
func (p *MCPProxy) handlePropose(ctx context.Context, req *rpc.Request, tenantID string, actor authz.Actor) *rpc.Response {
	proposer, ok := p.adapter.(authz.PolicyProposer)
	if !ok {
		return rpc.NewErrorResponse(req.ID, rpc.CodeMethodNotFound, "control plane does not accept policy proposals", nil)
	}

	var params proposeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return rpc.NewErrorResponse(req.ID, rpc.CodeInvalidParams, fmt.Sprintf("invalid policy/propose params: %v", err), nil)
	}
	if params.Action == "" {
		return rpc.NewErrorResponse(req.ID, rpc.CodeInvalidParams, "action is required", nil)
	}

	proposal, err := proposer.ProposePolicy(ctx, &authz.Request{
		Action:   params.Action,
		Resource: params.Resource,
		Params:   params.Params,
		TenantID: tenantID,
		Actor:    actor,
	})
	if err != nil {
		p.logger.Error("policy proposal failed",
			"action", params.Action,
			"tenant", tenantID,
			"error", err,
		)
		return rpc.NewErrorResponse(req.ID, rpc.CodeInternalError, "policy proposal failed", nil)
	}

	p.logger.Info("policy proposal filed",
		"proposal_id", proposal.ProposalID,
		"action", params.Action,
		"tenant", tenantID,
		"actor", actor.ID,
	)

	return mustResponse(req.ID, proposal)
}

// authorize obtains a decision, cache-first, and fails closed when the
// control plane cannot be reached. A deny is returned as an
// AuthorizationError carrying the control plane's reason.
func (p *MCPProxy) authorize(ctx context.Context, tenantID string, actor authz.Actor, action, resource string, params map[string]any) (*authz.Response, error) {
	if cached := p.cache.Get(tenantID, actor.ID, action, resource); cached != nil {
		if !cached.Allowed() {
			return cached, &authz.AuthorizationError{Action: action, Reason: cached.Reason}
		}
		return cached, nil
	}

	authReq := &authz.Request{
		Action:   action,
		Resource: resource,
		Params:   params,
		TenantID: tenantID,
		Actor:    actor,
	}

	decision, err := p.adapter.Authorize(ctx, authReq)
	if err != nil {
		// Fail closed: no decision means deny, never allow.
		p.logger.Error("control plane unreachable, denying",
			"action", action,
			"tenant", tenantID,
			"error", err,
		)
		return nil, &authz.AuthorizationError{Action: action, Reason: "policy decision unavailable"}
	}

	p.cache.Put(tenantID, actor.ID, action, resource, decision)

	if !decision.Allowed() {
		return decision, &authz.AuthorizationError{Action: action, Reason: decision.Reason}
	}
	return decision, nil
}

// AggregateTools requests every configured server's tool list, prefixes
// each returned tool name with that server's tool_prefix, and concatenates.
// A single unreachable or crashed server contributes nothing and does not
// abort aggregation for the others.
func (p *MCPProxy) AggregateTools(ctx context.Context) []ToolInfo {
	tools := make([]ToolInfo, 0)

	for _, serverName := range p.serverNames() {
		backend := p.servers[serverName]

		forward := &rpc.Request{JSONRPC: rpc.Version, Method: "tools/list"}
		resp, err := p.sender.Send(ctx, serverName, forward)
		if err != nil {
			p.logger.Warn("tool aggregation skipping server",
				"server", serverName,
				"error", err,
			)
			continue
		}
		if resp.Error != nil {
			p.logger.Warn("tool aggregation skipping server",
				"server", serverName,
				"error", resp.Error.Message,
			)
			continue
		}

		var result struct {
			Tools []map[string]any `json:"tools"`
		}
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			p.logger.Warn("tool aggregation skipping server",
				"server", serverName,
				"error", err,
			)
			continue
		}

		for _, tool := range result.Tools {
			if name, ok := tool["name"].(string); ok {
				tool["name"] = namespace.AddToolPrefix(name, backend.ToolPrefix)
			}
			tools = append(tools, tool)
		}
	}

	return tools
}

// AggregateResources fans resources/list out to every configured server,
// prefixing each resource uri. Same failure downgrade as AggregateTools.
func (p *MCPProxy) AggregateResources(ctx context.Context) []map[string]any {
	resources := make([]map[string]any, 0)

	for _, serverName := range p.serverNames() {
		backend := p.servers[serverName]

		forward := &rpc.Request{JSONRPC: rpc.Version, Method: "resources/list"}
		resp, err := p.sender.Send(ctx, serverName, forward)
		if err != nil {
			p.logger.Warn("resource aggregation skipping server",
				"server", serverName,
				"error", err,
			)
			continue
		}
		if resp.Error != nil {
			p.logger.Warn("resource aggregation skipping server",
				"server", serverName,
				"error", resp.Error.Message,
			)
			continue
		}

		var result struct {
			Resources []map[string]any `json:"resources"`
		}
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			p.logger.Warn("resource aggregation skipping server",
				"server", serverName,
				"error", err,
			)
			continue
		}

		for _, resource := range result.Resources {
			if uri, ok := resource["uri"].(string); ok {
				resource["uri"] = namespace.AddToolPrefix(uri, backend.ToolPrefix)
			}
			resources = append(resources, resource)
		}
	}

	return resources
}

// serverNames returns configured server names in stable order.
func (p *MCPProxy) serverNames() []string {
	names := make([]string, 0, len(p.servers))
	for name := range p.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// emitAudit records one authorize-then-forward attempt. Audit failures are
// logged, never surfaced to the caller.
func (p *MCPProxy) emitAudit(ctx context.Context, tenantID string, actor authz.Actor, action, server string, decision *authz.Response, result store.Result, reason string, params map[string]any, started time.Time) {
	entry := &store.AuditEntry{
		TenantID:  tenantID,
		ActorType: actor.Type,
		ActorID:   actor.ID,
		Action:    action,
		Server:    server,
		Result:    result,
		Reason:    reason,
		Params:    params,
		LatencyMS: time.Since(started).Milliseconds(),
	}
	if decision != nil {
		entry.Decision = decision.Decision
		entry.DecisionID = decision.DecisionID
	}

	if err := p.audit.AppendAudit(ctx, entry); err != nil {
		p.logger.Error("appending audit entry failed",
			"action", action,
			"tenant", tenantID,
			"error", err,
		)
	}
}

// resultFor classifies an authorization failure for the audit log: a real
// policy deny (the decision is known) is "denied"; a fail-closed deny with
// no decision is "error".
func resultFor(decision *authz.Response) store.Result {
	if decision != nil {
		return store.ResultDenied
	}
	return store.ResultError
}

// buildForward constructs the request forwarded to a backend. The id is
// left unset so the process manager assigns a connection-unique one.
func buildForward(method string, params any) (*rpc.Request, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshaling forward params: %w", err)
	}
	return &rpc.Request{JSONRPC: rpc.Version, Method: method, Params: paramsJSON}, nil
}

// relabelToolName restores the prefixed tool name when the backend echoes
// the unprefixed name in its result. Results without a name field pass
// through verbatim.
func relabelToolName(result json.RawMessage, unprefixed, prefixed string) json.RawMessage {
	var decoded map[string]any
	if err := json.Unmarshal(result, &decoded); err != nil {
		return result
	}

	name, ok := decoded["name"].(string)
	if !ok || name != unprefixed {
		return result
	}

	decoded["name"] = prefixed
	relabeled, err := json.Marshal(decoded)
	if err != nil {
		return result
	}
	return relabeled
}

// mustResponse builds a success response for a result the proxy itself
// constructed, which always marshals.
func mustResponse(id json.RawMessage, result any) *rpc.Response {
	resp, err := rpc.NewResponse(id, result)
	if err != nil {
		return rpc.NewErrorResponse(id, rpc.CodeInternalError, err.Error(), nil)
	}
	return resp
}
