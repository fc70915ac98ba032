// ABOUTME: Tests for the MCPProxy orchestration: resolve, authorize, forward, audit.
// ABOUTME: Uses fake senders and adapters; no real processes or control plane.

package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/ward-gateway/internal/authz"
	"github.com/2389/ward-gateway/internal/config"
	"github.com/2389/ward-gateway/internal/process"
	"github.com/2389/ward-gateway/internal/rpc"
	"github.com/2389/ward-gateway/internal/store"
)

// sentCall records one forwarded request.
type sentCall struct {
	server string
	req    *rpc.Request
}

// fakeSender implements BackendSender with a programmable handler.
type fakeSender struct {
	mu      sync.Mutex
	calls   []sentCall
	handler func(server string, req *rpc.Request) (*rpc.Response, error)
}

func (f *fakeSender) Send(_ context.Context, server string, req *rpc.Request) (*rpc.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sentCall{server: server, req: req})
	f.mu.Unlock()
	return f.handler(server, req)
}

func (f *fakeSender) sent() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentCall(nil), f.calls...)
}

// fakeAdapter implements ControlPlaneAdapter with a programmable decision.
type fakeAdapter struct {
	mu        sync.Mutex
	callCount int
	authorize func(req *authz.Request) (*authz.Response, error)
}

func (f *fakeAdapter) Authorize(_ context.Context, req *authz.Request) (*authz.Response, error) {
	f.mu.Lock()
	f.callCount++
	f.mu.Unlock()
	return f.authorize(req)
}

func (f *fakeAdapter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

// fakeUsageAdapter adds UsageReporter support on top of fakeAdapter.
type fakeUsageAdapter struct {
	fakeAdapter
	usage    *authz.Usage
	usageErr error
}

func (f *fakeUsageAdapter) GetUsage(_ context.Context, _ string, _, _ time.Time) (*authz.Usage, error) {
	return f.usage, f.usageErr
}

func allowAll(ttl *int64) func(req *authz.Request) (*authz.Response, error) {
	return func(req *authz.Request) (*authz.Response, error) {
		return &authz.Response{
			DecisionID:        "dec-1",
			Decision:          authz.DecisionAllow,
			Reason:            "policy matched",
			PolicyVersion:     "v1",
			DecisionTTLMillis: ttl,
		}, nil
	}
}

func ttlMillis(ms int64) *int64 { return &ms }

func testServers() map[string]config.BackendConfig {
	return map[string]config.BackendConfig{
		"fs":  {Command: "mcp-fs-server", ToolPrefix: "fs."},
		"web": {Command: "mcp-web-server", ToolPrefix: "web."},
	}
}

// echoSender answers tools/call with a result echoing the forwarded name.
func echoSender() *fakeSender {
	return &fakeSender{
		handler: func(server string, req *rpc.Request) (*rpc.Response, error) {
			var params callParams
			_ = json.Unmarshal(req.Params, &params)
			result, _ := json.Marshal(map[string]any{
				"name":    params.Name,
				"content": []map[string]any{{"type": "text", "text": "ok"}},
			})
			return &rpc.Response{JSONRPC: rpc.Version, ID: req.ID, Result: result}, nil
		},
	}
}

type proxyFixture struct {
	proxy   *MCPProxy
	sender  *fakeSender
	adapter authz.ControlPlaneAdapter
	audit   *store.MemoryStore
	cache   *authz.Cache
}

func newFixture(t *testing.T, sender *fakeSender, adapter authz.ControlPlaneAdapter) *proxyFixture {
	t.Helper()

	cache := authz.NewCache(100)
	t.Cleanup(cache.Close)

	audit := store.NewMemoryStore()

	p := New(Config{
		Servers: testServers(),
		Sender:  sender,
		Adapter: adapter,
		Cache:   cache,
		Audit:   audit,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Version: "test",
	})

	return &proxyFixture{proxy: p, sender: sender, adapter: adapter, audit: audit, cache: cache}
}

func toolCallRequest(t *testing.T, name string) *rpc.Request {
	t.Helper()
	req, err := rpc.NewRequest("req-1", "tools/call", map[string]any{
		"name":      name,
		"arguments": map[string]any{"path": "/tmp/x"},
	})
	require.NoError(t, err)
	return req
}

func testActor() authz.Actor {
	return authz.Actor{Type: authz.ActorAgent, ID: "agent-1"}
}

func auditEntries(t *testing.T, f *proxyFixture) []store.AuditEntry {
	t.Helper()
	entries, err := f.audit.ListAudit(context.Background(), store.AuditFilter{})
	require.NoError(t, err)
	return entries
}

func TestHandleRequest_Initialize(t *testing.T) {
	f := newFixture(t, echoSender(), &fakeAdapter{authorize: allowAll(nil)})

	req, err := rpc.NewRequest("init-1", "initialize", nil)
	require.NoError(t, err)

	resp := f.proxy.HandleRequest(context.Background(), req, "t1", testActor())
	require.Nil(t, resp.Error)

	var result struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, latestProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, "ward-gateway", result.ServerInfo.Name)
}

func TestHandleRequest_UnknownMethod(t *testing.T) {
	f := newFixture(t, echoSender(), &fakeAdapter{authorize: allowAll(nil)})

	req, err := rpc.NewRequest("req-1", "prompts/list", nil)
	require.NoError(t, err)

	resp := f.proxy.HandleRequest(context.Background(), req, "t1", testActor())
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeMethodNotFound, resp.Error.Code)
}

func TestToolCall_AllowedReachesBackend(t *testing.T) {
	sender := echoSender()
	f := newFixture(t, sender, &fakeAdapter{authorize: allowAll(nil)})

	resp := f.proxy.HandleRequest(context.Background(), toolCallRequest(t, "fs.read_file"), "t1", testActor())

	require.Nil(t, resp.Error)
	assert.Equal(t, rpc.Version, resp.JSONRPC)
	assert.Equal(t, `"req-1"`, string(resp.ID))

	// The backend received the unprefixed name on the right server.
	calls := sender.sent()
	require.Len(t, calls, 1)
	assert.Equal(t, "fs", calls[0].server)

	var forwarded callParams
	require.NoError(t, json.Unmarshal(calls[0].req.Params, &forwarded))
	assert.Equal(t, "read_file", forwarded.Name)

	// The echoed tool name is re-prefixed in the result.
	var result struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "fs.read_file", result.Name)

	entries := auditEntries(t, f)
	require.Len(t, entries, 1)
	assert.Equal(t, store.ResultSuccess, entries[0].Result)
	assert.Equal(t, "tool:fs.read_file", entries[0].Action)
	assert.Equal(t, "fs", entries[0].Server)
	assert.Equal(t, authz.DecisionAllow, entries[0].Decision)
}

func TestToolCall_DeniedSurfacesReason(t *testing.T) {
	adapter := &fakeAdapter{
		authorize: func(req *authz.Request) (*authz.Response, error) {
			return &authz.Response{
				DecisionID: "dec-2",
				Decision:   authz.DecisionDeny,
				Reason:     "file access disabled for tenant",
			}, nil
		},
	}
	sender := echoSender()
	f := newFixture(t, sender, adapter)

	resp := f.proxy.HandleRequest(context.Background(), toolCallRequest(t, "fs.read_file"), "t1", testActor())

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeAuthorizationDenied, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "file access disabled for tenant")

	// Nothing was forwarded to the backend.
	assert.Empty(t, sender.sent())

	entries := auditEntries(t, f)
	require.Len(t, entries, 1)
	assert.Equal(t, store.ResultDenied, entries[0].Result)
	assert.Equal(t, authz.DecisionDeny, entries[0].Decision)
}

func TestToolCall_AdapterFailureFailsClosed(t *testing.T) {
	adapter := &fakeAdapter{
		authorize: func(req *authz.Request) (*authz.Response, error) {
			return nil, errors.New("control plane unreachable")
		},
	}
	sender := echoSender()
	f := newFixture(t, sender, adapter)

	resp := f.proxy.HandleRequest(context.Background(), toolCallRequest(t, "fs.read_file"), "t1", testActor())

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeAuthorizationDenied, resp.Error.Code)
	assert.Empty(t, sender.sent())

	entries := auditEntries(t, f)
	require.Len(t, entries, 1)
	assert.Equal(t, store.ResultError, entries[0].Result)
}

func TestToolCall_UnknownTool(t *testing.T) {
	f := newFixture(t, echoSender(), &fakeAdapter{authorize: allowAll(nil)})

	resp := f.proxy.HandleRequest(context.Background(), toolCallRequest(t, "tool_without_prefix"), "t1", testActor())

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeToolNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "No server found for tool: tool_without_prefix")
}

func TestToolCall_DecisionWithTTLIsReused(t *testing.T) {
	adapter := &fakeAdapter{authorize: allowAll(ttlMillis(60_000))}
	f := newFixture(t, echoSender(), adapter)

	for i := 0; i < 2; i++ {
		resp := f.proxy.HandleRequest(context.Background(), toolCallRequest(t, "fs.read_file"), "t1", testActor())
		require.Nil(t, resp.Error)
	}

	assert.Equal(t, 1, adapter.calls(), "second identical call within TTL must not hit the adapter")
}

func TestToolCall_DecisionWithTTLExpires(t *testing.T) {
	adapter := &fakeAdapter{authorize: allowAll(ttlMillis(20))}
	f := newFixture(t, echoSender(), adapter)

	ctx := context.Background()
	require.Nil(t, f.proxy.HandleRequest(ctx, toolCallRequest(t, "fs.read_file"), "t1", testActor()).Error)
	require.Nil(t, f.proxy.HandleRequest(ctx, toolCallRequest(t, "fs.read_file"), "t1", testActor()).Error)

	time.Sleep(40 * time.Millisecond)

	require.Nil(t, f.proxy.HandleRequest(ctx, toolCallRequest(t, "fs.read_file"), "t1", testActor()).Error)
	assert.Equal(t, 2, adapter.calls(), "expired decision must re-invoke the adapter")
}

func TestToolCall_DecisionWithoutTTLNeverCached(t *testing.T) {
	adapter := &fakeAdapter{authorize: allowAll(nil)}
	f := newFixture(t, echoSender(), adapter)

	ctx := context.Background()
	require.Nil(t, f.proxy.HandleRequest(ctx, toolCallRequest(t, "fs.read_file"), "t1", testActor()).Error)
	require.Nil(t, f.proxy.HandleRequest(ctx, toolCallRequest(t, "fs.read_file"), "t1", testActor()).Error)

	assert.Equal(t, 2, adapter.calls(), "a decision without a TTL must re-authorize every call")
	assert.Equal(t, 0, f.cache.Len())
}

func TestToolCall_CachedDenyShortCircuits(t *testing.T) {
	adapter := &fakeAdapter{
		authorize: func(req *authz.Request) (*authz.Response, error) {
			return &authz.Response{
				Decision:          authz.DecisionDeny,
				Reason:            "quota exceeded",
				DecisionTTLMillis: ttlMillis(60_000),
			}, nil
		},
	}
	sender := echoSender()
	f := newFixture(t, sender, adapter)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		resp := f.proxy.HandleRequest(ctx, toolCallRequest(t, "fs.read_file"), "t1", testActor())
		require.NotNil(t, resp.Error)
		assert.Contains(t, resp.Error.Message, "quota exceeded")
	}

	assert.Equal(t, 1, adapter.calls(), "a TTL'd deny is served from cache like an allow")
	assert.Empty(t, sender.sent())
}

func TestToolCall_BackendCrash(t *testing.T) {
	sender := &fakeSender{
		handler: func(server string, req *rpc.Request) (*rpc.Response, error) {
			return nil, &process.CrashError{Server: server}
		},
	}
	f := newFixture(t, sender, &fakeAdapter{authorize: allowAll(nil)})

	resp := f.proxy.HandleRequest(context.Background(), toolCallRequest(t, "fs.read_file"), "t1", testActor())

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeBackendCrashed, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, `"fs"`)

	entries := auditEntries(t, f)
	require.Len(t, entries, 1)
	assert.Equal(t, store.ResultError, entries[0].Result)
}

func TestToolCall_BackendNotRunning(t *testing.T) {
	sender := &fakeSender{
		handler: func(server string, req *rpc.Request) (*rpc.Response, error) {
			return nil, &process.NotRunningError{Server: server}
		},
	}
	f := newFixture(t, sender, &fakeAdapter{authorize: allowAll(nil)})

	resp := f.proxy.HandleRequest(context.Background(), toolCallRequest(t, "fs.read_file"), "t1", testActor())

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeBackendUnavailable, resp.Error.Code)
}

func TestToolCall_BackendErrorPassthrough(t *testing.T) {
	sender := &fakeSender{
		handler: func(server string, req *rpc.Request) (*rpc.Response, error) {
			return &rpc.Response{
				JSONRPC: rpc.Version,
				ID:      req.ID,
				Error:   &rpc.Error{Code: -32050, Message: "file not found"},
			}, nil
		},
	}
	f := newFixture(t, sender, &fakeAdapter{authorize: allowAll(nil)})

	resp := f.proxy.HandleRequest(context.Background(), toolCallRequest(t, "fs.read_file"), "t1", testActor())

	require.NotNil(t, resp.Error)
	assert.Equal(t, -32050, resp.Error.Code)
	assert.Equal(t, "file not found", resp.Error.Message)

	entries := auditEntries(t, f)
	require.Len(t, entries, 1)
	assert.Equal(t, store.ResultError, entries[0].Result)
}

func TestToolsList_AggregatesWithPrefixes(t *testing.T) {
	sender := &fakeSender{
		handler: func(server string, req *rpc.Request) (*rpc.Response, error) {
			var tools []map[string]any
			switch server {
			case "fs":
				tools = []map[string]any{
					{"name": "read_file", "description": "Read a file"},
					{"name": "write_file", "description": "Write a file"},
				}
			case "web":
				tools = []map[string]any{
					{"name": "fetch", "description": "Fetch a URL"},
				}
			}
			result, _ := json.Marshal(map[string]any{"tools": tools})
			return &rpc.Response{JSONRPC: rpc.Version, ID: req.ID, Result: result}, nil
		},
	}
	f := newFixture(t, sender, &fakeAdapter{authorize: allowAll(nil)})

	req, err := rpc.NewRequest("list-1", "tools/list", nil)
	require.NoError(t, err)

	resp := f.proxy.HandleRequest(context.Background(), req, "t1", testActor())
	require.Nil(t, resp.Error)

	var result struct {
		Tools []map[string]any `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Tools, 3)

	names := make([]string, 0, 3)
	for _, tool := range result.Tools {
		names = append(names, tool["name"].(string))
	}
	assert.ElementsMatch(t, []string{"fs.read_file", "fs.write_file", "web.fetch"}, names)
}

func TestToolsList_UnreachableServerDoesNotAbort(t *testing.T) {
	sender := &fakeSender{
		handler: func(server string, req *rpc.Request) (*rpc.Response, error) {
			if server == "web" {
				return nil, &process.NotRunningError{Server: server}
			}
			result, _ := json.Marshal(map[string]any{
				"tools": []map[string]any{{"name": "read_file"}},
			})
			return &rpc.Response{JSONRPC: rpc.Version, ID: req.ID, Result: result}, nil
		},
	}
	f := newFixture(t, sender, &fakeAdapter{authorize: allowAll(nil)})

	tools := f.proxy.AggregateTools(context.Background())

	require.Len(t, tools, 1)
	assert.Equal(t, "fs.read_file", tools[0]["name"])
}

func TestResourcesRead_RoutesByPrefix(t *testing.T) {
	sender := &fakeSender{
		handler: func(server string, req *rpc.Request) (*rpc.Response, error) {
			result, _ := json.Marshal(map[string]any{"contents": "hello"})
			return &rpc.Response{JSONRPC: rpc.Version, ID: req.ID, Result: result}, nil
		},
	}
	adapter := &fakeAdapter{authorize: allowAll(nil)}
	f := newFixture(t, sender, adapter)

	req, err := rpc.NewRequest("res-1", "resources/read", map[string]any{"uri": "fs.file:///etc/motd"})
	require.NoError(t, err)

	resp := f.proxy.HandleRequest(context.Background(), req, "t1", testActor())
	require.Nil(t, resp.Error)

	calls := sender.sent()
	require.Len(t, calls, 1)
	assert.Equal(t, "fs", calls[0].server)

	var forwarded resourceParams
	require.NoError(t, json.Unmarshal(calls[0].req.Params, &forwarded))
	assert.Equal(t, "file:///etc/motd", forwarded.URI)

	entries := auditEntries(t, f)
	require.Len(t, entries, 1)
	assert.Equal(t, "resource:read", entries[0].Action)
}

func TestSampling_RequiresServer(t *testing.T) {
	f := newFixture(t, echoSender(), &fakeAdapter{authorize: allowAll(nil)})

	req, err := rpc.NewRequest("s-1", "sampling/createMessage", map[string]any{})
	require.NoError(t, err)

	resp := f.proxy.HandleRequest(context.Background(), req, "t1", testActor())
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeInvalidParams, resp.Error.Code)
}

func TestSampling_UnknownServer(t *testing.T) {
	f := newFixture(t, echoSender(), &fakeAdapter{authorize: allowAll(nil)})

	req, err := rpc.NewRequest("s-3", "sampling/createMessage", map[string]any{"server": "ghost"})
	require.NoError(t, err)

	resp := f.proxy.HandleRequest(context.Background(), req, "t1", testActor())
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeToolNotFound, resp.Error.Code)
	assert.Equal(t, "No sampling server named: ghost", resp.Error.Message)
}

func TestSampling_ForwardsToNamedServer(t *testing.T) {
	sender := &fakeSender{
		handler: func(server string, req *rpc.Request) (*rpc.Response, error) {
			result, _ := json.Marshal(map[string]any{"role": "assistant"})
			return &rpc.Response{JSONRPC: rpc.Version, ID: req.ID, Result: result}, nil
		},
	}
	f := newFixture(t, sender, &fakeAdapter{authorize: allowAll(nil)})

	req, err := rpc.NewRequest("s-2", "sampling/createMessage", map[string]any{
		"server":   "web",
		"messages": []map[string]any{{"role": "user", "content": "hi"}},
	})
	require.NoError(t, err)

	resp := f.proxy.HandleRequest(context.Background(), req, "t1", testActor())
	require.Nil(t, resp.Error)

	calls := sender.sent()
	require.Len(t, calls, 1)
	assert.Equal(t, "web", calls[0].server)

	entries := auditEntries(t, f)
	require.Len(t, entries, 1)
	assert.Equal(t, "sampling:createMessage", entries[0].Action)
}

func TestUsage_ExhaustedFreeTierBlocks(t *testing.T) {
	adapter := &fakeUsageAdapter{
		fakeAdapter: fakeAdapter{authorize: allowAll(nil)},
		usage: &authz.Usage{
			TenantID:   "t1",
			Tier:       "free",
			CallsUsed:  100,
			CallsLimit: 100,
		},
	}
	sender := echoSender()
	f := newFixture(t, sender, adapter)

	resp := f.proxy.HandleRequest(context.Background(), toolCallRequest(t, "fs.read_file"), "t1", testActor())

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUsageLimitExceeded, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "Free tier limit reached")
	assert.Empty(t, sender.sent())
}

func TestUsage_QueryFailureFailsOpen(t *testing.T) {
	adapter := &fakeUsageAdapter{
		fakeAdapter: fakeAdapter{authorize: allowAll(nil)},
		usageErr:    errors.New("usage service down"),
	}
	f := newFixture(t, echoSender(), adapter)

	resp := f.proxy.HandleRequest(context.Background(), toolCallRequest(t, "fs.read_file"), "t1", testActor())
	require.Nil(t, resp.Error)
}

func TestUsage_PaidTierNeverBlocked(t *testing.T) {
	adapter := &fakeUsageAdapter{
		fakeAdapter: fakeAdapter{authorize: allowAll(nil)},
		usage: &authz.Usage{
			TenantID:   "t1",
			Tier:       "paid",
			CallsUsed:  100_000,
			CallsLimit: 100,
		},
	}
	f := newFixture(t, echoSender(), adapter)

	resp := f.proxy.HandleRequest(context.Background(), toolCallRequest(t, "fs.read_file"), "t1", testActor())
	require.Nil(t, resp.Error)
}

// fakeProposerAdapter adds PolicyProposer support on top of fakeAdapter.
type fakeProposerAdapter struct {
	fakeAdapter
	proposal *authz.Proposal
	lastReq  *authz.Request
}

func (f *fakeProposerAdapter) ProposePolicy(_ context.Context, req *authz.Request) (*authz.Proposal, error) {
	f.lastReq = req
	return f.proposal, nil
}

func TestPolicyPropose(t *testing.T) {
	adapter := &fakeProposerAdapter{
		fakeAdapter: fakeAdapter{authorize: allowAll(nil)},
		proposal:    &authz.Proposal{ProposalID: "prop-7", Status: "pending"},
	}
	f := newFixture(t, echoSender(), adapter)

	req, err := rpc.NewRequest("prop-1", "policy/propose", map[string]any{
		"action": "tool:fs.write_file",
		"params": map[string]any{"justification": "need write access for deploys"},
	})
	require.NoError(t, err)

	resp := f.proxy.HandleRequest(context.Background(), req, "t1", testActor())
	require.Nil(t, resp.Error)

	var proposal authz.Proposal
	require.NoError(t, json.Unmarshal(resp.Result, &proposal))
	assert.Equal(t, "prop-7", proposal.ProposalID)
	assert.Equal(t, "pending", proposal.Status)

	require.NotNil(t, adapter.lastReq)
	assert.Equal(t, "tool:fs.write_file", adapter.lastReq.Action)
	assert.Equal(t, "t1", adapter.lastReq.TenantID)
	assert.Equal(t, "agent-1", adapter.lastReq.Actor.ID)
}

func TestPolicyPropose_UnsupportedAdapter(t *testing.T) {
	f := newFixture(t, echoSender(), &fakeAdapter{authorize: allowAll(nil)})

	req, err := rpc.NewRequest("prop-1", "policy/propose", map[string]any{"action": "tool:fs.write_file"})
	require.NoError(t, err)

	resp := f.proxy.HandleRequest(context.Background(), req, "t1", testActor())
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeMethodNotFound, resp.Error.Code)
}

func TestPolicyPropose_RequiresAction(t *testing.T) {
	adapter := &fakeProposerAdapter{
		fakeAdapter: fakeAdapter{authorize: allowAll(nil)},
		proposal:    &authz.Proposal{ProposalID: "prop-7", Status: "pending"},
	}
	f := newFixture(t, echoSender(), adapter)

	req, err := rpc.NewRequest("prop-1", "policy/propose", map[string]any{})
	require.NoError(t, err)

	resp := f.proxy.HandleRequest(context.Background(), req, "t1", testActor())
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeInvalidParams, resp.Error.Code)
}

func TestPing(t *testing.T) {
	f := newFixture(t, echoSender(), &fakeAdapter{authorize: allowAll(nil)})

	req, err := rpc.NewRequest("ping-1", "ping", nil)
	require.NoError(t, err)

	resp := f.proxy.HandleRequest(context.Background(), req, "t1", testActor())
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{}`, string(resp.Result))
}
