// ABOUTME: ControlPlaneAdapter contract and its HTTP implementation.
// ABOUTME: Adapter failure is surfaced as an error so the proxy can fail closed.

package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ControlPlaneAdapter obtains authorization decisions from the external
// policy control plane. An error return means no decision could be
// determined; callers must treat that as deny, never as allow.
type ControlPlaneAdapter interface {
	Authorize(ctx context.Context, req *Request) (*Response, error)
}

// PolicyProposer is an optional adapter extension for the governance
// workflow. It is unrelated to the hot authorization path.
type PolicyProposer interface {
	ProposePolicy(ctx context.Context, req *Request) (*Proposal, error)
}

// UsageReporter is an optional adapter extension for per-tenant usage
// queries. Adapters without it simply skip usage enforcement.
type UsageReporter interface {
	GetUsage(ctx context.Context, tenantID string, periodStart, periodEnd time.Time) (*Usage, error)
}

// defaultHTTPTimeout bounds the authorization round-trip when none is configured.
const defaultHTTPTimeout = 10 * time.Second

// HTTPAdapter talks to the control plane over HTTPS with bearer auth.
type HTTPAdapter struct {
	baseURL  string
	token    string
	kernelID string
	client   *http.Client
}

// HTTPAdapterConfig contains configuration options for the HTTPAdapter.
type HTTPAdapterConfig struct {
	URL      string
	Token    string
	KernelID string
	Timeout  time.Duration
}

// NewHTTPAdapter creates an adapter for the control plane at the given URL.
func NewHTTPAdapter(cfg HTTPAdapterConfig) *HTTPAdapter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}

	return &HTTPAdapter{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		token:    cfg.Token,
		kernelID: cfg.KernelID,
		client:   &http.Client{Timeout: timeout},
	}
}

// Authorize posts the request to the control plane's authorize endpoint.
func (a *HTTPAdapter) Authorize(ctx context.Context, req *Request) (*Response, error) {
	var resp Response
	if err := a.post(ctx, "/v1/authorize", req, &resp); err != nil {
		return nil, err
	}

	if resp.Decision != DecisionAllow && resp.Decision != DecisionDeny {
		return nil, fmt.Errorf("control plane returned unknown decision %q", resp.Decision)
	}
	return &resp, nil
}

// ProposePolicy submits a policy change proposal for governance review.
func (a *HTTPAdapter) ProposePolicy(ctx context.Context, req *Request) (*Proposal, error) {
	var proposal Proposal
	if err := a.post(ctx, "/v1/policy-proposals", req, &proposal); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// GetUsage queries the tenant's call consumption for the given period.
func (a *HTTPAdapter) GetUsage(ctx context.Context, tenantID string, periodStart, periodEnd time.Time) (*Usage, error) {
	payload := map[string]string{
		"tenant_id":    tenantID,
		"period_start": periodStart.UTC().Format(time.RFC3339),
		"period_end":   periodEnd.UTC().Format(time.RFC3339),
	}

	var usage Usage
	if err := a.post(ctx, "/v1/usage", payload, &usage); err != nil {
		return nil, err
	}
	return &usage, nil
}

// post sends a JSON request body and decodes the JSON response body.
func (a *HTTPAdapter) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.token)
	}
	if a.kernelID != "" {
		httpReq.Header.Set("X-Ward-Kernel", a.kernelID)
	}

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("calling control plane: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return fmt.Errorf("control plane returned %d: %s", httpResp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding control plane response: %w", err)
	}
	return nil
}
