// ABOUTME: Optional per-tenant usage-limit enforcement against the control plane.
// ABOUTME: Fails open on query errors; only a confirmed exhausted free tier blocks a call.

package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/2389/ward-gateway/internal/authz"
)

// usageWarningThreshold is the calls-used count at which free-tier tenants
// start getting a logged warning.
const usageWarningThreshold = 90

// UsageLimitError indicates a free-tier tenant has exhausted its call
// budget for the current period.
type UsageLimitError struct {
	Usage      *authz.Usage
	UpgradeURL string
}

func (e *UsageLimitError) Error() string {
	return fmt.Sprintf("Free tier limit reached (%d calls). Add a payment method to continue.", e.Usage.CallsLimit)
}

// enforceUsage checks the tenant's consumption before executing an action.
// Adapters without usage support, missing tenants, and query failures all
// allow the request to proceed.
func (p *MCPProxy) enforceUsage(ctx context.Context, tenantID, action string) error {
	if tenantID == "" {
		return nil
	}

	reporter, ok := p.adapter.(authz.UsageReporter)
	if !ok {
		return nil
	}

	now := time.Now().UTC()
	periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	usage, err := reporter.GetUsage(ctx, tenantID, periodStart, now)
	if err != nil {
		// Usage gating is best-effort; a broken usage query never blocks.
		p.logger.Warn("usage check failed, allowing request",
			"tenant", tenantID,
			"action", action,
			"error", err,
		)
		return nil
	}

	if usage.Tier != "free" {
		return nil
	}

	if usage.CallsUsed >= usage.CallsLimit {
		return &UsageLimitError{
			Usage:      usage,
			UpgradeURL: fmt.Sprintf("/api/upgrade/checkout?tenant=%s", tenantID),
		}
	}

	if usage.CallsUsed >= usageWarningThreshold {
		p.logger.Warn("tenant approaching free tier limit",
			"tenant", tenantID,
			"calls_used", usage.CallsUsed,
			"calls_limit", usage.CallsLimit,
			"calls_remaining", usage.Remaining(),
		)
	}

	return nil
}
