// ABOUTME: Gateway-specific JSON-RPC error codes and error-to-response mapping.
// ABOUTME: Lets callers tell "not allowed" from "tool server down" from "unknown tool".

package proxy

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/2389/ward-gateway/internal/authz"
	"github.com/2389/ward-gateway/internal/namespace"
	"github.com/2389/ward-gateway/internal/process"
	"github.com/2389/ward-gateway/internal/rpc"
)

// Gateway error codes in the JSON-RPC server-error range.
const (
	CodeAuthorizationDenied = -32001
	CodeToolNotFound        = -32002
	CodeBackendUnavailable  = -32003
	CodeBackendCrashed      = -32004
	CodeBackendTimeout      = -32005
	CodeMalformedBackend    = -32006
	CodeBackendStopped      = -32007
	CodeUsageLimitExceeded  = -32008
)

// errorResponse maps a gateway error to a JSON-RPC error response so the
// caller can distinguish failure kinds by code.
func errorResponse(id json.RawMessage, err error) *rpc.Response {
	var (
		authErr    *authz.AuthorizationError
		notFound   *namespace.NotFoundError
		notRunning *process.NotRunningError
		crashed    *process.CrashError
		stopped    *process.StoppedError
		malformed  *process.MalformedResponseError
		timeout    *process.TimeoutError
		usageErr   *UsageLimitError
		backendErr *rpc.Error
	)

	switch {
	case errors.As(err, &authErr):
		return rpc.NewErrorResponse(id, CodeAuthorizationDenied, authErr.Error(), map[string]string{
			"reason": authErr.Reason,
		})
	case errors.As(err, &notFound):
		return rpc.NewErrorResponse(id, CodeToolNotFound, notFound.Error(), nil)
	case errors.As(err, &usageErr):
		return rpc.NewErrorResponse(id, CodeUsageLimitExceeded, usageErr.Error(), map[string]any{
			"upgrade_url": usageErr.UpgradeURL,
			"calls_used":  usageErr.Usage.CallsUsed,
			"calls_limit": usageErr.Usage.CallsLimit,
		})
	case errors.As(err, &crashed):
		return rpc.NewErrorResponse(id, CodeBackendCrashed, crashed.Error(), nil)
	case errors.As(err, &stopped):
		return rpc.NewErrorResponse(id, CodeBackendStopped, stopped.Error(), nil)
	case errors.As(err, &timeout):
		return rpc.NewErrorResponse(id, CodeBackendTimeout, timeout.Error(), nil)
	case errors.As(err, &malformed):
		return rpc.NewErrorResponse(id, CodeMalformedBackend, malformed.Error(), nil)
	case errors.As(err, &notRunning):
		return rpc.NewErrorResponse(id, CodeBackendUnavailable, notRunning.Error(), nil)
	case errors.As(err, &backendErr):
		return rpc.NewErrorResponse(id, backendErr.Code, backendErr.Message, backendErr.Data)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return rpc.NewErrorResponse(id, CodeBackendTimeout, err.Error(), nil)
	default:
		return rpc.NewErrorResponse(id, rpc.CodeInternalError, err.Error(), nil)
	}
}
