// ABOUTME: JSON-RPC 2.0 envelope types shared by the proxy, process manager, and HTTP server.
// ABOUTME: Results are kept as raw JSON so backend payloads pass through verbatim.

package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the JSON-RPC protocol version spoken on every channel.
const Version = "2.0"

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// NewRequest builds a request with the given string id, marshaling params.
func NewRequest(id, method string, params any) (*Request, error) {
	req := &Request{
		JSONRPC: Version,
		Method:  method,
	}

	idJSON, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("marshaling request id: %w", err)
	}
	req.ID = idJSON

	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshaling request params: %w", err)
		}
		req.Params = paramsJSON
	}

	return req, nil
}

// NewResponse builds a success response for the given request id.
func NewResponse(id json.RawMessage, result any) (*Response, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshaling response result: %w", err)
	}
	return &Response{JSONRPC: Version, ID: id, Result: resultJSON}, nil
}

// NewErrorResponse builds an error response for the given request id.
func NewErrorResponse(id json.RawMessage, code int, message string, data any) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error:   &Error{Code: code, Message: message, Data: data},
	}
}

// Validate checks that a response satisfies the JSON-RPC 2.0 schema:
// correct version and exactly one of result or error.
func (r *Response) Validate() error {
	if r.JSONRPC != Version {
		return fmt.Errorf("unexpected jsonrpc version %q", r.JSONRPC)
	}
	if r.Result == nil && r.Error == nil {
		return errors.New("response has neither result nor error")
	}
	if r.Result != nil && r.Error != nil {
		return errors.New("response has both result and error")
	}
	return nil
}
