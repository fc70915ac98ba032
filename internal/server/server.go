// ABOUTME: HTTP front door for the gateway: one JSON-RPC endpoint plus health.
// ABOUTME: Authenticates callers via JWT middleware and hands requests to the proxy.

package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/2389/ward-gateway/internal/auth"
	"github.com/2389/ward-gateway/internal/proxy"
	"github.com/2389/ward-gateway/internal/rpc"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// Config holds configuration for the HTTP server.
type Config struct {
	Proxy    *proxy.MCPProxy
	Verifier auth.TokenVerifier
	Logger   *slog.Logger
	Version  string
}

// Server exposes the gateway over HTTP.
type Server struct {
	proxy    *proxy.MCPProxy
	verifier auth.TokenVerifier
	logger   *slog.Logger
	version  string
}

// NewServer creates a new HTTP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Proxy == nil {
		return nil, errors.New("proxy is required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("token verifier is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		proxy:    cfg.Proxy,
		verifier: cfg.Verifier,
		logger:   logger,
		version:  cfg.Version,
	}, nil
}

// Handler returns the server's routes as an http.Handler. The RPC endpoint
// sits behind the JWT middleware; health does not.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/rpc", auth.HTTPAuthMiddleware(s.verifier)(http.HandlerFunc(s.handleRPC)))
	return mux
}

// handleHealth reports liveness. Unauthenticated so load balancers can poll it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

// handleRPC decodes one JSON-RPC request, runs it through the proxy under
// the caller's identity, and writes the response. Every failure past body
// parsing comes back as a JSON-RPC error response with HTTP 200, matching
// how JSON-RPC over HTTP separates transport from protocol errors.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.writeRPCError(w, nil, rpc.CodeInternalError, "failed to read request body")
		return
	}
	if len(body) > MaxRequestBodySize {
		s.writeRPCError(w, nil, rpc.CodeInvalidRequest, "request body too large")
		return
	}

	var req rpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeRPCError(w, nil, rpc.CodeParseError, "invalid JSON")
		return
	}
	if req.JSONRPC != rpc.Version {
		s.writeRPCError(w, req.ID, rpc.CodeInvalidRequest, "jsonrpc must be \"2.0\"")
		return
	}
	if req.Method == "" {
		s.writeRPCError(w, req.ID, rpc.CodeInvalidRequest, "method is required")
		return
	}

	identity := auth.FromContext(r.Context())
	if identity == nil {
		// The middleware guarantees an identity; a miss means a wiring bug.
		s.writeRPCError(w, req.ID, rpc.CodeInternalError, "no identity on request")
		return
	}

	resp := s.proxy.HandleRequest(r.Context(), &req, identity.TenantID, identity.Actor)

	s.logger.Debug("rpc handled",
		"method", req.Method,
		"tenant", identity.TenantID,
		"actor", identity.Actor.ID,
		"error", resp.Error != nil,
	)

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	writeJSON(w, http.StatusOK, rpc.NewErrorResponse(id, code, message, nil))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
