// ABOUTME: Manages backend tool-server processes keyed by logical server name.
// ABOUTME: Spawns, routes requests with timeouts, and stops processes with bounded grace.

package process

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/2389/ward-gateway/internal/config"
	"github.com/2389/ward-gateway/internal/rpc"
)

// DefaultRequestTimeout bounds how long a send waits for a backend response.
const DefaultRequestTimeout = 30 * time.Second

// DefaultStopGrace is how long a stopping process gets between SIGTERM and SIGKILL.
const DefaultStopGrace = 5 * time.Second

// Manager owns zero or more backend server processes. No other component
// touches process handles directly.
type Manager struct {
	logger         *slog.Logger
	requestTimeout time.Duration
	stopGrace      time.Duration

	mu      sync.Mutex
	servers map[string]*backendProcess
}

// ManagerConfig contains configuration options for the Manager.
type ManagerConfig struct {
	Logger         *slog.Logger
	RequestTimeout time.Duration
	StopGrace      time.Duration
}

// NewManager creates a new Manager with the given configuration.
func NewManager(cfg ManagerConfig) *Manager {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	grace := cfg.StopGrace
	if grace == 0 {
		grace = DefaultStopGrace
	}

	return &Manager{
		logger:         cfg.Logger,
		requestTimeout: timeout,
		stopGrace:      grace,
		servers:        make(map[string]*backendProcess),
	}
}

// Spawn launches the backend command for the given logical server name.
// Fails with ErrAlreadyRunning if a process under that name is still live.
// A crashed or stopped entry is replaced so the name can be respawned.
func (m *Manager) Spawn(name string, cfg config.BackendConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.servers[name]; ok {
		switch existing.currentState() {
		case StateStarting, StateRunning, StateStopping:
			return fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
		}
	}

	p, err := startBackend(name, cfg, m.logger)
	if err != nil {
		return fmt.Errorf("spawning server %q: %w", name, err)
	}
	m.servers[name] = p

	m.logger.Info("backend process started",
		"server", name,
		"command", cfg.Command,
		"pid", p.cmd.Process.Pid,
	)
	return nil
}

// Send forwards one JSON-RPC request to the named server and waits for the
// correlated response. An id is assigned when the request has none; ids must
// not collide among concurrently in-flight requests to the same process.
func (m *Manager) Send(ctx context.Context, name string, req *rpc.Request) (*rpc.Response, error) {
	m.mu.Lock()
	p, ok := m.servers[name]
	m.mu.Unlock()

	if !ok {
		return nil, &NotRunningError{Server: name}
	}

	if req.JSONRPC == "" {
		req.JSONRPC = rpc.Version
	}
	if req.ID == nil {
		idJSON, err := json.Marshal(uuid.New().String())
		if err != nil {
			return nil, fmt.Errorf("marshaling request id: %w", err)
		}
		req.ID = idJSON
	}
	id := string(req.ID)

	ch, err := p.registerPending(id)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(req)
	if err != nil {
		p.removePending(id)
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	if err := p.writeLine(data); err != nil {
		p.removePending(id)
		m.logger.Warn("backend write failed",
			"server", name,
			"request_id", id,
			"error", err,
		)
		return nil, p.stateError()
	}

	timer := time.NewTimer(m.requestTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.resp, res.err
	case <-timer.C:
		p.removePending(id)
		return nil, &TimeoutError{Server: name, After: m.requestTimeout}
	case <-ctx.Done():
		p.removePending(id)
		return nil, ctx.Err()
	}
}

// Stop terminates the named server: SIGTERM, bounded grace period, then
// SIGKILL. Pending requests are rejected with StoppedError and bookkeeping
// is removed so the name can be respawned.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	p, ok := m.servers[name]
	m.mu.Unlock()

	if !ok {
		return &NotRunningError{Server: name}
	}

	if p.beginStop() {
		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			m.logger.Warn("signaling backend failed, killing",
				"server", name,
				"error", err,
			)
			_ = p.cmd.Process.Kill()
		}

		select {
		case <-p.exited:
		case <-time.After(m.stopGrace):
			m.logger.Warn("backend did not exit within grace period, killing",
				"server", name,
				"grace", m.stopGrace,
			)
			_ = p.cmd.Process.Kill()
			<-p.exited
		}
	}

	m.mu.Lock()
	delete(m.servers, name)
	m.mu.Unlock()

	m.logger.Info("backend process stopped", "server", name)
	return nil
}

// StopAll stops every managed server. Used during gateway shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		if err := m.Stop(name); err != nil {
			m.logger.Warn("stopping backend failed",
				"server", name,
				"error", err,
			)
		}
	}
}

// Running reports whether the named server has a running process.
func (m *Manager) Running(name string) bool {
	state, ok := m.StateOf(name)
	return ok && state == StateRunning
}

// StateOf returns the lifecycle state of the named server.
// The second return is false when no process is tracked under that name.
func (m *Manager) StateOf(name string) (State, bool) {
	m.mu.Lock()
	p, ok := m.servers[name]
	m.mu.Unlock()

	if !ok {
		return StateStopped, false
	}
	return p.currentState(), true
}

// PendingCount returns the number of in-flight requests for the named
// server (for testing/monitoring).
func (m *Manager) PendingCount(name string) int {
	m.mu.Lock()
	p, ok := m.servers[name]
	m.mu.Unlock()

	if !ok {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
