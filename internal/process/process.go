// ABOUTME: One backend tool-server process with line-framed JSON-RPC over stdio.
// ABOUTME: Correlates responses to pending requests by id and drains them all on exit.

package process

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/2389/ward-gateway/internal/config"
	"github.com/2389/ward-gateway/internal/rpc"
)

// State is the lifecycle state of a backend process.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateCrashed
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateCrashed:
		return "crashed"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// maxLineBytes caps a single response line from a backend.
const maxLineBytes = 10 * 1024 * 1024

// pendingResult carries the settled outcome of one in-flight request.
type pendingResult struct {
	resp *rpc.Response
	err  error
}

// backendProcess owns one OS process and its stdio JSON-RPC channel.
// The state field and the pending table share one mutex so a crash event
// and a concurrent stop cannot race.
type backendProcess struct {
	name   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	pending map[string]chan pendingResult

	// writeMu serializes stdin writes so concurrent sends never interleave lines
	writeMu sync.Mutex

	// exited is closed once the process exit has been fully handled
	exited chan struct{}
}

// startBackend launches the configured command and wires its stdio.
func startBackend(name string, cfg config.BackendConfig, logger *slog.Logger) (*backendProcess, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	if len(cfg.Env) > 0 {
		env := os.Environ()
		for k, v := range cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stderr pipe: %w", err)
	}

	p := &backendProcess{
		name:    name,
		cmd:     cmd,
		stdin:   stdin,
		logger:  logger,
		state:   StateStarting,
		pending: make(map[string]chan pendingResult),
		exited:  make(chan struct{}),
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %q: %w", cfg.Command, err)
	}

	// No ready handshake is guaranteed by the protocol; the process is
	// considered running once the handle is live.
	p.mu.Lock()
	p.state = StateRunning
	p.mu.Unlock()

	go p.readLoop(stdout)
	go p.logStderr(stderr)
	go p.waitLoop()

	return p, nil
}

// currentState returns the process state.
func (p *backendProcess) currentState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// stateError maps a non-running state to the error a send should fail with.
func (p *backendProcess) stateError() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateStopping {
		return &StoppedError{Server: p.name}
	}
	return &NotRunningError{Server: p.name}
}

// registerPending adds a pending request slot for the given id.
// Fails fast when the process is not running.
func (p *backendProcess) registerPending(id string) (chan pendingResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateRunning {
		if p.state == StateStopping {
			return nil, &StoppedError{Server: p.name}
		}
		return nil, &NotRunningError{Server: p.name}
	}
	if _, exists := p.pending[id]; exists {
		return nil, fmt.Errorf("duplicate request id %s for server %q", id, p.name)
	}

	ch := make(chan pendingResult, 1)
	p.pending[id] = ch
	return ch, nil
}

// removePending drops a pending slot without settling it (timeout/cancel path).
func (p *backendProcess) removePending(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, id)
}

// settle resolves exactly one pending request. Returns false if the id has
// no pending slot (already settled, timed out, or never ours).
func (p *backendProcess) settle(id string, res pendingResult) bool {
	p.mu.Lock()
	ch, ok := p.pending[id]
	if !ok {
		p.mu.Unlock()
		return false
	}
	delete(p.pending, id)
	p.mu.Unlock()

	// Buffered channel, so this never blocks.
	ch <- res
	return true
}

// writeLine serializes one request line to the process's stdin.
func (p *backendProcess) writeLine(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if _, err := p.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing to %q stdin: %w", p.name, err)
	}
	return nil
}

// readLoop reads newline-delimited responses from the process's stdout and
// routes each one to its pending request. Partial lines are buffered by the
// scanner and never parsed mid-line.
func (p *backendProcess) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p.handleLine([]byte(line))
	}

	if err := scanner.Err(); err != nil {
		// The stream is unrecoverable (e.g. a line over maxLineBytes): no
		// further responses can ever be read, so a live process would strand
		// every in-flight and future request until its timeout. Kill it and
		// let waitLoop mark the crash and drain pending requests.
		p.logger.Error("backend stdout unreadable, killing process",
			"server", p.name,
			"error", err,
		)
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
	}
}

// handleLine parses one response line and settles the matching request.
// A line that fails to parse as valid JSON-RPC rejects only the pending
// request it correlates to; other in-flight requests are unaffected.
func (p *backendProcess) handleLine(line []byte) {
	var resp rpc.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		// Best effort: recover the id so the right caller gets the error.
		var probe struct {
			ID json.RawMessage `json:"id"`
		}
		if probeErr := json.Unmarshal(line, &probe); probeErr == nil && probe.ID != nil {
			p.settle(string(probe.ID), pendingResult{
				err: &MalformedResponseError{Server: p.name, Err: err},
			})
			return
		}
		p.logger.Warn("discarding unparseable backend line",
			"server", p.name,
			"error", err,
		)
		return
	}

	if resp.ID == nil {
		// Notifications from the backend are not part of the request cycle.
		p.logger.Debug("ignoring backend message without id",
			"server", p.name,
			"line_bytes", len(line),
		)
		return
	}

	id := string(resp.ID)
	if err := resp.Validate(); err != nil {
		p.settle(id, pendingResult{
			err: &MalformedResponseError{Server: p.name, Err: err},
		})
		return
	}

	if !p.settle(id, pendingResult{resp: &resp}) {
		p.logger.Warn("received response for unknown request",
			"server", p.name,
			"request_id", id,
		)
	}
}

// logStderr forwards the backend's stderr lines into the gateway log.
func (p *backendProcess) logStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p.logger.Warn("backend stderr",
			"server", p.name,
			"line", line,
		)
	}
}

// waitLoop blocks until the process exits, then atomically marks the state
// and drains every pending request with the appropriate rejection.
func (p *backendProcess) waitLoop() {
	err := p.cmd.Wait()

	p.mu.Lock()
	var rejection error
	if p.state == StateStopping {
		p.state = StateStopped
		rejection = &StoppedError{Server: p.name}
	} else {
		p.state = StateCrashed
		rejection = &CrashError{Server: p.name}
	}

	drained := len(p.pending)
	for id, ch := range p.pending {
		delete(p.pending, id)
		ch <- pendingResult{err: rejection}
	}
	state := p.state
	p.mu.Unlock()

	close(p.exited)

	p.logger.Info("backend process exited",
		"server", p.name,
		"state", state.String(),
		"pending_rejected", drained,
		"exit_error", err,
	)
}

// beginStop transitions a live process to stopping. Returns false when the
// process has already exited.
func (p *backendProcess) beginStop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateStarting, StateRunning:
		p.state = StateStopping
		return true
	default:
		return false
	}
}
