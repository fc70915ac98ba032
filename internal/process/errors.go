// ABOUTME: Error taxonomy for backend process failures.
// ABOUTME: Every error names the server so callers can tell which backend failed and why.

package process

import (
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyRunning indicates a spawn was attempted for a name that
// already has a starting or running process.
var ErrAlreadyRunning = errors.New("server already running")

// NotRunningError indicates a send to a server with no running process.
type NotRunningError struct {
	Server string
}

func (e *NotRunningError) Error() string {
	return fmt.Sprintf("server %q is not running", e.Server)
}

// CrashError indicates the backend process exited while requests were pending.
type CrashError struct {
	Server string
}

func (e *CrashError) Error() string {
	return fmt.Sprintf("server %q crashed with requests pending", e.Server)
}

// StoppedError indicates a graceful shutdown was in progress when the
// request was rejected.
type StoppedError struct {
	Server string
}

func (e *StoppedError) Error() string {
	return fmt.Sprintf("server %q stopped while request was pending", e.Server)
}

// MalformedResponseError indicates a response line could not be parsed as
// valid JSON-RPC. It affects only the pending request it correlated to.
type MalformedResponseError struct {
	Server string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("server %q returned a malformed response: %v", e.Server, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// TimeoutError indicates no response arrived within the request timeout.
type TimeoutError struct {
	Server string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("server %q did not respond within %s", e.Server, e.After)
}
