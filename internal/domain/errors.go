package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every failure leaving an orchestrator component matches exactly
// one of the first four with errors.Is.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrRemoteExecution    = errors.New("remote execution error")
	ErrHealthGate         = errors.New("health gate error")
	ErrStateInconsistency = errors.New("state inconsistency")
)

var (
	ErrApplicationNotFound = fmt.Errorf("%w: application not found", ErrConfiguration)
	ErrOperationInProgress = errors.New("another operation is in progress for this application")
	ErrRateLimited         = errors.New("rate limit exceeded: too many operations in the last hour")
	ErrStateConflict       = errors.New("deployment state was modified concurrently")
	ErrPartialRoute        = errors.New("load balancer config replaced but reload failed")
	ErrFileNotFound        = errors.New("remote file not found")
)

// RemoteError describes a remote command that could not be run or exited
// non-zero.
type RemoteError struct {
	Target   string
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "remote command on %s failed", e.Target)
	if e.Command != "" {
		fmt.Fprintf(&b, " (%s)", e.Command)
	}
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, ": exit code %d", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, ": %s", s)
	}
	return b.String()
}

func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemoteExecution}
	}
	return []error{ErrRemoteExecution, e.Err}
}

// StepError names the pipeline step that failed.
type StepError struct {
	Step StepName
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ErrorKind returns a stable, machine readable name for err.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStateInconsistency):
		return "state_inconsistency"
	case errors.Is(err, ErrHealthGate):
		return "health_gate"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrOperationInProgress):
		return "operation_in_progress"
	case errors.Is(err, ErrStateConflict):
		return "state_conflict"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrRemoteExecution):
		return "remote_execution"
	}
	return "internal"
}
