// Package sandbox implements the SandboxedExecutor capability: an ephemeral,
// network-denied execution environment used to validate untrusted generated
// rule code. Concrete adapters (wazero-backed WASI, subprocess fallback) live
// alongside this file; tests depend only on the Executor interface and
// substitute Fake.
package sandbox

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Run when the handle is unknown, which should
// never happen in correct callers but is checked defensively. Destroy on an
// unknown handle is a no-op, so repeated teardown is safe.
var ErrNotFound = errors.New("sandbox: handle not found")

// Handle identifies one ephemeral sandbox instance.
type Handle string

// RunResult is the result of running one program inside a sandbox handle.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor is the SandboxedExecutor capability contract from spec §4.2.
type Executor interface {
	// CreateEphemeral provisions a fresh, isolated handle.
	CreateEphemeral(ctx context.Context) (Handle, error)
	// Run executes program with optional stdin, bounded by timeout.
	Run(ctx context.Context, h Handle, program string, stdin string, timeout time.Duration) (RunResult, error)
	// Destroy tears down the handle. Must be safe to call more than once and
	// must never be skipped on any exit path, including cancellation.
	Destroy(ctx context.Context, h Handle) error
}

// InfrastructureError wraps a failure in sandbox provisioning, transport, or
// teardown — distinct from a failure of the rule code itself.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *InfrastructureError) Unwrap() error { return e.Err }
