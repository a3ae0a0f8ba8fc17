package sandbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SubprocessExecutor is a lower-isolation dev/fallback adapter used when no
// WASI guest binary is configured. It runs the interpreter binary in a
// scrubbed environment rooted at a fresh temp directory per handle. It does
// NOT deny network access at the OS level — it is documented as strictly a
// development convenience, not a production isolation boundary (see
// DESIGN.md). Destruction always removes the temp directory, including on
// context cancellation.
type SubprocessExecutor struct {
	interpreter string // e.g. "python3"

	mu      sync.Mutex
	handles map[Handle]string // handle -> work dir
}

// NewSubprocessExecutor creates an adapter that shells out to interpreter.
func NewSubprocessExecutor(interpreter string) *SubprocessExecutor {
	return &SubprocessExecutor{interpreter: interpreter, handles: make(map[Handle]string)}
}

func (e *SubprocessExecutor) CreateEphemeral(ctx context.Context) (Handle, error) {
	dir, err := os.MkdirTemp("", "rule-sandbox-*")
	if err != nil {
		return "", &InfrastructureError{Op: "sandbox create", Err: err}
	}
	h := Handle("proc-" + uuid.NewString())
	e.mu.Lock()
	e.handles[h] = dir
	e.mu.Unlock()
	return h, nil
}

func (e *SubprocessExecutor) Run(ctx context.Context, h Handle, program string, stdin string, timeout time.Duration) (RunResult, error) {
	e.mu.Lock()
	dir, ok := e.handles[h]
	e.mu.Unlock()
	if !ok {
		return RunResult{}, ErrNotFound
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	scriptPath := dir + "/program.py"
	if err := os.WriteFile(scriptPath, []byte(program), 0o600); err != nil {
		return RunResult{}, &InfrastructureError{Op: "sandbox run", Err: err}
	}

	cmd := exec.CommandContext(runCtx, e.interpreter, scriptPath)
	cmd.Dir = dir
	// Scrubbed environment: no inherited credentials, no PATH beyond the
	// bare minimum needed to locate shared libraries the interpreter loads.
	cmd.Env = []string{"PATH=/usr/bin:/bin", "PYTHONDONTWRITEBYTECODE=1"}
	cmd.Stdin = bytes.NewBufferString(base64.StdEncoding.EncodeToString([]byte(stdin)))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	exitCode := 0
	if runErr != nil {
		if runCtx.Err() != nil {
			return RunResult{}, &InfrastructureError{Op: "sandbox run", Err: fmt.Errorf("execution exceeded timeout %s", timeout)}
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return RunResult{}, &InfrastructureError{Op: "sandbox run", Err: runErr}
		}
	}

	return RunResult{ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

func (e *SubprocessExecutor) Destroy(ctx context.Context, h Handle) error {
	e.mu.Lock()
	dir, ok := e.handles[h]
	delete(e.handles, h)
	e.mu.Unlock()
	if !ok {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return &InfrastructureError{Op: "sandbox destroy", Err: err}
	}
	return nil
}
