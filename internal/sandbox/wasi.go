package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// WASIExecutor is the production SandboxedExecutor adapter. Each handle gets
// its own wazero.Runtime instantiated with WASI preview1, which denies
// filesystem and network access by default (no FS config, no sockets
// extension registered) and auto-terminates on context cancellation.
//
// GuestWASM is a precompiled WASI binary capable of running the rule
// runtime's program protocol: it reads the program + base64-encoded fixture
// from stdin and writes sentinel-delimited output to stdout. Wiring a real
// guest binary is a deployment concern (HELM_SANDBOX_GUEST_WASM); this type
// only drives the wazero side of the contract.
type WASIExecutor struct {
	guestWASM []byte

	mu       sync.Mutex
	handles  map[Handle]*wasiHandle
	maxMem   int64 // bytes; 0 = unbounded
}

type wasiHandle struct {
	runtime wazero.Runtime
}

// NewWASIExecutor loads the guest module bytes once; CreateEphemeral
// instantiates a fresh runtime per handle so one validation attempt can
// never observe state left behind by another.
func NewWASIExecutor(guestWASM []byte, maxMemBytes int64) *WASIExecutor {
	return &WASIExecutor{
		guestWASM: guestWASM,
		handles:   make(map[Handle]*wasiHandle),
		maxMem:    maxMemBytes,
	}
}

func (e *WASIExecutor) CreateEphemeral(ctx context.Context) (Handle, error) {
	rConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if e.maxMem > 0 {
		pages := uint32(e.maxMem / 65536)
		if pages == 0 {
			pages = 1
		}
		rConfig = rConfig.WithMemoryLimitPages(pages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return "", &InfrastructureError{Op: "sandbox create", Err: err}
	}

	h := Handle("wasi-" + uuid.NewString())
	e.mu.Lock()
	e.handles[h] = &wasiHandle{runtime: rt}
	e.mu.Unlock()
	return h, nil
}

func (e *WASIExecutor) Run(ctx context.Context, h Handle, program string, stdin string, timeout time.Duration) (RunResult, error) {
	e.mu.Lock()
	wh, ok := e.handles[h]
	e.mu.Unlock()
	if !ok {
		return RunResult{}, ErrNotFound
	}
	if len(e.guestWASM) == 0 {
		return RunResult{}, &InfrastructureError{Op: "sandbox run", Err: fmt.Errorf("no guest WASM configured")}
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	moduleConfig := wazero.NewModuleConfig().
		WithStdin(newProgramReader(program, stdin)).
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithName(string(h))
	// Deliberately no WithFS / WithOSWorkDirFS / socket extension: WASI
	// preview1 without them has no filesystem or network reachable to the
	// guest, satisfying the network-denied requirement.

	compiled, err := wh.runtime.CompileModule(runCtx, e.guestWASM)
	if err != nil {
		return RunResult{}, &InfrastructureError{Op: "sandbox compile", Err: err}
	}
	defer func() { _ = compiled.Close(runCtx) }()

	mod, err := wh.runtime.InstantiateModule(runCtx, compiled, moduleConfig)
	exitCode := 0
	if err != nil {
		if exitErr, ok := asExitError(err); ok {
			exitCode = exitErr
		} else if runCtx.Err() != nil {
			return RunResult{}, &InfrastructureError{Op: "sandbox run", Err: fmt.Errorf("execution exceeded timeout %s", timeout)}
		} else {
			return RunResult{}, &InfrastructureError{Op: "sandbox run", Err: err}
		}
	}
	if mod != nil {
		defer func() { _ = mod.Close(runCtx) }()
	}

	return RunResult{ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

func (e *WASIExecutor) Destroy(ctx context.Context, h Handle) error {
	e.mu.Lock()
	wh, ok := e.handles[h]
	delete(e.handles, h)
	e.mu.Unlock()
	if !ok {
		return nil
	}
	if err := wh.runtime.Close(ctx); err != nil {
		return &InfrastructureError{Op: "sandbox destroy", Err: err}
	}
	return nil
}

// newProgramReader concatenates the driver program with its stdin payload
// the way the guest protocol expects: program source, a blank line, then the
// base64 fixture payload the program itself decodes.
func newProgramReader(program, stdin string) *bytes.Reader {
	return bytes.NewReader([]byte(program + "\n" + stdin))
}

// asExitError extracts a WASI proc_exit code from a wazero instantiation
// error, if that's what failed. wazero surfaces this as a sys.ExitError;
// we avoid importing the internal type and instead parse defensively.
func asExitError(err error) (int, bool) {
	type exitCoder interface{ ExitCode() uint32 }
	if ec, ok := err.(exitCoder); ok {
		return int(ec.ExitCode()), true
	}
	return 0, false
}
