package sandbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunFunc lets a test script the response to a specific Run call.
type RunFunc func(program, stdin string) (RunResult, error)

// Fake is an in-memory Executor substitute for tests, per spec §9's
// "capability injection over concrete clients": RuleValidator and
// RefinementLoop tests depend only on the Executor interface.
type Fake struct {
	mu sync.Mutex

	// SyntaxRun answers the validator's syntax-phase program.
	SyntaxRun RunFunc
	// FunctionalRun answers the validator's functional-phase program.
	FunctionalRun RunFunc
	// CreateErr, when set, makes CreateEphemeral fail.
	CreateErr error
	// DestroyErr, when set, makes Destroy fail.
	DestroyErr error

	liveHandles  map[Handle]bool
	createCalls  int
	destroyCalls int
	runCalls     int
}

// NewFake returns a ready-to-configure Fake.
func NewFake() *Fake {
	return &Fake{liveHandles: make(map[Handle]bool)}
}

func (f *Fake) CreateEphemeral(ctx context.Context) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	h := Handle("fake-" + uuid.NewString())
	f.liveHandles[h] = true
	return h, nil
}

func (f *Fake) Run(ctx context.Context, h Handle, program string, stdin string, timeout time.Duration) (RunResult, error) {
	f.mu.Lock()
	alive := f.liveHandles[h]
	f.runCalls++
	f.mu.Unlock()
	if !alive {
		return RunResult{}, ErrNotFound
	}
	// Dispatch by which phase this call represents: the validator always
	// runs the syntax phase's sentinel-check program before the functional
	// phase's callable-invocation program, so we key on content only when
	// both are configured; if only one is set, use it unconditionally.
	if f.SyntaxRun != nil && f.FunctionalRun == nil {
		return f.SyntaxRun(program, stdin)
	}
	if f.FunctionalRun != nil && f.SyntaxRun == nil {
		return f.FunctionalRun(program, stdin)
	}
	if isSyntaxProgram(program) {
		if f.SyntaxRun != nil {
			return f.SyntaxRun(program, stdin)
		}
	}
	if f.FunctionalRun != nil {
		return f.FunctionalRun(program, stdin)
	}
	return RunResult{ExitCode: 0, Stdout: "__SYNTAX_OK__"}, nil
}

func (f *Fake) Destroy(ctx context.Context, h Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyCalls++
	delete(f.liveHandles, h)
	return f.DestroyErr
}

// CreateCalls, RunCalls, DestroyCalls let tests assert on call counts (e.g.
// scenario 6: static rejection must cause zero sandbox calls).
func (f *Fake) CreateCalls() int  { f.mu.Lock(); defer f.mu.Unlock(); return f.createCalls }
func (f *Fake) RunCalls() int     { f.mu.Lock(); defer f.mu.Unlock(); return f.runCalls }
func (f *Fake) DestroyCalls() int { f.mu.Lock(); defer f.mu.Unlock(); return f.destroyCalls }

func isSyntaxProgram(program string) bool {
	return len(program) > 0 && containsSentinel(program, "__SYNTAX_CHECK__")
}

func containsSentinel(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
