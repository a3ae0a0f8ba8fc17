package compliance

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/sandbox"
)

// DefaultLocalRunnerTimeout is the 10s default per spec §5.
const DefaultLocalRunnerTimeout = 10 * time.Second

// LocalRunner executes already-validated rule code outside the sandbox,
// trading isolation for throughput: rules reaching it have already passed
// RuleValidator's syntax and functional checks.
type LocalRunner struct {
	pythonBin string
	fallback  sandbox.Executor
	timeout   time.Duration
}

// NewLocalRunner builds a runner that prefers a local pythonBin interpreter
// (looked up via exec.LookPath, e.g. "python3") and falls through to a
// SandboxedExecutor-backed fallback only when that binary is not found.
func NewLocalRunner(pythonBin string, fallback sandbox.Executor) *LocalRunner {
	return &LocalRunner{pythonBin: pythonBin, fallback: fallback, timeout: DefaultLocalRunnerTimeout}
}

// WithTimeout overrides the default per-run timeout, mainly for tests.
func (r *LocalRunner) WithTimeout(d time.Duration) *LocalRunner {
	r.timeout = d
	return r
}

// Run executes code against payloadJSON, returning the single JSON line the
// rule prints on stdout. The payload is embedded in the generated program
// (see buildLocalRunnerProgram); nothing is written to the process's stdin.
func (r *LocalRunner) Run(ctx context.Context, code string, payloadJSON string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.runSubprocess(runCtx, code, payloadJSON)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return r.runFallback(runCtx, code, payloadJSON)
	}
	return "", err
}

func (r *LocalRunner) runSubprocess(ctx context.Context, code, payloadJSON string) (string, error) {
	if _, lookErr := exec.LookPath(r.pythonBin); lookErr != nil {
		return "", exec.ErrNotFound
	}

	program := buildLocalRunnerProgram(code, payloadJSON)

	cmd := exec.CommandContext(ctx, r.pythonBin, "-c", program)
	cmd.Env = []string{"PATH=/usr/bin:/bin", "PYTHONDONTWRITEBYTECODE=1"}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		var execErr *exec.Error
		if errors.As(runErr, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return "", exec.ErrNotFound
		}
		return "", fmt.Errorf("localrunner: subprocess failed: %s: %w", combinedOutput(stdout.String(), stderr.String()), runErr)
	}

	line, ok := extractJSONLine(stdout.String())
	if !ok {
		return "", fmt.Errorf("localrunner: no output line found: %s", combinedOutput(stdout.String(), stderr.String()))
	}
	return line, nil
}

// runFallback runs the rule through the same WASI sandbox substrate used
// for validation, per spec §4.10's documented no-contract-change swap.
func (r *LocalRunner) runFallback(ctx context.Context, code, payloadJSON string) (string, error) {
	if r.fallback == nil {
		return "", fmt.Errorf("localrunner: python binary not found and no fallback executor configured")
	}

	handle, err := r.fallback.CreateEphemeral(ctx)
	if err != nil {
		return "", fmt.Errorf("localrunner: fallback create failed: %w", err)
	}
	defer func() { _ = r.fallback.Destroy(context.Background(), handle) }()

	program := buildLocalRunnerProgram(code, payloadJSON)
	result, err := r.fallback.Run(ctx, handle, program, "", r.timeout)
	if err != nil {
		return "", fmt.Errorf("localrunner: fallback run failed: %w", err)
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("localrunner: fallback exited %d: %s", result.ExitCode, combinedOutput(result.Stdout, result.Stderr))
	}

	line, ok := extractJSONLine(result.Stdout)
	if !ok {
		return "", fmt.Errorf("localrunner: no output line found in fallback stdout: %s", result.Stdout)
	}
	return line, nil
}

func combinedOutput(stdout, stderr string) string {
	if stderr == "" {
		return stdout
	}
	return stdout + "\n" + stderr
}

// buildLocalRunnerProgram embeds code and payloadJSON base64 to sidestep any
// quoting concerns, executes the rule's first defined callable against the
// decoded payload, and prints its JSON result as a single stdout line.
func buildLocalRunnerProgram(code string, payloadJSON string) string {
	codeB64 := base64.StdEncoding.EncodeToString([]byte(code))
	payloadB64 := base64.StdEncoding.EncodeToString([]byte(payloadJSON))

	return fmt.Sprintf(`
import base64, json, sys, textwrap

src = textwrap.dedent(base64.b64decode("%s").decode("utf-8"))
payload = json.loads(base64.b64decode("%s").decode("utf-8"))

namespace = {}
exec(compile(src, "<rule>", "exec"), namespace)

fn = None
for value in namespace.values():
    if callable(value):
        fn = value
        break

if fn is None:
    print(json.dumps({"allowed": False, "reason": "no callable defined in rule"}))
    sys.exit(0)

result = fn(payload.get("employee"), payload.get("security"), payload.get("trade_date"))
print(json.dumps(result))
`, codeB64, payloadB64)
}

func extractJSONLine(stdout string) (string, bool) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			return line, true
		}
	}
	return "", false
}
