// Package validator implements the RuleValidator: a two-phase
// (syntax-then-functional) check of a candidate rule against the canonical
// fixture, run inside a SandboxedExecutor.
package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/sandbox"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/screener"
)

// Timeouts per spec §5.
const (
	SyntaxTimeout     = 60 * time.Second
	FunctionalTimeout = 120 * time.Second
)

// Validator drives StaticScreener + SandboxedExecutor per spec §4.3.
type Validator struct {
	executor sandbox.Executor
	now      func() time.Time
	logger   *slog.Logger
	preserve bool // DAYTONA_PRESERVE_SANDBOXES equivalent: skip destroy for debugging
}

// New constructs a Validator. preserveSandboxes mirrors the
// DAYTONA_PRESERVE_SANDBOXES environment flag from spec §6.
func New(executor sandbox.Executor, logger *slog.Logger, preserveSandboxes bool) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{executor: executor, now: time.Now, logger: logger, preserve: preserveSandboxes}
}

// WithClock overrides the clock used to compute the canonical fixture's
// trade_date, for deterministic tests.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Validate runs the full two-phase validation described in spec §4.3 and
// returns a typed ValidationOutcome. Exactly one outcome kind is returned.
func (v *Validator) Validate(ctx context.Context, draft rules.DraftRule) rules.ValidationOutcome {
	// 1. StaticScreener.
	if res := screener.Screen(draft.Code); res.Rejected {
		v.logger.Info("rule rejected by static screener", "rule_id", draft.RuleID, "pattern", res.Pattern)
		return rules.ValidationOutcome{Kind: rules.OutcomeSecurityRejected, Pattern: res.Pattern}
	}

	// 2. Provision ephemeral sandbox.
	handle, err := v.executor.CreateEphemeral(ctx)
	if err != nil {
		return rules.ValidationOutcome{Kind: rules.OutcomeInfrastructureErr, Detail: err.Error()}
	}
	defer func() {
		if v.preserve {
			return
		}
		if derr := v.executor.Destroy(context.Background(), handle); derr != nil {
			v.logger.Error("sandbox destroy failed", "rule_id", draft.RuleID, "error", derr)
		}
	}()

	// 3. Syntax phase.
	syntaxProgram := buildSyntaxProgram(draft.Code)
	syntaxResult, err := v.executor.Run(ctx, handle, syntaxProgram, "", SyntaxTimeout)
	if err != nil {
		return rules.ValidationOutcome{Kind: rules.OutcomeInfrastructureErr, Detail: err.Error()}
	}
	if syntaxResult.ExitCode != 0 || !strings.Contains(syntaxResult.Stdout, SyntaxOKSentinel) {
		detail := strings.TrimSpace(syntaxResult.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(syntaxResult.Stdout)
		}
		if detail == "" {
			detail = "rule code failed to compile"
		}
		return rules.ValidationOutcome{Kind: rules.OutcomeSyntaxError, Detail: detail}
	}

	// 4. Functional phase.
	employee, security, tradeDate := CanonicalFixture(v.now)
	fixturePayload, err := json.Marshal(map[string]any{
		"employee":   employee,
		"security":   security,
		"trade_date": tradeDate,
	})
	if err != nil {
		return rules.ValidationOutcome{Kind: rules.OutcomeInfrastructureErr, Detail: err.Error()}
	}
	functionalProgram := buildFunctionalProgram(draft.Code, string(fixturePayload))
	functionalResult, err := v.executor.Run(ctx, handle, functionalProgram, "", FunctionalTimeout)
	if err != nil {
		return rules.ValidationOutcome{Kind: rules.OutcomeInfrastructureErr, Detail: err.Error()}
	}

	// 5. Inspect exit code and sentinel output.
	if functionalResult.ExitCode != 0 {
		detail := strings.TrimSpace(functionalResult.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(functionalResult.Stdout)
		}
		return rules.ValidationOutcome{Kind: rules.OutcomeRuntimeError, Detail: detail}
	}

	payload, ok := extractSentinelPayload(functionalResult.Stdout)
	if !ok {
		return rules.ValidationOutcome{Kind: rules.OutcomeContractViolation, Detail: "sandbox output missing sentinel markers"}
	}

	var decoded any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return rules.ValidationOutcome{Kind: rules.OutcomeContractViolation, Detail: fmt.Sprintf("rule output is not valid JSON: %v", err)}
	}
	if err := validateResultContract(decoded); err != nil {
		return rules.ValidationOutcome{Kind: rules.OutcomeContractViolation, Detail: err.Error()}
	}

	return rules.ValidationOutcome{Kind: rules.OutcomePassed, TestOutput: payload}
}

// extractSentinelPayload pulls the JSON text between the output sentinels.
func extractSentinelPayload(stdout string) (string, bool) {
	start := strings.Index(stdout, OutputStartSentinel)
	end := strings.Index(stdout, OutputEndSentinel)
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	payload := stdout[start+len(OutputStartSentinel) : end]
	return strings.TrimSpace(payload), true
}
