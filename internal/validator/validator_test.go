package validator

import (
	"context"
	"testing"
	"time"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/sandbox"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
}

func TestValidate_SecurityRejectedSkipsSandbox(t *testing.T) {
	fake := sandbox.NewFake()
	v := New(fake, nil, false).WithClock(fixedClock)

	outcome := v.Validate(context.Background(), rules.DraftRule{
		RuleID: "r1", Code: "import os\ndef rule(e, s, d):\n    return {'allowed': True}\n",
	})

	require.Equal(t, rules.OutcomeSecurityRejected, outcome.Kind)
	require.Equal(t, "import os", outcome.Pattern)
	require.Equal(t, 0, fake.CreateCalls())
	require.Equal(t, 0, fake.RunCalls())
}

func TestValidate_SyntaxErrorPropagates(t *testing.T) {
	fake := sandbox.NewFake()
	fake.SyntaxRun = func(program, stdin string) (sandbox.RunResult, error) {
		return sandbox.RunResult{ExitCode: 1, Stderr: "SyntaxError: invalid syntax"}, nil
	}
	v := New(fake, nil, false).WithClock(fixedClock)

	outcome := v.Validate(context.Background(), rules.DraftRule{RuleID: "r1", Code: "def rule(:\n"})

	require.Equal(t, rules.OutcomeSyntaxError, outcome.Kind)
	require.Contains(t, outcome.Detail, "SyntaxError")
	require.Equal(t, 1, fake.DestroyCalls())
}

func TestValidate_PassedOnWellFormedOutput(t *testing.T) {
	fake := sandbox.NewFake()
	callCount := 0
	fake.SyntaxRun = nil
	fake.FunctionalRun = nil
	// Use combined dispatch: first Run call answers syntax, second answers functional.
	fakeRun := func(program, stdin string) (sandbox.RunResult, error) {
		callCount++
		if callCount == 1 {
			return sandbox.RunResult{ExitCode: 0, Stdout: SyntaxOKSentinel}, nil
		}
		return sandbox.RunResult{
			ExitCode: 0,
			Stdout:   OutputStartSentinel + `{"allowed": false, "reason": "blocked"}` + OutputEndSentinel,
		}, nil
	}
	fake.SyntaxRun = fakeRun
	fake.FunctionalRun = fakeRun
	v := New(fake, nil, false).WithClock(fixedClock)

	outcome := v.Validate(context.Background(), rules.DraftRule{
		RuleID: "r1", Code: "def rule(e, s, d):\n    return {'allowed': False, 'reason': 'blocked'}\n",
	})

	require.Equal(t, rules.OutcomePassed, outcome.Kind)
	require.Contains(t, outcome.TestOutput, "blocked")
	require.Equal(t, 1, fake.DestroyCalls())
}

func TestValidate_ContractViolationOnMissingAllowed(t *testing.T) {
	fake := sandbox.NewFake()
	callCount := 0
	fakeRun := func(program, stdin string) (sandbox.RunResult, error) {
		callCount++
		if callCount == 1 {
			return sandbox.RunResult{ExitCode: 0, Stdout: SyntaxOKSentinel}, nil
		}
		return sandbox.RunResult{
			ExitCode: 0,
			Stdout:   OutputStartSentinel + `{"reason": "oops"}` + OutputEndSentinel,
		}, nil
	}
	fake.SyntaxRun = fakeRun
	fake.FunctionalRun = fakeRun
	v := New(fake, nil, false).WithClock(fixedClock)

	outcome := v.Validate(context.Background(), rules.DraftRule{RuleID: "r1", Code: "def rule(e,s,d): return {}\n"})

	require.Equal(t, rules.OutcomeContractViolation, outcome.Kind)
}

func TestValidate_InfrastructureErrorOnCreateFailure(t *testing.T) {
	fake := sandbox.NewFake()
	fake.CreateErr = context.DeadlineExceeded
	v := New(fake, nil, false)

	outcome := v.Validate(context.Background(), rules.DraftRule{RuleID: "r1", Code: "def rule(e,s,d): return {}\n"})

	require.Equal(t, rules.OutcomeInfrastructureErr, outcome.Kind)
}
