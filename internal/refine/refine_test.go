package refine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/generator"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/sandbox"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/validator"
)

func fixedClock() time.Time { return time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const passingCode = `def rule(employee, security, trade_date):
    return {"allowed": True, "reason": "ok"}
`

const brokenCode = `def rule(employee, security, trade_date)
    return {"allowed": True}
`

func newFakeExecutor() *sandbox.Fake {
	fake := sandbox.NewFake()
	fake.SyntaxRun = func(program, stdin string) (sandbox.RunResult, error) {
		return sandbox.RunResult{ExitCode: 0, Stdout: validator.SyntaxOKSentinel + "\n"}, nil
	}
	fake.FunctionalRun = func(program, stdin string) (sandbox.RunResult, error) {
		return sandbox.RunResult{
			ExitCode: 0,
			Stdout:   validator.OutputStartSentinel + `{"allowed": true, "reason": "ok"}` + validator.OutputEndSentinel,
		}, nil
	}
	return fake
}

func TestRefine_PassesOnFirstAttempt(t *testing.T) {
	fake := newFakeExecutor()
	val := validator.New(fake, discardLogger(), false).WithClock(fixedClock)
	gen := generator.NewFake()
	loop := New(gen, val, discardLogger()).WithClock(fixedClock)

	draft := rules.DraftRule{RuleID: "r1", RuleName: "Rule One", Code: passingCode}
	rule, err := loop.Refine(context.Background(), "Acme Capital", "Employees may not trade restricted tickers.", draft)

	require.NoError(t, err)
	require.True(t, rule.Active)
	require.Equal(t, "r1", rule.RuleID)
	require.Len(t, rule.ValidationHistory, 1)
	require.True(t, rule.ValidationHistory[0].Passed)
	require.Empty(t, gen.Calls())
}

func TestRefine_ConvergesAfterRegeneration(t *testing.T) {
	fake := sandbox.NewFake()
	fake.SyntaxRun = func(program, stdin string) (sandbox.RunResult, error) {
		return sandbox.RunResult{ExitCode: 0, Stdout: validator.SyntaxOKSentinel + "\n"}, nil
	}

	callCount := 0
	fake.FunctionalRun = func(program, stdin string) (sandbox.RunResult, error) {
		callCount++
		if callCount == 1 {
			return sandbox.RunResult{
				ExitCode: 0,
				Stdout:   validator.OutputStartSentinel + `{"reason": "missing allowed"}` + validator.OutputEndSentinel,
			}, nil
		}
		return sandbox.RunResult{
			ExitCode: 0,
			Stdout:   validator.OutputStartSentinel + `{"allowed": true, "reason": "fixed"}` + validator.OutputEndSentinel,
		}, nil
	}

	val := validator.New(fake, discardLogger(), false).WithClock(fixedClock)

	const policyText = "Employees may not trade restricted tickers within 5 days of an earnings announcement."

	gen := generator.NewFake(func(ctx context.Context, req generator.Request) ([]rules.DraftRule, error) {
		require.NotNil(t, req.PriorFailure)
		require.Equal(t, policyText, req.PolicyText)
		return []rules.DraftRule{{RuleID: "r1", RuleName: "Rule One Fixed", Code: passingCode}}, nil
	})

	loop := New(gen, val, discardLogger()).WithClock(fixedClock)

	draft := rules.DraftRule{RuleID: "r1", RuleName: "Rule One", Description: "blocks restricted tickers", Code: passingCode}
	rule, err := loop.Refine(context.Background(), "Acme Capital", policyText, draft)

	require.NoError(t, err)
	require.True(t, rule.Active)
	require.Equal(t, "r1", rule.RuleID)
	require.Len(t, rule.ValidationHistory, 2)
	require.False(t, rule.ValidationHistory[0].Passed)
	require.True(t, rule.ValidationHistory[1].Passed)
	require.Len(t, gen.Calls(), 1)
	require.Equal(t, policyText, gen.Calls()[0].PolicyText)
}

func TestRefine_ExhaustsAttemptsAndReturnsInactiveRule(t *testing.T) {
	fake := sandbox.NewFake()
	fake.SyntaxRun = func(program, stdin string) (sandbox.RunResult, error) {
		return sandbox.RunResult{ExitCode: 0, Stdout: validator.SyntaxOKSentinel + "\n"}, nil
	}
	fake.FunctionalRun = func(program, stdin string) (sandbox.RunResult, error) {
		return sandbox.RunResult{
			ExitCode: 0,
			Stdout:   validator.OutputStartSentinel + `{"reason": "still missing allowed"}` + validator.OutputEndSentinel,
		}, nil
	}

	val := validator.New(fake, discardLogger(), false).WithClock(fixedClock)
	gen := generator.NewFake(func(ctx context.Context, req generator.Request) ([]rules.DraftRule, error) {
		return []rules.DraftRule{{RuleID: "r1", RuleName: "Rule One Retry", Code: passingCode}}, nil
	})

	loop := New(gen, val, discardLogger()).WithClock(fixedClock).WithMaxAttempts(3)

	draft := rules.DraftRule{RuleID: "r1", RuleName: "Rule One", Code: passingCode}
	rule, err := loop.Refine(context.Background(), "Acme Capital", "Employees may not trade restricted tickers.", draft)

	require.NoError(t, err)
	require.False(t, rule.Active)
	require.Len(t, rule.ValidationHistory, 3)
	require.Len(t, gen.Calls(), 2)
}

func TestRefine_SecurityRejectionNeverCallsSandbox(t *testing.T) {
	fake := sandbox.NewFake()
	val := validator.New(fake, discardLogger(), false).WithClock(fixedClock)
	gen := generator.NewFake()
	loop := New(gen, val, discardLogger()).WithClock(fixedClock).WithMaxAttempts(1)

	draft := rules.DraftRule{RuleID: "r1", RuleName: "Unsafe Rule", Code: "import os\nos.system('ls')"}
	rule, err := loop.Refine(context.Background(), "Acme Capital", "Employees may not trade restricted tickers.", draft)

	require.NoError(t, err)
	require.False(t, rule.Active)
	require.Equal(t, 0, fake.CreateCalls())
}
