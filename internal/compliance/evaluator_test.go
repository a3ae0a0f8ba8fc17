package compliance

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeLoader struct {
	bundle rules.RulesBundle
	found  bool
	err    error
}

func (f *fakeLoader) Load(ctx context.Context, firmName string) (rules.RulesBundle, bool, error) {
	return f.bundle, f.found, f.err
}

type fakeRunner struct {
	outputs map[string]string
	failing map[string]error
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, code string, payloadJSON string) (string, error) {
	if f.failing != nil {
		if err, ok := f.failing[code]; ok {
			return "", err
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.outputs[code], nil
}

func TestEvaluate_UnknownFirmIsVacuouslyAllowed(t *testing.T) {
	loader := &fakeLoader{found: false}
	eval := New(loader, &fakeRunner{}, discardLogger())

	verdict, err := eval.Evaluate(context.Background(), "Nonexistent Firm", rules.Employee{Role: "analyst"}, rules.Security{Ticker: "TSLA"}, "2025-12-01")

	require.NoError(t, err)
	require.True(t, verdict.Allowed)
	require.Empty(t, verdict.Reasons)
	require.Empty(t, verdict.RulesChecked)
}

func TestEvaluate_DeniedTradeAggregatesReason(t *testing.T) {
	rule := rules.Rule{
		RuleID: "no_restricted", RuleName: "No Restricted Trading", PolicyReference: "3.1",
		Active: true, AppliesToRoles: []string{},
		Code: "def rule(e,s,t): return {'allowed': False}",
	}
	loader := &fakeLoader{found: true, bundle: rules.RulesBundle{FirmName: "Acme Capital", Rules: []rules.Rule{rule}}}
	runner := &fakeRunner{outputs: map[string]string{rule.Code: `{"allowed": false, "reason": "TSLA is restricted", "policy_ref": "3.1"}`}}

	eval := New(loader, runner, discardLogger())
	verdict, err := eval.Evaluate(context.Background(), "Acme Capital", rules.Employee{Role: "analyst"}, rules.Security{Ticker: "TSLA"}, "2025-12-01")

	require.NoError(t, err)
	require.False(t, verdict.Allowed)
	require.Equal(t, []string{"TSLA is restricted"}, verdict.Reasons)
	require.Equal(t, []string{"3.1"}, verdict.PolicyRefs)
	require.Equal(t, []string{"No Restricted Trading"}, verdict.RulesChecked)
}

func TestEvaluate_InactiveRuleSkipped(t *testing.T) {
	rule := rules.Rule{RuleID: "r1", RuleName: "Inactive Rule", Active: false, Code: "x"}
	loader := &fakeLoader{found: true, bundle: rules.RulesBundle{Rules: []rules.Rule{rule}}}
	eval := New(loader, &fakeRunner{}, discardLogger())

	verdict, err := eval.Evaluate(context.Background(), "Acme Capital", rules.Employee{Role: "analyst"}, rules.Security{Ticker: "TSLA"}, "2025-12-01")
	require.NoError(t, err)
	require.True(t, verdict.Allowed)
	require.Empty(t, verdict.RulesChecked)
}

func TestEvaluate_RoleMismatchSkipsRule(t *testing.T) {
	rule := rules.Rule{RuleID: "r1", RuleName: "Trader Only Rule", Active: true, AppliesToRoles: []string{"trader"}, Code: "x"}
	loader := &fakeLoader{found: true, bundle: rules.RulesBundle{Rules: []rules.Rule{rule}}}
	eval := New(loader, &fakeRunner{}, discardLogger())

	verdict, err := eval.Evaluate(context.Background(), "Acme Capital", rules.Employee{Role: "analyst"}, rules.Security{Ticker: "TSLA"}, "2025-12-01")
	require.NoError(t, err)
	require.True(t, verdict.Allowed)
	require.Empty(t, verdict.RulesChecked)
}

func TestEvaluate_EmptyAppliesToRolesIsUniversal(t *testing.T) {
	rule := rules.Rule{RuleID: "r1", RuleName: "Universal Rule", Active: true, AppliesToRoles: []string{}, Code: "def rule(e,s,t): return {'allowed': True}"}
	loader := &fakeLoader{found: true, bundle: rules.RulesBundle{Rules: []rules.Rule{rule}}}
	runner := &fakeRunner{outputs: map[string]string{rule.Code: `{"allowed": true}`}}
	eval := New(loader, runner, discardLogger())

	verdict, err := eval.Evaluate(context.Background(), "Acme Capital", rules.Employee{Role: "trader"}, rules.Security{Ticker: "TSLA"}, "2025-12-01")
	require.NoError(t, err)
	require.True(t, verdict.Allowed)
	require.Equal(t, []string{"Universal Rule"}, verdict.RulesChecked)
}

func TestEvaluate_ExecutionFailureTreatedAsDenyButKeepsEvaluatingOtherRules(t *testing.T) {
	broken := rules.Rule{RuleID: "r1", RuleName: "Broken Rule", PolicyReference: "1.0", Active: true, Code: "broken"}
	fine := rules.Rule{RuleID: "r2", RuleName: "Fine Rule", Active: true, Code: "def rule(e,s,t): return {'allowed': True}"}
	loader := &fakeLoader{found: true, bundle: rules.RulesBundle{Rules: []rules.Rule{broken, fine}}}
	runner := &fakeRunner{
		failing: map[string]error{broken.Code: errExecFailed},
		outputs: map[string]string{fine.Code: `{"allowed": true}`},
	}

	eval := New(loader, runner, discardLogger())
	verdict, err := eval.Evaluate(context.Background(), "Acme Capital", rules.Employee{Role: "analyst"}, rules.Security{Ticker: "TSLA"}, "2025-12-01")

	require.NoError(t, err)
	require.False(t, verdict.Allowed)
	require.Len(t, verdict.Reasons, 1)
	require.Contains(t, verdict.Reasons[0], "Broken Rule")
	require.Equal(t, []string{"1.0"}, verdict.PolicyRefs)
	require.Equal(t, []string{"Broken Rule", "Fine Rule"}, verdict.RulesChecked)
}

var errExecFailed = errRunnerFailure("sandbox transport error")

type errRunnerFailure string

func (e errRunnerFailure) Error() string { return string(e) }
