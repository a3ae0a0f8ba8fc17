package feedback

import (
	"testing"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
)

func TestCompose_PassedIsEmpty(t *testing.T) {
	got := Compose(rules.ValidationOutcome{Kind: rules.OutcomePassed})
	if got != "" {
		t.Fatalf("expected empty feedback for passed outcome, got %q", got)
	}
}

func TestCompose_EachFailureKindHasPrefix(t *testing.T) {
	cases := []struct {
		outcome rules.ValidationOutcome
		prefix  string
	}{
		{rules.ValidationOutcome{Kind: rules.OutcomeSyntaxError, Detail: "bad indent"}, "Fix syntax issues:"},
		{rules.ValidationOutcome{Kind: rules.OutcomeRuntimeError, Detail: "divide by zero"}, "Runtime failure:"},
		{rules.ValidationOutcome{Kind: rules.OutcomeContractViolation, Detail: "missing allowed"}, "Logical/test failure:"},
		{rules.ValidationOutcome{Kind: rules.OutcomeSecurityRejected, Pattern: "import os"}, "Security violation:"},
		{rules.ValidationOutcome{Kind: rules.OutcomeInfrastructureErr, Detail: "sandbox down"}, "General validation error:"},
	}
	for _, c := range cases {
		got := Compose(c.outcome)
		if len(got) < len(c.prefix) || got[:len(c.prefix)] != c.prefix {
			t.Fatalf("outcome %+v: expected prefix %q, got %q", c.outcome, c.prefix, got)
		}
	}
}
