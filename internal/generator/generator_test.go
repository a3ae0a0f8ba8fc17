package generator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDraftRules_ValidPayload(t *testing.T) {
	text := `[{"rule_id":"no_restricted_trading","rule_name":"No Restricted Trading","description":"blocks restricted tickers","policy_reference":"3.1","applies_to_roles":["analyst"],"code":"def rule(employee, security, trade_date):\n    return {'allowed': True}"}]`

	drafts, err := parseDraftRules(text)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, "no_restricted_trading", drafts[0].RuleID)
	require.Equal(t, []string{"analyst"}, drafts[0].AppliesToRoles)
}

func TestParseDraftRules_DefaultsMissingRoles(t *testing.T) {
	text := `[{"rule_id":"universal_rule","rule_name":"Universal","code":"def rule(e,s,t):\n    return {'allowed': True}"}]`

	drafts, err := parseDraftRules(text)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.NotNil(t, drafts[0].AppliesToRoles)
	require.Empty(t, drafts[0].AppliesToRoles)
}

func TestParseDraftRules_RejectsMissingRequiredFields(t *testing.T) {
	text := `[{"rule_name":"Missing rule_id and code"}]`

	_, err := parseDraftRules(text)
	require.Error(t, err)
}

func TestParseDraftRules_RejectsMalformedJSON(t *testing.T) {
	_, err := parseDraftRules("not json at all")
	require.Error(t, err)
}

func TestParseDraftRules_RejectsBadRuleIDPattern(t *testing.T) {
	text := `[{"rule_id":"Not Snake Case!","rule_name":"Bad ID","code":"def rule(e,s,t): return {}"}]`

	_, err := parseDraftRules(text)
	require.Error(t, err)
}

func TestBuildUserPrompt_InitialRequestHasNoFailureContext(t *testing.T) {
	prompt := buildUserPrompt(Request{FirmName: "Acme Capital", PolicyText: "No trading restricted tickers."})
	require.Contains(t, prompt, "Acme Capital")
	require.Contains(t, prompt, "No trading restricted tickers.")
	require.NotContains(t, prompt, "Failing code")
}

func TestBuildUserPrompt_RegenerationIncludesFailureContext(t *testing.T) {
	prompt := buildUserPrompt(Request{
		FirmName:   "Acme Capital",
		PolicyText: "No trading restricted tickers.",
		PriorFailure: &PriorFailure{
			Code:       "def rule(e,s,t): pass",
			Error:      "missing allowed key",
			TestOutput: `{"reason": "no allowed key"}`,
		},
	})
	require.Contains(t, prompt, "Failing code")
	require.Contains(t, prompt, "missing allowed key")
	require.Contains(t, prompt, "single-element JSON array")
}
