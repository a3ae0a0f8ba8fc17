package generator

import "fmt"

// systemPrompt communicates the Employee/Security schema and enforcement
// conventions every generated rule must honor, per spec §4.4's prompt
// contract.
const systemPrompt = `You convert investment-firm compliance policy text into executable Python compliance rules.

Each rule you emit must define exactly one callable with the signature
rule(employee, security, trade_date) -> dict, using only the Python
standard library. The returned dict must contain a boolean "allowed" key
and may contain "reason" and "policy_ref" string keys.

employee is a dict with keys: id, role, division, tier (1 = most
restricted), restricted_tickers, can_trade, coverage_stocks, active_deals,
firm_restrictions, quick_reference.

security is a dict with keys: ticker, requested_action (buy|sell|trade),
earnings_date, next_earnings_date, last_earnings_date, market_cap,
is_covered, requires_preapproval.

Conventions: restricted_tickers is an absolute bar regardless of action.
coverage_stocks require pre-approval before any trade. Lower tier numbers
are more restricted.

Respond with a JSON array of objects, each with keys: rule_id (snake_case,
unique), rule_name, description, policy_reference, applies_to_roles
(array of strings, [] means universal), code (the Python source).
Respond with the JSON array only, no surrounding prose.`

// buildUserPrompt assembles the per-request prompt, including prior-failure
// context when regenerating a single failing rule.
func buildUserPrompt(req Request) string {
	if req.PriorFailure == nil {
		return fmt.Sprintf("Firm: %s\n\nPolicy:\n%s", req.FirmName, req.PolicyText)
	}
	return fmt.Sprintf(
		"Firm: %s\n\nPolicy:\n%s\n\nThe following rule failed validation and must be revised while preserving its intent. Respond with a single-element JSON array containing only the corrected rule.\n\nFailing code:\n%s\n\nValidator error:\n%s\n\nTest output:\n%s",
		req.FirmName, req.PolicyText, req.PriorFailure.Code, req.PriorFailure.Error, req.PriorFailure.TestOutput,
	)
}
