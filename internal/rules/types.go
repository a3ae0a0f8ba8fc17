// Package rules defines the data model shared by the generation, validation,
// refinement, ingestion, storage, and evaluation stages of the rule engine.
package rules

import "time"

// DraftRule is produced by a RuleGenerator before it has been validated.
type DraftRule struct {
	RuleID          string    `json:"rule_id"`
	RuleName        string    `json:"rule_name"`
	Description     string    `json:"description"`
	PolicyReference string    `json:"policy_reference"`
	AppliesToRoles  []string  `json:"applies_to_roles"`
	Code            string    `json:"code"`
	GenerationAttempt int     `json:"-"`
}

// Valid reports whether the draft satisfies the non-empty rule_id/code invariant.
func (d *DraftRule) Valid() bool {
	return d != nil && d.RuleID != "" && d.Code != ""
}

// ValidationAttempt is an immutable record of one validation pass.
type ValidationAttempt struct {
	AttemptNumber       int       `json:"attempt_number"`
	Passed              bool      `json:"passed"`
	Error               string    `json:"error,omitempty"`
	TestOutput          string    `json:"test_output,omitempty"`
	FeedbackToGenerator string    `json:"feedback_to_generator,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
}

// Rule is a DraftRule that has completed the RefinementLoop.
type Rule struct {
	RuleID            string               `json:"rule_id"`
	RuleName          string               `json:"rule_name"`
	Description       string               `json:"description"`
	PolicyReference   string               `json:"policy_reference"`
	AppliesToRoles    []string             `json:"applies_to_roles"`
	Code              string               `json:"code"`
	Active            bool                 `json:"active"`
	GenerationAttempt int                  `json:"generation_attempt"`
	ValidationHistory []ValidationAttempt  `json:"validation_history"`
}

// Passed reports whether the last validation_history entry passed, per the
// RulesBundle storage invariant.
func (r *Rule) Passed() bool {
	if len(r.ValidationHistory) == 0 {
		return false
	}
	return r.ValidationHistory[len(r.ValidationHistory)-1].Passed
}

// RulesBundle is the per-firm persisted container.
type RulesBundle struct {
	FirmName        string    `json:"firm_name"`
	PolicyVersion   string    `json:"policy_version"`
	LastUpdated     time.Time `json:"last_updated"`
	TotalIterations int       `json:"total_iterations"`
	Rules           []Rule    `json:"rules"`
}

// OutcomeKind discriminates ValidationOutcome.
type OutcomeKind string

const (
	OutcomePassed            OutcomeKind = "passed"
	OutcomeSecurityRejected  OutcomeKind = "security_rejected"
	OutcomeSyntaxError       OutcomeKind = "syntax_error"
	OutcomeRuntimeError      OutcomeKind = "runtime_error"
	OutcomeContractViolation OutcomeKind = "contract_violation"
	OutcomeInfrastructureErr OutcomeKind = "infrastructure_error"
)

// ValidationOutcome is the result of one RuleValidator.Validate call.
// Exactly one of the detail fields is meaningful, selected by Kind.
type ValidationOutcome struct {
	Kind       OutcomeKind
	TestOutput string // Passed
	Pattern    string // SecurityRejected
	Detail     string // SyntaxError, RuntimeError, ContractViolation, InfrastructureError
}

// Ok reports whether the outcome represents a successful validation.
func (o ValidationOutcome) Ok() bool { return o.Kind == OutcomePassed }

// ConsolidatedError renders a single human-readable message for the outcome,
// used to populate ValidationAttempt.Error and prior-failure context.
func (o ValidationOutcome) ConsolidatedError() string {
	switch o.Kind {
	case OutcomePassed:
		return ""
	case OutcomeSecurityRejected:
		return "forbidden pattern detected: " + o.Pattern
	case OutcomeSyntaxError:
		return o.Detail
	case OutcomeRuntimeError:
		return o.Detail
	case OutcomeContractViolation:
		return o.Detail
	case OutcomeInfrastructureErr:
		return o.Detail
	default:
		return o.Detail
	}
}

// Employee is an open record. Known fields (including firm_restrictions and
// quick_reference) are struct fields; MarshalJSON also writes every key in
// Extra. Extra is only read on marshal: decoding JSON into an Employee does
// not fill it, so keys without a struct field are dropped on decode.
type Employee struct {
	ID                string         `json:"id"`
	Role              string         `json:"role"`
	Division          string         `json:"division,omitempty"`
	Tier              int            `json:"tier,omitempty"`
	RestrictedTickers []string       `json:"restricted_tickers,omitempty"`
	CanTrade          *bool          `json:"can_trade,omitempty"`
	CoverageStocks    []string       `json:"coverage_stocks,omitempty"`
	ActiveDeals       []string       `json:"active_deals,omitempty"`
	FirmRestrictions  map[string]any `json:"firm_restrictions,omitempty"`
	QuickReference    map[string]any `json:"quick_reference,omitempty"`
	Extra             map[string]any `json:"-"`
}

// MarshalJSON preserves Extra fields alongside the known fields so that the
// engine never drops data it does not itself understand.
func (e Employee) MarshalJSON() ([]byte, error) {
	return mergeExtraJSON(e.Extra, struct {
		ID                string         `json:"id"`
		Role              string         `json:"role"`
		Division          string         `json:"division,omitempty"`
		Tier              int            `json:"tier,omitempty"`
		RestrictedTickers []string       `json:"restricted_tickers,omitempty"`
		CanTrade          *bool          `json:"can_trade,omitempty"`
		CoverageStocks    []string       `json:"coverage_stocks,omitempty"`
		ActiveDeals       []string       `json:"active_deals,omitempty"`
		FirmRestrictions  map[string]any `json:"firm_restrictions,omitempty"`
		QuickReference    map[string]any `json:"quick_reference,omitempty"`
	}{
		ID: e.ID, Role: e.Role, Division: e.Division, Tier: e.Tier,
		RestrictedTickers: e.RestrictedTickers, CanTrade: e.CanTrade,
		CoverageStocks: e.CoverageStocks, ActiveDeals: e.ActiveDeals,
		FirmRestrictions: e.FirmRestrictions, QuickReference: e.QuickReference,
	})
}

// Security describes the instrument and requested action under review.
type Security struct {
	Ticker              string  `json:"ticker"`
	RequestedAction     string  `json:"requested_action"`
	EarningsDate        string  `json:"earnings_date,omitempty"`
	NextEarningsDate    string  `json:"next_earnings_date,omitempty"`
	LastEarningsDate    string  `json:"last_earnings_date,omitempty"`
	MarketCap           float64 `json:"market_cap,omitempty"`
	IsCovered           bool    `json:"is_covered,omitempty"`
	RequiresPreapproval bool    `json:"requires_preapproval,omitempty"`
}

// RuleExecutionResult is the contract a rule's own output must satisfy.
type RuleExecutionResult struct {
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason,omitempty"`
	PolicyRef string `json:"policy_ref,omitempty"`
}

// ComplianceVerdict is the aggregated result of evaluating one trade query.
type ComplianceVerdict struct {
	Allowed      bool     `json:"allowed"`
	Reasons      []string `json:"reasons"`
	PolicyRefs   []string `json:"policy_refs"`
	RulesChecked []string `json:"rules_checked"`
}
