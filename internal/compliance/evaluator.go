// Package compliance implements the ComplianceEvaluator and LocalRunner
// capabilities: evaluating an (employee, security, trade_date) trade query
// against a firm's persisted RulesBundle.
package compliance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
)

// BundleLoader is the subset of RulesStore the evaluator needs.
type BundleLoader interface {
	Load(ctx context.Context, firmName string) (rules.RulesBundle, bool, error)
}

// Runner executes already-validated rule code against a JSON payload,
// returning a single JSON line of output.
type Runner interface {
	Run(ctx context.Context, code string, payloadJSON string) (string, error)
}

// Evaluator implements ComplianceEvaluator.
type Evaluator struct {
	store  BundleLoader
	runner Runner
	logger *slog.Logger
}

// New constructs an Evaluator.
func New(store BundleLoader, runner Runner, logger *slog.Logger) *Evaluator {
	return &Evaluator{store: store, runner: runner, logger: logger}
}

type runnerPayload struct {
	Employee  rules.Employee `json:"employee"`
	Security  rules.Security `json:"security"`
	TradeDate string         `json:"trade_date"`
}

// Evaluate runs every applicable, active rule in the firm's bundle against
// the given employee/security/trade_date, aggregating a ComplianceVerdict.
// An absent firm bundle is vacuously permitted, not denied: the absence of
// policy is not itself a denial (per spec §4.9).
func (e *Evaluator) Evaluate(ctx context.Context, firmName string, employee rules.Employee, security rules.Security, tradeDate string) (rules.ComplianceVerdict, error) {
	bundle, found, err := e.store.Load(ctx, firmName)
	if err != nil {
		return rules.ComplianceVerdict{}, fmt.Errorf("compliance: load bundle for %q: %w", firmName, err)
	}

	verdict := rules.ComplianceVerdict{Allowed: true, Reasons: []string{}, PolicyRefs: []string{}, RulesChecked: []string{}}
	if !found {
		return verdict, nil
	}

	payload, err := json.Marshal(runnerPayload{Employee: employee, Security: security, TradeDate: tradeDate})
	if err != nil {
		return rules.ComplianceVerdict{}, fmt.Errorf("compliance: marshal payload: %w", err)
	}

	for _, rule := range bundle.Rules {
		if !rule.Active {
			continue
		}
		if len(rule.AppliesToRoles) > 0 && !containsRole(rule.AppliesToRoles, employee.Role) {
			continue
		}

		verdict.RulesChecked = append(verdict.RulesChecked, rule.RuleName)

		output, runErr := e.runner.Run(ctx, rule.Code, string(payload))
		if runErr != nil {
			verdict.Allowed = false
			verdict.Reasons = append(verdict.Reasons, fmt.Sprintf("Rule %s execution failed: %v", rule.RuleName, runErr))
			verdict.PolicyRefs = append(verdict.PolicyRefs, rule.PolicyReference)
			if e.logger != nil {
				e.logger.Warn("rule execution failed", "firm", firmName, "rule_id", rule.RuleID, "error", runErr)
			}
			continue
		}

		var result rules.RuleExecutionResult
		if unmarshalErr := json.Unmarshal([]byte(output), &result); unmarshalErr != nil {
			verdict.Allowed = false
			verdict.Reasons = append(verdict.Reasons, fmt.Sprintf("Rule %s execution failed: malformed output: %v", rule.RuleName, unmarshalErr))
			verdict.PolicyRefs = append(verdict.PolicyRefs, rule.PolicyReference)
			continue
		}

		if !result.Allowed {
			verdict.Allowed = false
			if result.Reason != "" {
				verdict.Reasons = append(verdict.Reasons, result.Reason)
				verdict.PolicyRefs = append(verdict.PolicyRefs, result.PolicyRef)
			}
		}
	}

	return verdict, nil
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
