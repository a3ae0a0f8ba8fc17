// Package refine implements the RefinementLoop capability: driving a single
// DraftRule through generate -> validate -> feedback -> regenerate until it
// passes or a bounded number of attempts is exhausted.
package refine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/feedback"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/generator"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/validator"
)

// DefaultMaxAttempts is the bound on generate/validate cycles per rule,
// per spec §4.6.
const DefaultMaxAttempts = 5

// Loop drives a single rule candidate through the refinement cycle.
type Loop struct {
	gen        generator.Generator
	val        *validator.Validator
	maxAttempts int
	now        func() time.Time
	logger     *slog.Logger
}

// New constructs a Loop with DefaultMaxAttempts.
func New(gen generator.Generator, val *validator.Validator, logger *slog.Logger) *Loop {
	return &Loop{gen: gen, val: val, maxAttempts: DefaultMaxAttempts, now: time.Now, logger: logger}
}

// WithMaxAttempts overrides the attempt bound, mainly for tests.
func (l *Loop) WithMaxAttempts(n int) *Loop {
	l.maxAttempts = n
	return l
}

// WithClock overrides the loop's time source, mainly for tests.
func (l *Loop) WithClock(now func() time.Time) *Loop {
	l.now = now
	return l
}

// Refine runs the generate/validate/feedback cycle for one initial draft
// until it passes validation or maxAttempts is exhausted. The returned Rule
// always carries its full validation_history, whether or not it ultimately
// passed; Active reflects only the last attempt's outcome.
func (l *Loop) Refine(ctx context.Context, firmName string, policyText string, draft rules.DraftRule) (rules.Rule, error) {
	history := make([]rules.ValidationAttempt, 0, l.maxAttempts)
	current := draft
	var lastOutcome rules.ValidationOutcome

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		if !current.Valid() {
			return rules.Rule{}, fmt.Errorf("refine: draft %q missing required fields at attempt %d", draft.RuleID, attempt)
		}

		outcome := l.val.Validate(ctx, current)
		lastOutcome = outcome

		record := rules.ValidationAttempt{
			AttemptNumber:       attempt,
			Passed:              outcome.Ok(),
			Error:               outcome.ConsolidatedError(),
			TestOutput:          outcome.TestOutput,
			FeedbackToGenerator: feedback.Compose(outcome),
			Timestamp:           l.now().UTC(),
		}
		history = append(history, record)

		if l.logger != nil {
			l.logger.Info("refinement attempt",
				"firm", firmName, "rule_id", current.RuleID,
				"attempt", attempt, "passed", record.Passed, "kind", outcome.Kind)
		}

		if outcome.Ok() {
			return rules.Rule{
				RuleID:            current.RuleID,
				RuleName:          current.RuleName,
				Description:       current.Description,
				PolicyReference:   current.PolicyReference,
				AppliesToRoles:    current.AppliesToRoles,
				Code:              current.Code,
				Active:            true,
				GenerationAttempt: attempt,
				ValidationHistory: history,
			}, nil
		}

		if attempt == l.maxAttempts {
			break
		}

		regenerated, err := l.gen.Generate(ctx, generator.Request{
			PolicyText: policyText,
			FirmName:   firmName,
			PriorFailure: &generator.PriorFailure{
				Code:       current.Code,
				Error:      record.Error,
				TestOutput: record.TestOutput,
			},
		})
		if err != nil {
			return rules.Rule{}, fmt.Errorf("refine: regeneration failed for %q at attempt %d: %w", draft.RuleID, attempt, err)
		}
		if len(regenerated) == 0 {
			if l.logger != nil {
				l.logger.Warn("generator returned no candidates; ending refinement",
					"firm", firmName, "rule_id", draft.RuleID, "attempt", attempt)
			}
			break
		}

		next := regenerated[0]
		// Preserve the original rule_id. policy_reference and applies_to_roles
		// fall back to the previous draft's values only when the regenerated
		// draft leaves them empty; code, name and description always come
		// from the regenerated draft.
		next.RuleID = current.RuleID
		if next.PolicyReference == "" {
			next.PolicyReference = current.PolicyReference
		}
		if len(next.AppliesToRoles) == 0 {
			next.AppliesToRoles = current.AppliesToRoles
		}
		current = next
	}

	return rules.Rule{
		RuleID:            current.RuleID,
		RuleName:          current.RuleName,
		Description:       current.Description,
		PolicyReference:   current.PolicyReference,
		AppliesToRoles:    current.AppliesToRoles,
		Code:              current.Code,
		Active:            lastOutcome.Ok(),
		GenerationAttempt: len(history),
		ValidationHistory: history,
	}, nil
}
