// Package feedback implements the FeedbackComposer: a pure function
// translating a ValidationOutcome into natural-language guidance for the
// next generation attempt.
package feedback

import (
	"fmt"
	"strings"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
)

// Compose returns the feedback string for a failed ValidationOutcome. It is
// empty for a passed outcome, matching ValidationAttempt's
// "passed ⇔ feedback_to_generator absent" invariant.
func Compose(outcome rules.ValidationOutcome) string {
	if outcome.Ok() {
		return ""
	}

	var hints []string
	switch outcome.Kind {
	case rules.OutcomeSyntaxError:
		hints = append(hints, fmt.Sprintf("Fix syntax issues: %s", outcome.Detail))
	case rules.OutcomeRuntimeError:
		hints = append(hints, fmt.Sprintf("Runtime failure: %s", outcome.Detail))
	case rules.OutcomeContractViolation:
		hints = append(hints, fmt.Sprintf("Logical/test failure: %s", outcome.Detail))
	case rules.OutcomeSecurityRejected:
		hints = append(hints, fmt.Sprintf("Security violation: %s", outcome.Pattern))
	default:
		if detail := outcome.ConsolidatedError(); detail != "" {
			hints = append(hints, fmt.Sprintf("General validation error: %s", detail))
		}
	}

	if len(hints) == 0 {
		hints = append(hints, "Validation failed for an unspecified reason; revise the rule and try again.")
	}
	return strings.Join(hints, " ")
}
