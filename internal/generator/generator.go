// Package generator implements the RuleGenerator capability: turning policy
// text (optionally with prior-failure context) into structured DraftRule
// candidates.
package generator

import (
	"context"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
)

// PriorFailure carries a previous attempt's failing code and validator
// feedback back into a regeneration request.
type PriorFailure struct {
	Code       string `json:"code"`
	Error      string `json:"error"`
	TestOutput string `json:"test_output,omitempty"`
}

// Request is the input to Generate.
type Request struct {
	PolicyText    string
	FirmName      string
	PriorFailure  *PriorFailure
}

// Generator is the RuleGenerator capability contract from spec §4.4.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]rules.DraftRule, error)
}
