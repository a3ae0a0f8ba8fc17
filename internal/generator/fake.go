package generator

import (
	"context"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
)

// GenerateFunc lets tests script Generator responses per call.
type GenerateFunc func(ctx context.Context, req Request) ([]rules.DraftRule, error)

// Fake is an in-memory Generator double used by refinement-loop and
// ingestion-pipeline tests so they never reach the network.
type Fake struct {
	Responses []GenerateFunc
	calls     []Request
}

// NewFake builds a Fake that answers calls in order from responses, one
// response consumed per Generate call. If fewer responses are supplied than
// calls made, the last response is reused.
func NewFake(responses ...GenerateFunc) *Fake {
	return &Fake{Responses: responses}
}

// Generate implements Generator.
func (f *Fake) Generate(ctx context.Context, req Request) ([]rules.DraftRule, error) {
	f.calls = append(f.calls, req)
	if len(f.Responses) == 0 {
		return nil, nil
	}
	idx := len(f.calls) - 1
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	return f.Responses[idx](ctx, req)
}

// Calls returns every request this fake has received, for assertions about
// how many generation rounds a refinement loop performed.
func (f *Fake) Calls() []Request {
	return f.calls
}
