package generator

import (
	"context"
	"strings"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
)

// Router picks between a fast and a smart model heuristically, the way the
// rest of the stack routes chat completions: cheap requests go to the fast
// model, harder ones to the smart model. A regeneration carrying prior
// failure context always counts as hard, since fixing a rule that already
// failed validation needs the stronger model; an initial request falls back
// to a keyword/length heuristic on the policy text.
type Router struct {
	fast Generator
	smart Generator
}

// NewRouter builds a Router over two Generator backends.
func NewRouter(fast, smart Generator) *Router {
	return &Router{fast: fast, smart: smart}
}

// Generate implements Generator.
func (r *Router) Generate(ctx context.Context, req Request) ([]rules.DraftRule, error) {
	if r.isComplex(req) {
		return r.smart.Generate(ctx, req)
	}
	return r.fast.Generate(ctx, req)
}

func (r *Router) isComplex(req Request) bool {
	if req.PriorFailure != nil {
		return true
	}
	text := strings.ToLower(req.PolicyText)
	keywords := []string{"exemption", "tier", "pre-clearance", "blackout", "restricted list", "unless"}
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return len(req.PolicyText) > 600
}
