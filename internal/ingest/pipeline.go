// Package ingest implements the IngestionPipeline capability: running every
// draft rule produced for one policy submission through the RefinementLoop
// and assembling the resulting RulesBundle.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/generator"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/refine"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
)

// AuditLog records one row per ingested rule, independent of whether it
// passed. The Pipeline accepts a nil AuditLog and then records nothing, so
// audit logging stays optional ambient infrastructure, never a hard
// dependency for ingestion to complete.
type AuditLog interface {
	RecordRule(ctx context.Context, firmName string, rule rules.Rule, ingestedAt time.Time) error
}

// Pipeline drives the full policy-text-to-bundle flow: generate the initial
// drafts, refine each one independently, and accumulate accepted rules plus
// the total iteration count, per spec §4.7.
type Pipeline struct {
	gen    generator.Generator
	loop   *refine.Loop
	audit  AuditLog
	now    func() time.Time
	logger *slog.Logger
}

// New constructs a Pipeline. audit may be nil.
func New(gen generator.Generator, loop *refine.Loop, audit AuditLog, logger *slog.Logger) *Pipeline {
	return &Pipeline{gen: gen, loop: loop, audit: audit, now: time.Now, logger: logger}
}

// WithClock overrides the pipeline's time source, mainly for tests.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Ingest turns policy text into a RulesBundle. Every draft is refined
// independently; a draft that never passes still contributes its
// validation_history and iteration count, but its Rule is not marked
// Active and is excluded from the bundle's Rules slice. Ingest persists
// (via the caller, which owns RulesStore) even when no draft ultimately
// passes, so the firm's bundle timestamp still advances.
func (p *Pipeline) Ingest(ctx context.Context, firmName, policyText string) (rules.RulesBundle, error) {
	drafts, err := p.gen.Generate(ctx, generator.Request{FirmName: firmName, PolicyText: policyText})
	if err != nil {
		return rules.RulesBundle{}, fmt.Errorf("ingest: initial generation failed: %w", err)
	}
	if len(drafts) == 0 {
		return rules.RulesBundle{}, fmt.Errorf("ingest: generator returned no draft rules for firm %q", firmName)
	}

	now := p.now().UTC()
	bundle := rules.RulesBundle{
		FirmName:      firmName,
		PolicyVersion: now.Format("2006-01"),
		LastUpdated:   now,
	}

	for _, draft := range drafts {
		rule, err := p.loop.Refine(ctx, firmName, policyText, draft)
		if err != nil {
			return rules.RulesBundle{}, fmt.Errorf("ingest: refinement failed for draft %q: %w", draft.RuleID, err)
		}

		bundle.TotalIterations += len(rule.ValidationHistory)

		if p.audit != nil {
			if auditErr := p.audit.RecordRule(ctx, firmName, rule, now); auditErr != nil && p.logger != nil {
				p.logger.Warn("audit log write failed", "firm", firmName, "rule_id", rule.RuleID, "error", auditErr)
			}
		}

		if rule.Active {
			bundle.Rules = append(bundle.Rules, rule)
		} else if p.logger != nil {
			p.logger.Warn("rule never passed validation; excluded from bundle",
				"firm", firmName, "rule_id", rule.RuleID, "attempts", len(rule.ValidationHistory))
		}
	}

	return bundle, nil
}
