package agents

import (
	"context"
	"fmt"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
)

// Scripted clients back dry runs and local development: deterministic canned
// analysis, always-approving gates, no external processes.

// ScriptedProducer returns a fixed analysis for its role.
type ScriptedProducer struct {
	producer core.Producer
}

// NewScriptedProducer creates a canned producer for dry runs.
func NewScriptedProducer(p core.Producer) *ScriptedProducer {
	return &ScriptedProducer{producer: p}
}

// Name identifies the collaborator in logs.
func (s *ScriptedProducer) Name() string {
	return "scripted:" + s.producer.String()
}

// Produce returns deterministic placeholder analysis. Retries acknowledge
// the feedback so the rework loop is visible end to end.
func (s *ScriptedProducer) Produce(_ context.Context, req core.ProducerRequest) (core.ProducerResult, error) {
	content := fmt.Sprintf("[dry run] %s analysis for: %s. Focus: %s.",
		s.producer, req.Input, s.producer.Focus())
	if req.Attempt > 1 {
		content = fmt.Sprintf("%s Revised on attempt %d addressing %d feedback item(s).",
			content, req.Attempt, len(req.Feedback))
	}
	return core.ProducerResult{Content: content}, nil
}

// ScriptedGate approves every pass.
type ScriptedGate struct {
	gate core.Gate
}

// NewScriptedGate creates an always-approving gate for dry runs.
func NewScriptedGate(g core.Gate) *ScriptedGate {
	return &ScriptedGate{gate: g}
}

// Name identifies the collaborator in logs.
func (s *ScriptedGate) Name() string {
	return "scripted:" + s.gate.String()
}

// Evaluate passes, warning only when a layer is missing entirely.
func (s *ScriptedGate) Evaluate(_ context.Context, req core.GateRequest) (core.GateDecision, error) {
	decision := core.GateDecision{Verdict: core.VerdictPass}
	for _, p := range req.Merged.MissingLayers() {
		decision.Warnings = append(decision.Warnings,
			"layer "+p.String()+" is missing from the merged state")
	}
	return decision, nil
}

var (
	_ core.ProducerClient = (*ScriptedProducer)(nil)
	_ core.GateClient     = (*ScriptedGate)(nil)
)
