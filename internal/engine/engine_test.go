package engine

import (
	"context"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
)

// Test doubles for the external collaborators.

type producerFunc struct {
	name string
	fn   func(ctx context.Context, req core.ProducerRequest) (core.ProducerResult, error)
}

func (p producerFunc) Name() string { return p.name }

func (p producerFunc) Produce(ctx context.Context, req core.ProducerRequest) (core.ProducerResult, error) {
	return p.fn(ctx, req)
}

type gateFunc struct {
	name string
	fn   func(ctx context.Context, req core.GateRequest) (core.GateDecision, error)
}

func (g gateFunc) Name() string { return g.name }

func (g gateFunc) Evaluate(ctx context.Context, req core.GateRequest) (core.GateDecision, error) {
	return g.fn(ctx, req)
}

type compilerFunc func(snap *core.RunSnapshot, merged core.MergedView) string

func (f compilerFunc) Compile(snap *core.RunSnapshot, merged core.MergedView) string {
	return f(snap, merged)
}

// okProducers returns a full roster of producers that echo their role.
func okProducers() map[core.Producer]core.ProducerClient {
	clients := make(map[core.Producer]core.ProducerClient)
	for _, p := range core.AllProducers() {
		clients[p] = producerFunc{
			name: p.String(),
			fn: func(_ context.Context, req core.ProducerRequest) (core.ProducerResult, error) {
				return core.ProducerResult{Content: "notes from " + req.Producer.String()}, nil
			},
		}
	}
	return clients
}

// passGates returns a full chain of gates that always pass.
func passGates() map[core.Gate]core.GateClient {
	gates := make(map[core.Gate]core.GateClient)
	for _, g := range core.AllGates() {
		gates[g] = gateFunc{
			name: g.String(),
			fn: func(_ context.Context, _ core.GateRequest) (core.GateDecision, error) {
				return core.GateDecision{Verdict: core.VerdictPass}, nil
			},
		}
	}
	return gates
}

func stubCompiler() core.ReportCompiler {
	return compilerFunc(func(snap *core.RunSnapshot, _ core.MergedView) string {
		return "# Report for " + snap.ID
	})
}
