package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mergedFixture(state *core.RunState) core.MergedView {
	merged := core.MergedView{
		Input:  state.Input(),
		Layers: make(map[core.Producer]core.LayerContent, core.NumProducers),
	}
	for _, p := range core.AllProducers() {
		merged.Layers[p] = core.LayerContent{Content: "notes from " + p.String()}
	}
	return merged
}

func TestChain_RequiresFullGateRoster(t *testing.T) {
	gates := passGates()
	delete(gates, core.GateHallucination)

	_, err := NewChain(gates, nil, nil)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatConfiguration))
}

func TestChain_AllPass(t *testing.T) {
	chain, err := NewChain(passGates(), nil, nil)
	require.NoError(t, err)

	state := newState()
	outcome := chain.RunPass(context.Background(), state, mergedFixture(state), 1)

	assert.Nil(t, outcome.Retry)
	assert.Nil(t, outcome.Fatal)

	results := state.ValidationResults()
	require.Len(t, results, len(core.AllGates()))
	for i, g := range core.AllGates() {
		assert.Equal(t, g, results[i].Gate)
		assert.Equal(t, core.VerdictPass, results[i].Verdict)
		assert.Equal(t, 1, results[i].Pass)
	}
	assert.Empty(t, state.Warnings())
}

func TestChain_GatesRunInFixedOrder(t *testing.T) {
	var seen []core.Gate
	gates := make(map[core.Gate]core.GateClient)
	for _, g := range core.AllGates() {
		gates[g] = gateFunc{
			name: g.String(),
			fn: func(_ context.Context, req core.GateRequest) (core.GateDecision, error) {
				seen = append(seen, req.Gate)
				return core.GateDecision{Verdict: core.VerdictPass}, nil
			},
		}
	}
	chain, err := NewChain(gates, nil, nil)
	require.NoError(t, err)

	state := newState()
	chain.RunPass(context.Background(), state, mergedFixture(state), 1)
	assert.Equal(t, core.AllGates(), seen)
}

func TestChain_FirstRetryStopsPass(t *testing.T) {
	evaluated := map[core.Gate]int{}
	gates := make(map[core.Gate]core.GateClient)
	for _, g := range core.AllGates() {
		gates[g] = gateFunc{
			name: g.String(),
			fn: func(_ context.Context, req core.GateRequest) (core.GateDecision, error) {
				evaluated[req.Gate]++
				if req.Gate == core.GateReportQuality {
					return core.GateDecision{
						Verdict:  core.VerdictRetry,
						Target:   core.TargetProducer(core.ProducerPolicy),
						Reason:   "policy section contradicts market numbers",
						Warnings: []string{"quantify the subsidy impact"},
					}, nil
				}
				return core.GateDecision{Verdict: core.VerdictPass}, nil
			},
		}
	}
	chain, err := NewChain(gates, nil, nil)
	require.NoError(t, err)

	state := newState()
	outcome := chain.RunPass(context.Background(), state, mergedFixture(state), 1)

	require.NotNil(t, outcome.Retry)
	assert.Nil(t, outcome.Fatal)
	assert.Equal(t, core.GateReportQuality, outcome.Retry.Gate)
	assert.Equal(t, []core.Producer{core.ProducerPolicy}, outcome.Retry.Targets)
	assert.Equal(t, []string{
		"policy section contradicts market numbers",
		"quantify the subsidy impact",
	}, outcome.Retry.Feedback)

	// The downstream gate never ran this pass.
	assert.Equal(t, 1, evaluated[core.GateCrossLayer])
	assert.Equal(t, 1, evaluated[core.GateReportQuality])
	assert.Equal(t, 0, evaluated[core.GateHallucination])

	// One budget unit is consumed on each side of the retry.
	assert.Equal(t, 1, state.Budget().GateUsed(core.GateReportQuality))
	assert.Equal(t, 1, state.Budget().ProducerUsed(core.ProducerPolicy))

	results := state.ValidationResults()
	require.Len(t, results, 2)
	assert.Equal(t, core.VerdictRetry, results[1].Verdict)
}

func TestChain_FailVerdictIsFatal(t *testing.T) {
	gates := passGates()
	gates[core.GateHallucination] = gateFunc{
		name: "hallucination",
		fn: func(_ context.Context, _ core.GateRequest) (core.GateDecision, error) {
			return core.GateDecision{Verdict: core.VerdictFail, Reason: "fabricated citation"}, nil
		},
	}
	chain, err := NewChain(gates, nil, nil)
	require.NoError(t, err)

	state := newState()
	outcome := chain.RunPass(context.Background(), state, mergedFixture(state), 1)

	require.NotNil(t, outcome.Fatal)
	assert.True(t, core.IsCategory(outcome.Fatal, core.ErrCatGate))
	assert.Contains(t, outcome.Fatal.Error(), "fabricated citation")

	results := state.ValidationResults()
	require.Len(t, results, len(core.AllGates()))
	assert.Equal(t, core.VerdictFail, results[len(results)-1].Verdict)
}

func TestChain_GateErrorIsFatalConfiguration(t *testing.T) {
	gates := passGates()
	gates[core.GateCrossLayer] = gateFunc{
		name: "cross_layer",
		fn: func(_ context.Context, _ core.GateRequest) (core.GateDecision, error) {
			return core.GateDecision{}, errors.New("connection refused")
		},
	}
	chain, err := NewChain(gates, nil, nil)
	require.NoError(t, err)

	state := newState()
	outcome := chain.RunPass(context.Background(), state, mergedFixture(state), 1)

	require.NotNil(t, outcome.Fatal)
	assert.True(t, core.IsCategory(outcome.Fatal, core.ErrCatConfiguration))
	assert.Equal(t, core.CodeGateUnresponsive, outcome.Fatal.Code)
}

func TestChain_MalformedVerdictIsFatal(t *testing.T) {
	cases := []struct {
		name     string
		decision core.GateDecision
		code     string
	}{
		{
			name:     "unrecognized verdict",
			decision: core.GateDecision{Verdict: "maybe"},
			code:     core.CodeInvalidVerdict,
		},
		{
			name:     "retry without target",
			decision: core.GateDecision{Verdict: core.VerdictRetry, Reason: "redo"},
			code:     core.CodeInvalidVerdict,
		},
		{
			name: "retry targeting unknown producer",
			decision: core.GateDecision{
				Verdict: core.VerdictRetry,
				Target:  core.TargetProducer("weather"),
			},
			code: core.CodeUnknownProducer,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gates := passGates()
			gates[core.GateReportQuality] = gateFunc{
				name: "report_quality",
				fn: func(_ context.Context, _ core.GateRequest) (core.GateDecision, error) {
					return tc.decision, nil
				},
			}
			chain, err := NewChain(gates, nil, nil)
			require.NoError(t, err)

			state := newState()
			outcome := chain.RunPass(context.Background(), state, mergedFixture(state), 1)

			require.NotNil(t, outcome.Fatal)
			assert.True(t, core.IsCategory(outcome.Fatal, core.ErrCatConfiguration))
			assert.Equal(t, tc.code, outcome.Fatal.Code)
		})
	}
}

func TestChain_ExhaustedGateBudgetDowngrades(t *testing.T) {
	gates := passGates()
	gates[core.GateCrossLayer] = gateFunc{
		name: "cross_layer",
		fn: func(_ context.Context, _ core.GateRequest) (core.GateDecision, error) {
			return core.GateDecision{
				Verdict: core.VerdictRetry,
				Target:  core.TargetProducer(core.ProducerMarket),
				Reason:  "numbers disagree",
			}, nil
		},
	}
	chain, err := NewChain(gates, nil, nil)
	require.NoError(t, err)

	state := newState()
	// Spend the gate budget up front.
	for state.Budget().ConsumeGate(core.GateCrossLayer) {
	}

	outcome := chain.RunPass(context.Background(), state, mergedFixture(state), 1)

	// The downgraded retry does not stop the pass.
	assert.Nil(t, outcome.Retry)
	assert.Nil(t, outcome.Fatal)
	require.NotEmpty(t, state.Warnings())
	assert.Contains(t, state.Warnings()[0], "cross_layer")

	results := state.ValidationResults()
	require.Len(t, results, len(core.AllGates()))
	assert.Equal(t, core.VerdictPass, results[0].Verdict)
	assert.True(t, results[0].Downgraded())
	assert.Equal(t, 0, state.Budget().ProducerUsed(core.ProducerMarket))
}

func TestChain_ExhaustedProducerBudgetDowngrades(t *testing.T) {
	gates := passGates()
	gates[core.GateHallucination] = gateFunc{
		name: "hallucination",
		fn: func(_ context.Context, _ core.GateRequest) (core.GateDecision, error) {
			return core.GateDecision{
				Verdict: core.VerdictRetry,
				Target:  core.TargetProducer(core.ProducerOEM),
				Reason:  "unverifiable model claims",
			}, nil
		},
	}
	chain, err := NewChain(gates, nil, nil)
	require.NoError(t, err)

	state := newState()
	for state.Budget().ConsumeProducer(core.ProducerOEM) {
	}

	outcome := chain.RunPass(context.Background(), state, mergedFixture(state), 1)

	assert.Nil(t, outcome.Retry)
	assert.Nil(t, outcome.Fatal)
	require.NotEmpty(t, state.Warnings())
	assert.Contains(t, state.Warnings()[0], "oem")
	assert.Equal(t, 0, state.Budget().GateUsed(core.GateHallucination))
}

func TestChain_TargetAllRetriesOnlyBudgetedProducers(t *testing.T) {
	gates := passGates()
	gates[core.GateCrossLayer] = gateFunc{
		name: "cross_layer",
		fn: func(_ context.Context, _ core.GateRequest) (core.GateDecision, error) {
			return core.GateDecision{
				Verdict: core.VerdictRetry,
				Target:  core.TargetAll(),
				Reason:  "layers are inconsistent across the board",
			}, nil
		},
	}
	chain, err := NewChain(gates, nil, nil)
	require.NoError(t, err)

	state := newState()
	for state.Budget().ConsumeProducer(core.ProducerSupply) {
	}
	for state.Budget().ConsumeProducer(core.ProducerFinance) {
	}

	outcome := chain.RunPass(context.Background(), state, mergedFixture(state), 1)

	require.NotNil(t, outcome.Retry)
	assert.ElementsMatch(t, []core.Producer{
		core.ProducerMarket, core.ProducerPolicy, core.ProducerOEM,
	}, outcome.Retry.Targets)
}
