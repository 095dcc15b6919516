package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
	"github.com/hugo-lorenzo-mato/evintel/internal/events"
	"github.com/hugo-lorenzo-mato/evintel/internal/logging"
)

// Chain drives the fixed gate sequence over the merged state. Gates always
// run in the same order within a pass; the pass stops at the first retry or
// fail verdict, and after any retry the next pass restarts from the first
// gate so earlier approvals are re-validated against updated content.
type Chain struct {
	gates  map[core.Gate]core.GateClient
	logger *logging.Logger
	bus    *events.Bus
}

// NewChain creates a chain over the full gate roster.
func NewChain(gates map[core.Gate]core.GateClient, logger *logging.Logger, bus *events.Bus) (*Chain, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	for _, g := range core.AllGates() {
		if gates[g] == nil {
			return nil, core.ErrConfiguration(core.CodeInvalidConfig,
				"no client configured for gate "+g.String())
		}
	}
	return &Chain{gates: gates, logger: logger, bus: bus}, nil
}

// RetryRequest is the chain's instruction to loop work back to producers.
type RetryRequest struct {
	Gate     core.Gate
	Targets  []core.Producer
	Feedback []string
}

// PassOutcome is the result of one chain pass. Exactly one of the three
// shapes holds: clean pass (both nil), retry requested, or fatal.
type PassOutcome struct {
	Retry *RetryRequest
	Fatal *core.DomainError
}

// RunPass executes the chain once over the merged state. Budget policy is
// applied inline: a retry whose gate or producer budget is exhausted is
// downgraded to pass-with-warning and the chain keeps going, which is what
// converts repeated rejections into a terminating run.
func (c *Chain) RunPass(ctx context.Context, state *core.RunState, merged core.MergedView, pass int) PassOutcome {
	var history []core.GateResult

	for _, g := range core.AllGates() {
		log := c.logger.WithGate(g.String())

		decision, err := c.gates[g].Evaluate(ctx, core.GateRequest{
			Gate:    g,
			Pass:    pass,
			Merged:  merged,
			History: history,
		})
		if err != nil {
			// A collaborator that cannot produce a verdict is an upstream
			// configuration problem, fatal by policy.
			fatal := core.ErrConfiguration(core.CodeGateUnresponsive,
				"gate "+g.String()+" returned an error instead of a verdict").WithCause(err)
			c.append(state, &history, core.GateResult{
				Gate: g, Verdict: core.VerdictFail, Reason: fatal.Error(), Pass: pass,
			})
			return PassOutcome{Fatal: fatal}
		}

		if fatal := validateDecision(g, decision); fatal != nil {
			c.append(state, &history, core.GateResult{
				Gate: g, Verdict: core.VerdictFail, Reason: fatal.Error(), Pass: pass,
			})
			return PassOutcome{Fatal: fatal}
		}

		switch decision.Verdict {
		case core.VerdictPass:
			c.append(state, &history, core.GateResult{
				Gate: g, Verdict: core.VerdictPass, Warnings: decision.Warnings,
				Reason: decision.Reason, Pass: pass,
			})
			log.Debug("gate passed", "pass", pass)

		case core.VerdictFail:
			c.append(state, &history, core.GateResult{
				Gate: g, Verdict: core.VerdictFail, Warnings: decision.Warnings,
				Reason: decision.Reason, Pass: pass,
			})
			log.Error("gate failed fatally", "pass", pass, "reason", decision.Reason)
			return PassOutcome{Fatal: core.ErrGateFatal(g, decision.Reason)}

		case core.VerdictRetry:
			outcome, handled := c.handleRetry(state, &history, g, decision, pass)
			if handled {
				log.Info("gate requested retry",
					"pass", pass,
					"target", decision.Target.String(),
				)
				return outcome
			}
			// Budget exhausted: downgraded to pass-with-warning, keep going.
			log.Warn("retry downgraded to pass-with-warning",
				"pass", pass,
				"target", decision.Target.String(),
			)
		}
	}

	return PassOutcome{}
}

// handleRetry applies budget policy to a retry verdict. Returns the retry
// outcome and true when the retry proceeds; false when it was downgraded.
func (c *Chain) handleRetry(state *core.RunState, history *[]core.GateResult, g core.Gate, decision core.GateDecision, pass int) (PassOutcome, bool) {
	budget := state.Budget()

	if budget.GateExhausted(g) {
		warning := fmt.Sprintf("gate %s requested rework of %s but has exhausted its retry budget (%d)",
			g, decision.Target, budget.MaxPerGate())
		c.downgrade(state, history, g, decision, pass, warning)
		return PassOutcome{}, false
	}

	// Restrict the target set to producers that still have budget. A gate
	// targeting the whole roster retries whatever can still be reworked.
	var eligible []core.Producer
	var spent []string
	for _, p := range decision.Target.Producers() {
		if budget.ProducerExhausted(p) {
			spent = append(spent, p.String())
			continue
		}
		eligible = append(eligible, p)
	}
	if len(eligible) == 0 {
		warning := fmt.Sprintf("gate %s requested rework of %s but the producer retry budget (%d) is exhausted",
			g, strings.Join(spent, ", "), budget.MaxPerProducer())
		c.downgrade(state, history, g, decision, pass, warning)
		return PassOutcome{}, false
	}

	budget.ConsumeGate(g)
	for _, p := range eligible {
		budget.ConsumeProducer(p)
	}

	c.append(state, history, core.GateResult{
		Gate: g, Verdict: core.VerdictRetry, Warnings: decision.Warnings,
		Target: decision.Target, Reason: decision.Reason, Pass: pass,
	})

	feedback := decision.Warnings
	if decision.Reason != "" {
		feedback = append([]string{decision.Reason}, decision.Warnings...)
	}
	return PassOutcome{Retry: &RetryRequest{
		Gate:     g,
		Targets:  eligible,
		Feedback: feedback,
	}}, true
}

// downgrade records an exhausted retry as pass-with-warning. The target is
// kept on the result so the audit trail shows what was asked for.
func (c *Chain) downgrade(state *core.RunState, history *[]core.GateResult, g core.Gate, decision core.GateDecision, pass int, warning string) {
	state.AddWarning(warning)
	warnings := append(append([]string{}, decision.Warnings...), warning)
	c.append(state, history, core.GateResult{
		Gate: g, Verdict: core.VerdictPass, Warnings: warnings,
		Target: decision.Target, Reason: decision.Reason, Pass: pass,
	})
}

// append records a gate result on the state, the pass history, and the bus.
func (c *Chain) append(state *core.RunState, history *[]core.GateResult, res core.GateResult) {
	state.AppendGateResult(res)
	*history = append(*history, res)
	if c.bus != nil {
		c.bus.Publish(events.NewGateEvaluatedEvent(state.ID(), res))
	}
}

// validateDecision rejects malformed collaborator output. Unrecognized
// verdicts and retry verdicts without a target are fatal configuration
// errors, never coerced to a default.
func validateDecision(g core.Gate, d core.GateDecision) *core.DomainError {
	if !core.ValidVerdict(d.Verdict) {
		return core.ErrConfiguration(core.CodeInvalidVerdict,
			fmt.Sprintf("gate %s returned unrecognized verdict %q", g, string(d.Verdict)))
	}
	if d.Verdict == core.VerdictRetry {
		if d.Target.IsZero() {
			return core.ErrConfiguration(core.CodeInvalidVerdict,
				fmt.Sprintf("gate %s requested a retry without naming a target", g))
		}
		if !d.Target.All && !core.ValidProducer(d.Target.Producer) {
			return core.ErrConfiguration(core.CodeUnknownProducer,
				fmt.Sprintf("gate %s targeted unknown producer %q", g, string(d.Target.Producer)))
		}
	}
	return nil
}
