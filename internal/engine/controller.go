package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
	"github.com/hugo-lorenzo-mato/evintel/internal/events"
	"github.com/hugo-lorenzo-mato/evintel/internal/logging"
)

// Controller is the stage controller: the only component that decides what
// runs next. It sequences Dispatch → Aggregate → Validate → Finalize/Abort
// over the transition table and encodes retry and abort policy. It never
// fails on its own; it only observes failures reported by the dispatcher
// and chain.
type Controller struct {
	dispatcher   *Dispatcher
	chain        *Chain
	compiler     core.ReportCompiler
	trace        core.TraceRecorder
	bus          *events.Bus
	logger       *logging.Logger
	allowPartial bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithTrace mirrors the audit trail to a trace recorder.
func WithTrace(t core.TraceRecorder) Option {
	return func(c *Controller) {
		if t != nil {
			c.trace = t
		}
	}
}

// WithBus publishes run events to the given bus.
func WithBus(b *events.Bus) Option {
	return func(c *Controller) { c.bus = b }
}

// WithLogger sets the controller logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithAllowPartial controls the policy for producers that end the run in
// failed status with no budget left: true finalizes with a warning naming
// the missing layer, false aborts.
func WithAllowPartial(allow bool) Option {
	return func(c *Controller) { c.allowPartial = allow }
}

// NewController creates the stage controller.
func NewController(dispatcher *Dispatcher, chain *Chain, compiler core.ReportCompiler, opts ...Option) *Controller {
	c := &Controller{
		dispatcher:   dispatcher,
		chain:        chain,
		compiler:     compiler,
		trace:        core.NopTrace{},
		logger:       logging.NewNop(),
		allowPartial: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run drives one request to a terminal stage. The returned snapshot is
// always non-nil; the error is non-nil exactly when the run aborted.
func (c *Controller) Run(ctx context.Context, state *core.RunState) (*core.RunSnapshot, error) {
	log := c.logger.WithRun(state.ID())

	if strings.TrimSpace(state.Input()) == "" {
		err := core.ErrValidation(core.CodeEmptyInput, "request input cannot be empty")
		return c.abort(state, log, err)
	}
	if len(state.Input()) > core.MaxInputLength {
		err := core.ErrValidation(core.CodeInputTooLong,
			fmt.Sprintf("request input exceeds %d bytes", core.MaxInputLength))
		return c.abort(state, log, err)
	}

	if err := c.trace.BeginRun(state.ID(), state.Input()); err != nil {
		log.Warn("trace begin failed", "error", err)
	}
	if c.bus != nil {
		c.bus.Publish(events.NewRunStartedEvent(state.ID(), state.Input()))
	}
	log.Info("run started", "max_passes", state.Budget().MaxPasses())

	c.advance(state, log, core.StageAnalysis, "run start")

	feedback := map[core.Producer][]string{}
	pass := 0

	for {
		targets := state.PendingProducers()
		if c.bus != nil {
			c.bus.Publish(events.NewDispatchRoundEvent(state.ID(), targets, pass+1))
		}
		log.Info("dispatching producers", "targets", producerNames(targets), "round", pass+1)

		if err := c.dispatcher.Dispatch(ctx, state, targets, feedback); err != nil {
			// Only parent cancellation reaches here; producer failures live
			// in their slots.
			derr := core.ErrState(core.CodeInvalidState, "run canceled").WithCause(err)
			return c.abort(state, log, derr)
		}
		for _, p := range targets {
			if terr := c.trace.RecordDispatch(state.ID(), p, state.Slot(p)); terr != nil {
				log.Warn("trace dispatch failed", "error", terr)
			}
		}

		c.advance(state, log, core.StageAggregation, "all targeted producers settled")
		merged := Merge(state)
		c.advance(state, log, core.StageValidation, "merge complete")

		pass++
		if pass > state.Budget().MaxPasses() {
			// The budget object makes this unreachable; treat it as a bug,
			// not a loop.
			derr := core.ErrState(core.CodeInvalidState,
				fmt.Sprintf("validation pass %d exceeds bound %d", pass, state.Budget().MaxPasses()))
			return c.abort(state, log, derr)
		}

		outcome := c.chain.RunPass(ctx, state, merged, pass)
		c.recordPassTrace(state, log, pass)

		if outcome.Fatal != nil {
			return c.abort(state, log, outcome.Fatal)
		}

		if outcome.Retry != nil {
			req := outcome.Retry
			feedback = map[core.Producer][]string{}
			for _, p := range req.Targets {
				if err := state.ResetSlot(p); err != nil {
					return c.abort(state, log, core.ErrState(core.CodeInvalidState, err.Error()))
				}
				feedback[p] = req.Feedback
			}
			c.advance(state, log, core.StageAnalysis,
				fmt.Sprintf("gate %s requested rework of %s", req.Gate, producerNames(req.Targets)))
			continue
		}

		// Full pass: finalize or abort on unrecoverable missing layers.
		return c.finalize(state, log, merged, pass)
	}
}

// finalize applies the partial-result policy, compiles the report, and
// reaches the terminal success stage.
func (c *Controller) finalize(state *core.RunState, log *logging.Logger, merged core.MergedView, passes int) (*core.RunSnapshot, error) {
	failed := state.FailedProducers()
	if len(failed) > 0 && !c.allowPartial {
		derr := core.ErrBudgetExhausted("producer", producerNames(failed)).
			WithDetail("policy", "allow_partial=false")
		return c.abort(state, log, derr)
	}
	for _, p := range failed {
		state.AddWarning(fmt.Sprintf("layer %s is missing from the final report: %s",
			p, state.Slot(p).LastError))
	}

	report := c.compiler.Compile(state.Snapshot(), merged)
	state.Finalize(report)

	reason := "all gates passed"
	if len(state.Warnings()) > 0 {
		reason = "finalized with warnings"
	}
	c.advance(state, log, core.StageFinalize, reason)

	if err := c.trace.EndRun(state.ID(), core.StageFinalize, reason); err != nil {
		log.Warn("trace end failed", "error", err)
	}
	if c.bus != nil {
		c.bus.PublishPriority(events.NewRunCompletedEvent(state.ID(), state.Warnings(), passes))
	}
	log.Info("run finalized", "passes", passes, "warnings", len(state.Warnings()))

	return state.Snapshot(), nil
}

// abort reaches the terminal failure stage and reports the fatal reason.
// The partial state snapshot is returned for diagnostics.
func (c *Controller) abort(state *core.RunState, log *logging.Logger, cause *core.DomainError) (*core.RunSnapshot, error) {
	state.SetAbortReason(cause.Error())
	if !core.TerminalStage(state.Stage()) {
		if state.Stage() == core.StageAggregation || state.Stage() == core.StageInit {
			// The table only aborts from analysis or validation; step
			// forward so the record stays table-shaped.
			c.advance(state, log, nextTowardAbort(state.Stage()), "abort pending")
		}
		c.advance(state, log, core.StageAborted, cause.Error())
	}

	if err := c.trace.EndRun(state.ID(), core.StageAborted, cause.Error()); err != nil {
		log.Warn("trace end failed", "error", err)
	}
	if c.bus != nil {
		c.bus.PublishPriority(events.NewRunAbortedEvent(state.ID(), cause.Error()))
	}
	log.Error("run aborted", "reason", cause.Error())

	return state.Snapshot(), cause
}

// advance moves the FSM and mirrors the stage record to observers. The
// transition table is authoritative; a refused transition is a programming
// error and is logged loudly rather than papered over.
func (c *Controller) advance(state *core.RunState, log *logging.Logger, to core.Stage, reason string) {
	if err := state.AdvanceStage(to, reason); err != nil {
		log.Error("illegal stage transition", "to", string(to), "error", err)
		return
	}
	hist := state.StageHistory()
	rec := hist[len(hist)-1]
	if terr := c.trace.RecordStage(state.ID(), rec); terr != nil {
		log.Warn("trace stage failed", "error", terr)
	}
	if c.bus != nil {
		c.bus.Publish(events.NewStageChangedEvent(state.ID(), rec))
	}
	log.Debug("stage advanced", "from", string(rec.From), "to", string(rec.To), "reason", reason)
}

// recordPassTrace mirrors the gate results of the pass that just ran.
func (c *Controller) recordPassTrace(state *core.RunState, log *logging.Logger, pass int) {
	for _, res := range state.ValidationResults() {
		if res.Pass != pass {
			continue
		}
		if err := c.trace.RecordGate(state.ID(), res); err != nil {
			log.Warn("trace gate failed", "error", err)
		}
	}
}

func producerNames(producers []core.Producer) string {
	names := make([]string, len(producers))
	for i, p := range producers {
		names[i] = p.String()
	}
	return strings.Join(names, ",")
}

func nextTowardAbort(s core.Stage) core.Stage {
	if s == core.StageInit {
		return core.StageAnalysis
	}
	return core.StageValidation
}
