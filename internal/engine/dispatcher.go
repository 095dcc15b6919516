package engine

import (
	"context"
	"errors"
	"time"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
	"github.com/hugo-lorenzo-mato/evintel/internal/events"
	"github.com/hugo-lorenzo-mato/evintel/internal/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultProducerTimeout bounds one producer work call.
const DefaultProducerTimeout = 5 * time.Minute

// Dispatcher fans one analysis round out to the targeted producers and
// blocks on the join barrier until every target settles. Producer failures
// and timeouts are recorded in the producer's own slot, never propagated as
// errors; the only error Dispatch returns is parent context cancellation.
type Dispatcher struct {
	clients map[core.Producer]core.ProducerClient
	timeout time.Duration
	logger  *logging.Logger
	bus     *events.Bus
}

// NewDispatcher creates a dispatcher over the full producer roster. Every
// producer must have a client; the set is closed and known up front. A zero
// timeout selects the default; a negative one is a configuration error.
func NewDispatcher(clients map[core.Producer]core.ProducerClient, timeout time.Duration, logger *logging.Logger, bus *events.Bus) (*Dispatcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if timeout < 0 {
		return nil, core.ErrConfiguration(core.CodeInvalidTimeout,
			"producer timeout must not be negative: "+timeout.String())
	}
	if timeout == 0 {
		timeout = DefaultProducerTimeout
	}
	for _, p := range core.AllProducers() {
		if clients[p] == nil {
			return nil, core.ErrConfiguration(core.CodeInvalidConfig,
				"no client configured for producer "+p.String())
		}
	}
	return &Dispatcher{
		clients: clients,
		timeout: timeout,
		logger:  logger,
		bus:     bus,
	}, nil
}

// Dispatch runs the targeted producers concurrently and returns only after
// all of them report done or failed. Each producer call sees the original
// input plus its own prior slot content and feedback; it writes exclusively
// to its own slot (disjoint array indices, so no lock is needed).
func (d *Dispatcher) Dispatch(ctx context.Context, state *core.RunState, targets []core.Producer, feedback map[core.Producer][]string) error {
	for _, p := range targets {
		if !core.ValidProducer(p) {
			return core.ErrConfiguration(core.CodeInvalidConfig,
				"dispatch target is not a known producer: "+p.String())
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range targets {
		g.Go(func() error {
			d.runProducer(gctx, state, p, feedback[p])
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return nil
}

// runProducer executes one work call and settles the producer's slot. A slow
// producer delays only the join, bounded by the per-producer timeout; it
// never blocks the other producers in the round.
func (d *Dispatcher) runProducer(ctx context.Context, state *core.RunState, p core.Producer, feedback []string) {
	prior := state.Slot(p)
	attempt := prior.Dispatches + 1
	log := d.logger.WithProducer(p.String())

	if d.bus != nil {
		d.bus.Publish(events.NewProducerStartedEvent(state.ID(), p, attempt))
	}
	log.Debug("producer dispatched", "attempt", attempt)

	pctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	started := time.Now()
	result, err := d.clients[p].Produce(pctx, core.ProducerRequest{
		Producer:     p,
		Input:        state.Input(),
		Attempt:      attempt,
		PriorContent: prior.Content,
		Feedback:     feedback,
	})

	slot := prior
	slot.Dispatches = attempt
	if err != nil {
		derr := classifyProducerErr(p, err, pctx)
		slot.Status = core.SlotFailed
		slot.LastError = derr.Error()
		slot.ErrorCategory = derr.Category
		log.Warn("producer failed",
			"attempt", attempt,
			"category", string(derr.Category),
			"elapsed", time.Since(started),
			"error", err,
		)
	} else {
		slot.Status = core.SlotDone
		slot.Content = result.Content
		slot.LastError = ""
		slot.ErrorCategory = ""
		log.Info("producer done", "attempt", attempt, "elapsed", time.Since(started))
	}

	// The write is race-free by construction: this goroutine is the only
	// writer of this producer's slot index during the round.
	if werr := state.WriteSlot(p, slot); werr != nil {
		log.Error("writing slot", "error", werr)
		return
	}
	if d.bus != nil {
		d.bus.Publish(events.NewProducerSettledEvent(state.ID(), p, slot))
	}
}

// classifyProducerErr maps a collaborator failure onto the domain taxonomy.
// Deadline expiry is a timeout; everything else is a producer execution
// error. Both are retryable at the workflow level.
func classifyProducerErr(p core.Producer, err error, ctx context.Context) *core.DomainError {
	var derr *core.DomainError
	if errors.As(err, &derr) && derr.Category == core.ErrCatTimeout {
		return derr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.ErrProducerTimeout(p, err)
	}
	return core.ErrProducer(p, err)
}
