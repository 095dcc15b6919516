package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newState() *core.RunState {
	return core.NewRunState("run-1", "EV demand outlook", core.NewBudget(2, 2))
}

func TestDispatcher_RequiresFullRoster(t *testing.T) {
	clients := okProducers()
	delete(clients, core.ProducerOEM)

	_, err := NewDispatcher(clients, time.Second, nil, nil)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatConfiguration))
}

func TestDispatcher_NegativeTimeoutRejected(t *testing.T) {
	_, err := NewDispatcher(okProducers(), -time.Second, nil, nil)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatConfiguration))

	var domErr *core.DomainError
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, core.CodeInvalidTimeout, domErr.Code)

	// Zero still selects the default rather than erroring.
	d, err := NewDispatcher(okProducers(), 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultProducerTimeout, d.timeout)
}

func TestDispatcher_ProducersRunConcurrently(t *testing.T) {
	// Every producer blocks until all five have started. A sequential
	// dispatcher would deadlock here; the per-producer timeout turns that
	// into a visible failure instead.
	var started sync.WaitGroup
	started.Add(core.NumProducers)

	clients := make(map[core.Producer]core.ProducerClient)
	for _, p := range core.AllProducers() {
		clients[p] = producerFunc{
			name: p.String(),
			fn: func(_ context.Context, req core.ProducerRequest) (core.ProducerResult, error) {
				started.Done()
				started.Wait()
				return core.ProducerResult{Content: req.Producer.String()}, nil
			},
		}
	}

	d, err := NewDispatcher(clients, 5*time.Second, nil, nil)
	require.NoError(t, err)

	state := newState()
	require.NoError(t, d.Dispatch(context.Background(), state, core.AllProducers(), nil))

	require.True(t, state.RoundSettled())
	for _, p := range core.AllProducers() {
		assert.Equal(t, core.SlotDone, state.Slot(p).Status)
	}
}

func TestDispatcher_TimeoutRecordedAsFailed(t *testing.T) {
	clients := okProducers()
	clients[core.ProducerSupply] = producerFunc{
		name: "supply",
		fn: func(ctx context.Context, _ core.ProducerRequest) (core.ProducerResult, error) {
			<-ctx.Done()
			return core.ProducerResult{}, ctx.Err()
		},
	}

	d, err := NewDispatcher(clients, 50*time.Millisecond, nil, nil)
	require.NoError(t, err)

	state := newState()
	require.NoError(t, d.Dispatch(context.Background(), state, core.AllProducers(), nil))

	// The stuck producer is failed with a timeout-kind error...
	slot := state.Slot(core.ProducerSupply)
	assert.Equal(t, core.SlotFailed, slot.Status)
	assert.Equal(t, core.ErrCatTimeout, slot.ErrorCategory)
	assert.NotEmpty(t, slot.LastError)

	// ...and did not block the other producers in the round.
	for _, p := range core.AllProducers() {
		if p == core.ProducerSupply {
			continue
		}
		assert.Equal(t, core.SlotDone, state.Slot(p).Status, "producer %s", p)
	}
}

func TestDispatcher_ErrorRecordedInOwnSlot(t *testing.T) {
	clients := okProducers()
	clients[core.ProducerFinance] = producerFunc{
		name: "finance",
		fn: func(_ context.Context, _ core.ProducerRequest) (core.ProducerResult, error) {
			return core.ProducerResult{}, errors.New("upstream 500")
		},
	}

	d, err := NewDispatcher(clients, time.Second, nil, nil)
	require.NoError(t, err)

	state := newState()
	require.NoError(t, d.Dispatch(context.Background(), state, core.AllProducers(), nil))

	slot := state.Slot(core.ProducerFinance)
	assert.Equal(t, core.SlotFailed, slot.Status)
	assert.Equal(t, core.ErrCatExecution, slot.ErrorCategory)
	assert.Contains(t, slot.LastError, "upstream 500")
}

func TestDispatcher_RetryRoundSeesPriorContentAndFeedback(t *testing.T) {
	var mu sync.Mutex
	var gotPrior string
	var gotFeedback []string
	var gotAttempt int

	clients := okProducers()
	clients[core.ProducerPolicy] = producerFunc{
		name: "policy",
		fn: func(_ context.Context, req core.ProducerRequest) (core.ProducerResult, error) {
			mu.Lock()
			gotPrior = req.PriorContent
			gotFeedback = req.Feedback
			gotAttempt = req.Attempt
			mu.Unlock()
			return core.ProducerResult{Content: "revised policy notes"}, nil
		},
	}

	d, err := NewDispatcher(clients, time.Second, nil, nil)
	require.NoError(t, err)

	state := newState()
	require.NoError(t, d.Dispatch(context.Background(), state, core.AllProducers(), nil))
	require.NoError(t, state.ResetSlot(core.ProducerPolicy))

	feedback := map[core.Producer][]string{
		core.ProducerPolicy: {"cite the incentive change explicitly"},
	}
	require.NoError(t, d.Dispatch(context.Background(), state, []core.Producer{core.ProducerPolicy}, feedback))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, gotAttempt)
	assert.Equal(t, "revised policy notes", gotPrior)
	assert.Equal(t, []string{"cite the incentive change explicitly"}, gotFeedback)
}

func TestDispatcher_UnknownTargetRejected(t *testing.T) {
	d, err := NewDispatcher(okProducers(), time.Second, nil, nil)
	require.NoError(t, err)

	err = d.Dispatch(context.Background(), newState(), []core.Producer{"weather"}, nil)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatConfiguration))
}
