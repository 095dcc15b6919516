package service

import (
	"context"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/hugo-lorenzo-mato/evintel/internal/adapters/state"
	"github.com/hugo-lorenzo-mato/evintel/internal/core"
	"github.com/hugo-lorenzo-mato/evintel/internal/engine"
	"github.com/hugo-lorenzo-mato/evintel/internal/logging"
)

// RunService launches orchestration runs and serves their stored snapshots.
// It is the seam between the transports (CLI, HTTP) and the engine: the
// engine owns one run, the service owns the fleet of them.
type RunService struct {
	controller *engine.Controller
	store      *state.Store
	logger     *logging.Logger

	budgetPerProducer int
	budgetPerGate     int

	mu     sync.RWMutex
	active map[string]*core.RunSnapshot
}

// NewRunService creates a run service.
func NewRunService(controller *engine.Controller, store *state.Store, logger *logging.Logger, budgetPerProducer, budgetPerGate int) *RunService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RunService{
		controller:        controller,
		store:             store,
		logger:            logger,
		budgetPerProducer: budgetPerProducer,
		budgetPerGate:     budgetPerGate,
		active:            make(map[string]*core.RunSnapshot),
	}
}

// RunSync drives one run to a terminal stage and persists the result. The
// returned error is the run's abort cause, if any; persistence failures are
// logged, not returned, because the run outcome stands on its own.
func (s *RunService) RunSync(ctx context.Context, input string) (*core.RunSnapshot, error) {
	id := uuid.NewString()
	runState := core.NewRunState(id, input, core.NewBudget(s.budgetPerProducer, s.budgetPerGate))

	snap, runErr := s.controller.Run(ctx, runState)
	if s.store != nil {
		if err := s.store.Render(ctx, snap); err != nil {
			s.logger.Warn("persisting run artifacts", "run_id", id, "error", err)
		}
	}
	return snap, runErr
}

// Start launches a run in the background and returns its ID immediately.
// The initial snapshot is persisted right away so the run is observable
// before it settles.
func (s *RunService) Start(ctx context.Context, input string) (string, error) {
	id := uuid.NewString()
	runState := core.NewRunState(id, input, core.NewBudget(s.budgetPerProducer, s.budgetPerGate))

	initial := runState.Snapshot()
	s.mu.Lock()
	s.active[id] = initial
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.Render(ctx, initial); err != nil {
			s.logger.Warn("persisting initial snapshot", "run_id", id, "error", err)
		}
	}

	go func() {
		// Detach from the request context: an HTTP client disconnecting must
		// not cancel the run it started.
		snap, runErr := s.controller.Run(context.Background(), runState)
		if runErr != nil {
			s.logger.Warn("run aborted", "run_id", id, "reason", runErr)
		}
		s.mu.Lock()
		s.active[id] = snap
		s.mu.Unlock()
		if s.store != nil {
			if err := s.store.Render(context.Background(), snap); err != nil {
				s.logger.Warn("persisting run artifacts", "run_id", id, "error", err)
			}
		}
	}()

	return id, nil
}

// Get returns a run's most recent snapshot, preferring the in-memory copy
// of a live run over the stored one.
func (s *RunService) Get(runID string) (*core.RunSnapshot, error) {
	s.mu.RLock()
	snap, ok := s.active[runID]
	s.mu.RUnlock()
	if ok {
		return snap, nil
	}
	if s.store == nil {
		return nil, core.ErrState(core.CodeInvalidState, "unknown run "+runID)
	}
	return s.store.Load(runID)
}

// Report returns the final report markdown of a finalized run.
func (s *RunService) Report(runID string) (string, error) {
	snap, err := s.Get(runID)
	if err != nil {
		return "", err
	}
	if !snap.Finalized {
		return "", core.ErrState(core.CodeInvalidState, "run "+runID+" has no final report")
	}
	if snap.FinalReport != "" {
		return snap.FinalReport, nil
	}
	if s.store == nil {
		return "", core.ErrState(core.CodeInvalidState, "run "+runID+" has no stored report")
	}
	data, err := os.ReadFile(s.store.ReportPath(runID))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// List returns the IDs of all known runs, live ones included.
func (s *RunService) List() ([]string, error) {
	seen := make(map[string]bool)
	var ids []string

	s.mu.RLock()
	for id := range s.active {
		seen[id] = true
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	if s.store != nil {
		stored, err := s.store.ListRuns()
		if err != nil {
			return nil, err
		}
		for _, id := range stored {
			if !seen[id] {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}
