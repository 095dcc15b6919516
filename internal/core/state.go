package core

import (
	"time"
)

// SlotStatus is the lifecycle state of one producer slot.
type SlotStatus string

const (
	SlotPending SlotStatus = "pending"
	SlotDone    SlotStatus = "done"
	SlotFailed  SlotStatus = "failed"
)

// Slot holds one producer's partition of run state. A slot transitions
// pending → done|failed exactly once per dispatch round; a retry round
// resets only the targeted slot back to pending.
type Slot struct {
	Status        SlotStatus    `json:"status"`
	Content       string        `json:"content,omitempty"`
	LastError     string        `json:"last_error,omitempty"`
	ErrorCategory ErrorCategory `json:"error_category,omitempty"`
	RetryCount    int           `json:"retry_count"`
	Dispatches    int           `json:"dispatches"`
	UpdatedAt     time.Time     `json:"updated_at,omitempty"`
}

// RunState is the partitioned shared record for a single run. It is created
// once per request and owned exclusively by the stage controller. The only
// permitted mutations are the methods below: producers write their own slot
// (through the dispatcher), the controller advances stage, appends
// validation results, and finalizes once.
//
// Slots are stored in a fixed array indexed by ProducerIndex so that the
// concurrent writers of one dispatch round touch disjoint memory; no lock is
// needed by construction. Everything else is single-threaded relative to the
// controller.
type RunState struct {
	id        string
	input     string
	createdAt time.Time

	slots [NumProducers]Slot

	stage        Stage
	stageHistory []StageRecord

	validationResults []GateResult

	budget *Budget

	warnings    []string
	finalized   bool
	finalReport string
	abortReason string
}

// NewRunState creates the shared state for one request.
func NewRunState(id, input string, budget *Budget) *RunState {
	if budget == nil {
		budget = NewBudget(2, 2)
	}
	s := &RunState{
		id:        id,
		input:     input,
		createdAt: time.Now(),
		stage:     StageInit,
		budget:    budget,
	}
	for i := range s.slots {
		s.slots[i] = Slot{Status: SlotPending}
	}
	return s
}

// ID returns the run identifier.
func (s *RunState) ID() string { return s.id }

// Input returns the original request text. Immutable after creation.
func (s *RunState) Input() string { return s.input }

// Stage returns the current FSM stage.
func (s *RunState) Stage() Stage { return s.stage }

// Budget returns the run's retry budget.
func (s *RunState) Budget() *Budget { return s.budget }

// Slot returns a copy of a producer's slot.
func (s *RunState) Slot(p Producer) Slot {
	idx := ProducerIndex(p)
	if idx < 0 {
		return Slot{}
	}
	return s.slots[idx]
}

// WriteSlot records a producer's result. Called by the dispatcher only, and
// only for the slot owned by the producer that did the work.
func (s *RunState) WriteSlot(p Producer, slot Slot) error {
	idx := ProducerIndex(p)
	if idx < 0 {
		return ErrState(CodeUnknownProducer, "unknown producer: "+string(p))
	}
	slot.UpdatedAt = time.Now()
	s.slots[idx] = slot
	return nil
}

// ResetSlot puts a targeted slot back to pending for a retry round. Prior
// content is kept so the producer can see what it wrote last time; the
// retry counter increments.
func (s *RunState) ResetSlot(p Producer) error {
	idx := ProducerIndex(p)
	if idx < 0 {
		return ErrState(CodeUnknownProducer, "unknown producer: "+string(p))
	}
	slot := s.slots[idx]
	slot.Status = SlotPending
	slot.LastError = ""
	slot.ErrorCategory = ""
	slot.RetryCount++
	slot.UpdatedAt = time.Now()
	s.slots[idx] = slot
	return nil
}

// PendingProducers returns the producers whose slot is pending, in canonical
// order. This is the target set for the next dispatch round.
func (s *RunState) PendingProducers() []Producer {
	var pending []Producer
	for _, p := range AllProducers() {
		if s.slots[ProducerIndex(p)].Status == SlotPending {
			pending = append(pending, p)
		}
	}
	return pending
}

// FailedProducers returns the producers whose slot is failed, in canonical
// order.
func (s *RunState) FailedProducers() []Producer {
	var failed []Producer
	for _, p := range AllProducers() {
		if s.slots[ProducerIndex(p)].Status == SlotFailed {
			failed = append(failed, p)
		}
	}
	return failed
}

// RoundSettled reports whether no slot is still pending, i.e. the dispatch
// join barrier may release.
func (s *RunState) RoundSettled() bool {
	return len(s.PendingProducers()) == 0
}

// AdvanceStage moves the FSM along the transition table, appending a stage
// record. Transitions outside the table are state errors.
func (s *RunState) AdvanceStage(to Stage, reason string) error {
	if !CanTransition(s.stage, to) {
		return ErrState(CodeInvalidState,
			"illegal stage transition "+string(s.stage)+" → "+string(to))
	}
	s.stageHistory = append(s.stageHistory, StageRecord{
		From:   s.stage,
		To:     to,
		Reason: reason,
		At:     time.Now(),
	})
	s.stage = to
	return nil
}

// StageHistory returns a copy of the stage-change records.
func (s *RunState) StageHistory() []StageRecord {
	out := make([]StageRecord, len(s.stageHistory))
	copy(out, s.stageHistory)
	return out
}

// AppendGateResult appends one gate execution to the audit history.
// The sequence is append-only; re-executions after retries append again.
func (s *RunState) AppendGateResult(r GateResult) {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	s.validationResults = append(s.validationResults, r)
}

// ValidationResults returns a copy of the full gate execution history.
func (s *RunState) ValidationResults() []GateResult {
	out := make([]GateResult, len(s.validationResults))
	copy(out, s.validationResults)
	return out
}

// AddWarning records an accumulated warning, e.g. a downgraded retry.
func (s *RunState) AddWarning(w string) {
	s.warnings = append(s.warnings, w)
}

// Warnings returns a copy of the accumulated warnings.
func (s *RunState) Warnings() []string {
	out := make([]string, len(s.warnings))
	copy(out, s.warnings)
	return out
}

// Finalize sets the final report. The first call wins; repeating the call on
// an already-finalized state is a no-op so the finalize step is idempotent.
func (s *RunState) Finalize(report string) {
	if s.finalized {
		return
	}
	s.finalized = true
	s.finalReport = report
}

// Finalized reports whether the final report has been set.
func (s *RunState) Finalized() bool { return s.finalized }

// FinalReport returns the final report, empty until finalized.
func (s *RunState) FinalReport() string { return s.finalReport }

// SetAbortReason records why the run aborted.
func (s *RunState) SetAbortReason(reason string) {
	if s.abortReason == "" {
		s.abortReason = reason
	}
}

// AbortReason returns the abort reason, empty unless aborted.
func (s *RunState) AbortReason() string { return s.abortReason }

// RunSnapshot is the immutable serializable view of a run, handed to the
// rendering sink, the HTTP API, and diagnostics.
type RunSnapshot struct {
	ID                string             `json:"id"`
	Input             string             `json:"input"`
	Stage             Stage              `json:"stage"`
	Slots             map[Producer]Slot  `json:"slots"`
	ValidationResults []GateResult       `json:"validation_results"`
	StageHistory      []StageRecord      `json:"stage_history"`
	Budget            BudgetSnapshot     `json:"budget"`
	Warnings          []string           `json:"warnings,omitempty"`
	Finalized         bool               `json:"finalized"`
	FinalReport       string             `json:"final_report,omitempty"`
	AbortReason       string             `json:"abort_reason,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	SnapshotAt        time.Time          `json:"snapshot_at"`
}

// Snapshot builds an immutable deep copy of the state. Call only from the
// controller's goroutine (the state owner).
func (s *RunState) Snapshot() *RunSnapshot {
	snap := &RunSnapshot{
		ID:                s.id,
		Input:             s.input,
		Stage:             s.stage,
		Slots:             make(map[Producer]Slot, NumProducers),
		ValidationResults: s.ValidationResults(),
		StageHistory:      s.StageHistory(),
		Budget:            s.budget.snapshot(),
		Warnings:          s.Warnings(),
		Finalized:         s.finalized,
		FinalReport:       s.finalReport,
		AbortReason:       s.abortReason,
		CreatedAt:         s.createdAt,
		SnapshotAt:        time.Now(),
	}
	for _, p := range AllProducers() {
		snap.Slots[p] = s.slots[ProducerIndex(p)]
	}
	return snap
}
