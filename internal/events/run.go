package events

import (
	"github.com/hugo-lorenzo-mato/evintel/internal/core"
)

// Event type constants.
const (
	TypeRunStarted      = "run_started"
	TypeStageChanged    = "stage_changed"
	TypeDispatchRound   = "dispatch_round"
	TypeProducerStarted = "producer_started"
	TypeProducerSettled = "producer_settled"
	TypeGateEvaluated   = "gate_evaluated"
	TypeRunCompleted    = "run_completed"
	TypeRunAborted      = "run_aborted"
)

// RunStartedEvent signals a new run entering the controller.
type RunStartedEvent struct {
	BaseEvent
	Input string `json:"input"`
}

// NewRunStartedEvent creates a run started event.
func NewRunStartedEvent(runID, input string) RunStartedEvent {
	return RunStartedEvent{BaseEvent: NewBaseEvent(TypeRunStarted, runID), Input: input}
}

// StageChangedEvent mirrors one stage-change record.
type StageChangedEvent struct {
	BaseEvent
	From   core.Stage `json:"from"`
	To     core.Stage `json:"to"`
	Reason string     `json:"reason,omitempty"`
}

// NewStageChangedEvent creates a stage change event.
func NewStageChangedEvent(runID string, rec core.StageRecord) StageChangedEvent {
	return StageChangedEvent{
		BaseEvent: NewBaseEvent(TypeStageChanged, runID),
		From:      rec.From,
		To:        rec.To,
		Reason:    rec.Reason,
	}
}

// DispatchRoundEvent signals one fan-out round starting.
type DispatchRoundEvent struct {
	BaseEvent
	Targets []core.Producer `json:"targets"`
	Round   int             `json:"round"`
}

// NewDispatchRoundEvent creates a dispatch round event.
func NewDispatchRoundEvent(runID string, targets []core.Producer, round int) DispatchRoundEvent {
	return DispatchRoundEvent{
		BaseEvent: NewBaseEvent(TypeDispatchRound, runID),
		Targets:   targets,
		Round:     round,
	}
}

// ProducerStartedEvent signals one producer work call starting.
type ProducerStartedEvent struct {
	BaseEvent
	Producer core.Producer `json:"producer"`
	Attempt  int           `json:"attempt"`
}

// NewProducerStartedEvent creates a producer started event.
func NewProducerStartedEvent(runID string, p core.Producer, attempt int) ProducerStartedEvent {
	return ProducerStartedEvent{
		BaseEvent: NewBaseEvent(TypeProducerStarted, runID),
		Producer:  p,
		Attempt:   attempt,
	}
}

// ProducerSettledEvent signals one slot reaching done or failed.
type ProducerSettledEvent struct {
	BaseEvent
	Producer core.Producer   `json:"producer"`
	Status   core.SlotStatus `json:"status"`
	Error    string          `json:"error,omitempty"`
}

// NewProducerSettledEvent creates a producer settled event.
func NewProducerSettledEvent(runID string, p core.Producer, slot core.Slot) ProducerSettledEvent {
	return ProducerSettledEvent{
		BaseEvent: NewBaseEvent(TypeProducerSettled, runID),
		Producer:  p,
		Status:    slot.Status,
		Error:     slot.LastError,
	}
}

// GateEvaluatedEvent mirrors one appended gate result.
type GateEvaluatedEvent struct {
	BaseEvent
	Gate    core.Gate        `json:"gate"`
	Verdict core.Verdict     `json:"verdict"`
	Target  core.RetryTarget `json:"target,omitempty"`
	Pass    int              `json:"pass"`
}

// NewGateEvaluatedEvent creates a gate evaluated event.
func NewGateEvaluatedEvent(runID string, res core.GateResult) GateEvaluatedEvent {
	return GateEvaluatedEvent{
		BaseEvent: NewBaseEvent(TypeGateEvaluated, runID),
		Gate:      res.Gate,
		Verdict:   res.Verdict,
		Target:    res.Target,
		Pass:      res.Pass,
	}
}

// RunCompletedEvent signals terminal success (possibly with warnings).
type RunCompletedEvent struct {
	BaseEvent
	Warnings []string `json:"warnings,omitempty"`
	Passes   int      `json:"passes"`
}

// NewRunCompletedEvent creates a run completed event.
func NewRunCompletedEvent(runID string, warnings []string, passes int) RunCompletedEvent {
	return RunCompletedEvent{
		BaseEvent: NewBaseEvent(TypeRunCompleted, runID),
		Warnings:  warnings,
		Passes:    passes,
	}
}

// RunAbortedEvent signals terminal failure with the fatal reason.
type RunAbortedEvent struct {
	BaseEvent
	Reason string `json:"reason"`
}

// NewRunAbortedEvent creates a run aborted event.
func NewRunAbortedEvent(runID, reason string) RunAbortedEvent {
	return RunAbortedEvent{BaseEvent: NewBaseEvent(TypeRunAborted, runID), Reason: reason}
}
