package core

import (
	"fmt"
	"time"
)

// Stage represents a state of the run controller's state machine.
type Stage string

const (
	// StageInit is the initial state before dispatch starts.
	StageInit Stage = "init"

	// StageAnalysis runs the targeted producers concurrently.
	StageAnalysis Stage = "analysis"

	// StageAggregation merges producer slots into the composite view.
	StageAggregation Stage = "aggregation"

	// StageValidation drives the gate chain over the merged state.
	StageValidation Stage = "validation"

	// StageFinalize is the terminal success state; the final report is set
	// exactly when this stage is reached.
	StageFinalize Stage = "finalize"

	// StageAborted is the terminal failure state.
	StageAborted Stage = "aborted"
)

// stageTransitions is the complete transition table. "What runs next" is a
// pure function of (stage, verdicts, budgets); content never drives it.
var stageTransitions = map[Stage][]Stage{
	StageInit:        {StageAnalysis},
	StageAnalysis:    {StageAggregation, StageAborted},
	StageAggregation: {StageValidation},
	StageValidation:  {StageAnalysis, StageFinalize, StageAborted},
	StageFinalize:    {},
	StageAborted:     {},
}

// CanTransition reports whether the table permits moving from one stage to
// another.
func CanTransition(from, to Stage) bool {
	for _, next := range stageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TerminalStage reports whether a stage has no outgoing transitions.
func TerminalStage(s Stage) bool {
	return len(stageTransitions[s]) == 0
}

// ValidStage checks if a stage string is recognized.
func ValidStage(s Stage) bool {
	_, ok := stageTransitions[s]
	return ok
}

// ParseStage converts a string to a Stage with validation.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if !ValidStage(st) {
		return "", fmt.Errorf("invalid stage: %s", s)
	}
	return st, nil
}

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// StageRecord is appended to the run history on every transition.
type StageRecord struct {
	From   Stage     `json:"from"`
	To     Stage     `json:"to"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}
