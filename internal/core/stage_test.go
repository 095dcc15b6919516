package core

import "testing"

func TestStage_TransitionTable(t *testing.T) {
	allowed := []struct {
		from, to Stage
	}{
		{StageInit, StageAnalysis},
		{StageAnalysis, StageAggregation},
		{StageAnalysis, StageAborted},
		{StageAggregation, StageValidation},
		{StageValidation, StageAnalysis},
		{StageValidation, StageFinalize},
		{StageValidation, StageAborted},
	}
	for _, tr := range allowed {
		if !CanTransition(tr.from, tr.to) {
			t.Fatalf("expected %s → %s to be allowed", tr.from, tr.to)
		}
	}

	forbidden := []struct {
		from, to Stage
	}{
		{StageInit, StageValidation},
		{StageInit, StageFinalize},
		{StageAggregation, StageAnalysis},
		{StageAggregation, StageAborted},
		{StageFinalize, StageAnalysis},
		{StageAborted, StageAnalysis},
		{StageFinalize, StageAborted},
	}
	for _, tr := range forbidden {
		if CanTransition(tr.from, tr.to) {
			t.Fatalf("expected %s → %s to be forbidden", tr.from, tr.to)
		}
	}
}

func TestStage_Terminal(t *testing.T) {
	if !TerminalStage(StageFinalize) {
		t.Fatalf("expected finalize to be terminal")
	}
	if !TerminalStage(StageAborted) {
		t.Fatalf("expected aborted to be terminal")
	}
	if TerminalStage(StageValidation) {
		t.Fatalf("expected validation to be non-terminal")
	}
}

func TestStage_Parse(t *testing.T) {
	s, err := ParseStage("validation")
	if err != nil {
		t.Fatalf("unexpected error parsing stage: %v", err)
	}
	if s != StageValidation {
		t.Fatalf("expected validation stage, got %s", s)
	}
	if _, err := ParseStage("limbo"); err == nil {
		t.Fatalf("expected error parsing invalid stage")
	}
}
