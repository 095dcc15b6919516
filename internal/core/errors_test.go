package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Matching(t *testing.T) {
	cause := fmt.Errorf("context deadline exceeded")
	err := ErrProducerTimeout(ProducerSupply, cause)

	if !IsRetryable(err) {
		t.Fatalf("producer timeout must be retryable at the workflow level")
	}
	if GetCategory(err) != ErrCatTimeout {
		t.Fatalf("expected timeout category, got %s", GetCategory(err))
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected unwrap to reach the cause")
	}

	wrapped := fmt.Errorf("dispatch: %w", err)
	if !IsCategory(wrapped, ErrCatTimeout) {
		t.Fatalf("category must survive wrapping")
	}
}

func TestDomainError_FatalKinds(t *testing.T) {
	fatal := ErrGateFatal(GateHallucination, "fabricated citation")
	if IsRetryable(fatal) {
		t.Fatalf("fatal gate verdicts are never retryable")
	}

	conf := ErrConfiguration(CodeInvalidVerdict, "gate returned verdict \"maybe\"")
	if GetCategory(conf) != ErrCatConfiguration {
		t.Fatalf("expected configuration category")
	}

	if GetCategory(errors.New("plain")) != ErrCatInternal {
		t.Fatalf("plain errors default to internal category")
	}
}

func TestDomainError_Details(t *testing.T) {
	err := ErrBudgetExhausted("producer", "policy").WithDetail("used", 2)
	if err.Details["used"] != 2 {
		t.Fatalf("expected detail to be recorded")
	}
	if err.Error() == "" {
		t.Fatalf("expected formatted message")
	}
}
