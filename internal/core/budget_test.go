package core

import "testing"

func TestBudget_ProducerCounters(t *testing.T) {
	b := NewBudget(2, 3)

	if b.ProducerExhausted(ProducerPolicy) {
		t.Fatalf("fresh budget should not be exhausted")
	}
	if !b.ConsumeProducer(ProducerPolicy) {
		t.Fatalf("first consume should succeed")
	}
	if !b.ConsumeProducer(ProducerPolicy) {
		t.Fatalf("second consume should succeed")
	}
	if b.ConsumeProducer(ProducerPolicy) {
		t.Fatalf("third consume should be refused at max 2")
	}
	if got := b.ProducerUsed(ProducerPolicy); got != 2 {
		t.Fatalf("counter must never exceed max: got %d", got)
	}
	if !b.ProducerExhausted(ProducerPolicy) {
		t.Fatalf("expected policy budget exhausted")
	}

	// Other producers are independent.
	if b.ProducerExhausted(ProducerMarket) {
		t.Fatalf("market budget should be untouched")
	}
}

func TestBudget_GateCounters(t *testing.T) {
	b := NewBudget(2, 1)

	if !b.ConsumeGate(GateCrossLayer) {
		t.Fatalf("first gate consume should succeed")
	}
	if b.ConsumeGate(GateCrossLayer) {
		t.Fatalf("second gate consume should be refused at max 1")
	}
	if b.GateUsed(GateCrossLayer) != 1 {
		t.Fatalf("gate counter must not exceed max")
	}
	if b.GateExhausted(GateCrossLayer) != true {
		t.Fatalf("expected gate budget exhausted")
	}
	if b.GateExhausted(GateHallucination) {
		t.Fatalf("other gate budgets are independent")
	}
}

func TestBudget_ZeroMaxMeansNoRetries(t *testing.T) {
	b := NewBudget(0, 0)
	if b.ConsumeProducer(ProducerOEM) {
		t.Fatalf("zero budget must refuse retries")
	}
	if b.ConsumeGate(GateHallucination) {
		t.Fatalf("zero budget must refuse gate retries")
	}
	if b.MaxPasses() != 1 {
		t.Fatalf("zero retries bounds the run to one pass, got %d", b.MaxPasses())
	}
}

func TestBudget_MaxPasses(t *testing.T) {
	b := NewBudget(2, 5)
	want := 2*NumProducers + 1
	if b.MaxPasses() != want {
		t.Fatalf("expected max passes %d, got %d", want, b.MaxPasses())
	}
}

func TestBudget_Snapshot(t *testing.T) {
	b := NewBudget(3, 3)
	b.ConsumeProducer(ProducerFinance)
	b.ConsumeGate(GateReportQuality)

	snap := b.snapshot()
	if snap.ProducerUsed[ProducerFinance] != 1 || snap.GateUsed[GateReportQuality] != 1 {
		t.Fatalf("snapshot missing counters: %+v", snap)
	}

	// Snapshot is a copy, not a view.
	snap.ProducerUsed[ProducerFinance] = 99
	if b.ProducerUsed(ProducerFinance) != 1 {
		t.Fatalf("mutating snapshot must not touch budget")
	}
}
