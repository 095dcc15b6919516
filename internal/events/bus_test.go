package events

import (
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
)

func TestBus_PublishToMatchingSubscribers(t *testing.T) {
	bus := New(10)
	defer bus.Close()

	all := bus.Subscribe()
	gatesOnly := bus.Subscribe(TypeGateEvaluated)

	bus.Publish(NewRunStartedEvent("run-1", "input"))
	bus.Publish(NewStageChangedEvent("run-1", core.StageRecord{From: core.StageInit, To: core.StageAnalysis}))

	select {
	case ev := <-all:
		if ev.EventType() != TypeRunStarted {
			t.Fatalf("expected run_started first, got %s", ev.EventType())
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}

	select {
	case ev := <-gatesOnly:
		t.Fatalf("filtered subscriber received %s", ev.EventType())
	default:
	}
}

func TestBus_RingBufferDropsOldest(t *testing.T) {
	bus := New(1)
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Publish(NewRunStartedEvent("run-1", "a"))
	bus.Publish(NewRunAbortedEvent("run-1", "fatal"))

	ev := <-ch
	if ev.EventType() != TypeRunAborted {
		t.Fatalf("expected newest event to survive, got %s", ev.EventType())
	}
	if bus.DroppedCount() == 0 {
		t.Fatalf("expected dropped count to increase")
	}
}

func TestBus_PriorityNeverDrops(t *testing.T) {
	bus := New(1)
	defer bus.Close()

	ch := bus.SubscribePriority()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			bus.PublishPriority(NewRunCompletedEvent("run-1", nil, 1))
		}
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("priority event %d not delivered", i)
		}
	}
	<-done
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	bus := New(4)
	ch := bus.Subscribe()
	bus.Close()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	// Publishing after close must not panic.
	bus.Publish(NewRunStartedEvent("run-1", "late"))
}
