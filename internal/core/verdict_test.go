package core

import "testing"

func TestVerdict_Parse(t *testing.T) {
	for _, s := range []string{"pass", "retry", "fail"} {
		if _, err := ParseVerdict(s); err != nil {
			t.Fatalf("unexpected error parsing verdict %q: %v", s, err)
		}
	}
	if _, err := ParseVerdict("maybe"); err == nil {
		t.Fatalf("expected error parsing unrecognized verdict")
	}
}

func TestRetryTarget_Resolve(t *testing.T) {
	one := TargetProducer(ProducerOEM)
	if one.IsZero() {
		t.Fatalf("single target must not be zero")
	}
	if got := one.Producers(); len(got) != 1 || got[0] != ProducerOEM {
		t.Fatalf("expected oem target, got %v", got)
	}

	all := TargetAll()
	if got := all.Producers(); len(got) != NumProducers {
		t.Fatalf("expected full roster, got %v", got)
	}

	var none RetryTarget
	if !none.IsZero() || none.Producers() != nil {
		t.Fatalf("zero target must resolve to nothing")
	}
}

func TestGateResult_Downgraded(t *testing.T) {
	r := GateResult{Gate: GateCrossLayer, Verdict: VerdictPass, Target: TargetProducer(ProducerMarket)}
	if !r.Downgraded() {
		t.Fatalf("pass with a named target records a downgraded retry")
	}
	plain := GateResult{Gate: GateCrossLayer, Verdict: VerdictPass}
	if plain.Downgraded() {
		t.Fatalf("plain pass is not a downgrade")
	}
}
