package core

import (
	"fmt"
	"time"
)

// Verdict is the outcome a gate returns for one evaluation.
type Verdict string

const (
	// VerdictPass accepts the merged state; the chain proceeds to the next gate.
	VerdictPass Verdict = "pass"

	// VerdictRetry sends the targeted producer(s) back for rework. The chain
	// stops for this pass and restarts from the first gate on the next pass.
	VerdictRetry Verdict = "retry"

	// VerdictFail aborts the run. Nothing downstream runs.
	VerdictFail Verdict = "fail"
)

// ValidVerdict checks if a verdict is one of the three recognized values.
func ValidVerdict(v Verdict) bool {
	switch v {
	case VerdictPass, VerdictRetry, VerdictFail:
		return true
	default:
		return false
	}
}

// ParseVerdict converts a string to a Verdict with validation.
func ParseVerdict(s string) (Verdict, error) {
	v := Verdict(s)
	if !ValidVerdict(v) {
		return "", fmt.Errorf("invalid verdict: %s", s)
	}
	return v, nil
}

// String returns the string representation of the verdict.
func (v Verdict) String() string {
	return string(v)
}

// RetryTarget names the producer(s) a retry verdict sends back for rework.
// Either All is set, or Producer names exactly one role.
type RetryTarget struct {
	All      bool     `json:"all,omitempty"`
	Producer Producer `json:"producer,omitempty"`
}

// TargetProducer builds a single-producer retry target.
func TargetProducer(p Producer) RetryTarget {
	return RetryTarget{Producer: p}
}

// TargetAll builds a whole-roster retry target.
func TargetAll() RetryTarget {
	return RetryTarget{All: true}
}

// IsZero reports whether no target is named.
func (t RetryTarget) IsZero() bool {
	return !t.All && t.Producer == ""
}

// Producers resolves the target to the concrete producer set.
func (t RetryTarget) Producers() []Producer {
	if t.All {
		return AllProducers()
	}
	if t.Producer != "" {
		return []Producer{t.Producer}
	}
	return nil
}

// String returns a human-readable form of the target.
func (t RetryTarget) String() string {
	if t.All {
		return "all producers"
	}
	if t.Producer != "" {
		return t.Producer.String()
	}
	return "none"
}

// GateResult is one appended entry in the run's validation history. The
// sequence is append-only and includes re-executions after retries.
type GateResult struct {
	Gate     Gate        `json:"gate"`
	Verdict  Verdict     `json:"verdict"`
	Warnings []string    `json:"warnings,omitempty"`
	Target   RetryTarget `json:"target,omitempty"`
	Reason   string      `json:"reason,omitempty"`
	Pass     int         `json:"pass"`
	At       time.Time   `json:"at"`
}

// Downgraded reports whether this result records a retry request that was
// converted to pass-with-warning by budget exhaustion.
func (r GateResult) Downgraded() bool {
	return r.Verdict == VerdictPass && !r.Target.IsZero()
}
