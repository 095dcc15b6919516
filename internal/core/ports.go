package core

import "context"

// Ports: contracts for the external collaborators the engine drives. The
// engine owns timeouts and failure policy; collaborators may be slow, fail,
// or return malformed results, and their internal retry logic is not ours.

// ProducerRequest carries everything a producer work call is allowed to see:
// the original input plus its own prior slot content and the feedback that
// triggered a retry. A producer never sees another producer's slot.
type ProducerRequest struct {
	Producer     Producer
	Input        string
	Attempt      int // 1-based dispatch round for this producer
	PriorContent string
	Feedback     []string
}

// ProducerResult is the structured output of a producer work call.
type ProducerResult struct {
	Content string
}

// ProducerClient is the content-generation collaborator for one analysis
// role. Any returned error is recorded as a failed slot; the engine applies
// its own per-producer timeout through ctx.
type ProducerClient interface {
	// Name returns the collaborator identifier for logs and diagnostics.
	Name() string

	// Produce runs the analysis work call.
	Produce(ctx context.Context, req ProducerRequest) (ProducerResult, error)
}

// LayerContent is one producer's contribution to the merged composite.
// A failed producer contributes an explicit absence marker, never a silent
// drop, so gates can detect missing layers.
type LayerContent struct {
	Content string `json:"content,omitempty"`
	Missing bool   `json:"missing,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MergedView is the deterministic composite over all producer slots, keyed
// by producer. Built only after the dispatch join barrier.
type MergedView struct {
	Input  string                    `json:"input"`
	Layers map[Producer]LayerContent `json:"layers"`
}

// MissingLayers returns the producers whose layer is absent, in canonical
// order.
func (m MergedView) MissingLayers() []Producer {
	var missing []Producer
	for _, p := range AllProducers() {
		if m.Layers[p].Missing {
			missing = append(missing, p)
		}
	}
	return missing
}

// GateRequest carries the full merged state plus the prior gates' results in
// the current pass.
type GateRequest struct {
	Gate    Gate
	Pass    int // 1-based validation pass
	Merged  MergedView
	History []GateResult // earlier gates, this pass only
}

// GateDecision is a gate collaborator's raw output before budget policy is
// applied. An unrecognized verdict or a missing retry target is a fatal
// configuration error, never coerced to a default.
type GateDecision struct {
	Verdict  Verdict     `json:"verdict"`
	Warnings []string    `json:"warnings,omitempty"`
	Target   RetryTarget `json:"target,omitempty"`
	Reason   string      `json:"reason,omitempty"`
}

// GateClient is the validation collaborator for one gate in the chain.
type GateClient interface {
	// Name returns the collaborator identifier for logs and diagnostics.
	Name() string

	// Evaluate judges the merged state. A returned error is fatal by policy.
	Evaluate(ctx context.Context, req GateRequest) (GateDecision, error)
}

// ReportCompiler assembles the human-facing report from the merged state.
type ReportCompiler interface {
	Compile(snap *RunSnapshot, merged MergedView) string
}

// RenderSink accepts the immutable final snapshot (or aborted summary) and
// produces the external document. Its failure does not change the run
// outcome; it is reported to the caller separately.
type RenderSink interface {
	Render(ctx context.Context, snap *RunSnapshot) error
}

// TraceRecorder mirrors the run's audit trail to external storage. All
// methods are best-effort; recording failures never affect the run.
type TraceRecorder interface {
	BeginRun(runID, input string) error
	RecordStage(runID string, rec StageRecord) error
	RecordDispatch(runID string, producer Producer, slot Slot) error
	RecordGate(runID string, res GateResult) error
	EndRun(runID string, stage Stage, reason string) error
}

// NopTrace is a TraceRecorder that records nothing.
type NopTrace struct{}

func (NopTrace) BeginRun(string, string) error               { return nil }
func (NopTrace) RecordStage(string, StageRecord) error       { return nil }
func (NopTrace) RecordDispatch(string, Producer, Slot) error { return nil }
func (NopTrace) RecordGate(string, GateResult) error         { return nil }
func (NopTrace) EndRun(string, Stage, string) error          { return nil }
