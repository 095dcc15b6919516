package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
	"github.com/hugo-lorenzo-mato/evintel/internal/logging"
)

// Exec adapters run an external analysis or validation command per call.
// The request is written as JSON on stdin and the response is read as JSON
// from stdout, so any language can implement a collaborator. Timeouts are
// owned by the engine and arrive through ctx.

// ExecConfig describes one external collaborator command.
type ExecConfig struct {
	// Command is the executable to run.
	Command string
	// Args are fixed arguments placed before the role name.
	Args []string
	// WorkDir is the working directory for the command. Empty means inherit.
	WorkDir string
	// Env holds extra KEY=VALUE pairs appended to the inherited environment.
	Env []string
}

// producerPayload is the stdin document for a producer command.
type producerPayload struct {
	Producer     string   `json:"producer"`
	Focus        string   `json:"focus"`
	Input        string   `json:"input"`
	Attempt      int      `json:"attempt"`
	PriorContent string   `json:"prior_content,omitempty"`
	Feedback     []string `json:"feedback,omitempty"`
}

// producerOutput is the stdout document expected from a producer command.
type producerOutput struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// gatePayload is the stdin document for a gate command.
type gatePayload struct {
	Gate    string                              `json:"gate"`
	Pass    int                                 `json:"pass"`
	Input   string                              `json:"input"`
	Layers  map[core.Producer]core.LayerContent `json:"layers"`
	History []core.GateResult                   `json:"history,omitempty"`
}

// gateOutput is the stdout document expected from a gate command.
type gateOutput struct {
	Verdict  string   `json:"verdict"`
	Warnings []string `json:"warnings,omitempty"`
	Target   string   `json:"target,omitempty"` // producer name or "all"
	Reason   string   `json:"reason,omitempty"`
}

// ExecProducer runs one producer role as an external command.
type ExecProducer struct {
	producer core.Producer
	cfg      ExecConfig
	logger   *logging.Logger
}

// NewExecProducer creates an exec-backed producer client.
func NewExecProducer(p core.Producer, cfg ExecConfig, logger *logging.Logger) (*ExecProducer, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, core.ErrConfiguration(core.CodeInvalidConfig,
			"producer "+p.String()+" has no command configured")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ExecProducer{producer: p, cfg: cfg, logger: logger.WithProducer(p.String())}, nil
}

// Name identifies the collaborator in logs.
func (e *ExecProducer) Name() string {
	return fmt.Sprintf("exec:%s:%s", e.producer, e.cfg.Command)
}

// Produce runs the command once and parses its output.
func (e *ExecProducer) Produce(ctx context.Context, req core.ProducerRequest) (core.ProducerResult, error) {
	payload := producerPayload{
		Producer:     req.Producer.String(),
		Focus:        req.Producer.Focus(),
		Input:        req.Input,
		Attempt:      req.Attempt,
		PriorContent: req.PriorContent,
		Feedback:     req.Feedback,
	}
	stdout, err := e.run(ctx, payload)
	if err != nil {
		return core.ProducerResult{}, err
	}
	return parseProducerOutput(stdout)
}

func (e *ExecProducer) run(ctx context.Context, payload any) ([]byte, error) {
	input, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	args := append(append([]string{}, e.cfg.Args...), e.producer.String())
	return runCommand(ctx, e.cfg, e.logger, args, input)
}

// parseProducerOutput decodes a producer command's stdout.
func parseProducerOutput(stdout []byte) (core.ProducerResult, error) {
	var out producerOutput
	if err := json.Unmarshal(bytes.TrimSpace(stdout), &out); err != nil {
		return core.ProducerResult{}, fmt.Errorf("parsing producer output: %w", err)
	}
	if out.Error != "" {
		return core.ProducerResult{}, fmt.Errorf("producer command reported: %s", out.Error)
	}
	if strings.TrimSpace(out.Content) == "" {
		return core.ProducerResult{}, fmt.Errorf("producer command returned empty content")
	}
	return core.ProducerResult{Content: out.Content}, nil
}

// ExecGate runs one validation gate as an external command.
type ExecGate struct {
	gate   core.Gate
	cfg    ExecConfig
	logger *logging.Logger
}

// NewExecGate creates an exec-backed gate client.
func NewExecGate(g core.Gate, cfg ExecConfig, logger *logging.Logger) (*ExecGate, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, core.ErrConfiguration(core.CodeInvalidConfig,
			"gate "+g.String()+" has no command configured")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ExecGate{gate: g, cfg: cfg, logger: logger.WithGate(g.String())}, nil
}

// Name identifies the collaborator in logs.
func (e *ExecGate) Name() string {
	return fmt.Sprintf("exec:%s:%s", e.gate, e.cfg.Command)
}

// Evaluate runs the command once and parses its decision. Parsing is strict:
// the engine treats any malformed decision as fatal, so nothing is coerced
// here either.
func (e *ExecGate) Evaluate(ctx context.Context, req core.GateRequest) (core.GateDecision, error) {
	payload := gatePayload{
		Gate:    req.Gate.String(),
		Pass:    req.Pass,
		Input:   req.Merged.Input,
		Layers:  req.Merged.Layers,
		History: req.History,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return core.GateDecision{}, fmt.Errorf("marshaling request: %w", err)
	}
	args := append(append([]string{}, e.cfg.Args...), e.gate.String())
	stdout, err := runCommand(ctx, e.cfg, e.logger, args, input)
	if err != nil {
		return core.GateDecision{}, err
	}
	return parseGateOutput(stdout)
}

// parseGateOutput decodes a gate command's stdout into a raw decision. The
// verdict and target strings are passed through untranslated; the engine
// validates them.
func parseGateOutput(stdout []byte) (core.GateDecision, error) {
	var out gateOutput
	if err := json.Unmarshal(bytes.TrimSpace(stdout), &out); err != nil {
		return core.GateDecision{}, fmt.Errorf("parsing gate output: %w", err)
	}
	decision := core.GateDecision{
		Verdict:  core.Verdict(out.Verdict),
		Warnings: out.Warnings,
		Reason:   out.Reason,
	}
	switch out.Target {
	case "":
	case "all":
		decision.Target = core.TargetAll()
	default:
		decision.Target = core.TargetProducer(core.Producer(out.Target))
	}
	return decision, nil
}

// runCommand executes one collaborator call. Stderr is captured and logged
// line by line; it never mixes into the JSON response on stdout.
func runCommand(ctx context.Context, cfg ExecConfig, logger *logging.Logger, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, cfg.Command, args...)
	cmd.Dir = cfg.WorkDir
	if len(cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), cfg.Env...)
	}
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	for _, line := range strings.Split(strings.TrimSpace(stderr.String()), "\n") {
		if line != "" {
			logger.Debug("collaborator stderr", "line", line)
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("running %s: %w: %s", cfg.Command, err, firstLine(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
