package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateWorkflow(&cfg.Workflow)
	v.validateAgents(cfg)
	v.validateStore(&cfg.Store)
	v.validateServer(&cfg.Server)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{Field: field, Value: value, Message: msg})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	switch cfg.Level {
	case "", "debug", "info", "warn", "error":
	default:
		v.addError("log.level", cfg.Level, "must be one of debug, info, warn, error")
	}
	switch cfg.Format {
	case "", "auto", "text", "json", "pretty":
	default:
		v.addError("log.format", cfg.Format, "must be one of auto, text, json, pretty")
	}
}

func (v *Validator) validateWorkflow(cfg *WorkflowConfig) {
	// Unbounded retries would defeat the termination guarantee; negative
	// values are rejected rather than silently clamped.
	if cfg.MaxRetriesPerProducer < 0 {
		v.addError("workflow.max_retries_per_producer", cfg.MaxRetriesPerProducer, "must be >= 0")
	}
	if cfg.MaxRetriesPerGate < 0 {
		v.addError("workflow.max_retries_per_gate", cfg.MaxRetriesPerGate, "must be >= 0")
	}
	if cfg.MaxRetriesPerProducer > 10 {
		v.addError("workflow.max_retries_per_producer", cfg.MaxRetriesPerProducer, "must be <= 10")
	}
	if cfg.MaxRetriesPerGate > 10 {
		v.addError("workflow.max_retries_per_gate", cfg.MaxRetriesPerGate, "must be <= 10")
	}
	if cfg.ProducerTimeout < 0 {
		v.addError("workflow.producer_timeout", cfg.ProducerTimeout, "must be >= 0")
	}
	if cfg.ProducerTimeout > 0 && cfg.ProducerTimeout < time.Second {
		v.addError("workflow.producer_timeout", cfg.ProducerTimeout, "must be at least 1s")
	}
}

func (v *Validator) validateAgents(cfg *Config) {
	if cfg.Workflow.DryRun {
		return
	}
	for _, p := range core.AllProducers() {
		cmd, ok := cfg.Agents.Producers[p.String()]
		if !ok || strings.TrimSpace(cmd.Command) == "" {
			v.addError("agents.producers."+p.String(), cmd.Command, "command is required")
		}
	}
	for _, g := range core.AllGates() {
		cmd, ok := cfg.Agents.Gates[g.String()]
		if !ok || strings.TrimSpace(cmd.Command) == "" {
			v.addError("agents.gates."+g.String(), cmd.Command, "command is required")
		}
	}
	for name := range cfg.Agents.Producers {
		if !core.ValidProducer(core.Producer(name)) {
			v.addError("agents.producers."+name, name, "unknown producer role")
		}
	}
	for name := range cfg.Agents.Gates {
		if !core.ValidGate(core.Gate(name)) {
			v.addError("agents.gates."+name, name, "unknown gate")
		}
	}
}

func (v *Validator) validateStore(cfg *StoreConfig) {
	if strings.TrimSpace(cfg.Dir) == "" {
		v.addError("store.dir", cfg.Dir, "directory is required")
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if strings.TrimSpace(cfg.Addr) == "" {
		v.addError("server.addr", cfg.Addr, "listen address is required")
	}
}
