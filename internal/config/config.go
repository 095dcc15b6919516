package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Agents   AgentsConfig   `mapstructure:"agents"`
	Store    StoreConfig    `mapstructure:"store"`
	Trace    TraceConfig    `mapstructure:"trace"`
	Server   ServerConfig   `mapstructure:"server"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// WorkflowConfig configures the orchestration run.
type WorkflowConfig struct {
	// MaxRetriesPerProducer bounds how many rework rounds one producer can
	// be sent through across the whole run.
	MaxRetriesPerProducer int `mapstructure:"max_retries_per_producer"`
	// MaxRetriesPerGate bounds how many retries one gate can request.
	MaxRetriesPerGate int `mapstructure:"max_retries_per_gate"`
	// ProducerTimeout bounds a single producer work call.
	ProducerTimeout time.Duration `mapstructure:"producer_timeout"`
	// AllowPartial finalizes with warnings when a producer layer is missing
	// after all retries; false aborts the run instead.
	AllowPartial bool `mapstructure:"allow_partial"`
	// DryRun replaces all collaborators with deterministic scripted ones.
	DryRun bool `mapstructure:"dry_run"`
}

// AgentsConfig configures the external collaborator commands, keyed by
// producer or gate name.
type AgentsConfig struct {
	Producers map[string]CommandConfig `mapstructure:"producers"`
	Gates     map[string]CommandConfig `mapstructure:"gates"`
}

// CommandConfig configures one collaborator command.
type CommandConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	WorkDir string   `mapstructure:"workdir"`
	Env     []string `mapstructure:"env"`
}

// StoreConfig configures run artifact persistence.
type StoreConfig struct {
	Dir string `mapstructure:"dir"`
}

// TraceConfig configures the audit trail database.
type TraceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}
