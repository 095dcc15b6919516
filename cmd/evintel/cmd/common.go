package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/evintel/internal/adapters/agents"
	"github.com/hugo-lorenzo-mato/evintel/internal/adapters/state"
	"github.com/hugo-lorenzo-mato/evintel/internal/adapters/trace"
	"github.com/hugo-lorenzo-mato/evintel/internal/config"
	"github.com/hugo-lorenzo-mato/evintel/internal/core"
	"github.com/hugo-lorenzo-mato/evintel/internal/engine"
	"github.com/hugo-lorenzo-mato/evintel/internal/events"
	"github.com/hugo-lorenzo-mato/evintel/internal/logging"
	"github.com/hugo-lorenzo-mato/evintel/internal/report"
	"github.com/hugo-lorenzo-mato/evintel/internal/service"
)

// loadConfig loads and validates configuration, honoring the global flags.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader = loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the application logger from config.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	out := os.Stderr
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		out = f
	}
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: out,
	}), nil
}

// runtime bundles the wired components a command needs to drive runs.
type runtime struct {
	cfg      *config.Config
	logger   *logging.Logger
	bus      *events.Bus
	recorder *trace.SQLiteRecorder
	runs     *service.RunService
}

// close releases resources owned by the runtime.
func (rt *runtime) close() {
	if rt.recorder != nil {
		_ = rt.recorder.Close()
	}
	if rt.bus != nil {
		rt.bus.Close()
	}
}

// buildRuntime wires adapters, engine, and service from config.
func buildRuntime(cfg *config.Config, dryRun bool) (*runtime, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	bus := events.New(256)

	producers, err := agents.BuildProducers(commandMap(cfg.Agents.Producers), dryRun, logger)
	if err != nil {
		return nil, err
	}
	gates, err := agents.BuildGates(commandMap(cfg.Agents.Gates), dryRun, logger)
	if err != nil {
		return nil, err
	}

	dispatcher, err := engine.NewDispatcher(producers, cfg.Workflow.ProducerTimeout, logger, bus)
	if err != nil {
		return nil, err
	}
	chain, err := engine.NewChain(gates, logger, bus)
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{
		engine.WithBus(bus),
		engine.WithLogger(logger),
		engine.WithAllowPartial(cfg.Workflow.AllowPartial),
	}

	var recorder *trace.SQLiteRecorder
	if cfg.Trace.Enabled {
		recorder, err = trace.NewSQLiteRecorder(cfg.Trace.Path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithTrace(recorder))
	}

	controller := engine.NewController(dispatcher, chain, report.NewCompiler(), opts...)
	store := state.NewStore(cfg.Store.Dir)
	runs := service.NewRunService(controller, store, logger,
		cfg.Workflow.MaxRetriesPerProducer, cfg.Workflow.MaxRetriesPerGate)

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		bus:      bus,
		recorder: recorder,
		runs:     runs,
	}, nil
}

func commandMap(cmds map[string]config.CommandConfig) map[string]agents.ExecConfig {
	out := make(map[string]agents.ExecConfig, len(cmds))
	for name, c := range cmds {
		out[name] = agents.ExecConfig{
			Command: c.Command,
			Args:    c.Args,
			WorkDir: c.WorkDir,
			Env:     c.Env,
		}
	}
	return out
}

func stageLabel(s core.Stage) string {
	return string(s)
}
