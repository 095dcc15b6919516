package agents

import (
	"github.com/hugo-lorenzo-mato/evintel/internal/core"
	"github.com/hugo-lorenzo-mato/evintel/internal/logging"
)

// BuildProducers assembles the full producer roster. Roles listed in cmds
// get exec clients; when dryRun is set every role is scripted regardless.
// A missing command for any role is a configuration error, surfaced here
// rather than at dispatch time.
func BuildProducers(cmds map[string]ExecConfig, dryRun bool, logger *logging.Logger) (map[core.Producer]core.ProducerClient, error) {
	clients := make(map[core.Producer]core.ProducerClient, core.NumProducers)
	for _, p := range core.AllProducers() {
		if dryRun {
			clients[p] = NewScriptedProducer(p)
			continue
		}
		cfg, ok := cmds[p.String()]
		if !ok {
			return nil, core.ErrConfiguration(core.CodeInvalidConfig,
				"no command configured for producer "+p.String())
		}
		client, err := NewExecProducer(p, cfg, logger)
		if err != nil {
			return nil, err
		}
		clients[p] = client
	}
	return clients, nil
}

// BuildGates assembles the full gate roster, mirroring BuildProducers.
func BuildGates(cmds map[string]ExecConfig, dryRun bool, logger *logging.Logger) (map[core.Gate]core.GateClient, error) {
	clients := make(map[core.Gate]core.GateClient, len(core.AllGates()))
	for _, g := range core.AllGates() {
		if dryRun {
			clients[g] = NewScriptedGate(g)
			continue
		}
		cfg, ok := cmds[g.String()]
		if !ok {
			return nil, core.ErrConfiguration(core.CodeInvalidConfig,
				"no command configured for gate "+g.String())
		}
		client, err := NewExecGate(g, cfg, logger)
		if err != nil {
			return nil, err
		}
		clients[g] = client
	}
	return clients, nil
}
