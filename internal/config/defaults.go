package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigYAML contains the default configuration YAML content,
// written by `evintel init`.
const DefaultConfigYAML = `# EV Market Intelligence configuration
#
# Values not specified here use sensible defaults.

log:
  level: info
  format: auto

workflow:
  # How many rework rounds one analysis role can be sent through per run.
  max_retries_per_producer: 2
  # How many retries one validation gate can request per run.
  max_retries_per_gate: 2
  # Bound on a single analysis call.
  producer_timeout: 5m
  # Finalize with warnings when a layer stays missing after all retries.
  allow_partial: true
  # Replace all collaborators with deterministic local stand-ins.
  dry_run: false

# External collaborator commands. Each command receives a JSON request on
# stdin and must print a JSON response on stdout. The role name is appended
# as the last argument.
agents:
  producers:
    market:  {command: evintel-agent, args: [produce]}
    policy:  {command: evintel-agent, args: [produce]}
    supply:  {command: evintel-agent, args: [produce]}
    oem:     {command: evintel-agent, args: [produce]}
    finance: {command: evintel-agent, args: [produce]}
  gates:
    cross_layer:    {command: evintel-agent, args: [evaluate]}
    report_quality: {command: evintel-agent, args: [evaluate]}
    hallucination:  {command: evintel-agent, args: [evaluate]}

store:
  dir: .evintel/runs

trace:
  enabled: true
  path: .evintel/trace.db

server:
  addr: 127.0.0.1:8780
  allowed_origins:
    - http://localhost:5173
`

// WriteDefault writes the default configuration to path. Refuses to clobber
// an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	// Guard against drift between the template and the Config struct.
	var probe map[string]any
	if err := yaml.Unmarshal([]byte(DefaultConfigYAML), &probe); err != nil {
		return fmt.Errorf("default config template is invalid yaml: %w", err)
	}

	return os.WriteFile(path, []byte(DefaultConfigYAML), 0o644)
}
