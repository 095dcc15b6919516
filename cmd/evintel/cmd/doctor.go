package cmd

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
	"github.com/hugo-lorenzo-mato/evintel/internal/diagnostics"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and collaborator commands",
	Long: `Doctor validates the configuration, verifies every configured producer
and gate command resolves on PATH, and reports host resources.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(_ *cobra.Command, _ []string) error {
	fmt.Println("Checking configuration...")
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  ✗ %v\n", err)
		return err
	}
	fmt.Println("  ✓ configuration valid")

	allOk := true
	if cfg.Workflow.DryRun {
		fmt.Println("  ○ dry run enabled, collaborator commands not required")
	} else {
		fmt.Println("\nChecking collaborator commands...")
		for _, p := range core.AllProducers() {
			allOk = checkCommand("producer "+p.String(), cfg.Agents.Producers[p.String()].Command) && allOk
		}
		for _, g := range core.AllGates() {
			allOk = checkCommand("gate "+g.String(), cfg.Agents.Gates[g.String()].Command) && allOk
		}
	}

	fmt.Println("\nHost resources:")
	res := diagnostics.CollectResources()
	fmt.Printf("  cpu:  %d cores\n", res.CPUCores)
	fmt.Printf("  mem:  %.0f/%.0f MB (%.0f%%)\n", res.MemUsedMB, res.MemTotalMB, res.MemPercent)
	fmt.Printf("  disk: %.0f/%.0f GB (%.0f%%)\n", res.DiskUsedGB, res.DiskTotalGB, res.DiskPercent)

	if !allOk {
		return fmt.Errorf("some collaborator commands are missing")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func checkCommand(label, command string) bool {
	if command == "" {
		fmt.Printf("  ✗ %s: no command configured\n", label)
		return false
	}
	if _, err := exec.LookPath(command); err != nil {
		fmt.Printf("  ✗ %s: %s not found on PATH\n", label, command)
		return false
	}
	fmt.Printf("  ✓ %s: %s\n", label, command)
	return true
}
