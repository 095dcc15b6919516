package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
	"github.com/hugo-lorenzo-mato/evintel/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/evintel/internal/report"
)

var (
	runDryRun    bool
	runRender    bool
	runDumpDir   string
	runNoPartial bool
)

var runCmd = &cobra.Command{
	Use:   "run [question]",
	Short: "Run one market intelligence analysis",
	Long: `Run dispatches the five analysis roles in parallel over the question,
validates the merged result through the gate chain, and prints the final
report. The run always terminates: retries are budgeted per role and per
gate, and exhausted budgets downgrade to warnings.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false,
		"use deterministic local collaborators instead of configured commands")
	runCmd.Flags().BoolVar(&runRender, "render", false,
		"render the report for the terminal instead of printing raw markdown")
	runCmd.Flags().StringVar(&runDumpDir, "dump-dir", ".evintel/dumps",
		"directory for abort diagnostics dumps")
	runCmd.Flags().BoolVar(&runNoPartial, "no-partial", false,
		"abort instead of finalizing when an analysis layer stays missing")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runDryRun {
		cfg.Workflow.DryRun = true
	}
	if runNoPartial {
		cfg.Workflow.AllowPartial = false
	}

	rt, err := buildRuntime(cfg, cfg.Workflow.DryRun)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	input := strings.Join(args, " ")
	snap, runErr := rt.runs.RunSync(ctx, input)

	if snap.Stage == core.StageAborted {
		writer := diagnostics.NewAbortDumpWriter(runDumpDir, 20)
		if path, derr := writer.Write(snap); derr == nil {
			fmt.Fprintf(os.Stderr, "diagnostics dump written to %s\n", path)
		}
	}

	if !quiet {
		printRunSummary(snap)
	}
	if runErr != nil {
		return runErr
	}

	if runRender {
		width := 100
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
		fmt.Print(report.RenderTerminal(snap.FinalReport, width))
	} else {
		fmt.Println(snap.FinalReport)
	}
	return nil
}

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// printRunSummary prints a compact terminal summary of the run on stderr so
// the report itself stays clean on stdout.
func printRunSummary(snap *core.RunSnapshot) {
	var b strings.Builder

	switch snap.Stage {
	case core.StageFinalize:
		if len(snap.Warnings) == 0 {
			b.WriteString(okStyle.Render("✓ run finalized") + "\n")
		} else {
			b.WriteString(warnStyle.Render(fmt.Sprintf("✓ run finalized with %d warning(s)", len(snap.Warnings))) + "\n")
		}
	case core.StageAborted:
		b.WriteString(failStyle.Render("✗ run aborted") + "\n")
		b.WriteString("  " + snap.AbortReason + "\n")
	}

	b.WriteString(dimStyle.Render(fmt.Sprintf("  run %s, stage %s", snap.ID, stageLabel(snap.Stage))) + "\n")
	for _, p := range core.AllProducers() {
		slot := snap.Slots[p]
		line := fmt.Sprintf("  %-8s %s (%d dispatch(es))", p.String(), slot.Status, slot.Dispatches)
		if slot.Status == core.SlotFailed {
			line += ": " + slot.LastError
		}
		b.WriteString(dimStyle.Render(line) + "\n")
	}
	for _, w := range snap.Warnings {
		b.WriteString(warnStyle.Render("  warning: "+w) + "\n")
	}

	fmt.Fprint(os.Stderr, b.String())
}
