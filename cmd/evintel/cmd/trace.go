package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/evintel/internal/adapters/trace"
)

var traceCmd = &cobra.Command{
	Use:   "trace [runID]",
	Short: "Inspect the recorded audit trail",
	Long: `Trace lists recorded runs, or prints the full audit trail of one run:
stage transitions, producer dispatches, and gate verdicts in order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTrace,
}

func init() {
	rootCmd.AddCommand(traceCmd)
}

func runTrace(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Trace.Enabled {
		return fmt.Errorf("trace recording is disabled in config")
	}

	recorder, err := trace.NewSQLiteRecorder(cfg.Trace.Path)
	if err != nil {
		return err
	}
	defer recorder.Close()

	if len(args) == 0 {
		return listTracedRuns(recorder)
	}
	return printRunTrail(recorder, args[0])
}

func listTracedRuns(recorder *trace.SQLiteRecorder) error {
	runs, err := recorder.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSTAGE\tREASON")
	for _, r := range runs {
		ended := "running"
		if r.EndedAt.Valid {
			ended = r.FinalStage
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), ended, r.EndReason)
	}
	return w.Flush()
}

func printRunTrail(recorder *trace.SQLiteRecorder, runID string) error {
	stages, err := recorder.Stages(runID)
	if err != nil {
		return err
	}
	dispatches, err := recorder.Dispatches(runID)
	if err != nil {
		return err
	}
	gates, err := recorder.Gates(runID)
	if err != nil {
		return err
	}
	if len(stages) == 0 && len(dispatches) == 0 && len(gates) == 0 {
		return fmt.Errorf("no trail recorded for run %s", runID)
	}

	fmt.Printf("run %s\n\nstages:\n", runID)
	for _, s := range stages {
		fmt.Printf("  %s -> %s  %s\n", s.From, s.To, s.Reason)
	}
	fmt.Println("\ndispatches:")
	for _, d := range dispatches {
		line := fmt.Sprintf("  %-8s attempt %d: %s", d.Producer, d.Attempt, d.Status)
		if d.Error != "" {
			line += " (" + d.Error + ")"
		}
		fmt.Println(line)
	}
	fmt.Println("\ngate verdicts:")
	for _, g := range gates {
		line := fmt.Sprintf("  pass %d %-14s %s", g.Pass, g.Gate, g.Verdict)
		if g.Reason != "" {
			line += ": " + g.Reason
		}
		fmt.Println(line)
	}
	return nil
}
