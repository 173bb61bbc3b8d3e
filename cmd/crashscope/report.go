package main

import (
	"context"
	"fmt"
	"os"

	"github.com/crashscope/crashscope/internal/report"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Show the report for a stored run",
	Long: `Reassembles the report for a completed run from storage and prints the
summary. Use --open to render and open the HTML view, or --json to print the
full machine-readable report.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().Bool("open", false, "open the HTML report in a browser")
	reportCmd.Flags().Bool("json", false, "print the JSON report to stdout")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	runID := args[0]

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}

	rep := &report.Report{
		RunID:       run.ID,
		Signature:   run.Signature,
		Channel:     run.Channel,
		GeneratedAt: run.StartedAt,
	}
	if rep.Crashes, err = store.GetCrashes(ctx, runID); err != nil {
		return err
	}
	if rep.Suspects, err = store.GetSuspects(ctx, runID); err != nil {
		return err
	}
	if rep.Functions, err = store.GetFunctions(ctx, runID); err != nil {
		return err
	}
	if rep.Tests, err = store.GetTests(ctx, runID); err != nil {
		return err
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	openHTML, _ := cmd.Flags().GetBool("open")

	if jsonOut {
		writer := report.NewWriter(cfg.Report.Directory)
		path, err := writer.WriteJSON(rep)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
		return nil
	}

	fmt.Println(report.Summary(rep))
	if run.Status != "completed" {
		fmt.Fprintf(os.Stderr, "Note: run status is %q\n", run.Status)
	}

	if openHTML {
		writer := report.NewWriter(cfg.Report.Directory)
		path, err := writer.WriteHTML(rep)
		if err != nil {
			return err
		}
		if err := report.Open(path); err != nil {
			logger.WithError(err).Warn("Failed to open report in browser")
		}
	}
	return nil
}
