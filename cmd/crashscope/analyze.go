package main

import (
	"context"
	"fmt"
	"os"

	"github.com/crashscope/crashscope/internal/config"
	"github.com/crashscope/crashscope/internal/logging"
	"github.com/crashscope/crashscope/internal/pipeline"
	"github.com/crashscope/crashscope/internal/report"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the full regression analysis for a crash signature",
	Long: `Runs the complete pipeline: sample crash reports, resolve builds to
revisions, score the file history for the commit that introduced the crash,
classify the functions it modified, and locate related tests.

Examples:
  # Analyze a signature around a known fix
  crashscope analyze --signature "mozilla::dom::FetchDriver::OnDataAvailable" \
      --revision 0f2c54e14a19 --file dom/fetch/FetchDriver.cpp

  # Start from a single crash report instead of a signature
  crashscope analyze --crash-id 88f3c425-1f2e-4f76-b811-7a4e32240601 \
      --revision 0f2c54e14a19 --file dom/fetch/FetchDriver.cpp

  # Repository-only analysis, no Socorro queries
  crashscope analyze --skip-crashes --revision 0f2c54e14a19 \
      --file dom/fetch/FetchDriver.cpp`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("signature", "", "crash signature to analyze")
	analyzeCmd.Flags().String("crash-id", "", "crash report UUID to anchor the analysis")
	analyzeCmd.Flags().String("revision", "", "changeset of the fix (required)")
	analyzeCmd.Flags().String("file", "", "crashing source file, repository-relative (required)")
	analyzeCmd.Flags().String("channel", "", "release channel hint (nightly, release, esr115)")
	analyzeCmd.Flags().String("resume", "", "run ID to resume after an interruption")
	analyzeCmd.Flags().Bool("skip-crashes", false, "skip Socorro sampling, analyze the repository only")
	analyzeCmd.Flags().Bool("open", false, "open the HTML report in a browser when done")

	analyzeCmd.MarkFlagRequired("revision")
	analyzeCmd.MarkFlagRequired("file")
	analyzeCmd.MarkFlagsMutuallyExclusive("signature", "crash-id")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if err := reportValidation(cfg.Validate(config.ValidationContextAnalyze)); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	repos, err := openRepos(cfg)
	if err != nil {
		return err
	}

	checkpoints, err := pipeline.OpenCheckpoints(cfg.Analysis.CheckpointPath)
	if err != nil {
		return fmt.Errorf("open checkpoints: %w", err)
	}
	defer checkpoints.Close()

	p := pipeline.New(cfg, repos, newCrashStatsClient(cfg), newBuildhubClient(cfg),
		newBugzillaClient(cfg), store, checkpoints, logging.Global())

	signature, _ := cmd.Flags().GetString("signature")
	crashID, _ := cmd.Flags().GetString("crash-id")
	revision, _ := cmd.Flags().GetString("revision")
	file, _ := cmd.Flags().GetString("file")
	channel, _ := cmd.Flags().GetString("channel")
	resume, _ := cmd.Flags().GetString("resume")
	skipCrashes, _ := cmd.Flags().GetBool("skip-crashes")
	openReport, _ := cmd.Flags().GetBool("open")

	rep, err := p.Run(ctx, pipeline.Request{
		Signature:         signature,
		CrashID:           crashID,
		FixRevision:       revision,
		File:              file,
		Channel:           channel,
		ResumeRunID:       resume,
		SkipCrashSampling: skipCrashes,
	})
	if err != nil {
		return err
	}

	writer := report.NewWriter(cfg.Report.Directory)
	jsonPath, err := writer.WriteJSON(rep)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	htmlPath, err := writer.WriteHTML(rep)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	fmt.Println(report.Summary(rep))
	fmt.Fprintf(os.Stderr, "Report: %s\n", jsonPath)

	if openReport {
		if err := report.Open(htmlPath); err != nil {
			logger.WithError(err).Warn("Failed to open report in browser")
		}
	}
	return nil
}
