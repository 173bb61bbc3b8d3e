package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/crashscope/crashscope/internal/coverage"
	"github.com/spf13/cobra"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage [file]",
	Short: "Check line coverage for a source file",
	Long: `Fetches per-line coverage for a file at a revision from the coverage
viewer and summarizes it. With --lines, reports whether those specific lines
are covered; useful for checking whether a suspect's changed lines have any
test coverage at all.`,
	Args: cobra.ExactArgs(1),
	RunE: runCoverage,
}

func init() {
	coverageCmd.Flags().String("revision", "", "revision to check coverage at (required)")
	coverageCmd.Flags().IntSlice("lines", nil, "specific line numbers to check")

	coverageCmd.MarkFlagRequired("revision")
}

func runCoverage(cmd *cobra.Command, args []string) error {
	revision, _ := cmd.Flags().GetString("revision")
	lines, _ := cmd.Flags().GetIntSlice("lines")

	scraper := coverage.NewScraper(cfg.Coverage.ViewerURL, cfg.Coverage.BrowserPath, cfg.Coverage.Timeout)

	ctx := context.Background()
	fc, err := scraper.FileCoverage(ctx, revision, args[0])
	if err != nil {
		return fmt.Errorf("fetch coverage: %w", err)
	}

	if len(lines) == 0 {
		// No targets given: summarize the whole file.
		all := make([]int, 0, len(fc.Lines))
		for n := range fc.Lines {
			all = append(all, n)
		}
		summary := fc.Summarize(all)
		fmt.Printf("%s at %s: %d instrumented lines, %d covered (%.1f%%)\n",
			args[0], revision, summary.Instrumented, summary.Covered, summary.Percent)
		return nil
	}

	summary := fc.Summarize(lines)

	fmt.Printf("%s at %s:\n", args[0], revision)
	fmt.Printf("  covered:   %d of %d target lines (%.1f%%)\n",
		summary.Covered, summary.Instrumented, summary.Percent)
	if len(summary.Uncovered) > 0 {
		fmt.Printf("  uncovered: %v\n", summary.Uncovered)
	}
	if summary.TargetsMissing > 0 {
		fmt.Printf("  not instrumented: %d lines\n", summary.TargetsMissing)
	}

	covered := make([]int, 0, len(lines))
	for _, n := range lines {
		if hits, ok := fc.Lines[n]; ok && hits > 0 {
			covered = append(covered, n)
		}
	}
	sort.Ints(covered)
	if len(covered) > 0 {
		fmt.Printf("  covered lines: %v\n", covered)
	}
	return nil
}
