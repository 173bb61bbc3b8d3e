package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/crashscope/crashscope/internal/config"
	"github.com/crashscope/crashscope/internal/testscan"
	"github.com/spf13/cobra"
)

var testsCmd = &cobra.Command{
	Use:   "tests [file]",
	Short: "Find tests related to a source file",
	Long: `Scans a local clone for test files related to the given source file,
ranked by directory proximity and name similarity. With --function, test
contents are also checked for mentions of the function.`,
	Args: cobra.ExactArgs(1),
	RunE: runTests,
}

func init() {
	testsCmd.Flags().String("revision", "tip", "revision whose file list to scan")
	testsCmd.Flags().String("channel", "", "clone to scan (default: first configured)")
	testsCmd.Flags().StringSlice("function", nil, "function names to look for in test contents")
	testsCmd.Flags().Int("limit", 20, "maximum tests to print")
}

func runTests(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if err := reportValidation(cfg.Validate(config.ValidationContextResolve)); err != nil {
		return err
	}
	repos, err := openRepos(cfg)
	if err != nil {
		return err
	}

	revision, _ := cmd.Flags().GetString("revision")
	channel, _ := cmd.Flags().GetString("channel")
	functions, _ := cmd.Flags().GetStringSlice("function")
	limit, _ := cmd.Flags().GetInt("limit")

	if channel == "" {
		channel = repos.Channels()[0]
	}
	repo, ok := repos.Repo(channel)
	if !ok {
		return fmt.Errorf("no clone configured for channel %q", channel)
	}

	files, err := repo.ListFiles(ctx, revision)
	if err != nil {
		return err
	}

	candidates := testscan.CandidateTestFiles(files, args[0])
	if len(functions) > 0 {
		for i := range candidates {
			if i >= limit {
				break
			}
			content, err := repo.Cat(ctx, revision, candidates[i].Path)
			if err != nil {
				continue
			}
			candidates[i] = testscan.Boost(candidates[i],
				testscan.MentionedFunctions(content, functions))
		}
	}
	if len(candidates) == 0 {
		fmt.Println("No related tests found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tPATH\tWHY")
	for i, cand := range candidates {
		if i >= limit {
			break
		}
		why := ""
		if len(cand.Reasons) > 0 {
			why = cand.Reasons[0]
		}
		fmt.Fprintf(w, "%.2f\t%s\t%s\n", cand.Score, cand.Path, why)
	}
	return w.Flush()
}
