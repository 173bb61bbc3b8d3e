package main

import (
	"context"
	"fmt"

	"github.com/crashscope/crashscope/internal/config"
	"github.com/crashscope/crashscope/internal/hg"
	"github.com/spf13/cobra"
)

var commitCmd = &cobra.Command{
	Use:   "commit [revision]",
	Short: "Inspect a commit: metadata, bug refs, and changed code files",
	Long: `Shows a commit's metadata, whether it is worth analyzing (merges and
"No bug" commits are not), and the code files it changed after filtering out
tests, vendored code, and docs. With --file, also prints the file's diff.`,
	Args: cobra.ExactArgs(1),
	RunE: runCommit,
}

func init() {
	commitCmd.Flags().String("channel", "", "clone to search first")
	commitCmd.Flags().String("file", "", "also show the diff for this file")
}

func runCommit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if err := reportValidation(cfg.Validate(config.ValidationContextResolve)); err != nil {
		return err
	}
	repos, err := openRepos(cfg)
	if err != nil {
		return err
	}

	channel, _ := cmd.Flags().GetString("channel")
	file, _ := cmd.Flags().GetString("file")
	revision := args[0]

	repo, err := repos.Find(ctx, revision, channel)
	if err != nil {
		return err
	}

	info, err := repo.CommitInfo(ctx, revision)
	if err != nil {
		return err
	}

	fmt.Printf("Revision: %s (%s)\n", info.Revision, repo.Channel)
	fmt.Printf("Author:   %s\n", info.Author)
	fmt.Printf("Date:     %s\n", info.Date)
	if len(info.BugNumbers) > 0 {
		fmt.Printf("Bugs:     %v\n", info.BugNumbers)
	}
	switch {
	case hg.IsMergeDescription(info.Description):
		fmt.Println("Analyzable: no (merge commit)")
	case !info.Analyzable():
		fmt.Println("Analyzable: no (no bug reference)")
	default:
		fmt.Println("Analyzable: yes")
	}
	fmt.Printf("\n%s\n", info.Description)

	changes, err := repo.ChangedFiles(ctx, revision, hg.DefaultFileFilter())
	if err != nil {
		return err
	}
	printFileList := func(label string, files []string) {
		if len(files) == 0 {
			return
		}
		fmt.Printf("\n%s:\n", label)
		for _, f := range files {
			fmt.Printf("  %s\n", f)
		}
	}
	printFileList("Modified", changes.Modified)
	printFileList("Added", changes.Added)
	printFileList("Removed", changes.Removed)
	if len(changes.FilteredOut) > 0 {
		fmt.Printf("\n(%d non-code files filtered out)\n", len(changes.FilteredOut))
	}

	if file != "" {
		diffText, _, err := repos.FileDiffAny(ctx, revision, file, repo.Channel)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s", diffText)
	}
	return nil
}
