package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/crashscope/crashscope/internal/config"
	"github.com/spf13/cobra"
)

var blameCmd = &cobra.Command{
	Use:   "blame [file]",
	Short: "Show which commits last touched specific lines",
	Long: `Annotates a file at a revision and, for the given lines, prints the
revision that last modified each one along with its commit message. Useful
for finding the change behind a specific crashing line.

Examples:
  # Who last touched the lines around the crash site
  crashscope blame dom/fetch/FetchDriver.cpp --revision 0f2c54e14a19 --lines 512,513,520`,
	Args: cobra.ExactArgs(1),
	RunE: runBlame,
}

func init() {
	blameCmd.Flags().String("revision", "tip", "revision to annotate at")
	blameCmd.Flags().String("channel", "", "clone to use (default: search all)")
	blameCmd.Flags().IntSlice("lines", nil, "line numbers to report (required)")

	blameCmd.MarkFlagRequired("lines")
}

func runBlame(cmd *cobra.Command, args []string) error {
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
	lines, _ := cmd.Flags().GetIntSlice("lines")

	repo, err := repos.Find(ctx, revision, channel)
	if err != nil {
		return err
	}

	annotations, err := repo.Annotate(ctx, revision, args[0], lines)
	if err != nil {
		return err
	}
	if len(annotations) == 0 {
		fmt.Println("No annotations for the requested lines.")
		return nil
	}

	// One commit usually covers several lines; describe each revision once.
	descriptions := make(map[string]string)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LINE\tREV\tDESCRIPTION")
	for _, ann := range annotations {
		desc, ok := descriptions[ann.Rev]
		if !ok {
			if info, err := repo.CommitInfo(ctx, ann.Rev); err == nil {
				desc = firstLine(info.Description)
			}
			descriptions[ann.Rev] = desc
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", ann.Line, ann.Rev, desc)
	}
	return w.Flush()
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
