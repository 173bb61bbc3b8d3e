package main

import (
	"context"
	"fmt"

	"github.com/crashscope/crashscope/internal/buildhub"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [build-id]",
	Short: "Resolve a build ID to its source revision",
	Long: `Looks up a build ID in Buildhub and prints the revision, channel, and
version of the matching release. With repositories configured, also reports
which local clone contains the revision.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().String("product", "firefox", "product to match")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	product, _ := cmd.Flags().GetString("product")

	info, err := newBuildhubClient(cfg).ResolveBuild(ctx, args[0], product)
	if err != nil {
		return err
	}
	if info == nil {
		fmt.Printf("Build %s is not indexed in Buildhub.\n", args[0])
		return nil
	}

	fmt.Printf("Build:    %s\n", info.BuildID)
	fmt.Printf("Revision: %s\n", info.Revision)
	fmt.Printf("Channel:  %s\n", info.Channel)
	fmt.Printf("Version:  %s\n", info.Version)
	if info.Tree != "" {
		fmt.Printf("Tree:     %s\n", info.Tree)
	}

	if len(cfg.Repos) > 0 {
		repos, err := openRepos(cfg)
		if err != nil {
			logger.WithError(err).Warn("Could not open repositories")
			return nil
		}
		if repo, err := repos.Find(ctx, info.Revision, info.Channel); err == nil {
			fmt.Printf("Clone:    %s (%s)\n", repo.Path, repo.Channel)
		} else {
			fmt.Println("Clone:    revision not found in any configured clone")
		}
	}
	return nil
}

// buildhubResolver memoizes build lookups for table output.
type buildhubResolver struct {
	client *buildhub.Client
	cache  map[string]string
}

func (r *buildhubResolver) revision(ctx context.Context, buildID string) string {
	if r.cache == nil {
		r.cache = make(map[string]string)
	}
	if rev, ok := r.cache[buildID]; ok {
		return rev
	}
	rev := "-"
	if info, err := r.client.ResolveBuild(ctx, buildID, "firefox"); err == nil && info != nil {
		rev = info.Revision
	}
	r.cache[buildID] = rev
	return rev
}
