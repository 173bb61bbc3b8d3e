package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/crashscope/crashscope/internal/config"
	"github.com/spf13/cobra"
)

var crashesCmd = &cobra.Command{
	Use:   "crashes [signature]",
	Short: "Sample recent crash reports for a signature",
	Long: `Queries Socorro for recent crashes matching the signature, one batch
per month, deduplicated by build. Use --resolve to also map each build to
its source revision through Buildhub.`,
	Args: cobra.ExactArgs(1),
	RunE: runCrashes,
}

func init() {
	crashesCmd.Flags().Int("months", 0, "months to sample (default from config)")
	crashesCmd.Flags().Int("per-month", 0, "crashes per month (default from config)")
	crashesCmd.Flags().Bool("resolve", false, "resolve each build to a source revision")
}

func runCrashes(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if err := reportValidation(cfg.Validate(config.ValidationContextCrashes)); err != nil {
		return err
	}

	months, _ := cmd.Flags().GetInt("months")
	perMonth, _ := cmd.Flags().GetInt("per-month")
	resolve, _ := cmd.Flags().GetBool("resolve")
	if months == 0 {
		months = cfg.CrashStats.SampleMonths
	}
	if perMonth == 0 {
		perMonth = cfg.CrashStats.SamplePerMonth
	}

	client := newCrashStatsClient(cfg)
	instances, err := client.SampleCrashes(ctx, args[0], months, perMonth)
	if err != nil {
		return err
	}
	if len(instances) == 0 {
		fmt.Println("No crashes found for this signature.")
		return nil
	}

	var builds *buildhubResolver
	if resolve {
		builds = &buildhubResolver{client: newBuildhubClient(cfg)}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if resolve {
		fmt.Fprintln(w, "DATE\tCHANNEL\tVERSION\tBUILD\tREVISION\tUUID")
	} else {
		fmt.Fprintln(w, "DATE\tCHANNEL\tVERSION\tBUILD\tUUID")
	}
	for _, inst := range instances {
		if resolve {
			rev := builds.revision(ctx, inst.BuildID)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				inst.Date, inst.ReleaseChannel, inst.Version, inst.BuildID, rev, inst.UUID)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				inst.Date, inst.ReleaseChannel, inst.Version, inst.BuildID, inst.UUID)
		}
	}
	return w.Flush()
}
