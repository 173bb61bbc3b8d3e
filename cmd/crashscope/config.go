package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/crashscope/crashscope/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CrashScope configuration",
	Long:  `View configuration, validate it, and manage API credentials.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE:  runConfigValidate,
}

var configSetTokenCmd = &cobra.Command{
	Use:   "set-token [socorro|bugzilla] [value]",
	Short: "Store an API credential in the OS keychain",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSetToken,
}

var configDeleteTokenCmd = &cobra.Command{
	Use:   "delete-token [socorro|bugzilla]",
	Short: "Remove an API credential from the OS keychain",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigDeleteToken,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configSetTokenCmd)
	configCmd.AddCommand(configDeleteTokenCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	fmt.Println("Repositories:")
	if len(cfg.Repos) == 0 {
		fmt.Println("  (none configured)")
	}
	for channel, path := range cfg.Repos {
		fmt.Printf("  %-10s %s\n", channel, path)
	}

	km := config.NewKeyringManager()
	socorro, _ := km.GetSocorroToken()
	bugzilla, _ := km.GetBugzillaKey()
	if t := os.Getenv("SOCORRO_API_TOKEN"); t != "" {
		socorro = t
	}
	if k := os.Getenv("BUGZILLA_API_KEY"); k != "" {
		bugzilla = k
	}

	fmt.Println("\nCredentials:")
	fmt.Printf("  socorro token:  %s\n", config.MaskCredential(socorro))
	fmt.Printf("  bugzilla key:   %s\n", config.MaskCredential(bugzilla))

	fmt.Println("\nStorage:")
	fmt.Printf("  type: %s\n", cfg.Storage.Type)
	if cfg.Storage.Type == "postgres" {
		fmt.Printf("  dsn:  %s\n", config.MaskCredential(cfg.Storage.PostgresDSN))
	} else {
		fmt.Printf("  path: %s\n", cfg.Storage.LocalPath)
	}

	fmt.Println("\nAnalysis:")
	fmt.Printf("  history limit: %d commits\n", cfg.Analysis.HistoryLimit)
	fmt.Printf("  max workers:   %d\n", cfg.Analysis.MaxWorkers)
	fmt.Printf("  sampling:      %d months x %d crashes\n",
		cfg.CrashStats.SampleMonths, cfg.CrashStats.SamplePerMonth)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		path = filepath.Join(home, ".crashscope", "config.yaml")
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Edit it to point the repos section at your local Mercurial clones.")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	vr := cfg.Validate(config.ValidationContextAll)
	for _, w := range vr.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	for _, e := range vr.Errors {
		fmt.Printf("error: %s\n", e)
	}
	if !vr.Valid {
		return fmt.Errorf("configuration is invalid")
	}
	fmt.Println("Configuration is valid.")
	return nil
}

func runConfigSetToken(cmd *cobra.Command, args []string) error {
	km := config.NewKeyringManager()
	if !km.IsAvailable() {
		return fmt.Errorf("no OS keychain available; use the SOCORRO_API_TOKEN or BUGZILLA_API_KEY environment variable instead")
	}

	switch args[0] {
	case "socorro":
		if err := km.SetSocorroToken(args[1]); err != nil {
			return err
		}
	case "bugzilla":
		if err := km.SetBugzillaKey(args[1]); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown credential %q (expected socorro or bugzilla)", args[0])
	}
	fmt.Printf("Stored %s credential (%s)\n", args[0], config.MaskCredential(args[1]))
	return nil
}

func runConfigDeleteToken(cmd *cobra.Command, args []string) error {
	km := config.NewKeyringManager()
	switch args[0] {
	case "socorro":
		return km.DeleteSocorroToken()
	case "bugzilla":
		return km.DeleteBugzillaKey()
	default:
		return fmt.Errorf("unknown credential %q (expected socorro or bugzilla)", args[0])
	}
}
