package main

import (
	"fmt"

	"github.com/crashscope/crashscope/internal/bugzilla"
	"github.com/crashscope/crashscope/internal/buildhub"
	"github.com/crashscope/crashscope/internal/config"
	"github.com/crashscope/crashscope/internal/crashstats"
	"github.com/crashscope/crashscope/internal/hg"
	"github.com/crashscope/crashscope/internal/logging"
	"github.com/crashscope/crashscope/internal/storage"
)

// openStore opens the configured storage backend.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		return storage.NewPostgresStore(cfg.Storage.PostgresDSN, logger)
	case "sqlite", "":
		return storage.NewSQLiteStore(cfg.Storage.LocalPath, logger)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

// newCrashStatsClient builds the Socorro client, resolving the API token
// through env, keychain, or prompt.
func newCrashStatsClient(cfg *config.Config) *crashstats.Client {
	token := cfg.CrashStats.Token
	if token == "" {
		creds := config.NewCredentialManager()
		if t, err := creds.SocorroToken(); err == nil {
			token = t
		}
	}
	return crashstats.NewClient(cfg.CrashStats.BaseURL, token, cfg.CrashStats.RateLimit)
}

func newBuildhubClient(cfg *config.Config) *buildhub.Client {
	return buildhub.NewClient(cfg.Buildhub.BaseURL, cfg.Buildhub.RateLimit)
}

func newBugzillaClient(cfg *config.Config) *bugzilla.Client {
	key := cfg.Bugzilla.APIKey
	if key == "" {
		creds := config.NewCredentialManager()
		if k, err := creds.BugzillaKey(); err == nil {
			key = k
		}
	}
	return bugzilla.NewClient(cfg.Bugzilla.BaseURL, key, cfg.Bugzilla.RateLimit)
}

// openRepos builds the repository set from the configured clone paths.
func openRepos(cfg *config.Config) (*hg.RepoSet, error) {
	return hg.NewRepoSet(cfg.Repos, logging.Global())
}

// reportValidation prints warnings and returns the combined error, if any.
func reportValidation(vr *config.ValidationResult) error {
	for _, w := range vr.Warnings {
		logger.Warn(w)
	}
	return vr.Err()
}
