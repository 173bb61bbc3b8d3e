package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/crashscope/crashscope/internal/errors"
)

// ValidationContext specifies which configuration a command needs.
type ValidationContext string

const (
	// ValidationContextAnalyze - full analysis needs repos and storage
	ValidationContextAnalyze ValidationContext = "analyze"
	// ValidationContextCrashes - crash sampling needs only service endpoints
	ValidationContextCrashes ValidationContext = "crashes"
	// ValidationContextResolve - build resolution needs repos
	ValidationContextResolve ValidationContext = "resolve"
	// ValidationContextAll - validate everything
	ValidationContextAll ValidationContext = "all"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// Err converts the result to a single error, or nil when valid.
func (vr *ValidationResult) Err() error {
	if vr.Valid {
		return nil
	}
	return errors.ConfigErrorf("invalid configuration:\n  %s", strings.Join(vr.Errors, "\n  "))
}

// Validate checks the configuration for a given command context.
func (c *Config) Validate(vctx ValidationContext) *ValidationResult {
	vr := &ValidationResult{Valid: true}

	needsRepos := vctx == ValidationContextAnalyze || vctx == ValidationContextResolve || vctx == ValidationContextAll
	needsStorage := vctx == ValidationContextAnalyze || vctx == ValidationContextAll

	if needsRepos {
		if len(c.Repos) == 0 {
			vr.AddError("no repository clones configured; set repos in the config file or REPO_NIGHTLY_PATH")
		}
		for channel, path := range c.Repos {
			info, err := os.Stat(filepath.Join(path, ".hg"))
			if err != nil || !info.IsDir() {
				vr.AddWarning("repos.%s: %s is not a mercurial clone", channel, path)
			}
		}
	}

	if needsStorage {
		switch c.Storage.Type {
		case "sqlite":
			if c.Storage.LocalPath == "" {
				vr.AddError("storage.local_path is required for sqlite storage")
			}
		case "postgres":
			if c.Storage.PostgresDSN == "" {
				vr.AddError("storage.postgres_dsn is required for postgres storage")
			}
		default:
			vr.AddError("storage.type must be sqlite or postgres, got %q", c.Storage.Type)
		}
	}

	for name, raw := range map[string]string{
		"crashstats.base_url": c.CrashStats.BaseURL,
		"buildhub.base_url":   c.Buildhub.BaseURL,
		"bugzilla.base_url":   c.Bugzilla.BaseURL,
		"coverage.viewer_url": c.Coverage.ViewerURL,
	} {
		if raw == "" {
			continue // empty means the client default
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			vr.AddError("%s: %q is not a valid URL", name, raw)
		}
	}

	if c.Analysis.HistoryLimit <= 0 {
		vr.AddError("analysis.history_limit must be positive, got %d", c.Analysis.HistoryLimit)
	}
	if c.Analysis.MaxWorkers <= 0 {
		vr.AddError("analysis.max_workers must be positive, got %d", c.Analysis.MaxWorkers)
	}

	return vr
}
