package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, 6, cfg.CrashStats.SampleMonths)
	assert.Equal(t, 30, cfg.Analysis.HistoryLimit)
	assert.NotEmpty(t, cfg.Analysis.NamespacePrefixes)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
repos:
  nightly: /srv/clones/mozilla-central
storage:
  type: postgres
  postgres_dsn: postgres://crashscope@localhost/crashscope
analysis:
  history_limit: 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/clones/mozilla-central", cfg.Repos["nightly"])
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, 50, cfg.Analysis.HistoryLimit)
	// Untouched sections keep defaults.
	assert.Equal(t, 6, cfg.CrashStats.SampleMonths)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REPO_NIGHTLY_PATH", "/data/mc")
	t.Setenv("STORAGE_TYPE", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://u@h/db")
	t.Setenv("ANALYSIS_MAX_WORKERS", "8")
	t.Setenv("SOCORRO_API_TOKEN", "tok-1")

	cfg := Default()
	applyEnvOverrides(cfg)

	assert.Equal(t, "/data/mc", cfg.Repos["nightly"])
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, "postgres://u@h/db", cfg.Storage.PostgresDSN)
	assert.Equal(t, 8, cfg.Analysis.MaxWorkers)
	assert.Equal(t, "tok-1", cfg.CrashStats.Token)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "config.yaml")

	cfg := Default()
	cfg.Repos = map[string]string{"release": "/srv/clones/mozilla-release"}
	cfg.Analysis.HistoryLimit = 42
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/clones/mozilla-release", loaded.Repos["release"])
	assert.Equal(t, 42, loaded.Analysis.HistoryLimit)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Storage.Type = "sqlite"
	cfg.Storage.LocalPath = "/tmp/crashscope.db"

	// Crash sampling needs no repos.
	vr := cfg.Validate(ValidationContextCrashes)
	assert.True(t, vr.Valid)
	assert.NoError(t, vr.Err())

	// Full analysis does.
	vr = cfg.Validate(ValidationContextAnalyze)
	assert.False(t, vr.Valid)
	assert.Error(t, vr.Err())

	cfg.Repos = map[string]string{"nightly": t.TempDir()}
	vr = cfg.Validate(ValidationContextAnalyze)
	assert.True(t, vr.Valid)
	// Missing .hg is a warning, not an error.
	assert.NotEmpty(t, vr.Warnings)
}

func TestValidateBadValues(t *testing.T) {
	cfg := Default()
	cfg.Storage.Type = "mongodb"
	cfg.CrashStats.BaseURL = "not a url"
	cfg.Analysis.HistoryLimit = 0

	vr := cfg.Validate(ValidationContextAll)
	assert.False(t, vr.Valid)
	assert.GreaterOrEqual(t, len(vr.Errors), 3)
}

func TestMaskCredential(t *testing.T) {
	assert.Equal(t, "(not set)", MaskCredential(""))
	assert.Equal(t, "***", MaskCredential("short"))
	assert.Equal(t, "abcd...wxyz", MaskCredential("abcdefghijklmnopqrstuvwxyz"[0:8]+"stuvwxyz"))
}
