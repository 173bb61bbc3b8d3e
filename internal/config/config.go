// Package config loads and validates crashscope configuration: repository
// clone paths, service endpoints, credentials, storage, and analysis tuning.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Repos maps release channels to local Mercurial clone paths.
	Repos map[string]string `yaml:"repos" mapstructure:"repos"`

	CrashStats CrashStatsConfig `yaml:"crashstats" mapstructure:"crashstats"`
	Buildhub   BuildhubConfig   `yaml:"buildhub" mapstructure:"buildhub"`
	Bugzilla   BugzillaConfig   `yaml:"bugzilla" mapstructure:"bugzilla"`
	Coverage   CoverageConfig   `yaml:"coverage" mapstructure:"coverage"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Report     ReportConfig     `yaml:"report" mapstructure:"report"`
}

type CrashStatsConfig struct {
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	Token          string `yaml:"token" mapstructure:"token"`
	RateLimit      int    `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	SampleMonths   int    `yaml:"sample_months" mapstructure:"sample_months"`
	SamplePerMonth int    `yaml:"sample_per_month" mapstructure:"sample_per_month"`
}

type BuildhubConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	RateLimit int    `yaml:"rate_limit" mapstructure:"rate_limit"`
}

type BugzillaConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	RateLimit int    `yaml:"rate_limit" mapstructure:"rate_limit"`
}

type CoverageConfig struct {
	ViewerURL   string        `yaml:"viewer_url" mapstructure:"viewer_url"`
	BrowserPath string        `yaml:"browser_path" mapstructure:"browser_path"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type StorageConfig struct {
	Type        string `yaml:"type" mapstructure:"type"` // "postgres", "sqlite"
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	LocalPath   string `yaml:"local_path" mapstructure:"local_path"`
}

type AnalysisConfig struct {
	HistoryLimit      int      `yaml:"history_limit" mapstructure:"history_limit"` // commits of file history to score
	MaxWorkers        int      `yaml:"max_workers" mapstructure:"max_workers"`     // concurrent candidate scoring
	NamespacePrefixes []string `yaml:"namespace_prefixes" mapstructure:"namespace_prefixes"`
	CheckpointPath    string   `yaml:"checkpoint_path" mapstructure:"checkpoint_path"`
}

type ReportConfig struct {
	Directory string `yaml:"directory" mapstructure:"directory"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Repos: map[string]string{},
		CrashStats: CrashStatsConfig{
			RateLimit:      5,
			SampleMonths:   6,
			SamplePerMonth: 20,
		},
		Buildhub: BuildhubConfig{
			RateLimit: 5,
		},
		Bugzilla: BugzillaConfig{
			RateLimit: 5,
		},
		Coverage: CoverageConfig{
			Timeout: 60 * time.Second,
		},
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".crashscope", "local.db"),
		},
		Analysis: AnalysisConfig{
			HistoryLimit:      30,
			MaxWorkers:        4,
			NamespacePrefixes: []string{"mozilla", "js", "nsGlobalWindow"},
			CheckpointPath:    filepath.Join(homeDir, ".crashscope", "checkpoints.db"),
		},
		Report: ReportConfig{
			Directory: filepath.Join(homeDir, ".crashscope", "reports"),
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults
	cfg := Default()
	v.SetDefault("repos", cfg.Repos)
	v.SetDefault("crashstats", cfg.CrashStats)
	v.SetDefault("buildhub", cfg.Buildhub)
	v.SetDefault("bugzilla", cfg.Bugzilla)
	v.SetDefault("coverage", cfg.Coverage)
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("analysis", cfg.Analysis)
	v.SetDefault("report", cfg.Report)

	// Load from environment variables
	v.SetEnvPrefix("CRASHSCOPE")
	v.AutomaticEnv()

	// Try to find config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath(".crashscope")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".crashscope"))
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	// Unmarshal into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // local overrides (highest precedence)
		".env",       // main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	// Also try loading from home directory
	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".crashscope", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config.
// Precedence for credentials: env var (highest), keychain, config file.
func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("SOCORRO_API_TOKEN"); token != "" {
		cfg.CrashStats.Token = token
	} else if cfg.CrashStats.Token == "" {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if key, err := km.GetSocorroToken(); err == nil && key != "" {
				cfg.CrashStats.Token = key
			}
		}
	}

	if key := os.Getenv("BUGZILLA_API_KEY"); key != "" {
		cfg.Bugzilla.APIKey = key
	} else if cfg.Bugzilla.APIKey == "" {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if key, err := km.GetBugzillaKey(); err == nil && key != "" {
				cfg.Bugzilla.APIKey = key
			}
		}
	}

	if url := os.Getenv("CRASHSTATS_BASE_URL"); url != "" {
		cfg.CrashStats.BaseURL = url
	}
	if url := os.Getenv("BUILDHUB_BASE_URL"); url != "" {
		cfg.Buildhub.BaseURL = url
	}
	if url := os.Getenv("BUGZILLA_BASE_URL"); url != "" {
		cfg.Bugzilla.BaseURL = url
	}
	if url := os.Getenv("COVERAGE_VIEWER_URL"); url != "" {
		cfg.Coverage.ViewerURL = url
	}
	if path := os.Getenv("COVERAGE_BROWSER_PATH"); path != "" {
		cfg.Coverage.BrowserPath = expandPath(path)
	}

	// Repository clone paths
	for channel, env := range map[string]string{
		"nightly": "REPO_NIGHTLY_PATH",
		"release": "REPO_RELEASE_PATH",
		"esr115":  "REPO_ESR115_PATH",
	} {
		if path := os.Getenv(env); path != "" {
			if cfg.Repos == nil {
				cfg.Repos = map[string]string{}
			}
			cfg.Repos[channel] = expandPath(path)
		}
	}

	// Storage configuration
	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if path := os.Getenv("LOCAL_DB_PATH"); path != "" {
		cfg.Storage.LocalPath = expandPath(path)
	}

	// Analysis tuning
	if limit := os.Getenv("ANALYSIS_HISTORY_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			cfg.Analysis.HistoryLimit = n
		}
	}
	if workers := os.Getenv("ANALYSIS_MAX_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil && n > 0 {
			cfg.Analysis.MaxWorkers = n
		}
	}

	if dir := os.Getenv("REPORT_DIRECTORY"); dir != "" {
		cfg.Report.Directory = expandPath(dir)
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("repos", c.Repos)
	v.Set("crashstats", c.CrashStats)
	v.Set("buildhub", c.Buildhub)
	v.Set("bugzilla", c.Bugzilla)
	v.Set("coverage", c.Coverage)
	v.Set("storage", c.Storage)
	v.Set("analysis", c.Analysis)
	v.Set("report", c.Report)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
