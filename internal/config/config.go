package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"remedy/internal/paths"
)

// Config represents the complete remedy configuration (v1 schema)
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	// AutoApplyThreshold is the minimum confidence for autonomous
	// application of Safe proposals.
	AutoApplyThreshold float64 `json:"autoApplyThreshold" mapstructure:"autoApplyThreshold"`

	Analyzer AnalyzerConfig `json:"analyzer" mapstructure:"analyzer"`
	Docs     DocsConfig     `json:"docs" mapstructure:"docs"`
	Backup   BackupConfig   `json:"backup" mapstructure:"backup"`
	Ledger   LedgerConfig   `json:"ledger" mapstructure:"ledger"`
	Run      RunConfig      `json:"run" mapstructure:"run"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
}

// AnalyzerConfig describes the external compiler/linter invoked to
// produce diagnostics.
type AnalyzerConfig struct {
	Command   string   `json:"command" mapstructure:"command"`
	Args      []string `json:"args" mapstructure:"args"`
	Format    string   `json:"format" mapstructure:"format"` // "clippy-json" or "json-lines"
	TimeoutMs int      `json:"timeoutMs" mapstructure:"timeoutMs"`
}

// DocsConfig describes the optional documentation lookup service.
type DocsConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Endpoint  string `json:"endpoint" mapstructure:"endpoint"`
	TimeoutMs int    `json:"timeoutMs" mapstructure:"timeoutMs"`
}

// BackupConfig controls the snapshot store used for rollback.
type BackupConfig struct {
	Dir           string `json:"dir" mapstructure:"dir"`
	Compress      bool   `json:"compress" mapstructure:"compress"`
	RetentionDays int    `json:"retentionDays" mapstructure:"retentionDays"`
	MaxSnapshots  int    `json:"maxSnapshots" mapstructure:"maxSnapshots"`
}

// LedgerConfig controls the applied-correction ledger.
type LedgerConfig struct {
	RetentionDays int `json:"retentionDays" mapstructure:"retentionDays"`
}

// RunConfig controls pipeline execution.
type RunConfig struct {
	MaxParallelFiles int `json:"maxParallelFiles" mapstructure:"maxParallelFiles"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:            1,
		RepoRoot:           ".",
		AutoApplyThreshold: 0.90,
		Analyzer: AnalyzerConfig{
			Command:   "cargo",
			Args:      []string{"clippy", "--message-format=json", "--quiet"},
			Format:    "clippy-json",
			TimeoutMs: 120000,
		},
		Docs: DocsConfig{
			Enabled:   false,
			Endpoint:  "",
			TimeoutMs: 2000,
		},
		Backup: BackupConfig{
			Dir:           filepath.Join(paths.ConfigDirName, "backups"),
			Compress:      true,
			RetentionDays: 14,
			MaxSnapshots:  500,
		},
		Ledger: LedgerConfig{
			RetentionDays: 90,
		},
		Run: RunConfig{
			MaxParallelFiles: 4,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .remedy/config.json. When the file
// does not exist the defaults are returned.
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()

	v.SetDefault("version", 1)
	v.SetDefault("repoRoot", ".")

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(repoRoot, paths.ConfigDirName))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to .remedy/config.json
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, paths.ConfigDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.AutoApplyThreshold < 0 || c.AutoApplyThreshold > 1 {
		return &ConfigError{Field: "autoApplyThreshold", Message: "must be in [0, 1]"}
	}
	if c.Analyzer.Command == "" {
		return &ConfigError{Field: "analyzer.command", Message: "must not be empty"}
	}
	if c.Run.MaxParallelFiles < 1 {
		return &ConfigError{Field: "run.maxParallelFiles", Message: "must be at least 1"}
	}
	if c.Backup.MaxSnapshots < 0 {
		return &ConfigError{Field: "backup.maxSnapshots", Message: "must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
