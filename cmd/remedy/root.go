package main

import (
	"github.com/spf13/cobra"

	"remedy/internal/config"
	"remedy/internal/logging"
	"remedy/internal/paths"
	"remedy/internal/version"
)

var (
	logLevelFlag  string
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "remedy",
	Short: "remedy - diagnostic-driven code correction",
	Long: `remedy turns compiler and linter diagnostics into reviewed, reversible
source corrections: it maps each diagnostic to the syntax tree, generates
candidate fixes, applies the safe ones transactionally, and records every
change in a local ledger.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("remedy version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, or error (default from config)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "",
		"Log format: human or json (default from config)")
}

// setup resolves the repository root, loads configuration, and builds
// the logger every command shares. Flags override config.
func setup() (string, *config.Config, *logging.Logger, error) {
	repoRoot, err := paths.FindRepoRoot()
	if err != nil {
		return "", nil, nil, err
	}

	cfg, err := config.LoadConfig(repoRoot)
	if err != nil {
		return "", nil, nil, err
	}

	level := cfg.Logging.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	format := cfg.Logging.Format
	if logFormatFlag != "" {
		format = logFormatFlag
	}

	logger := logging.NewLogger(logging.Config{
		Format: logging.Format(format),
		Level:  logging.ParseLevel(level),
	})
	return repoRoot, cfg, logger, nil
}
