package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"remedy/internal/analyzer"
	"remedy/internal/config"
	"remedy/internal/docs"
	"remedy/internal/engine"
	"remedy/internal/ledger"
	"remedy/internal/logging"
	"remedy/internal/report"
)

var (
	correctDryRun      bool
	correctAllowReview bool
	correctThreshold   float64
	correctRecheck     bool
	correctFormat      string
)

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Generate and apply corrections for current diagnostics",
	Long: `Runs the analyzer, maps each diagnostic to the syntax tree, generates
candidate corrections, and applies the ones that clear the safety and
confidence gates. Every modified file is backed up first and verified
after; failed verification rolls the file back.`,
	RunE: runCorrect,
}

func init() {
	correctCmd.Flags().BoolVar(&correctDryRun, "dry-run", false,
		"Show what would change without touching any file")
	correctCmd.Flags().BoolVar(&correctAllowReview, "allow-review", false,
		"Also apply corrections marked requires-review (unsafe ones are never applied)")
	correctCmd.Flags().Float64Var(&correctThreshold, "auto-apply-threshold", 0,
		"Minimum confidence for autonomous application (overrides config)")
	correctCmd.Flags().BoolVar(&correctRecheck, "recheck", false,
		"Re-run the analyzer during verification of each modified file")
	correctCmd.Flags().StringVar(&correctFormat, "format", "text",
		"Report format: text, json, or yaml")
	rootCmd.AddCommand(correctCmd)
}

func runCorrect(cmd *cobra.Command, args []string) error {
	repoRoot, cfg, logger, err := setup()
	if err != nil {
		return err
	}

	led, err := ledger.Open(repoRoot, logger)
	if err != nil {
		return err
	}
	defer led.Close()

	var lookup docs.Lookup = docs.Unavailable
	if cfg.Docs.Enabled && cfg.Docs.Endpoint != "" {
		lookup = docs.NewHTTPClient(cfg.Docs.Endpoint,
			time.Duration(cfg.Docs.TimeoutMs)*time.Millisecond, logger)
	}

	tool := analyzer.NewCommandTool(cfg.Analyzer, logger)
	eng, err := engine.New(*cfg, repoRoot, tool, lookup, led, logger)
	if err != nil {
		return err
	}

	// Only an explicitly set flag overrides the configured threshold;
	// zero is a valid override.
	var threshold *float64
	if cmd.Flags().Changed("auto-apply-threshold") {
		threshold = &correctThreshold
	}

	run, runErr := eng.Run(context.Background(), engine.Options{
		DryRun:      correctDryRun,
		AllowReview: correctAllowReview,
		Threshold:   threshold,
		Recheck:     correctRecheck,
	})

	if err := report.Render(os.Stdout, run, correctFormat); err != nil {
		return err
	}

	if runErr == nil && !correctDryRun {
		pruneAfterRun(repoRoot, cfg, logger)
	}

	// A failed rollback (or broken analyzer) must fail the command.
	return runErr
}

// pruneAfterRun applies the backup retention limits at the end of a
// successful run. Failures are logged, never fatal.
func pruneAfterRun(repoRoot string, cfg *config.Config, logger *logging.Logger) {
	store, err := openBackupStore(repoRoot, cfg.Backup.Dir, cfg.Backup.Compress, logger)
	if err != nil {
		logger.Warn("Backup pruning skipped", map[string]interface{}{"error": err.Error()})
		return
	}
	maxAge := time.Duration(cfg.Backup.RetentionDays) * 24 * time.Hour
	if _, err := store.Prune(maxAge, cfg.Backup.MaxSnapshots); err != nil {
		logger.Warn("Backup pruning failed", map[string]interface{}{"error": err.Error()})
	}
}
