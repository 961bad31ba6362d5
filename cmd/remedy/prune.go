package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"remedy/internal/ledger"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply retention limits to backups and the ledger",
	Long:  "Deletes backup snapshots and ledger entries older than the configured retention windows",
	RunE:  runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	repoRoot, cfg, logger, err := setup()
	if err != nil {
		return err
	}

	store, err := openBackupStore(repoRoot, cfg.Backup.Dir, cfg.Backup.Compress, logger)
	if err != nil {
		return err
	}

	maxAge := time.Duration(cfg.Backup.RetentionDays) * 24 * time.Hour
	backupsRemoved, err := store.Prune(maxAge, cfg.Backup.MaxSnapshots)
	if err != nil {
		return err
	}

	led, err := ledger.Open(repoRoot, logger)
	if err != nil {
		return err
	}
	defer led.Close()

	ledgerRemoved, err := led.Prune(time.Duration(cfg.Ledger.RetentionDays) * 24 * time.Hour)
	if err != nil {
		return err
	}

	fmt.Printf("Pruned %d backups and %d ledger entries\n", backupsRemoved, ledgerRemoved)
	return nil
}
