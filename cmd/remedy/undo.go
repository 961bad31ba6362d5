package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"remedy/internal/backup"
	"remedy/internal/ledger"
	"remedy/internal/logging"
)

var undoID string

var undoCmd = &cobra.Command{
	Use:   "undo <file>",
	Short: "Restore a file from its pre-correction backup",
	Long: `Restores a file to the snapshot taken before its most recent applied
correction and marks that correction undone in the ledger. Use --id to
undo a specific correction instead of the latest one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUndo,
}

func init() {
	undoCmd.Flags().StringVar(&undoID, "id", "",
		"Undo the correction with this ledger id")
	rootCmd.AddCommand(undoCmd)
}

func runUndo(cmd *cobra.Command, args []string) error {
	repoRoot, cfg, logger, err := setup()
	if err != nil {
		return err
	}

	led, err := ledger.Open(repoRoot, logger)
	if err != nil {
		return err
	}
	defer led.Close()

	entry, err := pickEntry(led, args)
	if err != nil {
		return err
	}
	if entry.Status != ledger.StatusApplied {
		return fmt.Errorf("correction %s is %s, not applied", shortID(entry.ID), entry.Status)
	}

	store, err := openBackupStore(repoRoot, cfg.Backup.Dir, cfg.Backup.Compress, logger)
	if err != nil {
		return err
	}

	target := resolve(repoRoot, entry.File)
	if entry.ResultHash != "" {
		current, err := os.ReadFile(target)
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", entry.File, err)
		}
		if backup.Hash(current) != entry.ResultHash {
			return fmt.Errorf("%s has changed since correction %s was applied; refusing to restore",
				entry.File, shortID(entry.ID))
		}
	}

	original, err := store.Restore(entry.Backup)
	if err != nil {
		return err
	}

	if err := os.WriteFile(target, original, 0o644); err != nil {
		return fmt.Errorf("failed to restore %s: %w", entry.File, err)
	}

	// The snapshot predates every correction it guards, so restoring it
	// reverts all of them; their ledger entries move together.
	n, err := led.SetStatusForBackup(entry.Backup.ID, ledger.StatusUndone)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("correction %s is not applied", shortID(entry.ID))
	}

	fmt.Printf("Restored %s to its state before %s (%s)\n",
		entry.File, entry.StrategyID, shortID(entry.ID))
	if n > 1 {
		fmt.Printf("Also undone: %d other corrections reverted by the same snapshot\n", n-1)
	}
	return nil
}

func pickEntry(led *ledger.Ledger, args []string) (ledger.Entry, error) {
	if undoID != "" {
		return led.Get(undoID)
	}
	if len(args) == 0 {
		return ledger.Entry{}, fmt.Errorf("a file argument or --id is required")
	}

	file := filepath.ToSlash(strings.TrimPrefix(args[0], "./"))
	entry, ok, err := led.LastApplied(file)
	if err != nil {
		return ledger.Entry{}, err
	}
	if !ok {
		return ledger.Entry{}, fmt.Errorf("no applied corrections recorded for %s", file)
	}
	return entry, nil
}

func openBackupStore(repoRoot, dir string, compress bool, logger *logging.Logger) (*backup.Store, error) {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(repoRoot, dir)
	}
	return backup.NewStore(dir, compress, logger)
}

// resolve joins a recorded repo-relative path back onto the root.
func resolve(repoRoot, file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(repoRoot, file)
}
