package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"remedy/internal/config"
	"remedy/internal/errors"
	"remedy/internal/paths"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize remedy configuration",
	Long:  "Creates a .remedy/ directory with default configuration in the current repository root",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false,
		"Overwrite an existing configuration")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return errors.New(errors.InternalError, "Failed to get current directory", err)
	}

	// Prefer an enclosing repository; fall back to initializing here.
	repoRoot, err := paths.FindRepoRootFrom(cwd)
	if err != nil {
		repoRoot = cwd
	}

	configPath := filepath.Join(repoRoot, paths.ConfigDirName, "config.json")
	if _, statErr := os.Stat(configPath); statErr == nil && !initForce {
		// Idempotent: already initialized is success.
		fmt.Println("remedy already initialized.")
		fmt.Printf("Configuration at: %s\n", configPath)
		return nil
	}

	cfg := config.DefaultConfig()
	cfg.RepoRoot = repoRoot
	if err := cfg.Save(repoRoot); err != nil {
		return err
	}

	fmt.Printf("Initialized remedy in %s\n", filepath.Join(repoRoot, paths.ConfigDirName))
	fmt.Printf("Configuration at: %s\n", configPath)
	return nil
}
