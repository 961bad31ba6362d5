package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"remedy/internal/ledger"
)

var (
	historyLimit  int
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List applied corrections",
	Long:  "Shows the ledger of corrections remedy has applied, newest first",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20,
		"Maximum entries to show (0 for all)")
	historyCmd.Flags().StringVar(&historyFormat, "format", "text",
		"Output format: text, json, or yaml")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	repoRoot, _, logger, err := setup()
	if err != nil {
		return err
	}

	led, err := ledger.Open(repoRoot, logger)
	if err != nil {
		return err
	}
	defer led.Close()

	entries, err := led.List(historyLimit)
	if err != nil {
		return err
	}

	switch historyFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(entries)
	default:
		if len(entries) == 0 {
			fmt.Println("No corrections recorded.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %s  %s %s %s  %s (%s)\n",
				e.AppliedAt.Format("2006-01-02 15:04:05"),
				shortID(e.ID), e.File, e.Span, e.DiagnosticCode,
				e.StrategyID, e.Status)
		}
		return nil
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
