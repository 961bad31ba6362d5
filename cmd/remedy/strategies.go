package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"remedy/internal/strategy"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the built-in correction strategies",
	RunE:  runStrategies,
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}

func runStrategies(cmd *cobra.Command, args []string) error {
	for _, s := range strategy.Builtins() {
		desc := s.Describe()
		fmt.Printf("%s\n", desc.ID)
		fmt.Printf("  codes: %s\n", strings.Join(desc.Codes, ", "))
		fmt.Printf("  nodes: %s\n", strings.Join(desc.NodeKinds, ", "))
		if desc.NeedsDocs {
			fmt.Println("  consults documentation service when configured")
		}
	}
	return nil
}
