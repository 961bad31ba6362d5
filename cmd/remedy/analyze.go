package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"remedy/internal/analyzer"
	"remedy/internal/diagnostic"
)

var analyzeFormat string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the analyzer and show normalized diagnostics",
	Long:  "Invokes the configured compiler/linter and prints the diagnostics remedy would act on, without generating or applying corrections",
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "text",
		"Output format: text, json, or yaml")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	repoRoot, cfg, logger, err := setup()
	if err != nil {
		return err
	}

	tool := analyzer.NewCommandTool(cfg.Analyzer, logger)
	raws, err := tool.Run(context.Background(), repoRoot)
	if err != nil {
		return err
	}

	type rejection struct {
		Code   string `json:"code" yaml:"code"`
		File   string `json:"file" yaml:"file"`
		Reason string `json:"reason" yaml:"reason"`
	}
	out := struct {
		Diagnostics []diagnostic.Diagnostic `json:"diagnostics" yaml:"diagnostics"`
		Rejected    []rejection             `json:"rejected,omitempty" yaml:"rejected,omitempty"`
	}{}

	normalizer := diagnostic.NewNormalizer(logger)
	byFile := make(map[string][]diagnostic.Raw)
	for _, r := range raws {
		byFile[r.File] = append(byFile[r.File], r)
	}
	for file, fileRaws := range byFile {
		length := 0
		if content, err := os.ReadFile(resolve(repoRoot, file)); err == nil {
			length = len(content)
		}
		diags, rejected := normalizer.Normalize(fileRaws, length)
		out.Diagnostics = append(out.Diagnostics, diags...)
		for _, r := range rejected {
			out.Rejected = append(out.Rejected, rejection{
				Code: r.Raw.Code, File: r.Raw.File, Reason: r.Err.Error(),
			})
		}
	}

	switch analyzeFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(out)
	default:
		for _, d := range out.Diagnostics {
			fmt.Printf("%s %s %s %s: %s\n", d.File, d.Span, d.Severity, d.Code, d.Message)
		}
		for _, r := range out.Rejected {
			fmt.Printf("%s %s rejected: %s\n", r.File, r.Code, r.Reason)
		}
		fmt.Printf("%d diagnostics, %d rejected\n", len(out.Diagnostics), len(out.Rejected))
		return nil
	}
}
