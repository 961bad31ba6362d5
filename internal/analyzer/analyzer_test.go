package analyzer

import (
	"context"
	"testing"

	"remedy/internal/config"
	"remedy/internal/errors"
	"remedy/internal/logging"
)

func TestRunMissingCommand(t *testing.T) {
	tool := NewCommandTool(config.AnalyzerConfig{
		Command:   "no-such-analyzer-binary",
		Format:    "json-lines",
		TimeoutMs: 1000,
	}, logging.Nop())

	_, err := tool.Run(context.Background(), t.TempDir())
	if err == nil {
		t.Fatal("expected missing command to fail")
	}
	if !errors.Is(err, errors.AnalyzerUnavailable) {
		t.Errorf("error code = %v, want ANALYZER_UNAVAILABLE", errors.CodeOf(err))
	}
}

func TestRunParsesCommandOutput(t *testing.T) {
	tool := NewCommandTool(config.AnalyzerConfig{
		Command:   "sh",
		Args:      []string{"-c", `echo '{"code":"unused-async","message":"m","severity":"warning","file":"a.rs","start":0,"end":5}'`},
		Format:    "json-lines",
		TimeoutMs: 10000,
	}, logging.Nop())

	raws, err := tool.Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(raws) != 1 || raws[0].Code != "unused-async" {
		t.Errorf("records = %+v", raws)
	}
}

func TestRunToleratesNonzeroExit(t *testing.T) {
	// Linters exit nonzero when they find issues.
	tool := NewCommandTool(config.AnalyzerConfig{
		Command:   "sh",
		Args:      []string{"-c", `echo '{"code":"float-cmp","message":"m","severity":"warning","file":"a.rs","start":0,"end":5}'; exit 1`},
		Format:    "json-lines",
		TimeoutMs: 10000,
	}, logging.Nop())

	raws, err := tool.Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(raws) != 1 {
		t.Errorf("records = %+v", raws)
	}
}
