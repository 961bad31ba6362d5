package config

import (
	"os"
	"path/filepath"
	"testing"

	"remedy/internal/paths"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.AutoApplyThreshold != 0.90 {
		t.Errorf("expected default threshold 0.90, got %v", cfg.AutoApplyThreshold)
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Analyzer.Command != "cargo" {
		t.Errorf("expected default analyzer command, got %q", cfg.Analyzer.Command)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	root := t.TempDir()

	cfg := DefaultConfig()
	cfg.AutoApplyThreshold = 0.75
	cfg.Run.MaxParallelFiles = 8
	if err := cfg.Save(root); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, paths.ConfigDirName, "config.json")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.AutoApplyThreshold != 0.75 {
		t.Errorf("expected threshold 0.75, got %v", loaded.AutoApplyThreshold)
	}
	if loaded.Run.MaxParallelFiles != 8 {
		t.Errorf("expected maxParallelFiles 8, got %v", loaded.Run.MaxParallelFiles)
	}
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoApplyThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for threshold > 1")
	}
}

func TestValidateRejectsEmptyAnalyzer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Analyzer.Command = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty analyzer command")
	}
}
