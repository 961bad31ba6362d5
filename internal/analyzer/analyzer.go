// Package analyzer invokes the external compiler or linter and turns
// its output into raw diagnostic records.
package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"remedy/internal/config"
	"remedy/internal/diagnostic"
	"remedy/internal/errors"
	"remedy/internal/logging"
)

// Tool produces raw diagnostics for a repository.
type Tool interface {
	Run(ctx context.Context, repoRoot string) ([]diagnostic.Raw, error)
}

// CommandTool shells out to the configured analyzer command and parses
// its stdout.
type CommandTool struct {
	command string
	args    []string
	format  string
	timeout time.Duration
	logger  *logging.Logger
}

// NewCommandTool builds a tool from analyzer configuration.
func NewCommandTool(cfg config.AnalyzerConfig, logger *logging.Logger) *CommandTool {
	return &CommandTool{
		command: cfg.Command,
		args:    cfg.Args,
		format:  cfg.Format,
		timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		logger:  logger,
	}
}

// Run executes the analyzer in repoRoot and parses its output. A
// nonzero exit is not an error by itself: linters exit nonzero when
// they find issues, which is exactly the interesting case.
func (t *CommandTool) Run(ctx context.Context, repoRoot string) ([]diagnostic.Raw, error) {
	if _, err := exec.LookPath(t.command); err != nil {
		return nil, errors.New(errors.AnalyzerUnavailable,
			fmt.Sprintf("analyzer command %q not found", t.command), err)
	}

	runCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, t.command, t.args...)
	cmd.Dir = repoRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, errors.Newf(errors.AnalyzerUnavailable,
			"analyzer %q timed out after %s", t.command, t.timeout)
	}
	if err != nil {
		if _, isExit := err.(*exec.ExitError); !isExit {
			return nil, errors.New(errors.AnalyzerUnavailable,
				fmt.Sprintf("analyzer %q failed to run", t.command), err)
		}
	}

	t.logger.Debug("Analyzer finished", map[string]interface{}{
		"command":  t.command,
		"elapsed":  elapsed.String(),
		"bytes":    stdout.Len(),
		"exitCode": cmd.ProcessState.ExitCode(),
	})

	raws, err := Parse(t.format, stdout.Bytes())
	if err != nil {
		return nil, err
	}
	return raws, nil
}

// Parse decodes analyzer output in the named format.
func Parse(format string, data []byte) ([]diagnostic.Raw, error) {
	switch format {
	case "clippy-json":
		return ParseClippyJSON(data)
	case "json-lines":
		return ParseJSONLines(data)
	default:
		return nil, errors.Newf(errors.ConfigInvalid,
			"unknown analyzer output format %q", format)
	}
}
