// Package report renders run results for humans and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"remedy/internal/diagnostic"
)

// Skip reasons surfaced in reports, beyond the apply-time ones.
const (
	SkipNoStrategy     = "no-strategy"
	SkipBelowThreshold = "below-threshold"
	SkipRequiresReview = "requires-review"
	SkipUnsafe         = "unsafe"
	SkipParseFailure   = "parse-failure"
	SkipMalformed      = "malformed-diagnostic"
	SkipUnsupported    = "unsupported-language"
	SkipOutsideRepo    = "outside-repo"
)

// Applied describes one correction that was written (or would be, in a
// dry run).
type Applied struct {
	Strategy   string          `json:"strategy" yaml:"strategy"`
	Code       string          `json:"code" yaml:"code"`
	Span       diagnostic.Span `json:"span" yaml:"span"`
	Confidence float64         `json:"confidence" yaml:"confidence"`
	Safety     string          `json:"safety" yaml:"safety"`
	Note       string          `json:"note,omitempty" yaml:"note,omitempty"`
	LedgerID   string          `json:"ledgerId,omitempty" yaml:"ledgerId,omitempty"`
}

// Skipped describes one diagnostic that produced no applied correction.
type Skipped struct {
	Code   string `json:"code" yaml:"code"`
	Reason string `json:"reason" yaml:"reason"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// FileReport is the per-file section of a run report.
type FileReport struct {
	Path    string    `json:"path" yaml:"path"`
	State   string    `json:"state" yaml:"state"`
	Applied []Applied `json:"applied,omitempty" yaml:"applied,omitempty"`
	Skipped []Skipped `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Preview string    `json:"preview,omitempty" yaml:"preview,omitempty"`
	Error   string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Run is a whole correction run.
type Run struct {
	RunID       string       `json:"runId" yaml:"runId"`
	StartedAt   time.Time    `json:"startedAt" yaml:"startedAt"`
	Duration    string       `json:"duration" yaml:"duration"`
	DryRun      bool         `json:"dryRun,omitempty" yaml:"dryRun,omitempty"`
	Diagnostics int          `json:"diagnostics" yaml:"diagnostics"`
	Rejected    int          `json:"rejected" yaml:"rejected"`
	Files       []FileReport `json:"files" yaml:"files"`
	Applied     int          `json:"applied" yaml:"applied"`
	Skipped     int          `json:"skipped" yaml:"skipped"`
	RolledBack  int          `json:"rolledBack" yaml:"rolledBack"`
	Fatal       string       `json:"fatal,omitempty" yaml:"fatal,omitempty"`
}

// Finalize recomputes the run totals from the file reports.
func (r *Run) Finalize() {
	r.Applied, r.Skipped, r.RolledBack = 0, 0, 0
	for _, f := range r.Files {
		r.Applied += len(f.Applied)
		r.Skipped += len(f.Skipped)
		if f.State == "rolled-back" || f.State == "rollback-failed" {
			r.RolledBack++
		}
	}
}

// Render writes the run in the requested format: text, json, or yaml.
func Render(w io.Writer, run Run, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(run)
	case "", "text":
		return renderText(w, run)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func renderText(w io.Writer, run Run) error {
	header := "Correction run"
	if run.DryRun {
		header += " (dry run)"
	}
	fmt.Fprintf(w, "%s %s\n", header, run.RunID)
	fmt.Fprintf(w, "  diagnostics: %d (%d rejected)\n", run.Diagnostics, run.Rejected)
	fmt.Fprintf(w, "  applied: %d, skipped: %d, rolled back: %d\n",
		run.Applied, run.Skipped, run.RolledBack)

	for _, f := range run.Files {
		fmt.Fprintf(w, "\n%s [%s]\n", f.Path, f.State)
		for _, a := range f.Applied {
			fmt.Fprintf(w, "  + %s %s %s confidence=%.2f safety=%s\n",
				a.Code, a.Span, a.Strategy, a.Confidence, a.Safety)
		}
		for _, s := range f.Skipped {
			fmt.Fprintf(w, "  - %s skipped (%s)", s.Code, s.Reason)
			if s.Detail != "" {
				fmt.Fprintf(w, ": %s", s.Detail)
			}
			fmt.Fprintln(w)
		}
		if f.Preview != "" {
			fmt.Fprintln(w, indent(f.Preview, "  "))
		}
		if f.Error != "" {
			fmt.Fprintf(w, "  ! %s\n", f.Error)
		}
	}

	if run.Fatal != "" {
		fmt.Fprintf(w, "\nFATAL: %s\n", run.Fatal)
	}
	return nil
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
