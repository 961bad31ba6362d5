// Package diagnostic defines the uniform in-memory form of compiler and
// linter diagnostics, and the normalizer that validates raw records
// coming from the external analysis tool.
package diagnostic

import "fmt"

// Severity classifies how serious a diagnostic is.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return "unknown"
}

// ParseSeverity maps tool-reported severity strings onto Severity.
// Unrecognized values map to info rather than failing normalization.
func ParseSeverity(s string) Severity {
	switch s {
	case "error", "Error", "ERROR":
		return SeverityError
	case "warning", "warn", "Warning", "WARN":
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Span is a half-open byte range [Start, End) into a specific file's
// content as it was at ingestion time.
type Span struct {
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return int(s.End) - int(s.Start)
}

// Contains reports whether other lies fully inside s. Zero-length spans
// (insertion points) are contained when their position is within s.
func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}

// Overlaps reports whether two spans conflict. Spans are half-open; two
// zero-length spans never overlap, and a zero-length span conflicts with
// a non-empty one when its position falls strictly inside it.
func (s Span) Overlaps(other Span) bool {
	if s.Start == s.End && other.Start == other.End {
		return false
	}
	if s.Start == s.End {
		return other.Start <= s.Start && s.Start < other.End
	}
	if other.Start == other.End {
		return s.Start <= other.Start && other.Start < s.End
	}
	return s.Start < other.End && other.Start < s.End
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// Raw is a diagnostic record as emitted by the external analysis tool,
// before validation.
type Raw struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Severity   string `json:"severity"`
	File       string `json:"file"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Diagnostic is the normalized, immutable form of one diagnostic.
// Created per analysis run and discarded after the run.
type Diagnostic struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Severity   Severity `json:"severity"`
	File       string   `json:"file"`
	Span       Span     `json:"span"`
	Suggestion string   `json:"suggestion,omitempty"` // compiler-suggested replacement, may be empty
}
