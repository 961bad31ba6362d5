package diagnostic

import (
	"remedy/internal/errors"
	"remedy/internal/logging"
)

// Rejected pairs a raw record with the reason it failed validation.
type Rejected struct {
	Raw Raw
	Err error
}

// Normalizer validates raw records into Diagnostics. Rejection of a
// record is non-fatal to the batch.
type Normalizer struct {
	logger *logging.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(logger *logging.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize validates each raw record against the length of the file
// content in effect at ingestion time. Records violating
// start <= end <= fileLength are rejected with a MalformedDiagnostic
// error and excluded; unknown codes pass through untouched (they simply
// yield no proposals downstream).
func (n *Normalizer) Normalize(raws []Raw, fileLength int) ([]Diagnostic, []Rejected) {
	diags := make([]Diagnostic, 0, len(raws))
	rejected := make([]Rejected, 0)

	for _, r := range raws {
		if err := validateRaw(r, fileLength); err != nil {
			n.logger.Warn("Rejecting malformed diagnostic", map[string]interface{}{
				"code":  r.Code,
				"file":  r.File,
				"start": r.Start,
				"end":   r.End,
			})
			rejected = append(rejected, Rejected{Raw: r, Err: err})
			continue
		}

		diags = append(diags, Diagnostic{
			Code:       r.Code,
			Message:    r.Message,
			Severity:   ParseSeverity(r.Severity),
			File:       r.File,
			Span:       Span{Start: uint32(r.Start), End: uint32(r.End)},
			Suggestion: r.Suggestion,
		})
	}

	return diags, rejected
}

func validateRaw(r Raw, fileLength int) error {
	if r.File == "" {
		return errors.Newf(errors.MalformedDiagnostic, "diagnostic %q has no file", r.Code)
	}
	if r.Start < 0 || r.End < r.Start {
		return errors.Newf(errors.MalformedDiagnostic,
			"diagnostic %q has invalid span %d..%d", r.Code, r.Start, r.End)
	}
	if r.End > fileLength {
		return errors.Newf(errors.MalformedDiagnostic,
			"diagnostic %q span %d..%d exceeds file length %d", r.Code, r.Start, r.End, fileLength)
	}
	if r.Message == "" {
		return errors.Newf(errors.MalformedDiagnostic, "diagnostic %q has no message", r.Code)
	}
	return nil
}

// CountAtOrAbove counts diagnostics whose severity is at or above floor.
// The safe application engine uses this for non-regression verification.
func CountAtOrAbove(diags []Diagnostic, floor Severity) int {
	count := 0
	for _, d := range diags {
		if d.Severity >= floor {
			count++
		}
	}
	return count
}
