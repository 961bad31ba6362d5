// Package apply performs transactional application of correction
// proposals: precondition checks, backup, write, verification, and
// rollback when verification fails.
package apply

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"remedy/internal/astmap"
	"remedy/internal/backup"
	"remedy/internal/diagnostic"
	"remedy/internal/errors"
	"remedy/internal/logging"
	"remedy/internal/strategy"
)

// State tracks how far a file got through the apply pipeline.
type State int

const (
	StatePending State = iota
	StateValidated
	StateBackedUp
	StateWritten
	StateVerified
	StateCommitted
	StateRolledBack
	StateRollbackFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateValidated:
		return "validated"
	case StateBackedUp:
		return "backed-up"
	case StateWritten:
		return "written"
	case StateVerified:
		return "verified"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled-back"
	case StateRollbackFailed:
		return "rollback-failed"
	}
	return "unknown"
}

// Skip reasons for corrections that were accepted by ranking but could
// not be written.
const (
	SkipStaleNode   = "stale-node"
	SkipOverlapping = "overlapping-span"
	SkipOutOfRange  = "span-out-of-range"
)

// Syntax is the parser surface the applier needs: a precondition probe
// and a whole-file parse check. *astmap.Mapper satisfies it.
type Syntax interface {
	NodeAt(ctx context.Context, source []byte, lang astmap.Language, span diagnostic.Span) (kind, text string, exact bool, err error)
	CheckParses(ctx context.Context, source []byte, lang astmap.Language) error
}

// Recheck re-runs diagnostics for a file after modification and returns
// how many remain at or above floor, the severity that triggered the
// corrections.
type Recheck func(ctx context.Context, path string, floor diagnostic.Severity) (int, error)

// Correction pairs a diagnostic with the proposal chosen for it.
type Correction struct {
	Diagnostic diagnostic.Diagnostic
	Proposal   strategy.Proposal
}

// Outcome reports what happened to one correction.
type Outcome struct {
	Correction Correction
	Applied    bool
	SkipReason string
	// Original is the text the proposal replaced, captured at apply
	// time for the ledger.
	Original string
}

// Request is one file's worth of corrections, in ranked priority order.
type Request struct {
	// Path is the file on disk.
	Path string
	// Language of the file.
	Language astmap.Language
	// Corrections in descending rank; earlier entries win span overlaps.
	Corrections []Correction
	// BaselineCount is the number of diagnostics at or above
	// BaselineSeverity before applying; verification fails when the
	// recheck reports more.
	BaselineCount int
	// BaselineSeverity is the lowest severity among the diagnostics
	// being corrected; the recheck counts at or above it.
	BaselineSeverity diagnostic.Severity
	// DryRun computes outcomes without touching the file.
	DryRun bool
}

// Result is the outcome for one file.
type Result struct {
	Path     string
	State    State
	Outcomes []Outcome
	Backup   backup.Ref
	// Original and NewContent are the file's bytes before and after the
	// accepted corrections, for diff previews. NewContent is set even
	// on dry runs, where the file itself is untouched.
	Original   []byte
	NewContent []byte
	// Err is the failure that stopped the pipeline, nil on commit. A
	// rollback-failed result's Err carries ROLLBACK_FAILURE and the
	// caller must surface it; the file on disk cannot be trusted.
	Err error
}

// AppliedCount returns how many corrections were written.
func (r Result) AppliedCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Applied {
			n++
		}
	}
	return n
}

// Applier runs the apply pipeline for one file at a time.
type Applier struct {
	syntax  Syntax
	backups *backup.Store
	recheck Recheck
	logger  *logging.Logger
}

// New builds an applier. recheck may be nil to skip the diagnostic
// recount during verification.
func New(syntax Syntax, backups *backup.Store, recheck Recheck, logger *logging.Logger) *Applier {
	return &Applier{
		syntax:  syntax,
		backups: backups,
		recheck: recheck,
		logger:  logger,
	}
}

// Apply runs the pipeline: validate each correction against the file as
// it is on disk right now, drop stale and overlapping ones, back the
// file up, write all surviving corrections in one pass, verify, and
// roll back when verification fails.
func (a *Applier) Apply(ctx context.Context, req Request) Result {
	res := Result{Path: req.Path, State: StatePending}

	content, err := os.ReadFile(req.Path)
	if err != nil {
		res.Err = errors.New(errors.ApplyIO,
			fmt.Sprintf("cannot read %s", req.Path), err)
		return res
	}

	res.Outcomes = a.validate(ctx, content, req)
	res.State = StateValidated

	accepted := make([]Outcome, 0, len(res.Outcomes))
	for i := range res.Outcomes {
		if res.Outcomes[i].SkipReason == "" {
			accepted = append(accepted, res.Outcomes[i])
		}
	}
	if len(accepted) == 0 {
		res.State = StateCommitted
		return res
	}

	newContent := splice(content, accepted)
	res.Original = content
	res.NewContent = newContent

	if req.DryRun {
		for i := range res.Outcomes {
			if res.Outcomes[i].SkipReason == "" {
				res.Outcomes[i].Applied = true
			}
		}
		return res
	}

	ref, err := a.backups.Snapshot(req.Path, content)
	if err != nil {
		res.Err = err
		return res
	}
	res.Backup = ref
	res.State = StateBackedUp

	info, err := os.Stat(req.Path)
	if err != nil {
		res.Err = errors.New(errors.ApplyIO,
			fmt.Sprintf("cannot stat %s", req.Path), err)
		return res
	}
	if err := writeAtomic(req.Path, newContent, info.Mode()); err != nil {
		res.Err = errors.New(errors.ApplyIO,
			fmt.Sprintf("cannot write %s", req.Path), err)
		return res
	}
	res.State = StateWritten

	if err := a.verify(ctx, req, newContent); err != nil {
		a.logger.Warn("Verification failed, rolling back", map[string]interface{}{
			"path":  req.Path,
			"error": err.Error(),
		})
		if rbErr := a.rollback(req.Path, ref, info.Mode()); rbErr != nil {
			res.State = StateRollbackFailed
			res.Err = rbErr
			return res
		}
		res.State = StateRolledBack
		res.Err = err
		return res
	}
	res.State = StateVerified

	for i := range res.Outcomes {
		if res.Outcomes[i].SkipReason == "" {
			res.Outcomes[i].Applied = true
		}
	}
	res.State = StateCommitted

	a.logger.Info("Corrections applied", map[string]interface{}{
		"path":    req.Path,
		"applied": res.AppliedCount(),
		"skipped": len(res.Outcomes) - res.AppliedCount(),
	})
	return res
}

// validate checks each correction against the current file content: the
// span must be in range, the node at the span must have the expected
// kind (and text, under precise matching), and its span must not
// overlap a higher-ranked accepted correction.
func (a *Applier) validate(ctx context.Context, content []byte, req Request) []Outcome {
	outcomes := make([]Outcome, 0, len(req.Corrections))
	taken := make([]diagnostic.Span, 0, len(req.Corrections))

	for _, c := range req.Corrections {
		o := Outcome{Correction: c}
		span := c.Proposal.Span

		if int(span.End) > len(content) || span.Start > span.End {
			o.SkipReason = SkipOutOfRange
			outcomes = append(outcomes, o)
			continue
		}

		kind, text, _, err := a.syntax.NodeAt(ctx, content, req.Language, span)
		if err != nil || kind != c.Proposal.ExpectedNodeKind {
			o.SkipReason = SkipStaleNode
			outcomes = append(outcomes, o)
			continue
		}
		if c.Proposal.ExpectedNodeText != "" && text != c.Proposal.ExpectedNodeText {
			o.SkipReason = SkipStaleNode
			outcomes = append(outcomes, o)
			continue
		}

		overlaps := false
		for _, prior := range taken {
			if span.Overlaps(prior) {
				overlaps = true
				break
			}
		}
		if overlaps {
			o.SkipReason = SkipOverlapping
			outcomes = append(outcomes, o)
			continue
		}

		o.Original = string(content[span.Start:span.End])
		taken = append(taken, span)
		outcomes = append(outcomes, o)
	}

	return outcomes
}

// splice applies accepted corrections in ascending span order, tracking
// the cumulative length delta so every span still addresses the
// original content's coordinates.
func splice(content []byte, accepted []Outcome) []byte {
	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].Correction.Proposal.Span.Start < accepted[j].Correction.Proposal.Span.Start
	})

	out := make([]byte, 0, len(content))
	cursor := uint32(0)
	for _, o := range accepted {
		span := o.Correction.Proposal.Span
		out = append(out, content[cursor:span.Start]...)
		out = append(out, o.Correction.Proposal.Replacement...)
		cursor = span.End
	}
	out = append(out, content[cursor:]...)
	return out
}

// verify re-parses the modified file and, when a recheck is wired,
// confirms the diagnostic count did not grow.
func (a *Applier) verify(ctx context.Context, req Request, content []byte) error {
	if err := a.syntax.CheckParses(ctx, content, req.Language); err != nil {
		return errors.New(errors.VerificationFailed,
			fmt.Sprintf("%s no longer parses after corrections", req.Path), err)
	}

	if a.recheck != nil {
		count, err := a.recheck(ctx, req.Path, req.BaselineSeverity)
		if err != nil {
			return errors.New(errors.VerificationFailed,
				fmt.Sprintf("diagnostic recheck failed for %s", req.Path), err)
		}
		if count > req.BaselineCount {
			return errors.Newf(errors.VerificationFailed,
				"%s has %d diagnostics after corrections, up from %d",
				req.Path, count, req.BaselineCount)
		}
	}
	return nil
}

func (a *Applier) rollback(path string, ref backup.Ref, mode os.FileMode) error {
	original, err := a.backups.Restore(ref)
	if err != nil {
		return err
	}
	if err := writeAtomic(path, original, mode); err != nil {
		return errors.New(errors.RollbackFailure,
			fmt.Sprintf("cannot restore %s from backup %s", path, ref.ID), err)
	}
	return nil
}

func writeAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".remedy-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
