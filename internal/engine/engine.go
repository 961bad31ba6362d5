// Package engine orchestrates a correction run: analyze, normalize,
// map, generate, rank, apply, record.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"remedy/internal/analyzer"
	"remedy/internal/apply"
	"remedy/internal/astmap"
	"remedy/internal/backup"
	"remedy/internal/config"
	"remedy/internal/diagnostic"
	"remedy/internal/docs"
	"remedy/internal/errors"
	"remedy/internal/ledger"
	"remedy/internal/logging"
	"remedy/internal/paths"
	"remedy/internal/rank"
	"remedy/internal/report"
	"remedy/internal/strategy"
)

// Options tune a single run on top of the repository configuration.
type Options struct {
	DryRun      bool
	AllowReview bool
	// Threshold overrides the configured auto-apply threshold when
	// non-nil. An explicit zero is a valid override.
	Threshold *float64
	// Recheck re-runs the analyzer during verification. Off by default
	// because it runs the full analysis once per modified file.
	Recheck bool
}

// Engine wires the pipeline together for one repository. Mappers are
// constructed per file inside the run: a Mapper is not safe for
// concurrent use, and one parser crashing must never take sibling
// files with it.
type Engine struct {
	cfg      config.Config
	repoRoot string
	tool     analyzer.Tool
	registry *strategy.Registry
	lookup   docs.Lookup
	backups  *backup.Store
	ledger   *ledger.Ledger
	logger   *logging.Logger
}

// New assembles an engine from configuration. The ledger may be nil for
// dry runs where nothing is recorded.
func New(cfg config.Config, repoRoot string, tool analyzer.Tool, lookup docs.Lookup, led *ledger.Ledger, logger *logging.Logger) (*Engine, error) {
	if !astmap.IsAvailable() {
		return nil, errors.Newf(errors.InternalError,
			"this build has no parser support; rebuild with CGO enabled")
	}

	registry, err := strategy.NewRegistry(logger, strategy.Builtins()...)
	if err != nil {
		return nil, errors.New(errors.InternalError, "strategy registration failed", err)
	}

	backupDir := cfg.Backup.Dir
	if !filepath.IsAbs(backupDir) {
		backupDir = filepath.Join(repoRoot, backupDir)
	}
	backups, err := backup.NewStore(backupDir, cfg.Backup.Compress, logger)
	if err != nil {
		return nil, err
	}

	if lookup == nil {
		lookup = docs.Unavailable
	}

	return &Engine{
		cfg:      cfg,
		repoRoot: repoRoot,
		tool:     tool,
		registry: registry,
		lookup:   lookup,
		backups:  backups,
		ledger:   led,
		logger:   logger,
	}, nil
}

// Run performs one correction run. The returned error is fatal (a
// failed rollback or a broken analyzer); per-file and per-diagnostic
// problems are reported in the run report instead.
func (e *Engine) Run(ctx context.Context, opts Options) (report.Run, error) {
	start := time.Now()
	run := report.Run{
		RunID:     uuid.New().String(),
		StartedAt: start.UTC(),
		DryRun:    opts.DryRun,
	}

	raws, err := e.tool.Run(ctx, e.repoRoot)
	if err != nil {
		run.Fatal = err.Error()
		run.Duration = time.Since(start).String()
		return run, err
	}
	run.Diagnostics = len(raws)

	byFile := make(map[string][]diagnostic.Raw)
	for _, r := range raws {
		byFile[r.File] = append(byFile[r.File], r)
	}
	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	threshold := e.cfg.AutoApplyThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	ranker := rank.Ranker{Threshold: threshold, AllowReview: opts.AllowReview}

	var mu sync.Mutex
	reports := make([]report.FileReport, 0, len(files))
	rejectedTotal := 0

	parallel := e.cfg.Run.MaxParallelFiles
	if parallel < 1 {
		parallel = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, file := range files {
		file := file
		g.Go(func() error {
			fr, rejected, err := e.processFile(gctx, ranker, run.RunID, file, byFile[file], opts)
			mu.Lock()
			reports = append(reports, fr)
			rejectedTotal += rejected
			mu.Unlock()
			return err
		})
	}
	err = g.Wait()

	sort.Slice(reports, func(i, j int) bool { return reports[i].Path < reports[j].Path })
	run.Files = reports
	run.Rejected = rejectedTotal
	run.Finalize()
	run.Duration = time.Since(start).String()

	if err != nil {
		run.Fatal = err.Error()
		return run, err
	}
	return run, nil
}

// processFile runs the per-file pipeline. Only a failed rollback is
// returned as an error; everything else lands in the file report.
func (e *Engine) processFile(ctx context.Context, ranker rank.Ranker, runID, file string, raws []diagnostic.Raw, opts Options) (report.FileReport, int, error) {
	fr := report.FileReport{Path: file, State: "skipped"}

	mapper := astmap.NewMapper()
	var recheck apply.Recheck
	if opts.Recheck {
		recheck = e.recheckFile
	}
	applier := apply.New(mapper, e.backups, recheck, e.logger)

	lang, ok := astmap.LanguageForPath(file)
	if !ok {
		for _, r := range raws {
			fr.Skipped = append(fr.Skipped, report.Skipped{
				Code: r.Code, Reason: report.SkipUnsupported,
			})
		}
		return fr, 0, nil
	}

	absPath := file
	if !filepath.IsAbs(absPath) {
		absPath = filepath.Join(e.repoRoot, file)
	}
	if !paths.IsWithinRepo(absPath, e.repoRoot) {
		for _, r := range raws {
			fr.Skipped = append(fr.Skipped, report.Skipped{
				Code: r.Code, Reason: report.SkipOutsideRepo,
			})
		}
		return fr, 0, nil
	}
	if rel, err := paths.CanonicalizePath(absPath, e.repoRoot); err == nil {
		file = rel
		fr.Path = rel
	}
	source, err := readFile(absPath)
	if err != nil {
		fr.Error = err.Error()
		return fr, 0, nil
	}

	normalizer := diagnostic.NewNormalizer(e.logger)
	diags, rejected := normalizer.Normalize(raws, len(source))
	for _, r := range rejected {
		fr.Skipped = append(fr.Skipped, report.Skipped{
			Code: r.Raw.Code, Reason: report.SkipMalformed, Detail: r.Err.Error(),
		})
	}

	// Rejected records stay reported even when the file later fails to
	// parse; only the per-diagnostic skips below are replaced then.
	preSkips := len(fr.Skipped)

	corrections := make([]apply.Correction, 0, len(diags))
	for _, d := range diags {
		node, err := mapper.Map(ctx, file, source, lang, d.Span)
		if err != nil {
			if errors.Is(err, errors.ParseFailure) {
				// No partial trees: the whole file sits this run out.
				fr.Skipped = fr.Skipped[:preSkips]
				for _, d := range diags {
					fr.Skipped = append(fr.Skipped, report.Skipped{
						Code: d.Code, Reason: report.SkipParseFailure,
					})
				}
				fr.Error = err.Error()
				return fr, len(rejected), nil
			}
			fr.Skipped = append(fr.Skipped, report.Skipped{
				Code: d.Code, Reason: report.SkipNoStrategy, Detail: err.Error(),
			})
			continue
		}

		proposals, genErrs := e.registry.Generate(ctx, d, node, e.lookup)
		for _, genErr := range genErrs {
			e.logger.Warn("Strategy failed", map[string]interface{}{
				"file": file, "code": d.Code, "error": genErr.Error(),
			})
		}
		if len(proposals) == 0 {
			fr.Skipped = append(fr.Skipped, report.Skipped{
				Code: d.Code, Reason: report.SkipNoStrategy,
			})
			continue
		}

		best, _ := ranker.Best(proposals)
		if !best.AutoApply {
			fr.Skipped = append(fr.Skipped, report.Skipped{
				Code: d.Code, Reason: best.Reason,
				Detail: fmt.Sprintf("%s confidence=%.2f safety=%s",
					best.Proposal.StrategyID, best.Proposal.Confidence, best.Proposal.Safety),
			})
			continue
		}

		corrections = append(corrections, apply.Correction{
			Diagnostic: d,
			Proposal:   best.Proposal,
		})
	}

	if len(corrections) == 0 {
		return fr, len(rejected), nil
	}

	// Higher confidence wins span overlaps across diagnostics.
	sort.SliceStable(corrections, func(i, j int) bool {
		return corrections[i].Proposal.Confidence > corrections[j].Proposal.Confidence
	})

	// Non-regression is keyed to the lowest severity being corrected:
	// an info-level correction must not introduce new info diagnostics.
	floor := diagnostic.SeverityError
	for _, c := range corrections {
		if c.Diagnostic.Severity < floor {
			floor = c.Diagnostic.Severity
		}
	}

	res := applier.Apply(ctx, apply.Request{
		Path:             absPath,
		Language:         lang,
		Corrections:      corrections,
		BaselineCount:    diagnostic.CountAtOrAbove(diags, floor),
		BaselineSeverity: floor,
		DryRun:           opts.DryRun,
	})
	fr.State = res.State.String()
	if opts.DryRun && res.State.String() == "validated" {
		fr.State = "dry-run"
	}

	for _, o := range res.Outcomes {
		if o.Applied {
			entry := e.record(o, res, runID, file, fr.State)
			fr.Applied = append(fr.Applied, report.Applied{
				Strategy:   o.Correction.Proposal.StrategyID,
				Code:       o.Correction.Diagnostic.Code,
				Span:       o.Correction.Proposal.Span,
				Confidence: o.Correction.Proposal.Confidence,
				Safety:     o.Correction.Proposal.Safety.String(),
				Note:       o.Correction.Proposal.Note,
				LedgerID:   entry,
			})
		} else if o.SkipReason != "" {
			fr.Skipped = append(fr.Skipped, report.Skipped{
				Code:   o.Correction.Diagnostic.Code,
				Reason: o.SkipReason,
			})
		}
	}

	if len(res.NewContent) > 0 {
		preview, err := report.UnifiedPreview(file, res.Original, res.NewContent)
		if err == nil {
			fr.Preview = preview
		}
	}

	if res.Err != nil {
		fr.Error = res.Err.Error()
		if res.State == apply.StateRollbackFailed {
			// Not recoverable: the file on disk cannot be trusted.
			return fr, len(rejected), res.Err
		}
		// Verification failure rolled the file back; applied outcomes
		// did not survive.
		fr.Applied = nil
	}

	return fr, len(rejected), nil
}

// record appends one applied correction to the ledger and returns the
// entry ID. Dry runs and ledger-less engines record nothing.
func (e *Engine) record(o apply.Outcome, res apply.Result, runID, file, state string) string {
	if e.ledger == nil || res.Backup.ID == "" || state == "dry-run" {
		return ""
	}
	entry, err := e.ledger.Append(ledger.Entry{
		RunID:             runID,
		File:              file,
		DiagnosticCode:    o.Correction.Diagnostic.Code,
		DiagnosticMessage: o.Correction.Diagnostic.Message,
		StrategyID:        o.Correction.Proposal.StrategyID,
		Span:              o.Correction.Proposal.Span,
		Original:          o.Original,
		Replacement:       o.Correction.Proposal.Replacement,
		Confidence:        o.Correction.Proposal.Confidence,
		Safety:            o.Correction.Proposal.Safety.String(),
		ResultHash:        backup.Hash(res.NewContent),
		Backup:            res.Backup,
	})
	if err != nil {
		e.logger.Error("Ledger append failed", map[string]interface{}{
			"file": file, "error": err.Error(),
		})
		return ""
	}
	return entry.ID
}

// recheckFile re-runs the analyzer and counts diagnostics at or above
// floor remaining for one file.
func (e *Engine) recheckFile(ctx context.Context, path string, floor diagnostic.Severity) (int, error) {
	raws, err := e.tool.Run(ctx, e.repoRoot)
	if err != nil {
		return 0, err
	}
	rel, relErr := filepath.Rel(e.repoRoot, path)
	count := 0
	for _, r := range raws {
		if r.File != path && (relErr != nil || r.File != rel) {
			continue
		}
		if diagnostic.ParseSeverity(r.Severity) >= floor {
			count++
		}
	}
	return count, nil
}

func readFile(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.ApplyIO,
			fmt.Sprintf("cannot read %s", path), err)
	}
	return content, nil
}
