package apply

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"remedy/internal/astmap"
	"remedy/internal/backup"
	"remedy/internal/diagnostic"
	"remedy/internal/errors"
	"remedy/internal/logging"
	"remedy/internal/strategy"
)

// fakeSyntax answers node probes from a fixed table keyed by span.
type fakeSyntax struct {
	kinds    map[string]string
	texts    map[string]string
	parseErr error
}

func spanKey(span diagnostic.Span) string {
	return fmt.Sprintf("%d-%d", span.Start, span.End)
}

func (f *fakeSyntax) NodeAt(ctx context.Context, source []byte, lang astmap.Language, span diagnostic.Span) (string, string, bool, error) {
	kind, ok := f.kinds[spanKey(span)]
	if !ok {
		return "", "", false, fmt.Errorf("no node at %s", span)
	}
	return kind, f.texts[spanKey(span)], true, nil
}

func (f *fakeSyntax) CheckParses(ctx context.Context, source []byte, lang astmap.Language) error {
	return f.parseErr
}

func writeTestFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lib.rs")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func newTestApplier(t *testing.T, syntax Syntax, recheck Recheck) *Applier {
	t.Helper()
	store, err := backup.NewStore(filepath.Join(t.TempDir(), "backups"), false, logging.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return New(syntax, store, recheck, logging.Nop())
}

func correction(span diagnostic.Span, replacement, kind string) Correction {
	return Correction{
		Diagnostic: diagnostic.Diagnostic{Code: "unused-async", File: "lib.rs", Span: span},
		Proposal: strategy.Proposal{
			StrategyID:       "unused-async-removal",
			Span:             span,
			Replacement:      replacement,
			Confidence:       0.95,
			Safety:           strategy.SafetySafe,
			ExpectedNodeKind: kind,
		},
	}
}

func TestApplyCommits(t *testing.T) {
	content := "async fn tick() {}"
	path := writeTestFile(t, content)
	span := diagnostic.Span{Start: 0, End: 6}

	syntax := &fakeSyntax{
		kinds: map[string]string{spanKey(span): "function_item"},
	}
	a := newTestApplier(t, syntax, nil)

	res := a.Apply(context.Background(), Request{
		Path:        path,
		Language:    astmap.LangRust,
		Corrections: []Correction{correction(span, "", "function_item")},
	})

	if res.Err != nil {
		t.Fatalf("Apply: %v", res.Err)
	}
	if res.State != StateCommitted {
		t.Errorf("state = %v, want committed", res.State)
	}
	if res.AppliedCount() != 1 {
		t.Errorf("applied = %d", res.AppliedCount())
	}
	if res.Outcomes[0].Original != "async " {
		t.Errorf("Original = %q", res.Outcomes[0].Original)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "fn tick() {}" {
		t.Errorf("file = %q", got)
	}

	// The backup holds the pre-correction content.
	restored, err := a.backups.Restore(res.Backup)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if string(restored) != content {
		t.Errorf("backup = %q", restored)
	}
}

func TestApplySkipsStaleNode(t *testing.T) {
	content := "let x = c.code_hash;"
	path := writeTestFile(t, content)
	span := diagnostic.Span{Start: 8, End: 19}

	// The node at the span is a field access, not what the proposal
	// was generated against.
	syntax := &fakeSyntax{
		kinds: map[string]string{spanKey(span): "field_expression"},
	}
	a := newTestApplier(t, syntax, nil)

	res := a.Apply(context.Background(), Request{
		Path:        path,
		Language:    astmap.LangRust,
		Corrections: []Correction{correction(span, "changed", "binary_expression")},
	})

	if res.Err != nil {
		t.Fatalf("Apply: %v", res.Err)
	}
	if res.AppliedCount() != 0 {
		t.Fatal("stale correction was applied")
	}
	if res.Outcomes[0].SkipReason != SkipStaleNode {
		t.Errorf("SkipReason = %q", res.Outcomes[0].SkipReason)
	}
	if res.Backup.ID != "" {
		t.Error("no backup should be taken when nothing is written")
	}

	got, _ := os.ReadFile(path)
	if string(got) != content {
		t.Errorf("file changed: %q", got)
	}
}

func TestApplySkipsStaleNodeText(t *testing.T) {
	content := "let x = a.b;"
	path := writeTestFile(t, content)
	span := diagnostic.Span{Start: 8, End: 11}

	syntax := &fakeSyntax{
		kinds: map[string]string{spanKey(span): "field_expression"},
		texts: map[string]string{spanKey(span): "a.b"},
	}
	a := newTestApplier(t, syntax, nil)

	c := correction(span, "a.c", "field_expression")
	c.Proposal.ExpectedNodeText = "a.other" // no longer matches

	res := a.Apply(context.Background(), Request{
		Path:        path,
		Language:    astmap.LangRust,
		Corrections: []Correction{c},
	})

	if res.AppliedCount() != 0 || res.Outcomes[0].SkipReason != SkipStaleNode {
		t.Errorf("outcomes = %+v", res.Outcomes)
	}
}

func TestApplyDropsOverlappingLowerRank(t *testing.T) {
	content := "aaaa bbbb cccc"
	path := writeTestFile(t, content)
	winner := diagnostic.Span{Start: 0, End: 9}
	loser := diagnostic.Span{Start: 5, End: 14}

	syntax := &fakeSyntax{kinds: map[string]string{
		spanKey(winner): "binary_expression",
		spanKey(loser):  "binary_expression",
	}}
	a := newTestApplier(t, syntax, nil)

	res := a.Apply(context.Background(), Request{
		Path:     path,
		Language: astmap.LangRust,
		Corrections: []Correction{
			correction(winner, "WIN", "binary_expression"),
			correction(loser, "LOSE", "binary_expression"),
		},
	})

	if res.Err != nil {
		t.Fatalf("Apply: %v", res.Err)
	}
	if res.Outcomes[0].SkipReason != "" || !res.Outcomes[0].Applied {
		t.Errorf("winner outcome = %+v", res.Outcomes[0])
	}
	if res.Outcomes[1].SkipReason != SkipOverlapping {
		t.Errorf("loser SkipReason = %q", res.Outcomes[1].SkipReason)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "WIN cccc" {
		t.Errorf("file = %q", got)
	}
}

func TestApplyMultipleAscending(t *testing.T) {
	content := "one two three"
	path := writeTestFile(t, content)
	first := diagnostic.Span{Start: 0, End: 3}
	second := diagnostic.Span{Start: 8, End: 13}

	syntax := &fakeSyntax{kinds: map[string]string{
		spanKey(first):  "identifier_like",
		spanKey(second): "identifier_like",
	}}
	a := newTestApplier(t, syntax, nil)

	// Ranked order puts the later span first; splicing still applies
	// both at their original coordinates.
	res := a.Apply(context.Background(), Request{
		Path:     path,
		Language: astmap.LangRust,
		Corrections: []Correction{
			correction(second, "THREE", "identifier_like"),
			correction(first, "ONE", "identifier_like"),
		},
	})

	if res.AppliedCount() != 2 {
		t.Fatalf("applied = %d, outcomes %+v", res.AppliedCount(), res.Outcomes)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "ONE two THREE" {
		t.Errorf("file = %q", got)
	}
}

func TestApplyRollsBackWhenParseFails(t *testing.T) {
	content := "async fn tick() {}"
	path := writeTestFile(t, content)
	span := diagnostic.Span{Start: 0, End: 6}

	syntax := &fakeSyntax{
		kinds:    map[string]string{spanKey(span): "function_item"},
		parseErr: fmt.Errorf("syntax error"),
	}
	a := newTestApplier(t, syntax, nil)

	res := a.Apply(context.Background(), Request{
		Path:        path,
		Language:    astmap.LangRust,
		Corrections: []Correction{correction(span, "", "function_item")},
	})

	if res.State != StateRolledBack {
		t.Fatalf("state = %v, want rolled-back", res.State)
	}
	if !errors.Is(res.Err, errors.VerificationFailed) {
		t.Errorf("err = %v, want VERIFICATION_FAILED", res.Err)
	}
	if res.AppliedCount() != 0 {
		t.Error("rolled-back corrections must not count as applied")
	}

	got, _ := os.ReadFile(path)
	if string(got) != content {
		t.Errorf("file not restored: %q", got)
	}
}

func TestApplyRollsBackWhenDiagnosticsGrow(t *testing.T) {
	content := "async fn tick() {}"
	path := writeTestFile(t, content)
	span := diagnostic.Span{Start: 0, End: 6}

	syntax := &fakeSyntax{
		kinds: map[string]string{spanKey(span): "function_item"},
	}
	var gotFloor diagnostic.Severity
	recheck := func(ctx context.Context, p string, floor diagnostic.Severity) (int, error) {
		gotFloor = floor
		return 5, nil
	}
	a := newTestApplier(t, syntax, recheck)

	res := a.Apply(context.Background(), Request{
		Path:             path,
		Language:         astmap.LangRust,
		Corrections:      []Correction{correction(span, "", "function_item")},
		BaselineCount:    2,
		BaselineSeverity: diagnostic.SeverityInfo,
	})

	if res.State != StateRolledBack {
		t.Fatalf("state = %v, want rolled-back", res.State)
	}
	if gotFloor != diagnostic.SeverityInfo {
		t.Errorf("recheck floor = %v, want the corrected severity", gotFloor)
	}
	got, _ := os.ReadFile(path)
	if string(got) != content {
		t.Errorf("file not restored: %q", got)
	}
}

func TestApplyDryRun(t *testing.T) {
	content := "async fn tick() {}"
	path := writeTestFile(t, content)
	span := diagnostic.Span{Start: 0, End: 6}

	syntax := &fakeSyntax{
		kinds: map[string]string{spanKey(span): "function_item"},
	}
	a := newTestApplier(t, syntax, nil)

	res := a.Apply(context.Background(), Request{
		Path:        path,
		Language:    astmap.LangRust,
		Corrections: []Correction{correction(span, "", "function_item")},
		DryRun:      true,
	})

	if res.Err != nil {
		t.Fatalf("Apply: %v", res.Err)
	}
	if res.AppliedCount() != 1 {
		t.Errorf("dry run should report would-apply outcomes, got %d", res.AppliedCount())
	}
	if res.Backup.ID != "" {
		t.Error("dry run must not take backups")
	}
	got, _ := os.ReadFile(path)
	if string(got) != content {
		t.Errorf("dry run modified the file: %q", got)
	}
}

func TestApplySkipsOutOfRangeSpan(t *testing.T) {
	content := "short"
	path := writeTestFile(t, content)
	span := diagnostic.Span{Start: 2, End: 50}

	a := newTestApplier(t, &fakeSyntax{}, nil)

	res := a.Apply(context.Background(), Request{
		Path:        path,
		Language:    astmap.LangRust,
		Corrections: []Correction{correction(span, "x", "binary_expression")},
	})

	if res.Outcomes[0].SkipReason != SkipOutOfRange {
		t.Errorf("SkipReason = %q", res.Outcomes[0].SkipReason)
	}
}
