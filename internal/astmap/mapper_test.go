//go:build cgo

package astmap

import (
	"context"
	"strings"
	"testing"

	"remedy/internal/diagnostic"
	"remedy/internal/errors"
)

func spanOf(t *testing.T, source, fragment string) diagnostic.Span {
	t.Helper()
	idx := strings.Index(source, fragment)
	if idx < 0 {
		t.Fatalf("fragment %q not found in source", fragment)
	}
	return diagnostic.Span{Start: uint32(idx), End: uint32(idx + len(fragment))}
}

func TestMapSmallestContainingNode(t *testing.T) {
	source := `fn add(a: f64, b: f64) -> bool {
    a == b
}
`
	m := NewMapper()
	span := spanOf(t, source, "a == b")

	mc, err := m.Map(context.Background(), "cmp.rs", []byte(source), LangRust, span)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mc.NodeKind != "binary_expression" {
		t.Errorf("expected binary_expression, got %s", mc.NodeKind)
	}
	if mc.SpanApproximate {
		t.Error("span should be exact")
	}
	if mc.Fields["left"] != "a" || mc.Fields["right"] != "b" {
		t.Errorf("unexpected operands: left=%q right=%q", mc.Fields["left"], mc.Fields["right"])
	}
	if mc.Fields["operator"] != "==" {
		t.Errorf("expected == operator, got %q", mc.Fields["operator"])
	}
	if mc.Enclosing == nil || mc.Enclosing.Kind != "function_item" || mc.Enclosing.Name != "add" {
		t.Errorf("unexpected enclosing declaration: %+v", mc.Enclosing)
	}
	if mc.LocalBindings["a"] != "f64" {
		t.Errorf("expected binding a: f64, got %q", mc.LocalBindings["a"])
	}
}

func TestMapNodeSpanContainsDiagnosticSpan(t *testing.T) {
	source := `fn main() {
    let total = 1 + 2;
}
`
	m := NewMapper()
	span := spanOf(t, source, "1 + 2")

	mc, err := m.Map(context.Background(), "main.rs", []byte(source), LangRust, span)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mc.Span.Contains(span) {
		t.Errorf("node span %s must contain diagnostic span %s", mc.Span, span)
	}
}

func TestMapAsyncFunction(t *testing.T) {
	source := `async fn fetch(id: u32) -> u32 {
    id + 1
}
`
	m := NewMapper()
	span := spanOf(t, source, "async")

	mc, err := m.Map(context.Background(), "fetch.rs", []byte(source), LangRust, span)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mc.Enclosing == nil || mc.Enclosing.Kind != "function_item" {
		t.Fatalf("expected function_item enclosing, got %+v", mc.Enclosing)
	}
	if mc.Enclosing.AwaitCount != 0 {
		t.Errorf("expected zero suspension points, got %d", mc.Enclosing.AwaitCount)
	}
	if !mc.Enclosing.HasBody {
		t.Error("function should have a body")
	}
}

func TestMapCountsSuspensionPoints(t *testing.T) {
	source := `async fn load(id: u32) -> u32 {
    let a = first(id).await;
    let b = second(a).await;
    a + b
}
`
	m := NewMapper()
	span := spanOf(t, source, "async")

	mc, err := m.Map(context.Background(), "load.rs", []byte(source), LangRust, span)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mc.Enclosing == nil || mc.Enclosing.AwaitCount != 2 {
		t.Fatalf("expected 2 suspension points, got %+v", mc.Enclosing)
	}
}

func TestMapFieldAccessIsNotConfusedWithArithmetic(t *testing.T) {
	source := `fn hash(cached: Entry) -> u64 {
    cached.code_hash
}
`
	m := NewMapper()
	span := spanOf(t, source, "cached.code_hash")

	mc, err := m.Map(context.Background(), "entry.rs", []byte(source), LangRust, span)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mc.NodeKind != "field_expression" {
		t.Errorf("expected field_expression, got %s", mc.NodeKind)
	}
}

func TestMapImportsAndIdentifiers(t *testing.T) {
	source := `use std::collections::HashMap;

fn build() -> HashMap<String, u32> {
    let table = HashMap::new();
    table
}
`
	m := NewMapper()
	span := spanOf(t, source, "HashMap::new()")

	mc, err := m.Map(context.Background(), "build.rs", []byte(source), LangRust, span)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mc.Imports) != 1 || mc.Imports[0] != "std::collections::HashMap" {
		t.Errorf("unexpected imports: %v", mc.Imports)
	}
	found := false
	for _, id := range mc.ScopeIdentifiers {
		if id == "table" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 'table' among scope identifiers: %v", mc.ScopeIdentifiers)
	}
}

func TestMapGoSource(t *testing.T) {
	source := `package demo

func Sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
`
	m := NewMapper()
	span := spanOf(t, source, "total += v")

	mc, err := m.Map(context.Background(), "sum.go", []byte(source), LangGo, span)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mc.Enclosing == nil || mc.Enclosing.Name != "Sum" {
		t.Errorf("unexpected enclosing declaration: %+v", mc.Enclosing)
	}
	if _, ok := mc.LocalBindings["total"]; !ok {
		t.Errorf("expected binding for total, got %v", mc.LocalBindings)
	}
}

func TestMapRejectsUnparsableFile(t *testing.T) {
	source := `fn broken( {`
	m := NewMapper()

	_, err := m.Map(context.Background(), "broken.rs", []byte(source), LangRust,
		diagnostic.Span{Start: 0, End: 2})
	if err == nil {
		t.Fatal("expected parse failure")
	}
	if errors.CodeOf(err) != errors.ParseFailure {
		t.Errorf("expected ParseFailure, got %s", errors.CodeOf(err))
	}
}

func TestNodeAtDetectsKind(t *testing.T) {
	source := `fn get(cached: Entry) -> u64 {
    cached.code_hash
}
`
	m := NewMapper()
	span := spanOf(t, source, "cached.code_hash")

	kind, text, exact, err := m.NodeAt(context.Background(), []byte(source), LangRust, span)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exact {
		t.Error("expected exact containment")
	}
	if kind != "field_expression" {
		t.Errorf("expected field_expression, got %s", kind)
	}
	if text != "cached.code_hash" {
		t.Errorf("unexpected node text %q", text)
	}
}

func TestNodeAtZeroLengthSpanAnchorsToDeclaration(t *testing.T) {
	source := `pub fn run() {
    work();
}
`
	m := NewMapper()
	start := uint32(strings.Index(source, "pub"))

	kind, _, exact, err := m.NodeAt(context.Background(), []byte(source), LangRust,
		diagnostic.Span{Start: start, End: start})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exact {
		t.Error("expected exact containment")
	}
	// The insertion point must resolve to the item, not the leading
	// visibility modifier sharing its start byte.
	if kind != "function_item" {
		t.Errorf("expected function_item, got %s", kind)
	}
}

func TestCheckParses(t *testing.T) {
	m := NewMapper()
	if err := m.CheckParses(context.Background(), []byte("fn ok() {}\n"), LangRust); err != nil {
		t.Errorf("valid source should parse: %v", err)
	}
	if err := m.CheckParses(context.Background(), []byte("fn bad( {"), LangRust); err == nil {
		t.Error("invalid source should fail")
	}
}

func TestLanguageForPath(t *testing.T) {
	if lang, ok := LanguageForPath("src/lib.rs"); !ok || lang != LangRust {
		t.Errorf("expected rust, got %s/%v", lang, ok)
	}
	if lang, ok := LanguageForPath("pkg/a.go"); !ok || lang != LangGo {
		t.Errorf("expected go, got %s/%v", lang, ok)
	}
	if _, ok := LanguageForPath("readme.md"); ok {
		t.Error("markdown should be unsupported")
	}
}
