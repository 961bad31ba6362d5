// Package astmap resolves diagnostic byte spans to syntax-tree nodes and
// the semantic context around them, using tree-sitter.
//
// The Context type is plain data: correction strategies consume it
// without touching tree-sitter, so they build and test without CGO.
package astmap

import (
	"path/filepath"
	"strings"

	"remedy/internal/diagnostic"
)

// Language represents a supported programming language.
type Language string

const (
	LangRust Language = "rust"
	LangGo   Language = "go"
)

// LanguageFromExtension maps a file extension to a language.
func LanguageFromExtension(ext string) (Language, bool) {
	switch strings.ToLower(ext) {
	case ".rs":
		return LangRust, true
	case ".go":
		return LangGo, true
	default:
		return "", false
	}
}

// LanguageForPath detects the language of a file from its path.
func LanguageForPath(path string) (Language, bool) {
	return LanguageFromExtension(filepath.Ext(path))
}

// DeclInfo describes the declaration enclosing a mapped node.
type DeclInfo struct {
	// Kind is the tree-sitter node kind of the declaration.
	Kind string
	// Name is the declared name, empty when the grammar has none.
	Name string
	// Span covers the whole declaration.
	Span diagnostic.Span
	// Text is the declaration's source text.
	Text string
	// AwaitCount is the number of suspension points (await expressions)
	// inside the declaration body. Zero for non-async languages.
	AwaitCount int
	// HasBody reports whether the declaration has a body node.
	HasBody bool
}

// Context is the syntax-tree node and surrounding semantic facts
// associated with one diagnostic's span. Derived lazily per diagnostic
// and invalidated if the file content changes.
type Context struct {
	Path     string
	Language Language
	Source   []byte

	// NodeKind is the kind of the smallest node containing the span.
	NodeKind string
	// Span is the node's own span (contains the diagnostic span unless
	// SpanApproximate is set).
	Span diagnostic.Span
	// Text is the node's source text.
	Text string

	// Fields maps tree-sitter field names (left, right, operator,
	// function, body, ...) of the node's children to their text.
	Fields map[string]string
	// FieldSpans carries the spans of the same children.
	FieldSpans map[string]diagnostic.Span

	// AncestorKinds lists the kinds of the node's ancestors, innermost
	// first, up to the file root.
	AncestorKinds []string

	// Enclosing is the nearest enclosing declaration, nil at file scope.
	Enclosing *DeclInfo

	// LocalBindings maps identifiers bound in the enclosing declaration
	// (parameters and local lets/vars) to their declared type text;
	// the type text is empty when the declaration is untyped.
	LocalBindings map[string]string

	// Imports lists the file's import/use targets.
	Imports []string

	// ScopeIdentifiers lists distinct identifiers referenced in the
	// file outside import declarations, in order of first appearance.
	ScopeIdentifiers []string

	// SpanApproximate is set when no node fully contained the
	// diagnostic span and the smallest overlapping node was used.
	SpanApproximate bool
}

// declKinds returns the node kinds treated as declarations.
func declKinds(lang Language) map[string]bool {
	switch lang {
	case LangRust:
		return map[string]bool{
			"function_item": true, "struct_item": true, "enum_item": true,
			"union_item": true, "trait_item": true, "impl_item": true,
			"mod_item": true, "const_item": true, "static_item": true,
			"type_item": true, "macro_definition": true,
		}
	case LangGo:
		return map[string]bool{
			"function_declaration": true, "method_declaration": true,
			"type_declaration": true, "const_declaration": true,
			"var_declaration": true,
		}
	default:
		return nil
	}
}

// awaitKind returns the node kind marking a suspension point, empty when
// the language has none.
func awaitKind(lang Language) string {
	if lang == LangRust {
		return "await_expression"
	}
	return ""
}

// identifierKinds returns the node kinds counted as identifier references.
func identifierKinds(lang Language) map[string]bool {
	return map[string]bool{
		"identifier":      true,
		"type_identifier": true,
	}
}

// importKind returns the node kind of import/use declarations.
func importKind(lang Language) string {
	switch lang {
	case LangRust:
		return "use_declaration"
	case LangGo:
		return "import_declaration"
	default:
		return ""
	}
}

// contextFieldNames are the tree-sitter field names surfaced in
// Context.Fields when present on the mapped node.
var contextFieldNames = []string{
	"name", "left", "right", "operator", "function", "arguments",
	"body", "type", "value", "pattern", "argument", "parameters",
	"return_type", "condition", "path", "alias",
}
