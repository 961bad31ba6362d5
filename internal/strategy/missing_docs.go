package strategy

import (
	"bytes"
	"context"
	"fmt"

	"remedy/internal/astmap"
	"remedy/internal/diagnostic"
	"remedy/internal/docs"
)

// missingDocs inserts a doc comment stub above undocumented public
// declarations. The insertion is zero length at the declaration start
// so the declaration itself is never rewritten.
type missingDocs struct{}

// MissingDocs returns the doc-stub insertion strategy.
func MissingDocs() Strategy {
	return missingDocs{}
}

var documentableKinds = []string{
	"function_item", "struct_item", "enum_item", "trait_item",
	"mod_item", "const_item", "static_item", "type_item",
	"function_declaration", "method_declaration", "type_declaration",
}

func (missingDocs) Describe() Descriptor {
	return Descriptor{
		ID:        "doc-stub-insertion",
		Codes:     []string{"missing-docs", "missing_docs"},
		NodeKinds: documentableKinds,
	}
}

func (missingDocs) Generate(ctx context.Context, d diagnostic.Diagnostic, node *astmap.Context, lookup docs.Lookup) ([]Proposal, error) {
	kindOK := false
	for _, k := range documentableKinds {
		if node.NodeKind == k {
			kindOK = true
			break
		}
	}
	if !kindOK {
		return nil, nil
	}

	name := node.Fields["name"]
	if name == "" && node.Enclosing != nil {
		name = node.Enclosing.Name
	}
	if name == "" {
		return nil, nil
	}

	indent := lineIndent(node.Source, node.Span.Start)
	marker := "///"
	if node.Language == astmap.LangGo {
		marker = "//"
	}
	stub := fmt.Sprintf("%s %s %s.\n%s", marker, docVerb(node.NodeKind), name, indent)

	at := diagnostic.Span{Start: node.Span.Start, End: node.Span.Start}
	return []Proposal{{
		StrategyID:       "doc-stub-insertion",
		Span:             at,
		Replacement:      stub,
		Confidence:       0.85,
		Safety:           SafetySafe,
		ExpectedNodeKind: node.NodeKind,
		Note:             fmt.Sprintf("insert doc stub for %s", name),
	}}, nil
}

func docVerb(kind string) string {
	switch kind {
	case "function_item", "function_declaration", "method_declaration":
		return "Performs"
	case "struct_item", "enum_item", "type_item", "type_declaration":
		return "Represents"
	case "trait_item":
		return "Defines the behavior of"
	case "mod_item":
		return "Groups items related to"
	case "const_item", "static_item":
		return "Holds"
	default:
		return "Describes"
	}
}

// lineIndent returns the whitespace prefix of the line containing pos,
// used so the inserted stub lines up with the declaration below it.
func lineIndent(source []byte, pos uint32) string {
	if int(pos) > len(source) {
		return ""
	}
	lineStart := bytes.LastIndexByte(source[:pos], '\n') + 1
	i := lineStart
	for i < int(pos) && (source[i] == ' ' || source[i] == '\t') {
		i++
	}
	return string(source[lineStart:i])
}
