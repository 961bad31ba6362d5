package strategy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"remedy/internal/astmap"
	"remedy/internal/diagnostic"
	"remedy/internal/docs"
)

// wildcardImport replaces a wildcard use declaration with an explicit
// symbol list computed from identifiers actually referenced in the file.
// Candidate symbols follow the type/trait naming convention (leading
// uppercase) and are individually checked against the documentation
// service when it is available; unknown answers degrade confidence
// instead of blocking.
type wildcardImport struct{}

// WildcardImport returns the import-normalization strategy.
func WildcardImport() Strategy {
	return wildcardImport{}
}

func (wildcardImport) Describe() Descriptor {
	return Descriptor{
		ID:        "wildcard-import-expansion",
		Codes:     []string{"wildcard-imports", "wildcard_imports", "clippy::wildcard_imports"},
		NodeKinds: []string{"use_declaration"},
		NeedsDocs: true,
	}
}

func (wildcardImport) Generate(ctx context.Context, d diagnostic.Diagnostic, node *astmap.Context, lookup docs.Lookup) ([]Proposal, error) {
	if node.NodeKind != "use_declaration" {
		return nil, nil
	}

	arg := node.Fields["argument"]
	if !strings.HasSuffix(arg, "::*") {
		return nil, nil
	}
	prefix := strings.TrimSuffix(arg, "::*")

	candidates := referencedSymbols(node, prefix)
	if len(candidates) == 0 {
		return nil, nil
	}

	confidence := 0.70
	confirmed := 0
	unknown := 0
	kept := make([]string, 0, len(candidates))
	for _, name := range candidates {
		res := lookup.Lookup(ctx, prefix, name)
		switch {
		case res.Known && !res.Exists:
			// Definitely not exported by this module.
			continue
		case res.Known && res.Exists:
			confirmed++
			kept = append(kept, name)
		default:
			unknown++
			kept = append(kept, name)
		}
	}
	if len(kept) == 0 {
		return nil, nil
	}
	if unknown == 0 && confirmed == len(kept) {
		confidence = 0.85
	} else if unknown > 0 {
		confidence = 0.60
	}

	sort.Strings(kept)
	replacement := fmt.Sprintf("use %s::{%s};", prefix, strings.Join(kept, ", "))

	return []Proposal{{
		StrategyID:       "wildcard-import-expansion",
		Span:             node.Span,
		Replacement:      replacement,
		Confidence:       confidence,
		Safety:           SafetyRequiresReview,
		ExpectedNodeKind: "use_declaration",
		Note:             fmt.Sprintf("expand %s::* to %d referenced symbols", prefix, len(kept)),
	}}, nil
}

// referencedSymbols filters the file's referenced identifiers down to
// plausible imports: upper-case initial (Rust type/trait convention),
// not bound locally, and not already brought in by another import.
func referencedSymbols(node *astmap.Context, wildcardPrefix string) []string {
	importedElsewhere := make(map[string]bool)
	for _, imp := range node.Imports {
		if strings.HasSuffix(imp, "::*") {
			continue
		}
		segments := strings.Split(imp, "::")
		importedElsewhere[segments[len(segments)-1]] = true
	}

	out := make([]string, 0)
	for _, id := range node.ScopeIdentifiers {
		if id == "" || !unicode.IsUpper(rune(id[0])) {
			continue
		}
		if _, bound := node.LocalBindings[id]; bound {
			continue
		}
		if importedElsewhere[id] {
			continue
		}
		out = append(out, id)
	}
	return out
}
