package strategy

import (
	"context"
	"fmt"
	"strings"

	"remedy/internal/astmap"
	"remedy/internal/diagnostic"
	"remedy/internal/docs"
)

// sortUnstable swaps sort() for sort_unstable() on slices of primitive
// element types, where stability buys nothing and the unstable sort is
// faster and allocation free.
type sortUnstable struct{}

// SortUnstable returns the stable-sort downgrade strategy.
func SortUnstable() Strategy {
	return sortUnstable{}
}

var primitiveElems = map[string]bool{
	"i8": true, "i16": true, "i32": true, "i64": true, "i128": true, "isize": true,
	"u8": true, "u16": true, "u32": true, "u64": true, "u128": true, "usize": true,
	"f32": true, "f64": true, "bool": true, "char": true,
}

func (sortUnstable) Describe() Descriptor {
	return Descriptor{
		ID:        "sort-stability-downgrade",
		Codes:     []string{"stable-sort-primitive", "stable_sort_primitive", "clippy::stable_sort_primitive"},
		NodeKinds: []string{"call_expression"},
		NeedsDocs: true,
	}
}

func (sortUnstable) Generate(ctx context.Context, d diagnostic.Diagnostic, node *astmap.Context, lookup docs.Lookup) ([]Proposal, error) {
	if node.NodeKind != "call_expression" {
		return nil, nil
	}

	fn := node.Fields["function"]
	receiver, method, ok := splitMethodCall(fn)
	if !ok || method != "sort" {
		return nil, nil
	}

	elem, known := elementType(node, receiver)
	if !known || !primitiveElems[elem] {
		return nil, nil
	}

	fnSpan, ok := node.FieldSpans["function"]
	if !ok {
		return nil, nil
	}
	// Replace only the trailing method name so arguments and the
	// receiver expression are untouched.
	methodStart := fnSpan.End - uint32(len(method))
	span := diagnostic.Span{Start: methodStart, End: fnSpan.End}

	confidence := 0.85
	res := lookup.Lookup(ctx, fmt.Sprintf("Vec<%s>", elem), "sort_unstable")
	if res.Known && !res.Exists {
		return nil, nil
	}
	if res.Known && res.Exists {
		confidence = 0.90
	}

	return []Proposal{{
		StrategyID:       "sort-stability-downgrade",
		Span:             span,
		Replacement:      "sort_unstable",
		Confidence:       confidence,
		Safety:           SafetySafe,
		ExpectedNodeKind: "call_expression",
		Note:             fmt.Sprintf("%s has primitive element type %s", receiver, elem),
	}}, nil
}

// splitMethodCall breaks "ids.sort" into ("ids", "sort"). Chained
// receivers keep everything before the final dot.
func splitMethodCall(fn string) (receiver, method string, ok bool) {
	i := strings.LastIndex(fn, ".")
	if i <= 0 || i == len(fn)-1 {
		return "", "", false
	}
	return fn[:i], fn[i+1:], true
}

// elementType resolves the receiver's element type from local bindings.
// Only Vec<T>, [T; N] and &[T] forms are recognized; anything else is
// treated as unknown and the strategy declines.
func elementType(node *astmap.Context, receiver string) (string, bool) {
	typ, bound := node.LocalBindings[receiver]
	if !bound || typ == "" {
		return "", false
	}
	typ = strings.TrimSpace(strings.TrimPrefix(typ, "&mut "))
	typ = strings.TrimSpace(strings.TrimPrefix(typ, "&"))
	if strings.HasPrefix(typ, "Vec<") && strings.HasSuffix(typ, ">") {
		return strings.TrimSpace(typ[4 : len(typ)-1]), true
	}
	if strings.HasPrefix(typ, "[") && strings.HasSuffix(typ, "]") {
		inner := typ[1 : len(typ)-1]
		if i := strings.Index(inner, ";"); i >= 0 {
			inner = inner[:i]
		}
		return strings.TrimSpace(inner), true
	}
	return "", false
}
