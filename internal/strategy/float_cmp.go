package strategy

import (
	"context"
	"fmt"
	"strings"

	"remedy/internal/astmap"
	"remedy/internal/diagnostic"
	"remedy/internal/docs"
)

// floatCmp rewrites direct floating-point equality into an
// epsilon-bounded comparison. The rewrite changes numeric semantics, so
// it always requires review regardless of confidence.
type floatCmp struct{}

// FloatCmp returns the float-equality rewrite strategy.
func FloatCmp() Strategy {
	return floatCmp{}
}

func (floatCmp) Describe() Descriptor {
	return Descriptor{
		ID:        "float-eq-epsilon",
		Codes:     []string{"float-cmp", "float_cmp", "clippy::float_cmp"},
		NodeKinds: []string{"binary_expression"},
	}
}

func (floatCmp) Generate(ctx context.Context, d diagnostic.Diagnostic, node *astmap.Context, lookup docs.Lookup) ([]Proposal, error) {
	if node.NodeKind != "binary_expression" {
		return nil, nil
	}

	left := node.Fields["left"]
	right := node.Fields["right"]
	op := node.Fields["operator"]
	if left == "" || right == "" {
		return nil, nil
	}

	var cmp string
	switch op {
	case "==":
		cmp = "<"
	case "!=":
		cmp = ">="
	default:
		return nil, nil
	}

	epsilon := epsilonFor(node, left, right)
	replacement := fmt.Sprintf("(%s - %s).abs() %s %s", left, right, cmp, epsilon)

	return []Proposal{{
		StrategyID:       "float-eq-epsilon",
		Span:             node.Span,
		Replacement:      replacement,
		Confidence:       0.95,
		Safety:           SafetyRequiresReview,
		ExpectedNodeKind: "binary_expression",
		Note:             "replace exact float comparison with epsilon bound",
	}}, nil
}

// epsilonFor picks the epsilon constant matching the operands' declared
// type when the local bindings reveal one; f64 otherwise.
func epsilonFor(node *astmap.Context, left, right string) string {
	for _, operand := range []string{left, right} {
		if t, ok := node.LocalBindings[operand]; ok {
			if strings.Contains(t, "f32") {
				return "f32::EPSILON"
			}
			if strings.Contains(t, "f64") {
				return "f64::EPSILON"
			}
		}
	}
	return "f64::EPSILON"
}
