package strategy

import (
	"context"
	"strings"

	"remedy/internal/astmap"
	"remedy/internal/diagnostic"
	"remedy/internal/docs"
)

// unusedAsync removes an async marker from a function whose body has no
// suspension points. Removal is only valid when the enclosing function
// contains zero await expressions; otherwise the function genuinely
// suspends and the marker stays.
type unusedAsync struct{}

// UnusedAsync returns the unused-async keyword-removal strategy.
func UnusedAsync() Strategy {
	return unusedAsync{}
}

func (unusedAsync) Describe() Descriptor {
	return Descriptor{
		ID:        "unused-async-removal",
		Codes:     []string{"unused-async", "unused_async", "clippy::unused_async"},
		NodeKinds: []string{"function_modifiers", "function_item"},
	}
}

func (unusedAsync) Generate(ctx context.Context, d diagnostic.Diagnostic, node *astmap.Context, lookup docs.Lookup) ([]Proposal, error) {
	if node.Enclosing == nil || node.Enclosing.Kind != "function_item" {
		return nil, nil
	}
	if !node.Enclosing.HasBody || node.Enclosing.AwaitCount != 0 {
		// The function actually suspends; removing async would not compile.
		return nil, nil
	}

	// Anchor on the diagnostic span: it must cover exactly the keyword.
	if int(d.Span.End) > len(node.Source) {
		return nil, nil
	}
	covered := string(node.Source[d.Span.Start:d.Span.End])
	if strings.TrimRight(covered, " \t") != "async" {
		return nil, nil
	}

	// Swallow trailing spaces so "async fn" becomes "fn". The span may
	// step past a modifiers node, so the proposal targets the enclosing
	// function instead.
	span := d.Span
	for int(span.End) < len(node.Source) && span.End < node.Enclosing.Span.End && node.Source[span.End] == ' ' {
		span.End++
	}

	return []Proposal{{
		StrategyID:       "unused-async-removal",
		Span:             span,
		Replacement:      "",
		Confidence:       0.95,
		Safety:           SafetySafe,
		ExpectedNodeKind: "function_item",
		Note:             "remove async marker from function with no suspension points",
	}}, nil
}
