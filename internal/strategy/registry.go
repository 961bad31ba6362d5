package strategy

import (
	"context"
	"fmt"

	"remedy/internal/astmap"
	"remedy/internal/diagnostic"
	"remedy/internal/docs"
	"remedy/internal/errors"
	"remedy/internal/logging"
)

// ProtectedNodeKinds are node kinds a strategy may not target without
// opting into precise node matching. Pattern-based strategies blindly
// firing on these kinds is exactly the class of corruption (mangled
// field accesses, stripped returns, rewritten literals) this gate
// prevents.
var ProtectedNodeKinds = map[string]bool{
	// field accesses
	"field_expression":    true,
	"selector_expression": true,
	// return statements
	"return_expression": true,
	"return_statement":  true,
	// string/regex/char literals
	"string_literal":             true,
	"raw_string_literal":         true,
	"interpreted_string_literal": true,
	"char_literal":               true,
	// generic parameter lists
	"type_parameters":     true,
	"type_parameter_list": true,
}

// Registry is an immutable table of strategies keyed by diagnostic code
// and message pattern. Built once at startup; registration order is the
// stable tie-break order for ranking.
type Registry struct {
	byCode   map[string][]Strategy
	patterns []Strategy
	all      []Strategy
	logger   *logging.Logger
}

// NewRegistry builds a registry from explicit strategy construction.
// It rejects any strategy that declares a protected node kind without
// precise node matching.
func NewRegistry(logger *logging.Logger, strategies ...Strategy) (*Registry, error) {
	r := &Registry{
		byCode: make(map[string][]Strategy),
		logger: logger,
	}

	seen := make(map[string]bool)
	for _, s := range strategies {
		desc := s.Describe()
		if desc.ID == "" {
			return nil, fmt.Errorf("strategy with empty id")
		}
		if seen[desc.ID] {
			return nil, fmt.Errorf("duplicate strategy id %q", desc.ID)
		}
		seen[desc.ID] = true

		if !desc.PreciseNodeMatch {
			for _, kind := range desc.NodeKinds {
				if ProtectedNodeKinds[kind] {
					return nil, fmt.Errorf(
						"strategy %q targets protected node kind %q without precise node matching",
						desc.ID, kind)
				}
			}
		}

		for _, code := range desc.Codes {
			r.byCode[code] = append(r.byCode[code], s)
		}
		if desc.MessagePattern != nil {
			r.patterns = append(r.patterns, s)
		}
		r.all = append(r.all, s)
	}

	return r, nil
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int {
	return len(r.all)
}

// StrategiesFor returns the strategies matching a diagnostic, in
// registration order: code matches first, then message-pattern matches
// that did not already match by code.
func (r *Registry) StrategiesFor(d diagnostic.Diagnostic) []Strategy {
	matched := make([]Strategy, 0)
	picked := make(map[string]bool)

	for _, s := range r.byCode[d.Code] {
		matched = append(matched, s)
		picked[s.Describe().ID] = true
	}

	for _, s := range r.patterns {
		desc := s.Describe()
		if picked[desc.ID] {
			continue
		}
		if desc.MessagePattern.MatchString(d.Message) {
			matched = append(matched, s)
		}
	}

	return matched
}

// Generate invokes every matching strategy and collects all proposals.
// Generation never short-circuits: a strategy that errors or panics is
// isolated, its failure recorded, and the remaining strategies still
// run. Proposals violating the node-kind or span-containment invariants
// are dropped here, before they are ever offered.
func (r *Registry) Generate(ctx context.Context, d diagnostic.Diagnostic, node *astmap.Context, lookup docs.Lookup) ([]Proposal, []error) {
	proposals := make([]Proposal, 0)
	errs := make([]error, 0)

	for _, s := range r.StrategiesFor(d) {
		desc := s.Describe()

		generated, err := r.invokeIsolated(ctx, s, d, node, lookup)
		if err != nil {
			errs = append(errs, errors.New(errors.StrategyGeneration,
				fmt.Sprintf("strategy %q failed for %s", desc.ID, d.Code), err))
			continue
		}

		for _, p := range generated {
			if reason := r.validate(desc, p, node); reason != "" {
				r.logger.Debug("Dropping invalid proposal", map[string]interface{}{
					"strategy": desc.ID,
					"code":     d.Code,
					"reason":   reason,
				})
				continue
			}
			proposals = append(proposals, p)
		}
	}

	return proposals, errs
}

// invokeIsolated runs one strategy behind a bulkhead: a panic inside
// Generate becomes an error for that strategy only.
func (r *Registry) invokeIsolated(ctx context.Context, s Strategy, d diagnostic.Diagnostic, node *astmap.Context, lookup docs.Lookup) (proposals []Proposal, err error) {
	defer func() {
		if p := recover(); p != nil {
			proposals = nil
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return s.Generate(ctx, d, node, lookup)
}

// validate returns a non-empty rejection reason when a proposal breaks
// an invariant. Rejection yields zero proposals, never a crash.
func (r *Registry) validate(desc Descriptor, p Proposal, node *astmap.Context) string {
	if p.ExpectedNodeKind == "" {
		return "missing expected node kind"
	}

	declared := false
	for _, kind := range desc.NodeKinds {
		if kind == p.ExpectedNodeKind {
			declared = true
			break
		}
	}
	if !declared {
		return fmt.Sprintf("node kind %q not declared by strategy", p.ExpectedNodeKind)
	}

	// A proposal may target the mapped node or its enclosing
	// declaration; the span must stay inside whichever it names.
	switch {
	case p.ExpectedNodeKind == node.NodeKind:
		if !node.Span.Contains(p.Span) {
			return fmt.Sprintf("replacement span %s escapes node span %s", p.Span, node.Span)
		}
	case node.Enclosing != nil && p.ExpectedNodeKind == node.Enclosing.Kind:
		if !node.Enclosing.Span.Contains(p.Span) {
			return fmt.Sprintf("replacement span %s escapes declaration span %s",
				p.Span, node.Enclosing.Span)
		}
	default:
		return fmt.Sprintf("expected node kind %q but mapped node is %q",
			p.ExpectedNodeKind, node.NodeKind)
	}

	if desc.PreciseNodeMatch {
		if p.ExpectedNodeText == "" {
			return "precise node matching requires expected node text"
		}
		if p.ExpectedNodeText != node.Text {
			return "node text does not match byte for byte"
		}
	}

	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Sprintf("confidence %v out of range", p.Confidence)
	}

	return ""
}
