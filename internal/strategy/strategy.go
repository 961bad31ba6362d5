// Package strategy defines correction strategies and the registry that
// matches them to diagnostics. Strategies are stateless, side-effect
// free functions from (diagnostic, syntax context) to zero or more
// correction proposals; they never touch files.
package strategy

import (
	"context"
	"regexp"

	"remedy/internal/astmap"
	"remedy/internal/diagnostic"
	"remedy/internal/docs"
)

// Safety classifies whether a proposal may be applied without human
// approval. Higher values are safer.
type Safety int

const (
	// SafetyUnsafe proposals are never auto-applied, at any confidence.
	SafetyUnsafe Safety = iota
	// SafetyRequiresReview proposals are surfaced for manual approval.
	SafetyRequiresReview
	// SafetySafe proposals may be applied autonomously above the
	// configured confidence threshold.
	SafetySafe
)

func (s Safety) String() string {
	switch s {
	case SafetyUnsafe:
		return "unsafe"
	case SafetyRequiresReview:
		return "requires-review"
	case SafetySafe:
		return "safe"
	}
	return "unknown"
}

// Proposal is one candidate fix with confidence and safety metadata.
type Proposal struct {
	// StrategyID identifies the strategy that produced this proposal.
	StrategyID string `json:"strategyId"`

	// Span is the byte range to replace, relative to the file content
	// the syntax context was derived from. It is always fully contained
	// in that context's node span.
	Span diagnostic.Span `json:"span"`

	// Replacement is the new text for the span (may be empty).
	Replacement string `json:"replacement"`

	// Confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	Safety Safety `json:"safety"`

	// ExpectedNodeKind must equal the actual node kind at the span when
	// the proposal is applied, else the proposal is rejected as stale.
	ExpectedNodeKind string `json:"expectedNodeKind"`

	// ExpectedNodeText, when non-empty, requires the node text to match
	// byte for byte at apply time (precise node matching).
	ExpectedNodeText string `json:"expectedNodeText,omitempty"`

	// Note is a short human explanation of the fix.
	Note string `json:"note,omitempty"`
}

// Descriptor declares what a strategy matches and produces.
type Descriptor struct {
	// ID is the stable strategy identifier recorded in the ledger.
	ID string

	// Codes are the diagnostic codes the strategy applies to.
	Codes []string

	// MessagePattern optionally matches diagnostics by message, for
	// tools whose codes are not machine-stable. Nil to disable.
	MessagePattern *regexp.Regexp

	// NodeKinds are the node kinds the strategy may emit proposals for.
	// The registry rejects, at registration time, strategies declaring
	// a protected kind without PreciseNodeMatch.
	NodeKinds []string

	// PreciseNodeMatch opts into byte-for-byte node text verification,
	// required to target protected node kinds.
	PreciseNodeMatch bool

	// NeedsDocs marks strategies that consult the documentation
	// collaborator. Lookup failures degrade confidence, never block.
	NeedsDocs bool
}

// Strategy generates correction proposals for matching diagnostics.
type Strategy interface {
	Describe() Descriptor
	Generate(ctx context.Context, d diagnostic.Diagnostic, node *astmap.Context, lookup docs.Lookup) ([]Proposal, error)
}
