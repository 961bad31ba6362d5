// Package rank orders correction proposals and decides which of them
// may be applied without human approval.
package rank

import (
	"sort"

	"remedy/internal/strategy"
)

// Decision wraps a proposal with the apply verdict for this run.
type Decision struct {
	Proposal strategy.Proposal `json:"proposal"`

	// AutoApply reports whether the proposal cleared the safety and
	// confidence gates for autonomous application.
	AutoApply bool `json:"autoApply"`

	// Reason explains a negative verdict; empty when AutoApply is set.
	Reason string `json:"reason,omitempty"`
}

const (
	ReasonBelowThreshold = "below-threshold"
	ReasonRequiresReview = "requires-review"
	ReasonUnsafe         = "unsafe"
)

// Ranker orders proposals and applies the auto-apply policy.
type Ranker struct {
	// Threshold is the minimum confidence for autonomous application.
	Threshold float64

	// AllowReview additionally permits requires-review proposals above
	// the threshold. Unsafe proposals are never auto-applied, by any
	// setting.
	AllowReview bool
}

// Rank sorts proposals by confidence descending, then safety descending
// (safer first). The sort is stable, so proposals that tie on both keys
// keep their generation order, which follows strategy registration
// order.
func (r Ranker) Rank(proposals []strategy.Proposal) []Decision {
	ordered := make([]strategy.Proposal, len(proposals))
	copy(ordered, proposals)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Confidence != ordered[j].Confidence {
			return ordered[i].Confidence > ordered[j].Confidence
		}
		return ordered[i].Safety > ordered[j].Safety
	})

	decisions := make([]Decision, 0, len(ordered))
	for _, p := range ordered {
		decisions = append(decisions, r.decide(p))
	}
	return decisions
}

// Best returns the highest-ranked proposal, if any.
func (r Ranker) Best(proposals []strategy.Proposal) (Decision, bool) {
	decisions := r.Rank(proposals)
	if len(decisions) == 0 {
		return Decision{}, false
	}
	return decisions[0], true
}

func (r Ranker) decide(p strategy.Proposal) Decision {
	d := Decision{Proposal: p}

	switch p.Safety {
	case strategy.SafetyUnsafe:
		d.Reason = ReasonUnsafe
		return d
	case strategy.SafetyRequiresReview:
		if !r.AllowReview {
			d.Reason = ReasonRequiresReview
			return d
		}
	}

	if p.Confidence < r.Threshold {
		d.Reason = ReasonBelowThreshold
		return d
	}

	d.AutoApply = true
	return d
}
