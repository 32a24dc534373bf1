// Package scoring computes edge, node and global compatibility scores for a
// stack graph and keeps them current as the graph is edited.
//
// Every mutation re-audits only the connected component it touches: scores
// recorded for nodes in other components are never recomputed.
package scoring

import "stackaudit/internal/config"

// EdgeStatus is the derived compatibility of two connected tools.
type EdgeStatus string

const (
	// StatusUnscored is the state of an edge before its first audit.
	StatusUnscored EdgeStatus = "UNSCORED"
	// StatusNative means either tool declares affinity toward the other.
	StatusNative EdgeStatus = "NATIVE"
	// StatusCollision means either tool declares friction toward the other.
	StatusCollision EdgeStatus = "COLLISION"
	// StatusNeutral means no relation, a missing tool or an unknown tool id.
	StatusNeutral EdgeStatus = "NEUTRAL"
)

// EdgeResult is the scored state of one edge.
type EdgeResult struct {
	Status EdgeStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
}

// Tier classifies a node score.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierSolid     Tier = "solid"
	TierRisky     Tier = "risky"
	TierBroken    Tier = "broken"
)

// Tier thresholds
const (
	ExcellentThreshold = 80
	SolidThreshold     = 60
	RiskyThreshold     = 40
)

// BrokenScore is the score of a node with no usable tool.
const BrokenScore = 0

// TierFor returns the tier for a score.
func TierFor(score int) Tier {
	switch {
	case score >= ExcellentThreshold:
		return TierExcellent
	case score >= SolidThreshold:
		return TierSolid
	case score >= RiskyThreshold:
		return TierRisky
	default:
		return TierBroken
	}
}

// IsLow reports whether the tier is one of the two lowest.
func (t Tier) IsLow() bool {
	return t == TierRisky || t == TierBroken
}

// NodeScore is the scored state of one node.
type NodeScore struct {
	Score        int      `json:"score"`
	Tier         Tier     `json:"tier"`
	Notes        []string `json:"notes,omitempty"`
	UnknownCount int      `json:"unknownCount,omitempty"`
}

// Weights are the per-neighbor adjustments applied to a tool's base score.
type Weights struct {
	AffinityBonus   int
	FrictionPenalty int
	UnknownPenalty  int
}

// DefaultWeights returns the standard scoring weights.
func DefaultWeights() Weights {
	return Weights{
		AffinityBonus:   10,
		FrictionPenalty: 30,
		UnknownPenalty:  5,
	}
}

// WeightsFromConfig converts scoring configuration to Weights.
func WeightsFromConfig(cfg config.ScoringConfig) Weights {
	return Weights{
		AffinityBonus:   cfg.AffinityBonus,
		FrictionPenalty: cfg.FrictionPenalty,
		UnknownPenalty:  cfg.UnknownPenalty,
	}
}

// AuditStats describes the most recent ripple audit.
type AuditStats struct {
	Reason        string   `json:"reason"`
	Seeds         []string `json:"seeds"`
	Component     []string `json:"component"`
	NodesRescored int      `json:"nodesRescored"`
	EdgesRescored int      `json:"edgesRescored"`
}
