package scoring

import (
	"fmt"

	"stackaudit/internal/graph"
	"stackaudit/internal/registry"
)

// Scorer holds the pure scoring functions. It never touches graph state.
type Scorer struct {
	reg     *registry.Registry
	weights Weights
}

// NewScorer creates a Scorer over reg.
func NewScorer(reg *registry.Registry, weights Weights) *Scorer {
	return &Scorer{reg: reg, weights: weights}
}

// Registry returns the registry the scorer resolves tools against.
func (s *Scorer) Registry() *registry.Registry {
	return s.reg
}

// ScoreEdge classifies the relation between two tool ids. Friction wins over
// affinity. The result, reason included, does not depend on argument order.
func (s *Scorer) ScoreEdge(toolA, toolB string) EdgeResult {
	if toolA > toolB {
		toolA, toolB = toolB, toolA
	}

	if toolA == "" || toolB == "" {
		return EdgeResult{Status: StatusNeutral, Reason: "no tool selected on one endpoint"}
	}

	a, okA := s.reg.Lookup(toolA)
	b, okB := s.reg.Lookup(toolB)
	switch {
	case !okA && !okB:
		return EdgeResult{Status: StatusNeutral, Reason: fmt.Sprintf("unknown tools %q and %q", toolA, toolB)}
	case !okA:
		return EdgeResult{Status: StatusNeutral, Reason: fmt.Sprintf("unknown tool %q", toolA)}
	case !okB:
		return EdgeResult{Status: StatusNeutral, Reason: fmt.Sprintf("unknown tool %q", toolB)}
	}

	if registry.Friction(a, b) {
		reason := registry.FrictionNote(a, b)
		if reason == "" {
			reason = fmt.Sprintf("%s and %s are known to conflict", a.Name, b.Name)
		}
		return EdgeResult{Status: StatusCollision, Reason: reason}
	}
	if registry.Affinity(a, b) {
		return EdgeResult{Status: StatusNative, Reason: fmt.Sprintf("%s and %s integrate natively", a.Name, b.Name)}
	}
	return EdgeResult{Status: StatusNeutral, Reason: fmt.Sprintf("no declared relation between %s and %s", a.Name, b.Name)}
}

// ScoreNode scores node against its distinct neighbors.
func (s *Scorer) ScoreNode(node graph.Node, neighbors []graph.Node) NodeScore {
	if !node.HasTool() {
		return NodeScore{Score: BrokenScore, Tier: TierBroken, Notes: []string{"no tool selected"}}
	}
	tool, ok := s.reg.Lookup(node.Data.ToolID)
	if !ok {
		return NodeScore{
			Score: BrokenScore,
			Tier:  TierBroken,
			Notes: []string{fmt.Sprintf("unknown tool %q", node.Data.ToolID)},
		}
	}

	score := tool.BaseScore
	unknown := 0
	var notes []string

	for _, nb := range neighbors {
		other, ok := s.reg.Lookup(nb.Data.ToolID)
		if !ok {
			unknown++
			continue
		}
		switch {
		case registry.Friction(tool, other):
			score -= s.weights.FrictionPenalty
			note := fmt.Sprintf("collides with %s", other.Name)
			if reason := registry.FrictionNote(tool, other); reason != "" {
				note += ": " + reason
			}
			notes = append(notes, note)
		case registry.Affinity(tool, other):
			score += s.weights.AffinityBonus
		default:
			unknown++
		}
	}

	score -= unknown * s.weights.UnknownPenalty
	score = clamp(score, 0, 100)

	return NodeScore{
		Score:        score,
		Tier:         TierFor(score),
		Notes:        notes,
		UnknownCount: unknown,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
