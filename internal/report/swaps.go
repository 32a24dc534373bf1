package report

import (
	"sort"

	"stackaudit/internal/graph"
	"stackaudit/internal/registry"
	"stackaudit/internal/scoring"
)

// swaps suggests alternatives for both endpoints of every collision edge, in
// edge order. Endpoints without a qualifying candidate are left out.
func (b *builder) swaps() []Swap {
	out := []Swap{}
	for _, e := range b.snap.Edges {
		res, ok := b.snap.EdgeStatus[e.ID]
		if !ok || res.Status != scoring.StatusCollision {
			continue
		}
		src, _ := b.snap.NodeByID(e.Source)
		dst, _ := b.snap.NodeByID(e.Target)

		for _, pair := range [][2]graph.Node{{src, dst}, {dst, src}} {
			node, other := pair[0], pair[1]
			cands := b.candidates(node, other)
			if len(cands) == 0 {
				continue
			}
			out = append(out, Swap{
				EdgeID:     e.ID,
				NodeID:     node.ID,
				Category:   b.category(node),
				Current:    node.Data.ToolID,
				Against:    other.Data.ToolID,
				Candidates: cands,
			})
		}
	}
	return out
}

// category is the registry category of the node's tool, or the node's own
// category when the tool is unknown.
func (b *builder) category(n graph.Node) string {
	if t, ok := b.reg.Lookup(n.Data.ToolID); ok {
		return t.Category
	}
	return n.Data.Category
}

// candidates lists replacement tools for node that work with other's tool:
// same category, not the current tool, declaring affinity toward the other
// tool and free of friction with it in either direction. Mutual affinity
// ranks first, then base score descending, then name.
func (b *builder) candidates(node, other graph.Node) []Candidate {
	if b.reg == nil || b.opts.MaxSwaps <= 0 {
		return nil
	}
	against, ok := b.reg.Lookup(other.Data.ToolID)
	if !ok {
		return nil
	}

	var out []Candidate
	for _, t := range b.reg.ByCategory(b.category(node)) {
		if t.ID == node.Data.ToolID || t.ID == against.ID {
			continue
		}
		if !t.DeclaresAffinity(against.ID) || registry.Friction(t, against) {
			continue
		}
		out = append(out, Candidate{
			ToolID:    t.ID,
			Name:      t.Name,
			BaseScore: t.BaseScore,
			Mutual:    against.DeclaresAffinity(t.ID),
			Install:   t.Install,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Mutual != out[j].Mutual {
			return out[i].Mutual
		}
		if out[i].BaseScore != out[j].BaseScore {
			return out[i].BaseScore > out[j].BaseScore
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ToolID < out[j].ToolID
	})

	if len(out) > b.opts.MaxSwaps {
		out = out[:b.opts.MaxSwaps]
	}
	return out
}
