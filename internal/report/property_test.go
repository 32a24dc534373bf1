package report

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"stackaudit/internal/evidence"
	"stackaudit/internal/graph"
	"stackaudit/internal/scoring"
)

func TestProperty_ReportInvariants(t *testing.T) {
	reg := mustRegistry(t)
	idx := mustIndex(t)
	var ids []string
	for _, tool := range reg.Tools() {
		ids = append(ids, tool.ID)
	}
	ids = append(ids, "")

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(t, "n")
		nodes := make([]graph.Node, n)
		for i := range nodes {
			nodes[i] = node(fmt.Sprintf("n%d", i), "X", rapid.SampledFrom(ids).Draw(t, fmt.Sprintf("tool%d", i)))
		}
		var edges []graph.Edge
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if rapid.Bool().Draw(t, fmt.Sprintf("e%d_%d", i, j)) {
					edges = append(edges, graph.Edge{ID: fmt.Sprintf("e%d_%d", i, j), Source: nodes[i].ID, Target: nodes[j].ID})
				}
			}
		}
		snap, err := scoring.Score(reg, nodes, edges)
		if err != nil {
			t.Fatal(err)
		}

		r := Build(snap, reg, idx, fixedTime, DefaultOptions())

		if RenderMarkdown(r) != RenderMarkdown(Build(snap, reg, idx, fixedTime, DefaultOptions())) {
			t.Fatal("markdown not deterministic")
		}

		// A fix appears only when a fired risk names it.
		named := make(map[string]bool)
		for _, f := range r.Findings {
			if f.Type == FindingRisk {
				for _, id := range f.Pack.FixRuleIDs {
					named[id] = true
				}
			}
		}
		for _, f := range r.Findings {
			if f.Type == FindingFix && !named[f.RuleID] {
				t.Fatalf("fix %s emitted without a fired risk naming it", f.RuleID)
			}
		}

		// Findings are grouped by type in the fixed order.
		order := map[FindingType]int{
			FindingCollision: 0, FindingRisk: 1, FindingFix: 2, FindingPositive: 3, FindingLowScore: 4,
		}
		for i := 1; i < len(r.Findings); i++ {
			if order[r.Findings[i-1].Type] > order[r.Findings[i].Type] {
				t.Fatalf("finding %d (%s) after %s", i, r.Findings[i].Type, r.Findings[i-1].Type)
			}
		}

		collisions := 0
		for _, e := range snap.Edges {
			if snap.EdgeStatus[e.ID].Status == scoring.StatusCollision {
				collisions++
			}
		}
		if got := r.CountByType()[FindingCollision]; got != collisions {
			t.Fatalf("%d collision findings for %d collision edges", got, collisions)
		}

		for _, s := range r.Swaps {
			if len(s.Candidates) == 0 || len(s.Candidates) > DefaultOptions().MaxSwaps {
				t.Fatalf("swap %+v has %d candidates", s, len(s.Candidates))
			}
			for _, c := range s.Candidates {
				if c.ToolID == s.Current {
					t.Fatalf("swap suggests the current tool %s", c.ToolID)
				}
			}
		}

		for _, f := range r.Findings {
			if f.Type == FindingPositive && f.Severity != evidence.SeverityInfo {
				t.Fatalf("positive %s has severity %s", f.RuleID, f.Severity)
			}
		}
	})
}
