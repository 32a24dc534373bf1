package scoring

import (
	"stackaudit/internal/graph"
	"stackaudit/internal/registry"
)

// Snapshot is an immutable copy of the graph and its derived scores, handed to
// readers such as the report builder and the share codec.
type Snapshot struct {
	Nodes       []graph.Node          `json:"nodes"`
	Edges       []graph.Edge          `json:"edges"`
	EdgeStatus  map[string]EdgeResult `json:"edgeStatus"`
	NodeScores  map[string]NodeScore  `json:"nodeScores"`
	GlobalScore int                   `json:"globalScore"`
}

// Snapshot copies the current state.
func (e *Engine) Snapshot() Snapshot {
	status := make(map[string]EdgeResult, len(e.edgeStatus))
	for id, r := range e.edgeStatus {
		status[id] = r
	}
	scores := make(map[string]NodeScore, len(e.nodeScores))
	for id, s := range e.nodeScores {
		s.Notes = append([]string(nil), s.Notes...)
		scores[id] = s
	}
	return Snapshot{
		Nodes:       e.Nodes(),
		Edges:       e.Edges(),
		EdgeStatus:  status,
		NodeScores:  scores,
		GlobalScore: globalScore(scores),
	}
}

// Score loads nodes and edges into a fresh engine and returns its snapshot.
func Score(reg *registry.Registry, nodes []graph.Node, edges []graph.Edge, opts ...Option) (Snapshot, error) {
	e := NewEngine(reg, opts...)
	if err := e.Load(nodes, edges); err != nil {
		return Snapshot{}, err
	}
	return e.Snapshot(), nil
}

// ToolIDs returns the distinct tool ids selected in the snapshot, in node order.
func (s Snapshot) ToolIDs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range s.Nodes {
		if !n.HasTool() || seen[n.Data.ToolID] {
			continue
		}
		seen[n.Data.ToolID] = true
		out = append(out, n.Data.ToolID)
	}
	return out
}

// NodeByID returns a node by id.
func (s Snapshot) NodeByID(id string) (graph.Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return graph.Node{}, false
}
