// Package graph provides the stack graph model and connectivity algorithms.
package graph

// DefaultNodeType is the node type written when none is given.
const DefaultNodeType = "stack"

// Position is a 2D canvas position. The core never interprets it.
type Position struct {
	X float64 `json:"x" toml:"x"`
	Y float64 `json:"y" toml:"y"`
}

// NodeData is the domain payload carried by a node.
type NodeData struct {
	Category string `json:"category" toml:"category"`
	ToolID   string `json:"toolId,omitempty" toml:"toolId,omitempty"`
	Notes    string `json:"notes,omitempty" toml:"notes,omitempty"`
}

// Node is one category slot in a stack graph.
type Node struct {
	ID       string   `json:"id" toml:"id"`
	Type     string   `json:"type" toml:"type"`
	Position Position `json:"position" toml:"position"`
	Data     NodeData `json:"data" toml:"data"`
}

// HasTool reports whether a tool is selected on the node.
func (n Node) HasTool() bool {
	return n.Data.ToolID != ""
}

// Edge is an undirected connection between two nodes. Source and Target keep
// the order the edge was drawn in but carry no direction.
type Edge struct {
	ID     string `json:"id" toml:"id"`
	Source string `json:"source" toml:"source"`
	Target string `json:"target" toml:"target"`
}

// Touches reports whether id is one of the edge's endpoints.
func (e Edge) Touches(id string) bool {
	return e.Source == id || e.Target == id
}

// Other returns the endpoint opposite id.
func (e Edge) Other(id string) string {
	if e.Source == id {
		return e.Target
	}
	return e.Source
}

// PairKey returns an order-independent key for the edge's endpoints.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "\x00" + b
}
