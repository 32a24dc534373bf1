package scoring

import (
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"

	"stackaudit/internal/errors"
	"stackaudit/internal/graph"
	"stackaudit/internal/registry"
	"stackaudit/internal/slogutil"
)

// Engine owns a stack graph and its derived scores. It is single-writer:
// callers serialize mutations. Every mutation finishes its ripple audit before
// returning, so readers never see a partially updated score map.
type Engine struct {
	scorer *Scorer
	logger *slog.Logger
	newID  func() string

	nodes     map[string]graph.Node
	nodeOrder []string
	edges     []graph.Edge
	pairs     map[string]string // pair key -> edge id
	adj       *graph.Adjacency

	edgeStatus map[string]EdgeResult
	nodeScores map[string]NodeScore
	lastAudit  AuditStats
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = slogutil.For(l, "scoring") }
}

// WithWeights overrides the default scoring weights.
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.scorer.weights = w }
}

// WithIDGenerator overrides UUID generation for new nodes and edges.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// NewEngine creates an empty engine scoring against reg.
func NewEngine(reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		scorer: NewScorer(reg, DefaultWeights()),
		logger: slogutil.NewDiscardLogger(),
		newID:  uuid.NewString,
	}
	e.reset()
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) reset() {
	e.nodes = make(map[string]graph.Node)
	e.nodeOrder = nil
	e.edges = nil
	e.pairs = make(map[string]string)
	e.adj = graph.BuildAdjacency(nil)
	e.edgeStatus = make(map[string]EdgeResult)
	e.nodeScores = make(map[string]NodeScore)
	e.lastAudit = AuditStats{}
}

// Scorer returns the engine's pure scorer.
func (e *Engine) Scorer() *Scorer {
	return e.scorer
}

// Load replaces the whole graph and scores it. On error the engine is left
// unchanged.
func (e *Engine) Load(nodes []graph.Node, edges []graph.Edge) error {
	staged := &Engine{scorer: e.scorer, logger: e.logger, newID: e.newID}
	staged.reset()

	for _, n := range nodes {
		if _, err := staged.insertNode(n); err != nil {
			return err
		}
	}
	for _, ed := range edges {
		if _, err := staged.insertEdge(ed); err != nil {
			return err
		}
	}

	e.nodes = staged.nodes
	e.nodeOrder = staged.nodeOrder
	e.edges = staged.edges
	e.pairs = staged.pairs
	e.edgeStatus = make(map[string]EdgeResult)
	e.nodeScores = make(map[string]NodeScore)

	e.audit("load", e.nodeOrder...)
	return nil
}

// AddNode inserts a node. An empty id is replaced with a generated one and
// an empty type with graph.DefaultNodeType.
func (e *Engine) AddNode(n graph.Node) (graph.Node, error) {
	n, err := e.insertNode(n)
	if err != nil {
		return graph.Node{}, err
	}
	e.audit("node added", n.ID)
	return n, nil
}

// RemoveNode deletes a node and every edge touching it.
func (e *Engine) RemoveNode(id string) error {
	if _, ok := e.nodes[id]; !ok {
		return errors.Newf(errors.NodeNotFound, "node %q not found", id)
	}

	neighbors := append([]string(nil), e.adj.Neighbors(id)...)

	kept := e.edges[:0]
	for _, ed := range e.edges {
		if ed.Touches(id) {
			delete(e.pairs, graph.PairKey(ed.Source, ed.Target))
			delete(e.edgeStatus, ed.ID)
			continue
		}
		kept = append(kept, ed)
	}
	e.edges = kept

	delete(e.nodes, id)
	delete(e.nodeScores, id)
	for i, nid := range e.nodeOrder {
		if nid == id {
			e.nodeOrder = append(e.nodeOrder[:i], e.nodeOrder[i+1:]...)
			break
		}
	}

	e.audit("node removed", neighbors...)
	return nil
}

// SetTool selects a tool on a node; an empty toolID clears the selection.
// Tool ids unknown to the registry are accepted and score as broken.
func (e *Engine) SetTool(nodeID, toolID string) error {
	n, ok := e.nodes[nodeID]
	if !ok {
		return errors.Newf(errors.NodeNotFound, "node %q not found", nodeID)
	}
	n.Data.ToolID = toolID
	e.nodes[nodeID] = n
	e.audit("tool changed", nodeID)
	return nil
}

// SetNotes updates a node's free-text notes. Scores are unaffected.
func (e *Engine) SetNotes(nodeID, notes string) error {
	n, ok := e.nodes[nodeID]
	if !ok {
		return errors.Newf(errors.NodeNotFound, "node %q not found", nodeID)
	}
	n.Data.Notes = notes
	e.nodes[nodeID] = n
	return nil
}

// MoveNode updates a node's canvas position. Scores are unaffected.
func (e *Engine) MoveNode(nodeID string, pos graph.Position) error {
	n, ok := e.nodes[nodeID]
	if !ok {
		return errors.Newf(errors.NodeNotFound, "node %q not found", nodeID)
	}
	n.Position = pos
	e.nodes[nodeID] = n
	return nil
}

// Connect adds an edge between two existing nodes.
func (e *Engine) Connect(source, target string) (graph.Edge, error) {
	return e.AddEdge(graph.Edge{Source: source, Target: target})
}

// AddEdge adds an edge, generating its id when empty. Self-loops, duplicate
// unordered pairs and unknown endpoints are rejected.
func (e *Engine) AddEdge(ed graph.Edge) (graph.Edge, error) {
	ed, err := e.insertEdge(ed)
	if err != nil {
		return graph.Edge{}, err
	}
	e.audit("edge added", ed.Source, ed.Target)
	return ed, nil
}

// Disconnect removes an edge. Both former endpoints seed the audit, which
// covers both halves if the removal splits a component.
func (e *Engine) Disconnect(edgeID string) error {
	for i, ed := range e.edges {
		if ed.ID != edgeID {
			continue
		}
		e.edges = append(e.edges[:i], e.edges[i+1:]...)
		delete(e.pairs, graph.PairKey(ed.Source, ed.Target))
		delete(e.edgeStatus, ed.ID)
		e.audit("edge removed", ed.Source, ed.Target)
		return nil
	}
	return errors.Newf(errors.EdgeNotFound, "edge %q not found", edgeID)
}

func (e *Engine) insertNode(n graph.Node) (graph.Node, error) {
	if n.ID == "" {
		n.ID = e.newID()
	}
	if n.Type == "" {
		n.Type = graph.DefaultNodeType
	}
	if _, dup := e.nodes[n.ID]; dup {
		return graph.Node{}, errors.Newf(errors.DuplicateID, "node %q already exists", n.ID)
	}
	e.nodes[n.ID] = n
	e.nodeOrder = append(e.nodeOrder, n.ID)
	return n, nil
}

func (e *Engine) insertEdge(ed graph.Edge) (graph.Edge, error) {
	if ed.Source == ed.Target {
		return graph.Edge{}, errors.Newf(errors.InvalidEdge, "self-loop on node %q", ed.Source)
	}
	if _, ok := e.nodes[ed.Source]; !ok {
		return graph.Edge{}, errors.Newf(errors.InvalidEdge, "edge source %q does not exist", ed.Source)
	}
	if _, ok := e.nodes[ed.Target]; !ok {
		return graph.Edge{}, errors.Newf(errors.InvalidEdge, "edge target %q does not exist", ed.Target)
	}
	key := graph.PairKey(ed.Source, ed.Target)
	if existing, dup := e.pairs[key]; dup {
		return graph.Edge{}, errors.Newf(errors.InvalidEdge, "nodes %q and %q are already connected by %q", ed.Source, ed.Target, existing)
	}
	if ed.ID == "" {
		ed.ID = e.newID()
	}
	for _, other := range e.edges {
		if other.ID == ed.ID {
			return graph.Edge{}, errors.Newf(errors.DuplicateID, "edge %q already exists", ed.ID)
		}
	}
	e.pairs[key] = ed.ID
	e.edges = append(e.edges, ed)
	return ed, nil
}

// audit rebuilds adjacency and rescores the component reachable from seeds.
func (e *Engine) audit(reason string, seeds ...string) {
	e.adj = graph.BuildAdjacency(e.edges)

	live := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if _, ok := e.nodes[s]; ok {
			live = append(live, s)
		}
	}
	component := e.adj.Component(live...)

	edgesRescored := 0
	for _, ed := range e.edges {
		if !component[ed.Source] && !component[ed.Target] {
			continue
		}
		e.edgeStatus[ed.ID] = e.scorer.ScoreEdge(e.nodes[ed.Source].Data.ToolID, e.nodes[ed.Target].Data.ToolID)
		edgesRescored++
	}

	nodesRescored := 0
	for id := range component {
		n, ok := e.nodes[id]
		if !ok {
			continue
		}
		e.nodeScores[id] = e.scorer.ScoreNode(n, e.neighborNodes(id))
		nodesRescored++
	}

	e.lastAudit = AuditStats{
		Reason:        reason,
		Seeds:         live,
		Component:     graph.SortedIDs(component),
		NodesRescored: nodesRescored,
		EdgesRescored: edgesRescored,
	}

	e.logger.Debug("ripple audit",
		"reason", reason,
		"seeds", live,
		"component", len(component),
		"nodes", nodesRescored,
		"edges", edgesRescored,
	)
}

func (e *Engine) neighborNodes(id string) []graph.Node {
	ids := e.adj.Neighbors(id)
	out := make([]graph.Node, 0, len(ids))
	for _, nid := range ids {
		if n, ok := e.nodes[nid]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Node returns a node by id.
func (e *Engine) Node(id string) (graph.Node, bool) {
	n, ok := e.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (e *Engine) Nodes() []graph.Node {
	out := make([]graph.Node, 0, len(e.nodeOrder))
	for _, id := range e.nodeOrder {
		out = append(out, e.nodes[id])
	}
	return out
}

// Edges returns all edges in insertion order.
func (e *Engine) Edges() []graph.Edge {
	out := make([]graph.Edge, len(e.edges))
	copy(out, e.edges)
	return out
}

// EdgeStatus returns the recorded result for an edge; unknown edges report
// StatusUnscored.
func (e *Engine) EdgeStatus(edgeID string) EdgeResult {
	if r, ok := e.edgeStatus[edgeID]; ok {
		return r
	}
	return EdgeResult{Status: StatusUnscored}
}

// NodeScore returns the recorded score for a node.
func (e *Engine) NodeScore(nodeID string) (NodeScore, bool) {
	s, ok := e.nodeScores[nodeID]
	return s, ok
}

// GlobalScore is the rounded mean of every node score, broken nodes
// included. An empty graph scores 100.
func (e *Engine) GlobalScore() int {
	return globalScore(e.nodeScores)
}

func globalScore(scores map[string]NodeScore) int {
	if len(scores) == 0 {
		return 100
	}
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	sum := 0
	for _, id := range ids {
		sum += scores[id].Score
	}
	return int(math.Round(float64(sum) / float64(len(ids))))
}

// LastAudit returns stats for the most recent ripple audit.
func (e *Engine) LastAudit() AuditStats {
	return e.lastAudit
}

// Components returns the graph's connected components.
func (e *Engine) Components() [][]string {
	return graph.Components(e.nodeOrder, e.edges)
}
