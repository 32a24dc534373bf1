package graph

import "sort"

// Adjacency is an undirected neighbor index built from an edge list.
type Adjacency struct {
	neighbors map[string][]string
	edges     map[string][]string // node id -> ids of incident edges
}

// BuildAdjacency indexes edges in both directions. Self-loops are ignored and
// parallel edges between the same pair contribute a single neighbor entry.
func BuildAdjacency(edges []Edge) *Adjacency {
	a := &Adjacency{
		neighbors: make(map[string][]string),
		edges:     make(map[string][]string),
	}
	seen := make(map[string]bool)

	for _, e := range edges {
		if e.Source == "" || e.Target == "" || e.Source == e.Target {
			continue
		}
		a.edges[e.Source] = append(a.edges[e.Source], e.ID)
		a.edges[e.Target] = append(a.edges[e.Target], e.ID)

		key := PairKey(e.Source, e.Target)
		if seen[key] {
			continue
		}
		seen[key] = true
		a.neighbors[e.Source] = append(a.neighbors[e.Source], e.Target)
		a.neighbors[e.Target] = append(a.neighbors[e.Target], e.Source)
	}

	return a
}

// Neighbors returns the distinct neighbors of id in edge-encounter order.
func (a *Adjacency) Neighbors(id string) []string {
	return a.neighbors[id]
}

// IncidentEdges returns the ids of edges touching id.
func (a *Adjacency) IncidentEdges(id string) []string {
	return a.edges[id]
}

// Degree returns the number of distinct neighbors of id.
func (a *Adjacency) Degree(id string) int {
	return len(a.neighbors[id])
}

// Component returns every node reachable from any seed, seeds included.
// Each node is visited once; the result is a set and carries no order.
func (a *Adjacency) Component(seeds ...string) map[string]bool {
	visited := make(map[string]bool)
	queue := make([]string, 0, len(seeds))

	for _, s := range seeds {
		if s == "" || visited[s] {
			continue
		}
		visited[s] = true
		queue = append(queue, s)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range a.neighbors[current] {
			if visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}

	return visited
}

// ConnectedComponent builds the adjacency for edges and returns the component
// reachable from seeds.
func ConnectedComponent(edges []Edge, seeds ...string) map[string]bool {
	return BuildAdjacency(edges).Component(seeds...)
}

// Components partitions nodeIDs into connected components. Each component is
// sorted and components are ordered by their smallest id.
func Components(nodeIDs []string, edges []Edge) [][]string {
	adj := BuildAdjacency(edges)
	assigned := make(map[string]bool, len(nodeIDs))

	ids := make([]string, len(nodeIDs))
	copy(ids, nodeIDs)
	sort.Strings(ids)

	var out [][]string
	for _, id := range ids {
		if assigned[id] {
			continue
		}
		comp := SortedIDs(adj.Component(id))
		for _, member := range comp {
			assigned[member] = true
		}
		out = append(out, comp)
	}
	return out
}

// SortedIDs returns the members of a set in byte order.
func SortedIDs(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
