package share

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"stackaudit/internal/errors"
	"stackaudit/internal/graph"
	"stackaudit/internal/registry"
)

func sampleGraph() ([]graph.Node, []graph.Edge) {
	nodes := []graph.Node{
		{ID: "host", Type: "stack", Position: graph.Position{X: 240, Y: 0}, Data: graph.NodeData{Category: "Hosting", ToolID: "vercel"}},
		{ID: "db", Type: "stack", Position: graph.Position{X: 0, Y: 12.5}, Data: graph.NodeData{Category: "Database", ToolID: "sqlite", Notes: "local dev only"}},
		{ID: "auth", Type: "stack", Data: graph.NodeData{Category: "Auth"}},
	}
	edges := []graph.Edge{
		{ID: "e2", Source: "host", Target: "auth"},
		{ID: "e1", Source: "db", Target: "host"},
	}
	return nodes, edges
}

// compress builds an encoded string from raw JSON, bypassing Encode's checks.
func compress(t *testing.T, raw string) string {
	t.Helper()
	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.BestCompression)
	require.NoError(t, err)
	_, err = zw.Write([]byte(raw))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return base64.RawURLEncoding.EncodeToString(buf.Bytes())
}

func TestCanonicalize(t *testing.T) {
	nodes, edges := sampleGraph()
	g := Canonicalize(nodes, edges)

	var ids []string
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"auth", "db", "host"}, ids)
	assert.Equal(t, "e1", g.Edges[0].ID)
	assert.Equal(t, "e2", g.Edges[1].ID)

	// Inputs are untouched.
	assert.Equal(t, "host", nodes[0].ID)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	nodes, edges := sampleGraph()

	encoded, err := Encode(nodes, edges)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(encoded), MaxEncodedLen)
	assert.NotContains(t, encoded, "=")
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")

	got, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, Canonicalize(nodes, edges), got)
}

func TestEncode_OrderIndependent(t *testing.T) {
	nodes, edges := sampleGraph()
	a, err := Encode(nodes, edges)
	require.NoError(t, err)

	reversedNodes := []graph.Node{nodes[2], nodes[1], nodes[0]}
	reversedEdges := []graph.Edge{edges[1], edges[0]}
	b, err := Encode(reversedNodes, reversedEdges)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestEncode_EmptyGraph(t *testing.T) {
	encoded, err := Encode(nil, nil)
	require.NoError(t, err)

	got, err := Decode(encoded)
	require.NoError(t, err)
	assert.Empty(t, got.Nodes)
	assert.Empty(t, got.Edges)
}

func TestEncode_Limits(t *testing.T) {
	t.Run("too many nodes", func(t *testing.T) {
		nodes := make([]graph.Node, MaxNodes+1)
		for i := range nodes {
			nodes[i] = graph.Node{ID: fmt.Sprintf("n%03d", i), Type: "stack"}
		}
		_, err := Encode(nodes, nil)
		require.Error(t, err)
		assert.Equal(t, errors.TooManyNodes, errors.CodeOf(err))
		assert.Contains(t, err.Error(), "too many nodes")
	})

	t.Run("exactly the node limit", func(t *testing.T) {
		nodes := make([]graph.Node, MaxNodes)
		for i := range nodes {
			nodes[i] = graph.Node{ID: fmt.Sprintf("n%03d", i), Type: "stack"}
		}
		_, err := Encode(nodes, nil)
		assert.NoError(t, err)
	})

	t.Run("too many edges", func(t *testing.T) {
		nodes := make([]graph.Node, 30)
		for i := range nodes {
			nodes[i] = graph.Node{ID: fmt.Sprintf("n%02d", i), Type: "stack"}
		}
		var edges []graph.Edge
		for i := 0; len(edges) <= MaxEdges; i++ {
			for j := i + 1; j < len(nodes) && len(edges) <= MaxEdges; j++ {
				edges = append(edges, graph.Edge{ID: fmt.Sprintf("e%d-%d", i, j), Source: nodes[i].ID, Target: nodes[j].ID})
			}
		}
		_, err := Encode(nodes, edges)
		assert.Equal(t, errors.TooManyEdges, errors.CodeOf(err))
	})

	t.Run("payload too large", func(t *testing.T) {
		nodes := make([]graph.Node, 60)
		for i := range nodes {
			nodes[i] = graph.Node{
				ID:   fmt.Sprintf("node-%02d", i),
				Type: "stack",
				Data: graph.NodeData{Category: "X", Notes: randomText(i, 200)},
			}
		}
		_, err := Encode(nodes, nil)
		assert.Equal(t, errors.PayloadTooLarge, errors.CodeOf(err))
	})
}

// randomText returns deterministic, poorly compressible text.
func randomText(seed, n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	var b strings.Builder
	x := uint32(seed*2654435761 + 1)
	for i := 0; i < n; i++ {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		b.WriteByte(alphabet[x%uint32(len(alphabet))])
	}
	return b.String()
}

func TestEncode_InvalidGraph(t *testing.T) {
	tests := []struct {
		name  string
		nodes []graph.Node
		edges []graph.Edge
		path  string
	}{
		{"empty id", []graph.Node{{ID: ""}}, nil, "n[0].id"},
		{"duplicate id", []graph.Node{{ID: "a"}, {ID: "a"}}, nil, "n[1].id"},
		{"dangling edge", []graph.Node{{ID: "a"}}, []graph.Edge{{ID: "e", Source: "a", Target: "b"}}, "e[0].target"},
		{"self loop", []graph.Node{{ID: "a"}, {ID: "b"}}, []graph.Edge{{ID: "e", Source: "a", Target: "a"}}, "e[0].target"},
		{"reversed pair", []graph.Node{{ID: "a"}, {ID: "b"}}, []graph.Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "a"},
		}, "e[1].target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.nodes, tt.edges)
			assert.Equal(t, errors.InvalidPayload, errors.CodeOf(err))
			assert.Contains(t, err.Error(), tt.path)
		})
	}
}

func TestWithRegistry(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)

	nodes, edges := sampleGraph()
	encoded, err := Encode(nodes, edges, WithRegistry(reg))
	require.NoError(t, err)
	_, err = Decode(encoded, WithRegistry(reg))
	require.NoError(t, err)

	nodes[0].Data.ToolID = "left-pad"
	_, err = Encode(nodes, edges, WithRegistry(reg))
	assert.Equal(t, errors.UnknownTool, errors.CodeOf(err))

	// Without a registry unknown tools pass through.
	encoded, err = Encode(nodes, edges)
	require.NoError(t, err)
	_, err = Decode(encoded, WithRegistry(reg))
	assert.Equal(t, errors.UnknownTool, errors.CodeOf(err))
}

func TestDecode_Errors(t *testing.T) {
	valid, err := Encode(sampleGraph())
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
		code  errors.ErrorCode
		part  string
	}{
		{"not base64", "!!!not-base64!!!", errors.DecompressFailed, ""},
		{"truncated", valid[:len(valid)/2], errors.DecompressFailed, ""},
		{"too long", strings.Repeat("A", MaxEncodedLen+1), errors.PayloadTooLarge, ""},
		{"not json", compress(t, "hello"), errors.InvalidPayload, ""},
		{"not an object", compress(t, `[1,2]`), errors.InvalidPayload, "$"},
		{"missing version", compress(t, `{"n":[],"e":[]}`), errors.InvalidPayload, "at v:"},
		{"string version", compress(t, `{"v":"1","n":[],"e":[]}`), errors.InvalidPayload, "at v:"},
		{"future version", compress(t, `{"v":2,"n":[],"e":[]}`), errors.UnsupportedVersion, "version 2"},
		{"nodes not array", compress(t, `{"v":1,"n":{},"e":[]}`), errors.InvalidPayload, "at n:"},
		{"edges missing", compress(t, `{"v":1,"n":[]}`), errors.InvalidPayload, "at e:"},
		{"node not object", compress(t, `{"v":1,"n":[3],"e":[]}`), errors.InvalidPayload, "n[0]"},
		{"node id number", compress(t, `{"v":1,"n":[{"id":1,"type":"stack","position":{"x":0,"y":0},"data":{"category":"A"}}],"e":[]}`), errors.InvalidPayload, "n[0].id"},
		{"position string", compress(t, `{"v":1,"n":[{"id":"a","type":"stack","position":{"x":"0","y":0},"data":{"category":"A"}}],"e":[]}`), errors.InvalidPayload, "n[0].position.x"},
		{"data missing", compress(t, `{"v":1,"n":[{"id":"a","type":"stack","position":{"x":0,"y":0}}],"e":[]}`), errors.InvalidPayload, "n[0].data"},
		{"tool id number", compress(t, `{"v":1,"n":[{"id":"a","type":"stack","position":{"x":0,"y":0},"data":{"category":"A","toolId":7}}],"e":[]}`), errors.InvalidPayload, "n[0].data.toolId"},
		{"edge missing target", compress(t, `{"v":1,"n":[],"e":[{"id":"e","source":"a"}]}`), errors.InvalidPayload, "e[0].target"},
		{"self loop", compress(t, `{"v":1,"n":[`+shareNode("a")+`],"e":[{"id":"e","source":"a","target":"a"}]}`), errors.InvalidPayload, "self-loop"},
		{"duplicate pair", compress(t, `{"v":1,"n":[`+shareNode("a")+`,`+shareNode("b")+`],"e":[{"id":"e1","source":"a","target":"b"},{"id":"e2","source":"b","target":"a"}]}`), errors.InvalidPayload, "already connected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err), "error: %v", err)
			if tt.part != "" {
				assert.Contains(t, err.Error(), tt.part)
			}
		})
	}
}

func shareNode(id string) string {
	return `{"id":"` + id + `","type":"stack","position":{"x":0,"y":0},"data":{"category":"A"}}`
}

func TestDecode_TooManyNodes(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"v":1,"n":[`)
	for i := 0; i <= MaxNodes; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"id":"n%d","type":"stack","position":{"x":0,"y":0},"data":{"category":"A"}}`, i)
	}
	b.WriteString(`],"e":[]}`)

	_, err := Decode(compress(t, b.String()))
	assert.Equal(t, errors.TooManyNodes, errors.CodeOf(err))
}

func graphGen() *rapid.Generator[Graph] {
	return rapid.Custom(func(t *rapid.T) Graph {
		n := rapid.IntRange(0, 20).Draw(t, "n")
		ids := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z0-9-]{1,12}`), n, n, rapid.ID[string]).Draw(t, "ids")
		nodes := make([]graph.Node, n)
		for i, id := range ids {
			nodes[i] = graph.Node{
				ID:   id,
				Type: rapid.SampledFrom([]string{"stack", "group", ""}).Draw(t, "type"),
				Position: graph.Position{
					X: rapid.Float64Range(-5000, 5000).Draw(t, "x"),
					Y: rapid.Float64Range(-5000, 5000).Draw(t, "y"),
				},
				Data: graph.NodeData{
					Category: rapid.SampledFrom([]string{"Frontend", "Database", "Auth"}).Draw(t, "category"),
					ToolID:   rapid.SampledFrom([]string{"", "nextjs", "postgres", "unknown-tool"}).Draw(t, "tool"),
					Notes:    rapid.StringMatching(`[ -~]{0,20}`).Draw(t, "notes"),
				},
			}
		}
		// Edges join distinct nodes, at most once per unordered pair.
		var pairs [][2]int
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				pairs = append(pairs, [2]int{i, j})
			}
		}
		var edges []graph.Edge
		if len(pairs) > 0 {
			picked := rapid.SliceOfNDistinct(rapid.IntRange(0, len(pairs)-1), 0, 2*n, rapid.ID[int]).Draw(t, "pairs")
			for k, p := range picked {
				src, dst := ids[pairs[p][0]], ids[pairs[p][1]]
				if rapid.Bool().Draw(t, "flip") {
					src, dst = dst, src
				}
				edges = append(edges, graph.Edge{ID: fmt.Sprintf("edge-%d", k), Source: src, Target: dst})
			}
		}
		return Graph{Nodes: nodes, Edges: edges}
	})
}

func TestProperty_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := graphGen().Draw(t, "graph")
		encoded, err := Encode(g.Nodes, g.Edges)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		got, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		want := Canonicalize(g.Nodes, g.Edges)
		if !assert.ObjectsAreEqual(want, got) {
			t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", want, got)
		}
	})
}

func TestProperty_OrderIndependent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := graphGen().Draw(t, "graph")
		a, err := Encode(g.Nodes, g.Edges)
		if err != nil {
			t.Fatal(err)
		}

		rn := make([]graph.Node, len(g.Nodes))
		for i, n := range g.Nodes {
			rn[len(rn)-1-i] = n
		}
		re := make([]graph.Edge, len(g.Edges))
		for i, e := range g.Edges {
			re[len(re)-1-i] = e
		}
		b, err := Encode(rn, re)
		if err != nil {
			t.Fatal(err)
		}
		if a != b {
			t.Fatal("reversed input encoded differently")
		}
	})
}
