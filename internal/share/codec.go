// Package share serializes stack graphs into short URL-safe strings and back.
//
// Encoding is canonical: graphs that differ only in node or edge order
// encode to the same string. Every failure is a coded *errors.Error so
// callers can tell an oversized graph from a corrupted link.
package share

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/flate"

	"stackaudit/internal/errors"
	"stackaudit/internal/graph"
	"stackaudit/internal/registry"
)

// Hard limits on a shareable graph.
const (
	MaxNodes      = 100
	MaxEdges      = 300
	MaxEncodedLen = 5000

	// maxDecodedBytes bounds decompression of hostile input.
	maxDecodedBytes = 1 << 20
)

// PayloadVersion is the version tag written into every payload.
const PayloadVersion = 1

// Graph is a decoded graph in canonical order.
type Graph struct {
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

// Payload is the JSON document carried inside an encoded string.
type Payload struct {
	V int          `json:"v"`
	N []graph.Node `json:"n"`
	E []graph.Edge `json:"e"`
}

// Option configures Encode and Decode.
type Option func(*options)

type options struct {
	reg *registry.Registry
}

// WithRegistry rejects graphs selecting tools the registry does not know.
func WithRegistry(reg *registry.Registry) Option {
	return func(o *options) { o.reg = reg }
}

func applyOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Canonicalize returns sorted copies: nodes by id, edges by source, target
// and id. Comparison is byte-wise.
func Canonicalize(nodes []graph.Node, edges []graph.Edge) Graph {
	n := make([]graph.Node, len(nodes))
	copy(n, nodes)
	sort.SliceStable(n, func(i, j int) bool { return n[i].ID < n[j].ID })

	e := make([]graph.Edge, len(edges))
	copy(e, edges)
	sort.SliceStable(e, func(i, j int) bool {
		if e[i].Source != e[j].Source {
			return e[i].Source < e[j].Source
		}
		if e[i].Target != e[j].Target {
			return e[i].Target < e[j].Target
		}
		return e[i].ID < e[j].ID
	})
	return Graph{Nodes: n, Edges: e}
}

// Encode canonicalizes and compresses a graph. Size limits are checked
// before compression and the encoded length after.
func Encode(nodes []graph.Node, edges []graph.Edge, opts ...Option) (string, error) {
	o := applyOptions(opts)

	if err := checkCounts(len(nodes), len(edges)); err != nil {
		return "", err
	}
	g := Canonicalize(nodes, edges)
	if err := checkGraph(g, o); err != nil {
		return "", err
	}

	raw, err := json.Marshal(Payload{V: PayloadVersion, N: g.Nodes, E: g.Edges})
	if err != nil {
		return "", errors.New(errors.InvalidPayload, "graph cannot be serialized", err)
	}

	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", errors.New(errors.InternalError, "create compressor", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return "", errors.New(errors.InternalError, "compress payload", err)
	}
	if err := zw.Close(); err != nil {
		return "", errors.New(errors.InternalError, "compress payload", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(buf.Bytes())
	if len(encoded) > MaxEncodedLen {
		return "", errors.Newf(errors.PayloadTooLarge,
			"payload too large: encoded length %d exceeds %d", len(encoded), MaxEncodedLen).
			WithDetails(limitDetails("encodedLength", len(encoded), MaxEncodedLen))
	}
	return encoded, nil
}

// Decode reverses Encode and validates the result's structure.
func Decode(encoded string, opts ...Option) (Graph, error) {
	o := applyOptions(opts)

	if len(encoded) > MaxEncodedLen {
		return Graph{}, errors.Newf(errors.PayloadTooLarge,
			"payload too large: encoded length %d exceeds %d", len(encoded), MaxEncodedLen).
			WithDetails(limitDetails("encodedLength", len(encoded), MaxEncodedLen))
	}

	compressed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Graph{}, errors.New(errors.DecompressFailed, "share data is not valid base64url", err)
	}
	zr := flate.NewReader(bytes.NewReader(compressed))
	defer zr.Close()

	raw, err := io.ReadAll(io.LimitReader(zr, maxDecodedBytes+1))
	if err != nil {
		return Graph{}, errors.New(errors.DecompressFailed, "share data is corrupt or truncated", err)
	}
	if len(raw) > maxDecodedBytes {
		return Graph{}, errors.Newf(errors.PayloadTooLarge, "decompressed payload exceeds %d bytes", maxDecodedBytes)
	}

	if err := validatePayload(raw); err != nil {
		return Graph{}, err
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Graph{}, errors.New(errors.InvalidPayload, "payload does not match the graph shape", err)
	}
	if err := checkCounts(len(p.N), len(p.E)); err != nil {
		return Graph{}, err
	}

	g := Canonicalize(p.N, p.E)
	if err := checkGraph(g, o); err != nil {
		return Graph{}, err
	}
	return g, nil
}

func checkCounts(nodes, edges int) error {
	if nodes > MaxNodes {
		return errors.Newf(errors.TooManyNodes, "too many nodes: %d exceeds the limit of %d", nodes, MaxNodes).
			WithDetails(limitDetails("nodes", nodes, MaxNodes))
	}
	if edges > MaxEdges {
		return errors.Newf(errors.TooManyEdges, "too many edges: %d exceeds the limit of %d", edges, MaxEdges).
			WithDetails(limitDetails("edges", edges, MaxEdges))
	}
	return nil
}

// checkGraph verifies ids are unique and edges join two distinct existing
// nodes at most once. With a registry every selected tool must be known.
func checkGraph(g Graph, o options) error {
	ids := make(map[string]bool, len(g.Nodes))
	for i, n := range g.Nodes {
		if n.ID == "" {
			return invalid(fmt.Sprintf("n[%d].id", i), "must not be empty")
		}
		if ids[n.ID] {
			return invalid(fmt.Sprintf("n[%d].id", i), fmt.Sprintf("duplicate node id %q", n.ID))
		}
		ids[n.ID] = true

		if o.reg != nil && n.HasTool() {
			if _, ok := o.reg.Lookup(n.Data.ToolID); !ok {
				return errors.Newf(errors.UnknownTool, "node %q selects unknown tool %q", n.ID, n.Data.ToolID).
					WithDetails(map[string]string{"nodeId": n.ID, "toolId": n.Data.ToolID})
			}
		}
	}

	edgeIDs := make(map[string]bool, len(g.Edges))
	pairs := make(map[string]string, len(g.Edges))
	for i, e := range g.Edges {
		path := fmt.Sprintf("e[%d]", i)
		pair := graph.PairKey(e.Source, e.Target)
		switch {
		case e.ID == "":
			return invalid(path+".id", "must not be empty")
		case edgeIDs[e.ID]:
			return invalid(path+".id", fmt.Sprintf("duplicate edge id %q", e.ID))
		case !ids[e.Source]:
			return invalid(path+".source", fmt.Sprintf("unknown node %q", e.Source))
		case !ids[e.Target]:
			return invalid(path+".target", fmt.Sprintf("unknown node %q", e.Target))
		case e.Source == e.Target:
			return invalid(path+".target", fmt.Sprintf("self-loop on node %q", e.Source))
		case pairs[pair] != "":
			return invalid(path+".target", fmt.Sprintf("nodes %q and %q are already connected by %q", e.Source, e.Target, pairs[pair]))
		}
		edgeIDs[e.ID] = true
		pairs[pair] = e.ID
	}
	return nil
}

func limitDetails(field string, actual, limit int) map[string]any {
	return map[string]any{"field": field, "actual": actual, "limit": limit}
}
