package kg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// =============================================================================
// Graph Serialization API
// =============================================================================

// wireGraph is the JSON document layout.
type wireGraph struct {
	Nodes []*Node `json:"nodes"`
	Edges []Edge  `json:"edges"`
}

// MarshalGraph converts a graph to JSON bytes.
// Nodes are sorted by ID for deterministic output; edges keep insertion order.
func MarshalGraph(g *Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeGraphTo(g, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteGraph writes a graph as JSON to an io.Writer.
func WriteGraph(g *Graph, w io.Writer) error {
	return writeGraphTo(g, w)
}

// ReadGraphFile reads a JSON file and returns the decoded graph.
func ReadGraphFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, apperr.Wrap(apperr.ErrCodeInvalidPath, err, "open %s", path)
	}
	defer f.Close()
	return readGraphFrom(f)
}

// ReadGraph decodes a JSON graph from an io.Reader. Numbers are kept as
// json.Number so integer literals of any size survive.
func ReadGraph(r io.Reader) (*Graph, error) {
	return readGraphFrom(r)
}

// =============================================================================
// Internal Implementation
// =============================================================================

func writeGraphTo(g *Graph, w io.Writer) error {
	out := wireGraph{Nodes: g.Nodes(), Edges: g.edges}
	sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i].ID < out.Nodes[j].ID })
	if out.Edges == nil {
		out.Edges = []Edge{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func readGraphFrom(r io.Reader) (*Graph, error) {
	var data wireGraph
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidFormat, err, "decode graph JSON")
	}
	return build(data.Nodes, data.Edges)
}

func build(nodes []*Node, edges []Edge) (*Graph, error) {
	g := New()
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if err := g.AddNode(*n); err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeInvalidGraph, err, "node %q", n.ID)
		}
	}
	for _, e := range edges {
		if err := g.AddEdge(e); err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeInvalidGraph, err, "edge %s -%s-> %s", e.Src, e.Rel, e.Dst)
		}
	}
	return g, nil
}
