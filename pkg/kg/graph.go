package kg

import (
	"encoding/json"
	"errors"
	"strconv"
)

var (
	// ErrInvalidNodeID is returned by [Graph.AddNode] when the node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Graph.AddNode] when a node with the
	// same ID already exists. Node IDs are unique within a graph.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [Graph.AddEdge] when the source
	// node does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [Graph.AddEdge] when the
	// destination node does not exist.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrEmptyRelation is returned by [Graph.AddEdge] for an edge without a
	// relation label.
	ErrEmptyRelation = errors.New("relation must not be empty")
)

// Kind is the type of a graph node.
type Kind string

const (
	KindModule        Kind = "Module"
	KindStatement     Kind = "Statement"
	KindExpression    Kind = "Expression"
	KindName          Kind = "Name"
	KindLiteral       Kind = "Literal"
	KindParameter     Kind = "Parameter"
	KindOperation     Kind = "Operation"
	KindAlias         Kind = "Alias"
	KindExceptHandler Kind = "ExceptHandler"
	KindWithItem      Kind = "WithItem"
	KindFunction      Kind = "Function"
	KindAsyncFunction Kind = "AsyncFunction"
	KindClass         Kind = "Class"
)

// RootID is the reserved id of the module root, the sole top-level container.
const RootID = "Module:<top>"

// Attrs holds node attributes. Values are JSON-compatible scalars or
// slices of them.
type Attrs map[string]any

// Node is a vertex of the knowledge graph.
type Node struct {
	ID    string `json:"id" bson:"id"`
	Kind  Kind   `json:"kind" bson:"kind"`
	Attrs Attrs  `json:"attributes,omitempty" bson:"attributes,omitempty"`
}

// Str returns a string attribute, or "" when absent or not a string.
func (n *Node) Str(key string) string {
	s, _ := n.Attrs[key].(string)
	return s
}

// Int returns an integer attribute. Values decoded from JSON arrive as
// float64 or json.Number and are converted when integral.
func (n *Node) Int(key string) (int, bool) {
	return AsInt(n.Attrs[key])
}

// AsInt converts the numeric representations found in attribute maps.
func AsInt(v any) (int, bool) {
	switch v := v.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case int32:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), true
		}
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i, true
		}
	}
	return 0, false
}

// Edge is a directed, relation-labeled connection. Edges are
// append-only and duplicates are legal.
type Edge struct {
	Src string `json:"source" bson:"source"`
	Rel string `json:"relation" bson:"relation"`
	Dst string `json:"destination" bson:"destination"`
}

// Graph is a relation-labeled property graph.
//
// The zero value is not usable - use New. A Graph is built by one
// writer and read by any number of readers afterwards; it is not safe
// for concurrent mutation.
type Graph struct {
	nodes map[string]*Node
	order []string
	edges []Edge
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// AddNode adds a node. Returns ErrInvalidNodeID for an empty id and
// ErrDuplicateNodeID if the id is taken. A nil Attrs map is replaced
// with an empty one.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := g.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.Attrs == nil {
		n.Attrs = Attrs{}
	}
	g.nodes[n.ID] = &n
	g.order = append(g.order, n.ID)
	return nil
}

// AddEdge appends an edge between two existing nodes.
func (g *Graph) AddEdge(e Edge) error {
	if e.Rel == "" {
		return ErrEmptyRelation
	}
	if _, ok := g.nodes[e.Src]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := g.nodes[e.Dst]; !ok {
		return ErrUnknownTargetNode
	}
	g.edges = append(g.edges, e)
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.order))
	for i, id := range g.order {
		out[i] = g.nodes[id]
	}
	return out
}

// Edges returns all edges in insertion order. The slice must not be modified.
func (g *Graph) Edges() []Edge { return g.edges }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Stats summarizes a graph by node kind and relation family.
type Stats struct {
	Nodes    int            `json:"nodes"`
	Edges    int            `json:"edges"`
	ByKind   map[Kind]int   `json:"by_kind"`
	ByFamily map[string]int `json:"by_family"`
}

// Stats counts nodes per kind and edges per relation family.
func (g *Graph) Stats() Stats {
	s := Stats{
		Nodes:    len(g.nodes),
		Edges:    len(g.edges),
		ByKind:   make(map[Kind]int),
		ByFamily: make(map[string]int),
	}
	for _, n := range g.nodes {
		s.ByKind[n.Kind]++
	}
	for _, e := range g.edges {
		s.ByFamily[ParseRel(e.Rel).Family]++
	}
	return s
}
