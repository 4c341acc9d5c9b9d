package kg

import (
	"bytes"
	"encoding/json"
	"fmt"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// NodeRelation is the reserved relation carrying a node's kind and
// attributes when a graph is flattened to triples. Its destination is a
// JSON object rather than a node id.
const NodeRelation = "@node"

// Triple is one (source, relation, destination) row of a triple store.
type Triple struct {
	Source      string `json:"s" bson:"s"`
	Relation    string `json:"r" bson:"r"`
	Destination string `json:"d" bson:"d"`
}

type nodePayload struct {
	Kind  Kind  `json:"kind"`
	Attrs Attrs `json:"attributes,omitempty"`
}

// ToTriples flattens g: one NodeRelation triple per node in insertion
// order, followed by one triple per edge.
func ToTriples(g *Graph) ([]Triple, error) {
	out := make([]Triple, 0, g.NodeCount()+g.EdgeCount())
	for _, n := range g.Nodes() {
		payload, err := json.Marshal(nodePayload{Kind: n.Kind, Attrs: n.Attrs})
		if err != nil {
			return nil, fmt.Errorf("encode node %s: %w", n.ID, err)
		}
		out = append(out, Triple{Source: n.ID, Relation: NodeRelation, Destination: string(payload)})
	}
	for _, e := range g.edges {
		out = append(out, Triple{Source: e.Src, Relation: e.Rel, Destination: e.Dst})
	}
	return out, nil
}

// FromTriples rebuilds a graph from triples in any order.
func FromTriples(ts []Triple) (*Graph, error) {
	var nodes []*Node
	var edges []Edge
	for _, t := range ts {
		if t.Relation != NodeRelation {
			edges = append(edges, Edge{Src: t.Source, Rel: t.Relation, Dst: t.Destination})
			continue
		}
		var p nodePayload
		dec := json.NewDecoder(bytes.NewReader([]byte(t.Destination)))
		dec.UseNumber()
		if err := dec.Decode(&p); err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeInvalidGraph, err, "node payload of %s", t.Source)
		}
		nodes = append(nodes, &Node{ID: t.Source, Kind: p.Kind, Attrs: p.Attrs})
	}
	return build(nodes, edges)
}
