// Package kg provides the knowledge graph that encoded syntax trees live in.
//
// A graph is a set of typed nodes joined by directed, relation-labeled
// edges. It is written once by the encoder in pkg/codec and read by any
// number of consumers afterwards.
//
// # Core Types
//
//   - [Graph]: nodes in insertion order plus an append-only edge list
//   - [Node], [Edge]: the vertex and the (source, relation, destination) link
//   - [Rel]: typed relation descriptor, either a bare family ("Value") or an
//     indexed member ("Arg_3")
//   - [Index]: read-only adjacency view answering relation queries
//   - [Triple]: flat row used by triple stores
//
// # Relation Shapes
//
// Relations come in three shapes:
//
//   - singular: at most one destination ("Value", "Condition")
//   - unordered-multi: any number of destinations, order taken from a node
//     attribute ("Has_Statement", "Has_Parameter")
//   - indexed-multi: "<Family>_<i>", where the suffix is the authoritative
//     position ("Arg_0", "Element_1")
//
// Always build and parse indexed names through [Indexed] and [ParseRel]:
//
//	kg.Indexed(kg.RelArg, 2).String()  // "Arg_2"
//	kg.ParseRel("KeywordValue_0")      // Rel{Family: "KeywordValue", Index: 0}
//
// # Validation
//
// [Validate] checks that containment forms a tree rooted at [RootID], that
// indexed families are contiguous, that statements carry an order and that
// positional defaults form a trailing suffix.
//
// # Serialization
//
// Graphs use a node-link JSON format:
//
//	{
//	  "nodes": [{"id": "Module:<top>", "kind": "Module"}],
//	  "edges": [{"source": "Module:<top>", "relation": "Has_Statement", "destination": "pass_0"}]
//	}
//
// For triple stores, [ToTriples] flattens a graph into rows. Node payloads
// travel under the reserved [NodeRelation].
package kg
