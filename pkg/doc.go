// Package pkg provides the core libraries of astkg, a bidirectional codec
// between Python syntax trees and knowledge graphs.
//
// # Overview
//
// A Python module is parsed into a syntax tree, encoded as a graph of typed
// nodes joined by relation-labeled edges, and decoded back into a tree that
// prints as equivalent source. The pkg directory is organized into four
// areas:
//
//  1. Syntax: [pyast] (tree types and printer) and [pysrc] (tree-sitter parser)
//  2. Graph: [kg] (graph model, JSON and triple forms, validation) and [codec]
//  3. Infrastructure: [cache], [store], [errors], [observability]
//  4. Entry points: [pipeline], [server] and [render/dot]
//
// # Architecture
//
// The data flow through astkg:
//
//	Python source
//	     ↓
//	[pysrc] parse → [pyast.Module]
//	     ↓
//	[codec.Encode] → [kg.Graph] → JSON / triples / [store]
//	     ↓
//	[codec.Decoder] → [pyast.Module] → [pyast.Format] → Python source
//
// # Quick Start
//
//	mod, _ := pysrc.New().Parse(ctx, src)
//	g, _ := codec.Encode(mod)
//	back, _ := codec.NewDecoder().Decode(g, "")
//	fmt.Print(pyast.Format(back))
//
// [pipeline.Runner] wraps these steps with caching, logging and
// observability hooks; the CLI and the HTTP server both go through it.
//
// # Main Packages
//
// [pyast] - Statement and expression node types for the supported Python
// subset, and a printer that emits canonical source.
//
// [pysrc] - Parser built on tree-sitter's Python grammar. Rejects oversize
// input, invalid UTF-8 and syntax errors with coded errors.
//
// [kg] - Knowledge graph with insertion-ordered nodes and append-only
// edges. Serializes to a node-link JSON document and to
// (source, relation, destination) triples, and validates tree shape.
//
// [codec] - Encoder and decoder between [pyast] and [kg]. Enforces a
// nesting depth limit; the decoder can run leniently and in parallel.
//
// [cache] - File, Redis and null caches for encoded graphs and renderings.
//
// [store] - Triple store with memory, SQLite, Badger, Redis and MongoDB
// backends.
//
// [render/dot] - Graphviz diagrams of graphs as DOT, SVG or PNG.
//
// [server] - HTTP API for encode, decode, round-trip and stored graphs.
//
// # Testing
//
//	go test ./pkg/...            # All tests
//	go test ./pkg/codec/...      # Specific package
//	go test -run RoundTrip ./... # Round-trip suites only
//
// [pyast]: https://pkg.go.dev/github.com/matzehuels/astkg/pkg/pyast
// [pyast.Module]: https://pkg.go.dev/github.com/matzehuels/astkg/pkg/pyast#Module
// [pyast.Format]: https://pkg.go.dev/github.com/matzehuels/astkg/pkg/pyast#Format
// [pysrc]: https://pkg.go.dev/github.com/matzehuels/astkg/pkg/pysrc
// [kg]: https://pkg.go.dev/github.com/matzehuels/astkg/pkg/kg
// [kg.Graph]: https://pkg.go.dev/github.com/matzehuels/astkg/pkg/kg#Graph
// [codec]: https://pkg.go.dev/github.com/matzehuels/astkg/pkg/codec
// [codec.Encode]: https://pkg.go.dev/github.com/matzehuels/astkg/pkg/codec#Encode
// [codec.Decoder]: https://pkg.go.dev/github.com/matzehuels/astkg/pkg/codec#Decoder
// [cache]: https://pkg.go.dev/github.com/matzehuels/astkg/pkg/cache
// [store]: https://pkg.go.dev/github.com/matzehuels/astkg/pkg/store
// [errors]: https://pkg.go.dev/github.com/matzehuels/astkg/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/astkg/pkg/observability
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/astkg/pkg/pipeline
// [pipeline.Runner]: https://pkg.go.dev/github.com/matzehuels/astkg/pkg/pipeline#Runner
// [server]: https://pkg.go.dev/github.com/matzehuels/astkg/pkg/server
// [render/dot]: https://pkg.go.dev/github.com/matzehuels/astkg/pkg/render/dot
package pkg
