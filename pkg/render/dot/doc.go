// Package dot draws knowledge graphs as Graphviz diagrams.
//
// [ToDOT] writes DOT source with one box per node, coloured by node kind,
// and one labelled arrow per edge. [Render] lays the DOT out in-process
// with [github.com/goccy/go-graphviz] and returns SVG or PNG bytes, so no
// Graphviz installation is needed.
//
//	src := dot.ToDOT(g, dot.Options{})
//	svg, err := dot.Render(ctx, src, dot.FormatSVG)
//
// Containment edges (statement bodies, definitions) are drawn solid and
// every other relation dashed, which makes the syntax tree visible inside
// the denser graph.
package dot
