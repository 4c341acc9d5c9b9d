package dot

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/astkg/pkg/kg"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// Output formats accepted by Render.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
	FormatPNG = "png"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatDOT: true,
	FormatSVG: true,
	FormatPNG: true,
}

// Options configures diagram generation.
type Options struct {
	// Detailed adds every node attribute to its label.
	// When false, labels show only the node id and its headline value.
	Detailed bool

	// Direction is the Graphviz rankdir; empty means TB.
	Direction string
}

var kindColors = map[kg.Kind]string{
	kg.KindModule:        "#d0d0d0",
	kg.KindStatement:     "#cfe2ff",
	kg.KindExpression:    "#fff3cd",
	kg.KindName:          "#d1e7dd",
	kg.KindLiteral:       "#f8d7da",
	kg.KindParameter:     "#e2d9f3",
	kg.KindOperation:     "#ffe5d0",
	kg.KindFunction:      "#9ec5fe",
	kg.KindAsyncFunction: "#9ec5fe",
	kg.KindClass:         "#a3cfbb",
}

var containment = map[string]bool{
	kg.RelHasStatement:       true,
	kg.RelBodyStatement:      true,
	kg.RelOrElseStatement:    true,
	kg.RelFinalBodyStatement: true,
	kg.RelHasDef:             true,
	kg.RelHasClass:           true,
	kg.RelHandler:            true,
}

// ToDOT converts g to Graphviz DOT source.
func ToDOT(g *kg.Graph, opts Options) string {
	dir := opts.Direction
	if dir == "" {
		dir = "TB"
	}
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", dir)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\", fontsize=11];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=9];\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		attrs := []string{fmt.Sprintf("label=%q", label(n, opts.Detailed))}
		if c, ok := kindColors[n.Kind]; ok {
			attrs = append(attrs, fmt.Sprintf("fillcolor=%q", c))
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		style := "dashed"
		if containment[kg.ParseRel(e.Rel).Family] {
			style = "solid"
		}
		fmt.Fprintf(&buf, "  %q -> %q [label=%q, style=%s];\n", e.Src, e.Dst, e.Rel, style)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// Headline returns the attribute that best identifies a node of its kind.
func Headline(n *kg.Node) string {
	switch n.Kind {
	case kg.KindStatement:
		return n.Str(kg.AttrKind)
	case kg.KindExpression:
		return n.Str(kg.AttrType)
	case kg.KindName, kg.KindParameter, kg.KindFunction, kg.KindAsyncFunction, kg.KindClass:
		return n.Str(kg.AttrName)
	case kg.KindAlias:
		if as := n.Str(kg.AttrAsName); as != "" {
			return n.Str(kg.AttrName) + " as " + as
		}
		return n.Str(kg.AttrName)
	case kg.KindOperation:
		return n.Str(kg.AttrOperation)
	case kg.KindLiteral:
		return fmt.Sprintf("%v", n.Attrs[kg.AttrLiteralValue])
	}
	return ""
}

func label(n *kg.Node, detailed bool) string {
	head := n.ID
	if h := Headline(n); h != "" {
		head += "\n" + h
	}
	if !detailed || len(n.Attrs) == 0 {
		return head
	}
	parts := make([]string, 0, len(n.Attrs))
	for _, k := range slices.Sorted(maps.Keys(n.Attrs)) {
		parts = append(parts, fmt.Sprintf("%s: %v", k, n.Attrs[k]))
	}
	return head + "\n" + strings.Join(parts, "\n")
}

// Render lays out DOT source and returns it in format. FormatDOT returns
// the source unchanged.
func Render(ctx context.Context, src string, format string) ([]byte, error) {
	var gvFormat graphviz.Format
	switch format {
	case FormatDOT:
		return []byte(src), nil
	case FormatSVG:
		gvFormat = graphviz.SVG
	case FormatPNG:
		gvFormat = graphviz.PNG
	default:
		return nil, apperr.New(apperr.ErrCodeInvalidFormat, "unsupported render format %q (want dot, svg or png)", format)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(src))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidFormat, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, gvFormat, &buf); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInternal, err, "render %s", format)
	}
	if format == FormatSVG {
		return normalizeViewBox(buf.Bytes()), nil
	}
	return buf.Bytes(), nil
}

// RenderGraph is ToDOT followed by Render.
func RenderGraph(ctx context.Context, g *kg.Graph, format string, opts Options) ([]byte, error) {
	return Render(ctx, ToDOT(g, opts), format)
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces graphviz's point-sized root element with a
// plain viewBox so the SVG scales in a browser.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(root))
}
