package kg

import (
	"sort"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// Index answers relation queries over a graph. It is immutable once
// built and safe for concurrent readers.
type Index struct {
	g   *Graph
	out map[string][]Edge
}

// Slot is one member of an indexed family.
type Slot struct {
	Index int
	Dst   string
}

// NewIndex builds the adjacency index for g. Repeated identical edges
// are indexed once.
func NewIndex(g *Graph) *Index {
	out := make(map[string][]Edge, g.NodeCount())
	seen := make(map[Edge]struct{}, len(g.edges))
	for _, e := range g.edges {
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out[e.Src] = append(out[e.Src], e)
	}
	return &Index{g: g, out: out}
}

// Graph returns the indexed graph.
func (x *Index) Graph() *Graph { return x.g }

// Node resolves an id, failing with an IntegrityError when it is absent.
func (x *Index) Node(id string) (*Node, error) {
	n, ok := x.g.nodes[id]
	if !ok {
		return nil, apperr.Integrity(id, "", "node not found")
	}
	return n, nil
}

// Out returns the outgoing edges of src in insertion order.
func (x *Index) Out(src string) []Edge { return x.out[src] }

// One returns the single destination of a singular relation. A missing
// relation is an error unless optional is set, in which case ok is false.
// Duplicate edges to the same destination are tolerated; distinct
// destinations are not.
func (x *Index) One(src, rel string, optional bool) (dst string, ok bool, err error) {
	for _, e := range x.out[src] {
		if e.Rel != rel {
			continue
		}
		if ok && e.Dst != dst {
			return "", false, apperr.Integrity(src, rel, "singular relation has several destinations")
		}
		dst, ok = e.Dst, true
	}
	if !ok && !optional {
		return "", false, apperr.Integrity(src, rel, "missing required relation")
	}
	if ok {
		if _, exists := x.g.nodes[dst]; !exists {
			return "", false, apperr.Integrity(src, rel, "destination %s not found", dst)
		}
	}
	return dst, ok, nil
}

// Many returns all destinations of an unordered relation in edge order.
func (x *Index) Many(src, rel string) []string {
	var out []string
	for _, e := range x.out[src] {
		if e.Rel == rel {
			out = append(out, e.Dst)
		}
	}
	return out
}

// OrderedByPrefix returns the members of an indexed family sorted by
// their numeric suffix.
func (x *Index) OrderedByPrefix(src, family string) []Slot {
	var out []Slot
	for _, e := range x.out[src] {
		r := ParseRel(e.Rel)
		if r.IsIndexed() && r.Family == family {
			out = append(out, Slot{Index: r.Index, Dst: e.Dst})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// ByIndex returns the members of an indexed family keyed by index, for
// zipping paired families.
func (x *Index) ByIndex(src, family string) map[int]string {
	slots := x.OrderedByPrefix(src, family)
	if len(slots) == 0 {
		return nil
	}
	m := make(map[int]string, len(slots))
	for _, s := range slots {
		m[s.Index] = s.Dst
	}
	return m
}

// LiteralValues returns the string values of the Literal nodes in an
// indexed family, in index order.
func (x *Index) LiteralValues(src, family string) ([]string, error) {
	slots := x.OrderedByPrefix(src, family)
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		n, err := x.Node(s.Dst)
		if err != nil {
			return nil, err
		}
		if n.Kind != KindLiteral {
			return nil, apperr.Integrity(src, Indexed(family, s.Index).String(), "expected Literal, got %s", n.Kind)
		}
		v, ok := n.Attrs[AttrLiteralValue].(string)
		if !ok {
			return nil, apperr.Integrity(n.ID, "", "literal_value is not a string")
		}
		out = append(out, v)
	}
	return out, nil
}
