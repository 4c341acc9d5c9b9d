package kg

import (
	"sort"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// Validate checks the structural invariants of an encoded graph:
//   - the module root exists and no edge enters it
//   - every other node is the destination of exactly one edge and is
//     reachable from the root, so containment forms a tree
//   - indexed families under one source are contiguous from 0
//   - statements and definitions carry an integer order
//   - positional defaults form a suffix of the positional parameters
//
// Every relation of the vocabulary is structural, so the containment
// check runs over all edges. The first violation is returned.
func Validate(g *Graph) error {
	root, ok := g.Node(RootID)
	if !ok {
		return apperr.New(apperr.ErrCodeInvalidGraph, "module root %q not found", RootID)
	}
	if root.Kind != KindModule {
		return apperr.New(apperr.ErrCodeInvalidGraph, "root node has kind %s, want %s", root.Kind, KindModule)
	}

	incoming := make(map[string][]Edge, g.NodeCount())
	seen := make(map[Edge]struct{}, len(g.edges))
	for _, e := range g.edges {
		if _, ok := g.nodes[e.Src]; !ok {
			return apperr.Integrity(e.Src, e.Rel, "edge source not found")
		}
		if _, ok := g.nodes[e.Dst]; !ok {
			return apperr.Integrity(e.Src, e.Rel, "destination %s not found", e.Dst)
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		incoming[e.Dst] = append(incoming[e.Dst], e)
	}

	for _, id := range g.order {
		in := incoming[id]
		switch {
		case id == RootID && len(in) > 0:
			return apperr.Integrity(id, in[0].Rel, "module root has an incoming edge from %s", in[0].Src)
		case id != RootID && len(in) == 0:
			return apperr.Integrity(id, "", "node has no containing edge")
		case id != RootID && len(in) > 1:
			return apperr.Integrity(id, in[1].Rel, "node is shared by %s and %s", in[0].Src, in[1].Src)
		}
	}

	if err := checkReachable(g); err != nil {
		return err
	}

	x := NewIndex(g)
	for _, id := range g.order {
		n := g.nodes[id]
		if err := checkContiguity(x, id); err != nil {
			return err
		}
		switch n.Kind {
		case KindStatement, KindFunction, KindAsyncFunction, KindClass:
			if _, ok := n.Int(AttrOrder); !ok {
				return apperr.Integrity(id, "", "%s node has no integer order", n.Kind)
			}
		}
		if params := x.Many(id, RelHasParameter); len(params) > 0 {
			positional, err := PositionalParameters(x, id)
			if err != nil {
				return err
			}
			if _, err := DefaultSuffix(x, id, positional); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkReachable(g *Graph) error {
	children := make(map[string][]string, g.NodeCount())
	for _, e := range g.edges {
		children[e.Src] = append(children[e.Src], e.Dst)
	}
	seen := map[string]bool{RootID: true}
	queue := []string{RootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, c := range children[id] {
			if !seen[c] {
				seen[c] = true
				queue = append(queue, c)
			}
		}
	}
	for _, id := range g.order {
		if !seen[id] {
			return apperr.Integrity(id, "", "node is not reachable from the module root")
		}
	}
	return nil
}

func checkContiguity(x *Index, src string) error {
	families := make(map[string]map[int]string)
	for _, e := range x.out[src] {
		r := ParseRel(e.Rel)
		if !r.IsIndexed() {
			continue
		}
		m := families[r.Family]
		if m == nil {
			m = make(map[int]string)
			families[r.Family] = m
		}
		if prev, dup := m[r.Index]; dup && prev != e.Dst {
			return apperr.Integrity(src, e.Rel, "index used for both %s and %s", prev, e.Dst)
		}
		m[r.Index] = e.Dst
	}

	grouped := make(map[string]bool)
	for _, group := range indexGroups {
		union := make(map[int]string)
		for _, fam := range group {
			grouped[fam] = true
			for i, dst := range families[fam] {
				if prev, dup := union[i]; dup && prev != dst {
					return apperr.Integrity(src, Indexed(fam, i).String(), "index shared across %v", group)
				}
				union[i] = dst
			}
		}
		if err := contiguous(src, group[0], union); err != nil {
			return err
		}
	}

	for fam, m := range families {
		if anchor, dependent := dependentFamilies[fam]; dependent {
			for i := range m {
				if _, ok := families[anchor][i]; !ok {
					return apperr.Integrity(src, Indexed(fam, i).String(), "no matching %s", Indexed(anchor, i))
				}
			}
			continue
		}
		if grouped[fam] {
			continue
		}
		if err := contiguous(src, fam, m); err != nil {
			return err
		}
	}
	return nil
}

func contiguous(src, family string, m map[int]string) error {
	for i := 0; i < len(m); i++ {
		if _, ok := m[i]; !ok {
			return apperr.Integrity(src, Indexed(family, i).String(), "gap in indexed family %s (%d members)", family, len(m))
		}
	}
	return nil
}

// PositionalParameters returns the PositionOnly and arg parameters owned
// by a function or lambda, sorted by position.
func PositionalParameters(x *Index, owner string) ([]*Node, error) {
	var out []*Node
	for _, id := range x.Many(owner, RelHasParameter) {
		n, err := x.Node(id)
		if err != nil {
			return nil, err
		}
		switch n.Str(AttrKind) {
		case ParamPositionOnly, ParamArg:
			out = append(out, n)
		}
	}
	var bad error
	sort.SliceStable(out, func(i, j int) bool {
		pi, ok1 := out[i].Int(AttrPosition)
		pj, ok2 := out[j].Int(AttrPosition)
		if (!ok1 || !ok2) && bad == nil {
			bad = apperr.Integrity(owner, RelHasParameter, "parameter without integer position")
		}
		return pi < pj
	})
	if bad != nil {
		return nil, bad
	}
	return out, nil
}

// DefaultSuffix counts the positional parameters carrying a Default edge
// and verifies that they are exactly the trailing ones. It returns the
// suffix length.
func DefaultSuffix(x *Index, owner string, positional []*Node) (int, error) {
	count := 0
	for _, p := range positional {
		if _, ok, err := x.One(p.ID, RelDefault, true); err != nil {
			return 0, err
		} else if ok {
			count++
		}
	}
	first := len(positional) - count
	for i, p := range positional {
		_, ok, _ := x.One(p.ID, RelDefault, true)
		if ok != (i >= first) {
			return 0, apperr.Integrity(p.ID, RelDefault, "defaults of %s do not form a trailing suffix", owner)
		}
	}
	return count, nil
}
