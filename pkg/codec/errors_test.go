package codec

import (
	"errors"
	"math"
	"math/big"
	"reflect"
	"testing"

	"github.com/matzehuels/astkg/pkg/kg"
	"github.com/matzehuels/astkg/pkg/pyast"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// rewrite copies g, passing every edge through fn. Edges for which fn
// returns false are dropped.
func rewrite(t *testing.T, g *kg.Graph, fn func(kg.Edge) (kg.Edge, bool)) *kg.Graph {
	t.Helper()
	out := kg.New()
	for _, n := range g.Nodes() {
		if err := out.AddNode(*n); err != nil {
			t.Fatalf("AddNode(%s): %v", n.ID, err)
		}
	}
	for _, e := range g.Edges() {
		if e, ok := fn(e); ok {
			if err := out.AddEdge(e); err != nil {
				t.Fatalf("AddEdge(%v): %v", e, err)
			}
		}
	}
	return out
}

func dropEdge(src, rel string) func(kg.Edge) (kg.Edge, bool) {
	return func(e kg.Edge) (kg.Edge, bool) {
		return e, e.Src != src || e.Rel != rel
	}
}

func wantIntegrity(t *testing.T, err error, node, rel string) {
	t.Helper()
	var ie *apperr.IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("error = %v, want *IntegrityError", err)
	}
	if ie.NodeID != node || ie.Relation != rel {
		t.Errorf("IntegrityError at (%s, %s), want (%s, %s)", ie.NodeID, ie.Relation, node, rel)
	}
}

func assignments() *pyast.Module {
	return module(
		&pyast.Assign{Pos: pyast.Pos{Lineno: 1}, Targets: []pyast.Expr{name("x")}, Value: num(1)},
		&pyast.Assign{Pos: pyast.Pos{Lineno: 2}, Targets: []pyast.Expr{name("y")}, Value: name("x")},
	)
}

func TestDecodeMissingRequiredRelation(t *testing.T) {
	g := rewrite(t, encode(t, assignments()), dropEdge("assign_0", kg.RelValue))
	_, err := Decode(g, "")
	wantIntegrity(t, err, "assign_0", kg.RelValue)
	if !apperr.Is(err, apperr.ErrCodeStructuralIntegrity) {
		t.Errorf("code = %s, want %s", apperr.GetCode(err), apperr.ErrCodeStructuralIntegrity)
	}
}

func TestDecodeKeywordWithoutName(t *testing.T) {
	mod := module(expr(&pyast.Call{Func: name("f"), Keywords: []pyast.Keyword{{Arg: "k", Value: num(1)}}}))
	g := rewrite(t, encode(t, mod), dropEdge("call_0", "KeywordKey_0"))
	_, err := Decode(g, "")
	wantIntegrity(t, err, "call_0", "KeywordKey_0")
}

func TestDecodeNonSuffixDefault(t *testing.T) {
	mod := module(&pyast.FunctionDef{
		Name: "f",
		Args: &pyast.Arguments{
			Args:     []pyast.Arg{{Name: "a"}, {Name: "b"}},
			Defaults: []pyast.Expr{num(1)},
		},
		Body: []pyast.Stmt{&pyast.Pass{}},
	})
	// Move b's default onto a: def f(a=1, b) is not a valid parameter list.
	g := rewrite(t, encode(t, mod), func(e kg.Edge) (kg.Edge, bool) {
		if e.Src == "Parameter_1" && e.Rel == kg.RelDefault {
			e.Src = "Parameter_0"
		}
		return e, true
	})
	_, err := Decode(g, "")
	wantIntegrity(t, err, "Parameter_0", kg.RelDefault)
}

func TestDecodeRoot(t *testing.T) {
	g := encode(t, assignments())

	_, err := Decode(g, "assign_0")
	if !apperr.Is(err, apperr.ErrCodeInvalidGraph) {
		t.Errorf("non-module root: error = %v, want %s", err, apperr.ErrCodeInvalidGraph)
	}

	_, err = Decode(g, "Module:<missing>")
	wantIntegrity(t, err, "Module:<missing>", "")

	if m := decode(t, g); len(m.Body) != 2 {
		t.Errorf("default root body = %d statements, want 2", len(m.Body))
	}
}

func nested(depth int) pyast.Expr {
	var x pyast.Expr = name("x")
	for i := 0; i < depth; i++ {
		x = &pyast.UnaryOp{Op: pyast.USub, Operand: x}
	}
	return x
}

func TestEncodeDepthLimit(t *testing.T) {
	mod := module(expr(nested(20)))
	_, err := Encode(mod, WithMaxDepth(10))
	var de *apperr.DepthError
	if !errors.As(err, &de) {
		t.Fatalf("Encode error = %v, want *DepthError", err)
	}
	if de.Limit != 10 {
		t.Errorf("Limit = %d, want 10", de.Limit)
	}
	if !apperr.Is(err, apperr.ErrCodeDepthExceeded) {
		t.Errorf("code = %s, want %s", apperr.GetCode(err), apperr.ErrCodeDepthExceeded)
	}

	if _, err := Encode(mod, WithMaxDepth(50)); err != nil {
		t.Errorf("Encode under the limit: %v", err)
	}
}

func TestDecodeDepthLimit(t *testing.T) {
	g := encode(t, module(expr(nested(20))))
	_, err := Decode(g, "", WithMaxDepth(10))
	var de *apperr.DepthError
	if !errors.As(err, &de) {
		t.Fatalf("Decode error = %v, want *DepthError", err)
	}
	if de.NodeID == "" {
		t.Error("DepthError should name the node being visited")
	}
	// Lenient decoding does not swallow a statement that is too deep; it
	// degrades it.
	d := NewDecoder(WithMaxDepth(10), WithLenient())
	m, err := d.Decode(g, "")
	if err != nil {
		t.Fatalf("lenient Decode: %v", err)
	}
	if _, ok := m.Body[0].(*pyast.Pass); !ok || len(d.Warnings) != 1 {
		t.Errorf("lenient result = %T with %d warnings, want Pass with 1", m.Body[0], len(d.Warnings))
	}
}

func TestDeepButLegalNesting(t *testing.T) {
	assertRoundTrip(t, module(expr(nested(500))))
}

func TestPlaceholdersRoundTrip(t *testing.T) {
	mod := module(
		&pyast.BadStmt{Kind: "Match"},
		&pyast.Assign{Targets: []pyast.Expr{name("t")}, Value: &pyast.BadExpr{Kind: "TemplateStr"}},
	)
	g := encode(t, mod)
	stmt := dst(t, g, kg.RootID, kg.RelHasStatement)
	if stmt.Str(kg.AttrKind) != "Other" || stmt.Str(kg.AttrName) != "Match" {
		t.Errorf("placeholder statement = %+v, want kind Other named Match", stmt.Attrs)
	}

	back := assertRoundTrip(t, mod)
	if bad, ok := back.Body[0].(*pyast.BadStmt); !ok || bad.Kind != "Match" {
		t.Errorf("body[0] = %#v, want BadStmt{Match}", back.Body[0])
	}
}

func TestConstantGoTypes(t *testing.T) {
	huge, _ := new(big.Int).SetString("18446744073709551615", 10)
	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"int", 5, int64(5)},
		{"int32", int32(-7), int64(-7)},
		{"uint8", uint8(255), int64(255)},
		{"uint64 overflow", uint64(math.MaxUint64), huge},
		{"float32", float32(1.5), 1.5},
		{"complex64", complex64(complex(0, 2)), complex(0, 2)},
		{"byte slice", []byte("ab"), pyast.Bytes("ab")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := module(&pyast.Assign{Targets: []pyast.Expr{name("x")}, Value: &pyast.Constant{Value: tt.value}})
			back := decode(t, encode(t, mod))
			got := back.Body[0].(*pyast.Assign).Value.(*pyast.Constant).Value
			if g, ok := got.(*big.Int); ok {
				if g.Cmp(tt.want.(*big.Int)) != 0 {
					t.Errorf("value = %v, want %v", g, tt.want)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("value = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestUnknownConstantBecomesPlaceholder(t *testing.T) {
	type opaque struct{}
	mod := module(&pyast.Assign{Targets: []pyast.Expr{name("x")}, Value: &pyast.Constant{Value: opaque{}}})
	g := encode(t, mod)

	n, ok := g.Node("other_0")
	if !ok {
		t.Fatalf("no placeholder node in %v", g.Stats().ByKind)
	}
	if n.Str(kg.AttrType) != "other" {
		t.Errorf("placeholder type = %q, want other", n.Str(kg.AttrType))
	}
	back := decode(t, g)
	if _, ok := back.Body[0].(*pyast.Assign).Value.(*pyast.BadExpr); !ok {
		t.Errorf("decoded value = %T, want *pyast.BadExpr", back.Body[0].(*pyast.Assign).Value)
	}
}

func TestUnknownKindsDegradeWithWarning(t *testing.T) {
	g := encode(t, module(
		&pyast.Assign{Targets: []pyast.Expr{name("x")}, Value: binop(name("a"), pyast.Add, name("b"))},
		&pyast.Pass{},
	))
	n, _ := g.Node("binary_operator_0")
	n.Attrs[kg.AttrType] = "matrix_power"
	n, _ = g.Node("pass_0")
	n.Attrs[kg.AttrKind] = "Frobnicate"

	d := NewDecoder()
	m, err := d.Decode(g, "")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v := m.Body[0].(*pyast.Assign).Value.(*pyast.Constant); v.Value != nil {
		t.Errorf("unknown expression = %#v, want None", v.Value)
	}
	if _, ok := m.Body[1].(*pyast.Pass); !ok {
		t.Errorf("unknown statement = %T, want *Pass", m.Body[1])
	}
	if len(d.Warnings) != 2 {
		t.Fatalf("len(Warnings) = %d, want 2", len(d.Warnings))
	}
	for _, w := range d.Warnings {
		if !apperr.Is(w, apperr.ErrCodeUnsupported) {
			t.Errorf("warning %v, want code %s", w, apperr.ErrCodeUnsupported)
		}
	}
}

func TestLenientDecode(t *testing.T) {
	g := rewrite(t, encode(t, assignments()), dropEdge("assign_0", kg.RelValue))
	for _, parallel := range []bool{false, true} {
		opts := []Option{WithLenient()}
		if parallel {
			opts = append(opts, WithParallel())
		}
		d := NewDecoder(opts...)
		m, err := d.Decode(g, "")
		if err != nil {
			t.Fatalf("parallel=%v: Decode: %v", parallel, err)
		}
		if _, ok := m.Body[0].(*pyast.Pass); !ok {
			t.Errorf("parallel=%v: body[0] = %T, want *Pass", parallel, m.Body[0])
		}
		if a, ok := m.Body[1].(*pyast.Assign); !ok || a.Targets[0].(*pyast.Name).ID != "y" {
			t.Errorf("parallel=%v: body[1] = %#v, want y = x", parallel, m.Body[1])
		}
		if len(d.Warnings) != 1 {
			t.Fatalf("parallel=%v: len(Warnings) = %d, want 1", parallel, len(d.Warnings))
		}
		wantIntegrity(t, d.Warnings[0], "assign_0", kg.RelValue)
	}
}

func TestOrderingTies(t *testing.T) {
	g := kg.New()
	nodes := []kg.Node{
		{ID: kg.RootID, Kind: kg.KindModule},
		// Same order and no seq: ids break the tie.
		{ID: "pass_b", Kind: kg.KindStatement, Attrs: kg.Attrs{kg.AttrKind: "Pass", kg.AttrOrder: 1, kg.AttrLineno: 3}},
		{ID: "pass_a", Kind: kg.KindStatement, Attrs: kg.Attrs{kg.AttrKind: "Pass", kg.AttrOrder: 1, kg.AttrLineno: 7}},
		// Same order, seq decides.
		{ID: "pass_z", Kind: kg.KindStatement, Attrs: kg.Attrs{kg.AttrKind: "Pass", kg.AttrOrder: 2, kg.AttrSeq: 0, kg.AttrLineno: 9}},
		{ID: "pass_y", Kind: kg.KindStatement, Attrs: kg.Attrs{kg.AttrKind: "Pass", kg.AttrOrder: 2, kg.AttrSeq: 1, kg.AttrLineno: 8}},
	}
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	for _, id := range []string{"pass_y", "pass_b", "pass_z", "pass_a"} {
		if err := g.AddEdge(kg.Edge{Src: kg.RootID, Rel: kg.RelHasStatement, Dst: id}); err != nil {
			t.Fatal(err)
		}
	}

	m := decode(t, g)
	want := []int{7, 3, 9, 8}
	for i, s := range m.Body {
		if s.Line() != want[i] {
			t.Errorf("body[%d] line = %d, want %d", i, s.Line(), want[i])
		}
	}
}
