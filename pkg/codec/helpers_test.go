package codec

import (
	"testing"

	"github.com/matzehuels/astkg/pkg/kg"
	"github.com/matzehuels/astkg/pkg/pyast"
)

func name(id string) *pyast.Name { return pyast.NewName(id) }
func num(v int64) *pyast.Constant { return pyast.Int(v) }
func str(s string) *pyast.Constant { return pyast.Str(s) }
func expr(x pyast.Expr) pyast.Stmt { return &pyast.ExprStmt{Value: x} }
func module(body ...pyast.Stmt) *pyast.Module { return &pyast.Module{Body: body} }

func call(fn pyast.Expr, args ...pyast.Expr) *pyast.Call {
	return &pyast.Call{Func: fn, Args: args}
}

func binop(l pyast.Expr, op pyast.Operator, r pyast.Expr) *pyast.BinOp {
	return &pyast.BinOp{Left: l, Op: op, Right: r}
}

// encode encodes mod and checks the result against the graph invariants.
func encode(t *testing.T, mod *pyast.Module, opts ...Option) *kg.Graph {
	t.Helper()
	g, err := Encode(mod, opts...)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := kg.Validate(g); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return g
}

func decode(t *testing.T, g *kg.Graph, opts ...Option) *pyast.Module {
	t.Helper()
	m, err := Decode(g, kg.RootID, opts...)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return m
}

// assertRoundTrip checks that mod survives encode and decode unchanged up
// to layout.
func assertRoundTrip(t *testing.T, mod *pyast.Module, opts ...Option) *pyast.Module {
	t.Helper()
	back := decode(t, encode(t, mod, opts...), opts...)
	if got, want := pyast.Format(back), pyast.Format(mod); got != want {
		t.Errorf("round trip mismatch\n got:\n%s\nwant:\n%s", got, want)
	}
	return back
}

// dst returns the single destination of rel from src.
func dst(t *testing.T, g *kg.Graph, src, rel string) *kg.Node {
	t.Helper()
	id, _, err := kg.NewIndex(g).One(src, rel, false)
	if err != nil {
		t.Fatalf("One(%s, %s): %v", src, rel, err)
	}
	n, _ := g.Node(id)
	return n
}
