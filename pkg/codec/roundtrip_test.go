package codec

import (
	"bytes"
	"math"
	"math/big"
	"sync"
	"testing"

	"github.com/matzehuels/astkg/pkg/kg"
	"github.com/matzehuels/astkg/pkg/pyast"
)

// everyConstruct builds a module touching each supported statement kind
// and expression type at least once.
func everyConstruct() *pyast.Module {
	cmp := &pyast.Compare{
		Left:        name("a"),
		Ops:         []pyast.CmpOperator{pyast.Lt, pyast.LtE},
		Comparators: []pyast.Expr{name("b"), num(10)},
	}
	gen := []pyast.Comprehension{{
		Target: name("v"),
		Iter:   name("vs"),
		Ifs:    []pyast.Expr{name("v"), &pyast.UnaryOp{Op: pyast.Not, Operand: name("skip")}},
	}}
	fstr := &pyast.JoinedStr{Values: []pyast.Expr{
		str("n="),
		&pyast.FormattedValue{Value: name("n"), Conversion: pyast.ConversionRepr},
		str(" w="),
		&pyast.FormattedValue{
			Value:      name("w"),
			Conversion: pyast.ConversionNone,
			FormatSpec: &pyast.JoinedStr{Values: []pyast.Expr{str(">8")}},
		},
	}}

	return module(
		&pyast.Import{Names: []pyast.Alias{{Name: "os"}, {Name: "numpy", AsName: "np"}}},
		&pyast.ImportFrom{Module: "pkg.sub", Names: []pyast.Alias{{Name: "thing"}}},
		&pyast.ImportFrom{Level: 2, Names: []pyast.Alias{{Name: "sibling", AsName: "sib"}}},
		&pyast.Assign{Targets: []pyast.Expr{name("a"), name("b")}, Value: num(1)},
		&pyast.AnnAssign{Target: name("count"), Annotation: name("int"), Value: num(0), Simple: true},
		&pyast.AnnAssign{Target: &pyast.Attribute{Value: name("self"), Attr: "x"}, Annotation: name("str")},
		&pyast.AugAssign{Target: name("a"), Op: pyast.FloorDiv, Value: num(3)},
		expr(&pyast.BoolOp{Op: pyast.And, Values: []pyast.Expr{name("a"), name("b"), cmp}}),
		expr(&pyast.IfExp{Test: name("c"), Body: num(1), OrElse: &pyast.UnaryOp{Op: pyast.USub, Operand: num(1)}}),
		expr(&pyast.Subscript{Value: name("xs"), Slice: &pyast.Slice{Lower: num(1), Step: num(2)}}),
		expr(&pyast.Subscript{Value: name("m"), Slice: &pyast.Tuple{Elts: []pyast.Expr{num(0), &pyast.Slice{}}}}),
		expr(&pyast.Dict{
			Keys:   []pyast.Expr{str("k"), nil},
			Values: []pyast.Expr{&pyast.Set{Elts: []pyast.Expr{num(1), num(2)}}, name("extra")},
		}),
		expr(&pyast.List{Elts: []pyast.Expr{&pyast.Starred{Value: name("head")}, num(3)}}),
		expr(&pyast.ListComp{Elt: name("v"), Generators: gen}),
		expr(&pyast.SetComp{Elt: name("v"), Generators: gen}),
		expr(&pyast.DictComp{Key: name("v"), Value: binop(name("v"), pyast.Pow, num(2)), Generators: gen}),
		expr(call(name("sum"), &pyast.GeneratorExp{Elt: name("v"), Generators: gen})),
		expr(&pyast.Lambda{
			Args: &pyast.Arguments{Args: []pyast.Arg{{Name: "x"}}, Defaults: []pyast.Expr{num(1)}},
			Body: binop(name("x"), pyast.Add, num(1)),
		}),
		expr(fstr),
		&pyast.Global{Names: []string{"g1", "g2"}},
		&pyast.ClassDef{
			Name:       "Thing",
			Bases:      []pyast.Expr{name("Base")},
			Keywords:   []pyast.Keyword{{Arg: "metaclass", Value: name("Meta")}},
			Decorators: []pyast.Expr{name("dataclass")},
			Body: []pyast.Stmt{
				&pyast.AnnAssign{Target: name("field"), Annotation: name("int"), Simple: true},
				&pyast.FunctionDef{
					Name:       "method",
					Args:       &pyast.Arguments{Args: []pyast.Arg{{Name: "self"}}},
					Decorators: []pyast.Expr{&pyast.Attribute{Value: name("functools"), Attr: "cache"}},
					Body: []pyast.Stmt{
						&pyast.Nonlocal{Names: []string{"outer"}},
						&pyast.Return{Value: &pyast.Attribute{Value: name("self"), Attr: "field"}},
					},
				},
			},
		},
		&pyast.FunctionDef{
			Name:    "worker",
			IsAsync: true,
			Args:    &pyast.Arguments{Args: []pyast.Arg{{Name: "q", Annotation: name("Queue")}}},
			Returns: &pyast.Constant{},
			Body: []pyast.Stmt{
				&pyast.With{
					IsAsync: true,
					Items:   []pyast.WithItem{{Context: call(name("lock"))}, {Context: call(name("open"), str("f")), Vars: name("fh")}},
					Body:    []pyast.Stmt{expr(&pyast.Await{Value: call(&pyast.Attribute{Value: name("q"), Attr: "get"})})},
				},
				&pyast.For{
					IsAsync: true,
					Target:  name("item"),
					Iter:    name("q"),
					Body:    []pyast.Stmt{&pyast.Continue{}},
					OrElse:  []pyast.Stmt{&pyast.Break{}},
				},
			},
		},
		&pyast.FunctionDef{
			Name: "gen",
			Args: &pyast.Arguments{},
			Body: []pyast.Stmt{
				expr(&pyast.Yield{}),
				expr(&pyast.Yield{Value: num(1)}),
				expr(&pyast.YieldFrom{Value: name("other")}),
			},
		},
		&pyast.While{
			Test: &pyast.Constant{Value: true},
			Body: []pyast.Stmt{
				&pyast.If{
					Test:   &pyast.NamedExpr{Target: name("line"), Value: call(name("read"))},
					Body:   []pyast.Stmt{&pyast.Break{}},
					OrElse: []pyast.Stmt{&pyast.If{Test: name("retry"), Body: []pyast.Stmt{&pyast.Continue{}}}},
				},
			},
			OrElse: []pyast.Stmt{&pyast.Pass{}},
		},
		&pyast.Try{
			Body:      []pyast.Stmt{&pyast.Assert{Test: name("ok"), Msg: str("not ok")}},
			Handlers:  []pyast.ExceptHandler{{Type: name("Exception"), Name: "e", Body: []pyast.Stmt{&pyast.Raise{Exc: call(name("Wrapped")), Cause: name("e")}}}},
			FinalBody: []pyast.Stmt{&pyast.Delete{Targets: []pyast.Expr{name("a"), &pyast.Attribute{Value: name("o"), Attr: "p"}}}},
		},
	)
}

func TestRoundTripEveryConstruct(t *testing.T) {
	assertRoundTrip(t, everyConstruct())
}

func TestRoundTripThroughJSON(t *testing.T) {
	mod := everyConstruct()
	g := encode(t, mod)

	data, err := kg.MarshalGraph(g)
	if err != nil {
		t.Fatalf("MarshalGraph: %v", err)
	}
	back, err := kg.ReadGraph(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadGraph: %v", err)
	}
	if back.NodeCount() != g.NodeCount() || back.EdgeCount() != g.EdgeCount() {
		t.Errorf("graph size = %d/%d, want %d/%d", back.NodeCount(), back.EdgeCount(), g.NodeCount(), g.EdgeCount())
	}

	got := decode(t, back)
	if pyast.Format(got) != pyast.Format(mod) {
		t.Errorf("JSON round trip mismatch\n got:\n%s\nwant:\n%s", pyast.Format(got), pyast.Format(mod))
	}
}

func TestRoundTripThroughTriples(t *testing.T) {
	mod := everyConstruct()
	ts, err := kg.ToTriples(encode(t, mod))
	if err != nil {
		t.Fatalf("ToTriples: %v", err)
	}
	// Stores hand triples back in arbitrary order.
	for i, j := 0, len(ts)-1; i < j; i, j = i+1, j-1 {
		ts[i], ts[j] = ts[j], ts[i]
	}
	g, err := kg.FromTriples(ts)
	if err != nil {
		t.Fatalf("FromTriples: %v", err)
	}
	if got := pyast.Format(decode(t, g)); got != pyast.Format(mod) {
		t.Errorf("triples round trip mismatch\n got:\n%s", got)
	}
}

func TestLiteralTypes(t *testing.T) {
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	tests := []struct {
		name  string
		value any
	}{
		{"None", nil},
		{"True", true},
		{"False", false},
		{"Int", int64(-42)},
		{"BigInt", huge},
		{"Float", 2.5},
		{"WholeFloat", 2.0},
		{"Inf", math.Inf(1)},
		{"NegInf", math.Inf(-1)},
		{"Complex", complex(1.5, -2)},
		{"Imaginary", complex(0, 3)},
		{"Str", "héllo 'world'"},
		{"EmptyStr", ""},
		{"Bytes", pyast.Bytes{0, 1, 0xff}},
		{"Ellipsis", pyast.Ellipsis},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &pyast.Constant{Value: tt.value}
			mod := module(&pyast.Assign{Targets: []pyast.Expr{name("x")}, Value: in})

			g := encode(t, mod)
			data, err := kg.MarshalGraph(g)
			if err != nil {
				t.Fatalf("MarshalGraph: %v", err)
			}
			g, err = kg.ReadGraph(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("ReadGraph: %v", err)
			}

			out := decode(t, g).Body[0].(*pyast.Assign).Value.(*pyast.Constant)
			if out.Kind() != in.Kind() {
				t.Errorf("Kind = %s, want %s", out.Kind(), in.Kind())
			}
			if got, want := pyast.FormatExpr(out), pyast.FormatExpr(in); got != want {
				t.Errorf("value = %s, want %s", got, want)
			}
		})
	}
}

func TestLiteralNaN(t *testing.T) {
	mod := module(expr(&pyast.Constant{Value: math.NaN()}))
	g := encode(t, mod)
	data, _ := kg.MarshalGraph(g)
	g, err := kg.ReadGraph(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadGraph: %v", err)
	}
	v := decode(t, g).Body[0].(*pyast.ExprStmt).Value.(*pyast.Constant).Value
	if f, ok := v.(float64); !ok || !math.IsNaN(f) {
		t.Errorf("value = %#v, want NaN", v)
	}
}

func TestParallelDecodeMatchesSequential(t *testing.T) {
	g := encode(t, everyConstruct())
	seq := decode(t, g)
	par := decode(t, g, WithParallel())
	if got, want := pyast.Format(par), pyast.Format(seq); got != want {
		t.Errorf("parallel decode differs\n got:\n%s\nwant:\n%s", got, want)
	}
}

func TestConcurrentEncodesAreIndependent(t *testing.T) {
	mod := everyConstruct()
	want, err := kg.MarshalGraph(encode(t, mod))
	if err != nil {
		t.Fatalf("MarshalGraph: %v", err)
	}

	const workers = 8
	results := make([][]byte, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g, err := Encode(mod)
			if err != nil {
				return
			}
			results[i], _ = kg.MarshalGraph(g)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if !bytes.Equal(got, want) {
			t.Errorf("worker %d produced a different graph", i)
		}
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	a, _ := kg.MarshalGraph(encode(t, everyConstruct()))
	b, _ := kg.MarshalGraph(encode(t, everyConstruct()))
	if !bytes.Equal(a, b) {
		t.Error("two encodes of the same module differ")
	}
}

func TestDecodeDoesNotMutateGraph(t *testing.T) {
	g := encode(t, everyConstruct())
	before, _ := kg.MarshalGraph(g)
	decode(t, g)
	decode(t, g, WithParallel())
	after, _ := kg.MarshalGraph(g)
	if !bytes.Equal(before, after) {
		t.Error("Decode modified its input graph")
	}
}
