package kg

import (
	"errors"
	"testing"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

func TestParseRel(t *testing.T) {
	tests := []struct {
		in   string
		want Rel
	}{
		{"Arg_0", Rel{Family: "Arg", Index: 0}},
		{"KeywordValue_12", Rel{Family: "KeywordValue", Index: 12}},
		{"Body_Statement", Named("Body_Statement")},
		{"Function_call", Named("Function_call")},
		{"Value", Named("Value")},
		{"_3", Named("_3")},
		{"Arg_", Named("Arg_")},
		{"Arg_-1", Named("Arg_-1")},
	}
	for _, tt := range tests {
		if got := ParseRel(tt.in); got != tt.want {
			t.Errorf("ParseRel(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestRelString(t *testing.T) {
	if got := Indexed(RelElement, 3).String(); got != "Element_3" {
		t.Errorf("Indexed = %q, want Element_3", got)
	}
	if got := Named(RelCondition).String(); got != "Condition" {
		t.Errorf("Named = %q, want Condition", got)
	}
	for _, s := range []string{"Gen_0", "Handler_7", "OrElse_Statement"} {
		if got := ParseRel(s).String(); got != s {
			t.Errorf("ParseRel(%q).String() = %q", s, got)
		}
	}
}

func indexFixture(t *testing.T) *Index {
	t.Helper()
	g := New()
	for _, id := range []string{"call", "a", "b", "c", "d", "g", "n0", "n1"} {
		mustNode(t, g, Node{ID: id, Kind: KindExpression})
	}
	mustNode(t, g, Node{ID: "l0", Kind: KindLiteral, Attrs: Attrs{AttrLiteralValue: "x"}})
	mustNode(t, g, Node{ID: "l1", Kind: KindLiteral, Attrs: Attrs{AttrLiteralValue: "y"}})
	// Edges deliberately out of index order.
	mustEdge(t, g, "call", "Arg_2", "c")
	mustEdge(t, g, "call", "Arg_0", "a")
	mustEdge(t, g, "call", "Arg_1", "b")
	mustEdge(t, g, "call", RelFunctionCall, "d")
	mustEdge(t, g, "g", "Name_1", "l1")
	mustEdge(t, g, "g", "Name_0", "l0")
	mustEdge(t, g, "n0", RelValue, "a")
	mustEdge(t, g, "n0", RelValue, "b")
	mustEdge(t, g, "n1", "Name_0", "a")
	return NewIndex(g)
}

func TestIndexOne(t *testing.T) {
	x := indexFixture(t)

	dst, ok, err := x.One("call", RelFunctionCall, false)
	if err != nil || !ok || dst != "d" {
		t.Errorf("One(Function_call) = %q, %v, %v, want d", dst, ok, err)
	}

	_, ok, err = x.One("call", RelValue, true)
	if err != nil || ok {
		t.Errorf("One(optional missing) = %v, %v, want false, nil", ok, err)
	}

	_, _, err = x.One("call", RelValue, false)
	var ie *apperr.IntegrityError
	if !errors.As(err, &ie) || ie.NodeID != "call" || ie.Relation != RelValue {
		t.Errorf("One(required missing) = %v, want IntegrityError on call/Value", err)
	}

	if _, _, err := x.One("n0", RelValue, false); err == nil {
		t.Error("One should fail when a singular relation has two destinations")
	}
}

func TestIndexOrderedByPrefix(t *testing.T) {
	x := indexFixture(t)
	slots := x.OrderedByPrefix("call", RelArg)
	want := []string{"a", "b", "c"}
	if len(slots) != len(want) {
		t.Fatalf("len = %d, want %d", len(slots), len(want))
	}
	for i, s := range slots {
		if s.Index != i || s.Dst != want[i] {
			t.Errorf("slot %d = %+v, want {%d %s}", i, s, i, want[i])
		}
	}
	if got := x.ByIndex("call", RelArg)[2]; got != "c" {
		t.Errorf("ByIndex[2] = %q, want c", got)
	}
	if x.ByIndex("call", RelKey) != nil {
		t.Error("ByIndex of an absent family should be nil")
	}
}

func TestIndexLiteralValues(t *testing.T) {
	x := indexFixture(t)
	got, err := x.LiteralValues("g", RelName)
	if err != nil {
		t.Fatalf("LiteralValues: %v", err)
	}
	if len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Errorf("LiteralValues = %v, want [x y]", got)
	}
	if _, err := x.LiteralValues("n1", RelName); err == nil {
		t.Error("LiteralValues should reject non-literal members")
	}
}

func TestIndexNode(t *testing.T) {
	x := indexFixture(t)
	if _, err := x.Node("missing"); apperr.GetCode(err) != apperr.ErrCodeStructuralIntegrity {
		t.Errorf("Node(missing) code = %v, want %v", apperr.GetCode(err), apperr.ErrCodeStructuralIntegrity)
	}
	if len(x.Out("call")) != 4 {
		t.Errorf("Out(call) = %d edges, want 4", len(x.Out("call")))
	}
}
