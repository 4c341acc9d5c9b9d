package pyast

import (
	"math"
	"testing"
)

func TestFormatExprPrecedence(t *testing.T) {
	a, b, c := NewName("a"), NewName("b"), NewName("c")
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"left assoc", &BinOp{Left: &BinOp{Left: a, Op: Sub, Right: b}, Op: Sub, Right: c}, "a - b - c"},
		{"right operand grouped", &BinOp{Left: a, Op: Sub, Right: &BinOp{Left: b, Op: Sub, Right: c}}, "a - (b - c)"},
		{"product of sum", &BinOp{Left: &BinOp{Left: a, Op: Add, Right: b}, Op: Mult, Right: c}, "(a + b) * c"},
		{"power right assoc", &BinOp{Left: a, Op: Pow, Right: &BinOp{Left: b, Op: Pow, Right: c}}, "a ** b ** c"},
		{"power left grouped", &BinOp{Left: &BinOp{Left: a, Op: Pow, Right: b}, Op: Pow, Right: c}, "(a ** b) ** c"},
		{"negated power", &UnaryOp{Op: USub, Operand: &BinOp{Left: a, Op: Pow, Right: b}}, "-a ** b"},
		{"power of negation", &BinOp{Left: &UnaryOp{Op: USub, Operand: a}, Op: Pow, Right: b}, "(-a) ** b"},
		{"not of and", &UnaryOp{Op: Not, Operand: &BoolOp{Op: And, Values: []Expr{a, b}}}, "not (a and b)"},
		{"or of and", &BoolOp{Op: Or, Values: []Expr{&BoolOp{Op: And, Values: []Expr{a, b}}, c}}, "a and b or c"},
		{"conditional", &IfExp{Test: a, Body: b, OrElse: c}, "b if a else c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatExpr(tt.expr); got != tt.want {
				t.Errorf("FormatExpr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatConstants(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{nil, "None"},
		{true, "True"},
		{int64(-3), "-3"},
		{1.5, "1.5"},
		{2.0, "2.0"},
		{1e20, "1e+20"},
		{math.Inf(1), "1e309"},
		{complex(0, 2), "2j"},
		{"it's", `"it's"`},
		{"plain", "'plain'"},
		{Bytes("ab"), "b'ab'"},
		{Ellipsis, "..."},
	}
	for _, tt := range tests {
		if got := FormatExpr(&Constant{Value: tt.value}); got != tt.want {
			t.Errorf("FormatExpr(%#v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestFormatSuites(t *testing.T) {
	m := &Module{Body: []Stmt{
		&If{
			Test: NewName("a"),
			Body: []Stmt{&Pass{}},
			OrElse: []Stmt{&If{
				Test:   NewName("b"),
				Body:   []Stmt{&ExprStmt{Value: Int(1)}},
				OrElse: []Stmt{&Break{}},
			}},
		},
		&FunctionDef{Name: "f", Args: &Arguments{}},
	}}
	want := `if a:
    pass
elif b:
    1
else:
    break
def f():
    pass
`
	if got := Format(m); got != want {
		t.Errorf("Format() =\n%s\nwant\n%s", got, want)
	}
}

func TestConstantKind(t *testing.T) {
	tests := []struct {
		c    *Constant
		want ConstantKind
	}{
		{None(), KindNone},
		{Int(1), KindInt},
		{Str("x"), KindStr},
		{&Constant{Value: Ellipsis}, KindEllipsis},
		{&Constant{Value: complex(1, 1)}, KindComplex},
	}
	for _, tt := range tests {
		if got := tt.c.Kind(); got != tt.want {
			t.Errorf("Kind(%#v) = %q, want %q", tt.c.Value, got, tt.want)
		}
	}
}

func TestFormatFStringQuotes(t *testing.T) {
	inner := &JoinedStr{Values: []Expr{&FormattedValue{Value: NewName("y")}}}
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{
			"string inside",
			&JoinedStr{Values: []Expr{Str("k="), &FormattedValue{Value: &Subscript{Value: NewName("d"), Slice: Str("k")}}}},
			`f'k={d["k"]}'`,
		},
		{
			"nested f-string",
			&JoinedStr{Values: []Expr{&FormattedValue{Value: &BinOp{Left: Str("nested"), Op: Add, Right: inner}}}},
			`f'{"nested" + f"{y}"}'`,
		},
		{
			"bytes inside",
			&JoinedStr{Values: []Expr{&FormattedValue{Value: &Constant{Value: Bytes("b")}}}},
			`f'{b"b"}'`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatExpr(tt.expr); got != tt.want {
				t.Errorf("FormatExpr() = %s, want %s", got, tt.want)
			}
		})
	}
}
