package pysrc

import (
	"errors"
	"math/big"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/matzehuels/astkg/pkg/pyast"
)

func (c *converter) badExpr(n *sitter.Node, kind string) pyast.Expr {
	c.log.Debug("unsupported expression", "construct", kind, "line", line(n))
	return &pyast.BadExpr{Kind: kind}
}

// exprs converts a comma-separated run of expressions: one stays itself,
// several become a tuple.
func (c *converter) exprs(kids []*sitter.Node) pyast.Expr {
	if len(kids) == 1 {
		return c.expr(kids[0])
	}
	return &pyast.Tuple{Elts: c.list(kids)}
}

func (c *converter) list(kids []*sitter.Node) []pyast.Expr {
	out := make([]pyast.Expr, 0, len(kids))
	for _, k := range kids {
		out = append(out, c.expr(k))
	}
	return out
}

func (c *converter) expr(n *sitter.Node) pyast.Expr {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier", "keyword_identifier":
		return pyast.NewName(c.text(n))

	case "integer", "float":
		v, err := number(c.text(n), n.Type() == "float")
		if err != nil {
			return c.badExpr(n, "Number")
		}
		return &pyast.Constant{Value: v}
	case "true":
		return &pyast.Constant{Value: true}
	case "false":
		return &pyast.Constant{Value: false}
	case "none":
		return pyast.None()
	case "ellipsis":
		return &pyast.Constant{Value: pyast.Ellipsis}

	case "string":
		return c.stringLiteral([]*sitter.Node{n})
	case "concatenated_string":
		return c.stringLiteral(named(n))

	case "parenthesized_expression":
		return c.exprs(named(n))
	case "type":
		return c.expr(named(n)[0])

	case "binary_operator":
		op, ok := pyast.OperatorFromSymbol(n.ChildByFieldName("operator").Type())
		if !ok {
			return c.badExpr(n, "BinOp")
		}
		return &pyast.BinOp{
			Left:  c.expr(n.ChildByFieldName("left")),
			Op:    op,
			Right: c.expr(n.ChildByFieldName("right")),
		}

	case "unary_operator":
		var op pyast.UnaryOperator
		switch n.ChildByFieldName("operator").Type() {
		case "+":
			op = pyast.UAdd
		case "-":
			op = pyast.USub
		case "~":
			op = pyast.Invert
		default:
			return c.badExpr(n, "UnaryOp")
		}
		return &pyast.UnaryOp{Op: op, Operand: c.expr(n.ChildByFieldName("argument"))}

	case "not_operator":
		return &pyast.UnaryOp{Op: pyast.Not, Operand: c.expr(n.ChildByFieldName("argument"))}

	case "boolean_operator":
		return c.boolOp(n)

	case "comparison_operator":
		return c.compare(n)

	case "call":
		call := &pyast.Call{Func: c.expr(n.ChildByFieldName("function"))}
		args := n.ChildByFieldName("arguments")
		if args.Type() == "generator_expression" {
			call.Args = []pyast.Expr{c.expr(args)}
		} else {
			call.Args, call.Keywords = c.arguments(args)
		}
		return call

	case "attribute":
		return &pyast.Attribute{
			Value: c.expr(n.ChildByFieldName("object")),
			Attr:  c.text(n.ChildByFieldName("attribute")),
		}

	case "subscript":
		return &pyast.Subscript{
			Value: c.expr(n.ChildByFieldName("value")),
			Slice: c.exprs(field(n, "subscript")),
		}

	case "slice":
		return c.slice(n)

	case "list_splat", "list_splat_pattern", "parenthesized_list_splat":
		return &pyast.Starred{Value: c.expr(named(n)[0])}

	case "tuple", "expression_list", "pattern_list", "tuple_pattern":
		return &pyast.Tuple{Elts: c.list(named(n))}
	case "list", "list_pattern":
		return &pyast.List{Elts: c.list(named(n))}
	case "set":
		return &pyast.Set{Elts: c.list(named(n))}

	case "dictionary":
		d := &pyast.Dict{}
		for _, k := range named(n) {
			switch k.Type() {
			case "pair":
				d.Keys = append(d.Keys, c.expr(k.ChildByFieldName("key")))
				d.Values = append(d.Values, c.expr(k.ChildByFieldName("value")))
			case "dictionary_splat":
				d.Keys = append(d.Keys, nil)
				d.Values = append(d.Values, c.expr(named(k)[0]))
			}
		}
		return d

	case "list_comprehension":
		return &pyast.ListComp{Elt: c.expr(n.ChildByFieldName("body")), Generators: c.generators(n)}
	case "set_comprehension":
		return &pyast.SetComp{Elt: c.expr(n.ChildByFieldName("body")), Generators: c.generators(n)}
	case "generator_expression":
		return &pyast.GeneratorExp{Elt: c.expr(n.ChildByFieldName("body")), Generators: c.generators(n)}
	case "dictionary_comprehension":
		pair := n.ChildByFieldName("body")
		return &pyast.DictComp{
			Key:        c.expr(pair.ChildByFieldName("key")),
			Value:      c.expr(pair.ChildByFieldName("value")),
			Generators: c.generators(n),
		}

	case "lambda":
		return &pyast.Lambda{
			Args: c.parameters(n.ChildByFieldName("parameters")),
			Body: c.expr(n.ChildByFieldName("body")),
		}

	case "conditional_expression":
		kids := named(n)
		return &pyast.IfExp{Body: c.expr(kids[0]), Test: c.expr(kids[1]), OrElse: c.expr(kids[2])}

	case "named_expression":
		x := &pyast.NamedExpr{
			Target: c.expr(n.ChildByFieldName("name")),
			Value:  c.expr(n.ChildByFieldName("value")),
		}
		pyast.SetContext(x.Target, pyast.Store)
		return x

	case "await":
		return &pyast.Await{Value: c.expr(named(n)[0])}

	case "yield":
		kids := named(n)
		if hasToken(n, "from") {
			return &pyast.YieldFrom{Value: c.expr(kids[0])}
		}
		y := &pyast.Yield{}
		if len(kids) > 0 {
			y.Value = c.exprs(kids)
		}
		return y
	}
	return c.badExpr(n, n.Type())
}

// boolOp flattens left-nested chains of one operator into a single BoolOp,
// matching the grouping of the Python ast module.
func (c *converter) boolOp(n *sitter.Node) pyast.Expr {
	sym := n.ChildByFieldName("operator").Type()
	op := pyast.And
	if sym == "or" {
		op = pyast.Or
	}
	var values []pyast.Expr
	left := n.ChildByFieldName("left")
	if left.Type() == "boolean_operator" && left.ChildByFieldName("operator").Type() == sym {
		if inner, ok := c.boolOp(left).(*pyast.BoolOp); ok {
			values = inner.Values
		}
	} else {
		values = []pyast.Expr{c.expr(left)}
	}
	values = append(values, c.expr(n.ChildByFieldName("right")))
	return &pyast.BoolOp{Op: op, Values: values}
}

func (c *converter) compare(n *sitter.Node) pyast.Expr {
	x := &pyast.Compare{}
	pending := ""
	for i := 0; i < int(n.ChildCount()); i++ {
		k := n.Child(i)
		if k.IsNamed() {
			if k.Type() == "comment" {
				continue
			}
			if x.Left == nil {
				x.Left = c.expr(k)
			} else {
				x.Comparators = append(x.Comparators, c.expr(k))
			}
			continue
		}
		// "not in" and "is not" may arrive as one token or two.
		sym := strings.Join(strings.Fields(k.Type()), " ")
		switch {
		case pending != "":
			sym = pending + " " + sym
			pending = ""
		case sym == "not", sym == "is" && i+1 < int(n.ChildCount()) && n.Child(i+1).Type() == "not":
			pending = sym
			continue
		}
		op, ok := pyast.CmpOperatorFromSymbol(sym)
		if !ok {
			return c.badExpr(n, "Compare")
		}
		x.Ops = append(x.Ops, op)
	}
	return x
}

// arguments converts an argument_list into positional arguments and
// keywords.
func (c *converter) arguments(n *sitter.Node) ([]pyast.Expr, []pyast.Keyword) {
	var args []pyast.Expr
	var kws []pyast.Keyword
	for _, k := range named(n) {
		switch k.Type() {
		case "keyword_argument":
			kws = append(kws, pyast.Keyword{
				Arg:   c.text(k.ChildByFieldName("name")),
				Value: c.expr(k.ChildByFieldName("value")),
			})
		case "dictionary_splat":
			kws = append(kws, pyast.Keyword{Value: c.expr(named(k)[0])})
		default:
			args = append(args, c.expr(k))
		}
	}
	return args, kws
}

// slice splits lower:upper:step on the colon tokens.
func (c *converter) slice(n *sitter.Node) pyast.Expr {
	s := &pyast.Slice{}
	part := 0
	for i := 0; i < int(n.ChildCount()); i++ {
		k := n.Child(i)
		if !k.IsNamed() {
			if k.Type() == ":" {
				part++
			}
			continue
		}
		if k.Type() == "comment" {
			continue
		}
		switch part {
		case 0:
			s.Lower = c.expr(k)
		case 1:
			s.Upper = c.expr(k)
		default:
			s.Step = c.expr(k)
		}
	}
	return s
}

// generators collects the for and if clauses of a comprehension. Each if
// filters the for clause before it.
func (c *converter) generators(n *sitter.Node) []pyast.Comprehension {
	var out []pyast.Comprehension
	for _, k := range named(n) {
		switch k.Type() {
		case "for_in_clause":
			g := pyast.Comprehension{
				Target:  c.expr(k.ChildByFieldName("left")),
				Iter:    c.exprs(field(k, "right")),
				IsAsync: hasToken(k, "async"),
			}
			pyast.SetContext(g.Target, pyast.Store)
			out = append(out, g)
		case "if_clause":
			if len(out) > 0 {
				last := &out[len(out)-1]
				last.Ifs = append(last.Ifs, c.expr(named(k)[0]))
			}
		}
	}
	return out
}

// number parses an integer or float literal, including underscores,
// base prefixes and the imaginary suffix.
func number(text string, isFloat bool) (any, error) {
	s := strings.ReplaceAll(text, "_", "")
	if last := s[len(s)-1]; last == 'j' || last == 'J' {
		f, err := parseFloat(s[:len(s)-1])
		if err != nil {
			return nil, err
		}
		return complex(0, f), nil
	}
	if isFloat {
		return parseFloat(s)
	}
	s = strings.TrimRight(s, "lL")
	if len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9' {
		// Python 3 allows only zeros after a leading zero.
		s = strings.TrimLeft(s, "0")
		if s == "" {
			s = "0"
		}
	}
	b, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, strconv.ErrSyntax
	}
	if b.IsInt64() {
		return b.Int64(), nil
	}
	return b, nil
}

// parseFloat accepts literals that overflow to infinity, as Python does.
func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && errors.Is(err, strconv.ErrRange) {
		return f, nil
	}
	return f, err
}
