package codec

import (
	"github.com/matzehuels/astkg/pkg/kg"
	"github.com/matzehuels/astkg/pkg/pyast"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// expr rebuilds the expression rooted at id in load context.
func (r *reader) expr(id string) pyast.Expr {
	n := r.node(id)
	if n == nil || !r.enter(id) {
		return nil
	}
	defer r.leave()

	switch n.Kind {
	case kg.KindName:
		name, ok := n.Attrs[kg.AttrName].(string)
		if !ok {
			r.fail(apperr.Integrity(id, "", "Name node without a name"))
			return nil
		}
		return &pyast.Name{ID: name}
	case kg.KindLiteral:
		v, err := literalValue(n)
		if err != nil {
			r.fail(err)
			return nil
		}
		return &pyast.Constant{Value: v}
	case kg.KindExpression:
		return r.expression(n)
	}
	r.unsupported(n, "node kind %s in expression position", n.Kind)
	return pyast.None()
}

func (r *reader) expression(n *kg.Node) pyast.Expr {
	id := n.ID
	switch typ := n.Str(kg.AttrType); typ {
	case typeBinOp:
		return &pyast.BinOp{
			Op:    r.binaryOp(id, kg.RelOperation),
			Left:  r.req(id, kg.RelLeft),
			Right: r.req(id, kg.RelRight),
		}

	case typeUnaryOp:
		op := pyast.UnaryOperator(r.operation(id, kg.RelOperation))
		if r.err == nil && !op.Valid() {
			r.fail(apperr.Integrity(id, kg.RelOperation, "unknown unary operator %q", op))
		}
		return &pyast.UnaryOp{Op: op, Operand: r.req(id, kg.RelOperand)}

	case typeBoolOp:
		op := pyast.BoolOperator(r.operation(id, kg.RelOperation))
		if r.err == nil && !op.Valid() {
			r.fail(apperr.Integrity(id, kg.RelOperation, "unknown boolean operator %q", op))
		}
		return &pyast.BoolOp{Op: op, Values: r.list(id, kg.RelValue)}

	case typeCompare:
		c := &pyast.Compare{Left: r.req(id, kg.RelLeft)}
		ops := r.x.OrderedByPrefix(id, kg.RelOp)
		comps := r.x.OrderedByPrefix(id, kg.RelComparator)
		if len(ops) != len(comps) {
			r.fail(apperr.Integrity(id, kg.RelOp, "%d operators for %d comparators", len(ops), len(comps)))
			return nil
		}
		for i, s := range ops {
			rel := kg.Indexed(kg.RelOp, s.Index).String()
			op := pyast.CmpOperator(r.operationNode(id, rel, s.Dst))
			if r.err == nil && !op.Valid() {
				r.fail(apperr.Integrity(id, rel, "unknown comparison operator %q", op))
			}
			c.Ops = append(c.Ops, op)
			c.Comparators = append(c.Comparators, r.expr(comps[i].Dst))
		}
		return c

	case typeCall:
		return &pyast.Call{
			Func:     r.req(id, kg.RelFunctionCall),
			Args:     r.list(id, kg.RelArg),
			Keywords: r.keywords(id),
		}

	case typeAttribute:
		attr, ok := n.Attrs[kg.AttrAttribute].(string)
		if !ok {
			r.fail(apperr.Integrity(id, "", "attribute without %s", kg.AttrAttribute))
			return nil
		}
		return &pyast.Attribute{Value: r.req(id, kg.RelValue), Attr: attr}

	case typeSubscript:
		return &pyast.Subscript{Value: r.req(id, kg.RelValue), Slice: r.req(id, kg.RelSlice)}

	case typeSlice:
		return &pyast.Slice{
			Lower: r.opt(id, kg.RelLower),
			Upper: r.opt(id, kg.RelUpper),
			Step:  r.opt(id, kg.RelStep),
		}

	case typeStarred:
		return &pyast.Starred{Value: r.req(id, kg.RelValue)}

	case typeTuple:
		return &pyast.Tuple{Elts: r.list(id, kg.RelElement)}
	case typeList:
		return &pyast.List{Elts: r.list(id, kg.RelElement)}
	case typeSet:
		return &pyast.Set{Elts: r.list(id, kg.RelElement)}

	case typeDict:
		d := &pyast.Dict{}
		keys := r.x.ByIndex(id, kg.RelKey)
		for _, s := range r.x.OrderedByPrefix(id, kg.RelValue) {
			var key pyast.Expr
			if kid, ok := keys[s.Index]; ok {
				key = r.expr(kid)
			}
			d.Keys = append(d.Keys, key)
			d.Values = append(d.Values, r.expr(s.Dst))
		}
		return d

	case typeListComp:
		return &pyast.ListComp{Elt: r.req(id, kg.RelElement), Generators: r.generators(id)}
	case typeSetComp:
		return &pyast.SetComp{Elt: r.req(id, kg.RelElement), Generators: r.generators(id)}
	case typeGeneratorExp:
		return &pyast.GeneratorExp{Elt: r.req(id, kg.RelElement), Generators: r.generators(id)}
	case typeDictComp:
		return &pyast.DictComp{
			Key:        r.req(id, kg.RelKey),
			Value:      r.req(id, kg.RelValue),
			Generators: r.generators(id),
		}

	case typeLambda:
		return &pyast.Lambda{Args: r.arguments(id), Body: r.req(id, kg.RelBody)}

	case typeJoinedStr:
		return &pyast.JoinedStr{Values: r.list(id, kg.RelValue)}

	case typeFormatted:
		conv, ok := n.Int(kg.AttrConversion)
		if !ok {
			conv = pyast.ConversionNone
		}
		return &pyast.FormattedValue{
			Value:      r.req(id, kg.RelValue),
			Conversion: conv,
			FormatSpec: r.opt(id, kg.RelFormatSpec),
		}

	case typeIfExp:
		return &pyast.IfExp{
			Test:   r.req(id, kg.RelCondition),
			Body:   r.req(id, kg.RelBody),
			OrElse: r.req(id, kg.RelOrElse),
		}

	case typeNamedExpr:
		return &pyast.NamedExpr{
			Target: r.target(id, kg.RelTarget, pyast.Store),
			Value:  r.req(id, kg.RelValue),
		}

	case typeAwait:
		return &pyast.Await{Value: r.req(id, kg.RelValue)}
	case typeYield:
		return &pyast.Yield{Value: r.opt(id, kg.RelValue)}
	case typeYieldFrom:
		return &pyast.YieldFrom{Value: r.req(id, kg.RelValue)}

	case typeOther:
		return &pyast.BadExpr{Kind: n.Str(kg.AttrName)}

	default:
		r.unsupported(n, "unknown expression type %q", typ)
		return pyast.None()
	}
}

// generators rebuilds the for clauses of any comprehension form.
func (r *reader) generators(id string) []pyast.Comprehension {
	var out []pyast.Comprehension
	for _, s := range r.x.OrderedByPrefix(id, kg.RelGen) {
		g := r.node(s.Dst)
		if g == nil {
			return nil
		}
		if g.Kind != kg.KindExpression || g.Str(kg.AttrType) != typeComprehension {
			r.fail(apperr.Integrity(id, kg.Indexed(kg.RelGen, s.Index).String(), "expected a comprehension"))
			return nil
		}
		out = append(out, pyast.Comprehension{
			Target:  r.target(g.ID, kg.RelTarget, pyast.Store),
			Iter:    r.req(g.ID, kg.RelIterator),
			Ifs:     r.list(g.ID, kg.RelIf),
			IsAsync: r.literalBool(g.ID, kg.RelIsAsync),
		})
	}
	return out
}
