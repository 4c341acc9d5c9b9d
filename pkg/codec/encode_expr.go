package codec

import (
	"fmt"

	"github.com/matzehuels/astkg/pkg/kg"
	"github.com/matzehuels/astkg/pkg/pyast"
)

// Expression types stored in the Expression "type" attribute.
const (
	typeBinOp         = "binary_operator"
	typeUnaryOp       = "unaryop"
	typeBoolOp        = "boolop"
	typeCompare       = "compare"
	typeCall          = "call"
	typeAttribute     = "attribute"
	typeSubscript     = "subscript"
	typeSlice         = "slice"
	typeStarred       = "starred"
	typeTuple         = "tuple"
	typeList          = "list"
	typeSet           = "set"
	typeDict          = "dict"
	typeListComp      = "listcomp"
	typeSetComp       = "setcomp"
	typeGeneratorExp  = "generator_expression"
	typeDictComp      = "dictcomp"
	typeComprehension = "comprehension"
	typeLambda        = "lambda"
	typeJoinedStr     = "joinedstr"
	typeFormatted     = "formatted_value"
	typeIfExp         = "if_expression"
	typeNamedExpr     = "named_expression"
	typeAwait         = "await"
	typeYield         = "yield"
	typeYieldFrom     = "yieldfrom"
	typeOther         = "other"
)

// optExpr encodes x, returning "" for nil so the caller's link is skipped.
func (e *encoder) optExpr(x pyast.Expr) string {
	if x == nil {
		return ""
	}
	return e.expr(x)
}

func (e *encoder) operation(name string) string {
	return e.node("operation", kg.KindOperation, kg.Attrs{kg.AttrOperation: name})
}

func (e *encoder) elements(id string, elts []pyast.Expr) {
	for i, x := range elts {
		e.linkAt(id, kg.RelElement, i, e.expr(x))
	}
}

func (e *encoder) expr(x pyast.Expr) string {
	if x == nil {
		// A required child is missing; record it as None.
		return e.node("literal", kg.KindLiteral, kg.Attrs{kg.AttrLiteralValue: nil, kg.AttrLiteralType: string(pyast.KindNone)})
	}
	if !e.enter() {
		return ""
	}
	defer e.leave()

	switch x := x.(type) {
	case *pyast.Name:
		return e.node("name", kg.KindName, kg.Attrs{kg.AttrName: x.ID})

	case *pyast.Constant:
		attrs, ok := literalAttrs(x)
		if !ok {
			typ := fmt.Sprintf("%T", x.Value)
			id := e.exprNode("other", typeOther, kg.Attrs{kg.AttrName: typ})
			e.log.Debug("unknown constant type", "type", typ, "node", id)
			return id
		}
		return e.node("literal", kg.KindLiteral, attrs)

	case *pyast.BinOp:
		id := e.exprNode("binary_operator", typeBinOp, nil)
		e.link(id, kg.RelOperation, e.operation(string(x.Op)))
		e.link(id, kg.RelLeft, e.expr(x.Left))
		e.link(id, kg.RelRight, e.expr(x.Right))
		return id

	case *pyast.UnaryOp:
		id := e.exprNode("unaryop", typeUnaryOp, nil)
		e.link(id, kg.RelOperation, e.operation(string(x.Op)))
		e.link(id, kg.RelOperand, e.expr(x.Operand))
		return id

	case *pyast.BoolOp:
		id := e.exprNode("boolop", typeBoolOp, nil)
		e.link(id, kg.RelOperation, e.operation(string(x.Op)))
		for i, v := range x.Values {
			e.linkAt(id, kg.RelValue, i, e.expr(v))
		}
		return id

	case *pyast.Compare:
		id := e.exprNode("compare", typeCompare, nil)
		e.link(id, kg.RelLeft, e.expr(x.Left))
		for i, op := range x.Ops {
			e.linkAt(id, kg.RelOp, i, e.operation(string(op)))
		}
		for i, c := range x.Comparators {
			e.linkAt(id, kg.RelComparator, i, e.expr(c))
		}
		return id

	case *pyast.Call:
		id := e.exprNode("call", typeCall, nil)
		e.link(id, kg.RelFunctionCall, e.expr(x.Func))
		for i, a := range x.Args {
			e.linkAt(id, kg.RelArg, i, e.expr(a))
		}
		e.keywords(id, x.Keywords)
		return id

	case *pyast.Attribute:
		id := e.exprNode("attribute", typeAttribute, kg.Attrs{kg.AttrAttribute: x.Attr})
		e.link(id, kg.RelValue, e.expr(x.Value))
		return id

	case *pyast.Subscript:
		id := e.exprNode("subscript", typeSubscript, nil)
		e.link(id, kg.RelValue, e.expr(x.Value))
		e.link(id, kg.RelSlice, e.expr(x.Slice))
		return id

	case *pyast.Slice:
		id := e.exprNode("slice", typeSlice, nil)
		e.link(id, kg.RelLower, e.optExpr(x.Lower))
		e.link(id, kg.RelUpper, e.optExpr(x.Upper))
		e.link(id, kg.RelStep, e.optExpr(x.Step))
		return id

	case *pyast.Starred:
		id := e.exprNode("starred", typeStarred, nil)
		e.link(id, kg.RelValue, e.expr(x.Value))
		return id

	case *pyast.Tuple:
		id := e.exprNode("tuple", typeTuple, nil)
		e.elements(id, x.Elts)
		return id

	case *pyast.List:
		id := e.exprNode("list", typeList, nil)
		e.elements(id, x.Elts)
		return id

	case *pyast.Set:
		id := e.exprNode("set", typeSet, nil)
		e.elements(id, x.Elts)
		return id

	case *pyast.Dict:
		id := e.exprNode("dictionary", typeDict, nil)
		for i, v := range x.Values {
			if i < len(x.Keys) && x.Keys[i] != nil {
				e.linkAt(id, kg.RelKey, i, e.expr(x.Keys[i]))
			}
			e.linkAt(id, kg.RelValue, i, e.expr(v))
		}
		return id

	case *pyast.ListComp:
		id := e.exprNode("listcomp", typeListComp, nil)
		e.link(id, kg.RelElement, e.expr(x.Elt))
		e.generators(id, x.Generators)
		return id

	case *pyast.SetComp:
		id := e.exprNode("setcomp", typeSetComp, nil)
		e.link(id, kg.RelElement, e.expr(x.Elt))
		e.generators(id, x.Generators)
		return id

	case *pyast.GeneratorExp:
		id := e.exprNode("generator_expression", typeGeneratorExp, nil)
		e.link(id, kg.RelElement, e.expr(x.Elt))
		e.generators(id, x.Generators)
		return id

	case *pyast.DictComp:
		id := e.exprNode("dictcomp", typeDictComp, nil)
		e.link(id, kg.RelKey, e.expr(x.Key))
		e.link(id, kg.RelValue, e.expr(x.Value))
		e.generators(id, x.Generators)
		return id

	case *pyast.Lambda:
		id := e.exprNode("lambda", typeLambda, nil)
		e.parameters(id, x.Args)
		e.link(id, kg.RelBody, e.expr(x.Body))
		return id

	case *pyast.JoinedStr:
		id := e.exprNode("joinedstr", typeJoinedStr, nil)
		for i, v := range x.Values {
			e.linkAt(id, kg.RelValue, i, e.expr(v))
		}
		return id

	case *pyast.FormattedValue:
		id := e.exprNode("formatted", typeFormatted, kg.Attrs{kg.AttrConversion: x.Conversion})
		e.link(id, kg.RelValue, e.expr(x.Value))
		e.link(id, kg.RelFormatSpec, e.optExpr(x.FormatSpec))
		return id

	case *pyast.IfExp:
		id := e.exprNode("ifexp", typeIfExp, nil)
		e.link(id, kg.RelCondition, e.expr(x.Test))
		e.link(id, kg.RelBody, e.expr(x.Body))
		e.link(id, kg.RelOrElse, e.expr(x.OrElse))
		return id

	case *pyast.NamedExpr:
		id := e.exprNode("namedexpr", typeNamedExpr, nil)
		e.link(id, kg.RelTarget, e.expr(x.Target))
		e.link(id, kg.RelValue, e.expr(x.Value))
		return id

	case *pyast.Await:
		id := e.exprNode("await", typeAwait, nil)
		e.link(id, kg.RelValue, e.expr(x.Value))
		return id

	case *pyast.Yield:
		id := e.exprNode("yield", typeYield, nil)
		e.link(id, kg.RelValue, e.optExpr(x.Value))
		return id

	case *pyast.YieldFrom:
		id := e.exprNode("yieldfrom", typeYieldFrom, nil)
		e.link(id, kg.RelValue, e.expr(x.Value))
		return id

	case *pyast.BadExpr:
		id := e.exprNode("other", typeOther, kg.Attrs{kg.AttrName: x.Kind})
		e.log.Debug("unsupported expression", "construct", x.Kind, "node", id)
		return id
	}

	id := e.exprNode("other", typeOther, kg.Attrs{kg.AttrName: fmt.Sprintf("%T", x)})
	e.log.Debug("unknown expression type", "type", fmt.Sprintf("%T", x), "node", id)
	return id
}

// generators encodes the for clauses of a comprehension. Every
// comprehension form shares this path.
func (e *encoder) generators(id string, gens []pyast.Comprehension) {
	for i, g := range gens {
		gid := e.exprNode("generator", typeComprehension, nil)
		e.linkAt(id, kg.RelGen, i, gid)
		e.link(gid, kg.RelTarget, e.expr(g.Target))
		e.link(gid, kg.RelIterator, e.expr(g.Iter))
		for j, cond := range g.Ifs {
			e.linkAt(gid, kg.RelIf, j, e.expr(cond))
		}
		e.link(gid, kg.RelIsAsync, e.node("literal", kg.KindLiteral, boolLiteral(g.IsAsync)))
	}
}
