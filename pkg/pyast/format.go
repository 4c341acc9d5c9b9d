package pyast

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode"
)

// Binding strength of expression forms, lowest first.
const (
	precNamed = iota + 1
	precTuple
	precYield
	precTest
	precOr
	precAnd
	precNot
	precCmp
	precBor
	precBxor
	precBand
	precShift
	precArith
	precTerm
	precFactor
	precPower
	precAwait
	precAtom
)

const indentUnit = "    "

// Format renders a module as Python source. The output parses back to
// an equal tree; layout, comments and redundant parentheses are not kept.
func Format(m *Module) string {
	p := &printer{}
	p.suite(m.Body, 0)
	return p.String()
}

// FormatStmt renders a single statement at top level.
func FormatStmt(s Stmt) string {
	p := &printer{}
	p.stmt(s, 0)
	return p.String()
}

// FormatExpr renders a single expression.
func FormatExpr(e Expr) string {
	p := &printer{}
	p.expr(e, precTest)
	return p.String()
}

type printer struct {
	strings.Builder
	// fquote is the delimiter of the innermost enclosing f-string, or 0.
	// Literals inside an f-string use the other quote so the output also
	// parses before Python 3.12.
	fquote byte
}

// =============================================================================
// Statements
// =============================================================================

func (p *printer) line(depth int, s string) {
	p.WriteString(strings.Repeat(indentUnit, depth))
	p.WriteString(s)
	p.WriteByte('\n')
}

func (p *printer) suite(body []Stmt, depth int) {
	if len(body) == 0 {
		p.line(depth, "pass")
		return
	}
	for _, s := range body {
		p.stmt(s, depth)
	}
}

func (p *printer) block(header string, body []Stmt, depth int) {
	p.line(depth, header+":")
	p.suite(body, depth+1)
}

func (p *printer) stmt(s Stmt, depth int) {
	switch s := s.(type) {
	case *FunctionDef:
		for _, d := range s.Decorators {
			p.line(depth, "@"+p.sub(d, precTest))
		}
		head := "def "
		if s.IsAsync {
			head = "async def "
		}
		head += s.Name + "(" + p.arguments(s.Args, true) + ")"
		if s.Returns != nil {
			head += " -> " + p.sub(s.Returns, precTest)
		}
		p.block(head, s.Body, depth)

	case *ClassDef:
		for _, d := range s.Decorators {
			p.line(depth, "@"+p.sub(d, precTest))
		}
		head := "class " + s.Name
		var parts []string
		for _, b := range s.Bases {
			parts = append(parts, p.sub(b, precTest))
		}
		for _, k := range s.Keywords {
			parts = append(parts, p.keyword(k))
		}
		if len(parts) > 0 {
			head += "(" + strings.Join(parts, ", ") + ")"
		}
		p.block(head, s.Body, depth)

	case *Return:
		if s.Value == nil {
			p.line(depth, "return")
			return
		}
		p.line(depth, "return "+p.sub(s.Value, precTest))

	case *Delete:
		p.line(depth, "del "+p.exprList(s.Targets, precTest))

	case *Assign:
		var b strings.Builder
		for _, t := range s.Targets {
			b.WriteString(p.sub(t, precTest))
			b.WriteString(" = ")
		}
		b.WriteString(p.sub(s.Value, precYield))
		p.line(depth, b.String())

	case *AugAssign:
		p.line(depth, p.sub(s.Target, precTest)+" "+s.Op.Symbol()+"= "+p.sub(s.Value, precYield))

	case *AnnAssign:
		target := p.sub(s.Target, precTest)
		if _, ok := s.Target.(*Name); ok && !s.Simple {
			target = "(" + target + ")"
		}
		out := target + ": " + p.sub(s.Annotation, precTest)
		if s.Value != nil {
			out += " = " + p.sub(s.Value, precYield)
		}
		p.line(depth, out)

	case *Raise:
		out := "raise"
		if s.Exc != nil {
			out += " " + p.sub(s.Exc, precTest)
		}
		if s.Cause != nil {
			out += " from " + p.sub(s.Cause, precTest)
		}
		p.line(depth, out)

	case *Assert:
		out := "assert " + p.sub(s.Test, precTest)
		if s.Msg != nil {
			out += ", " + p.sub(s.Msg, precTest)
		}
		p.line(depth, out)

	case *Import:
		p.line(depth, "import "+aliases(s.Names))

	case *ImportFrom:
		p.line(depth, "from "+strings.Repeat(".", s.Level)+s.Module+" import "+aliases(s.Names))

	case *Global:
		p.line(depth, "global "+strings.Join(s.Names, ", "))

	case *Nonlocal:
		p.line(depth, "nonlocal "+strings.Join(s.Names, ", "))

	case *ExprStmt:
		p.line(depth, p.sub(s.Value, precYield))

	case *Pass:
		p.line(depth, "pass")

	case *Break:
		p.line(depth, "break")

	case *Continue:
		p.line(depth, "continue")

	case *BadStmt:
		p.line(depth, "pass  # unsupported: "+s.Kind)

	case *If:
		p.ifChain(s, "if", depth)

	case *For:
		head := "for "
		if s.IsAsync {
			head = "async for "
		}
		head += p.sub(s.Target, precTest) + " in " + p.sub(s.Iter, precTest)
		p.block(head, s.Body, depth)
		if len(s.OrElse) > 0 {
			p.block("else", s.OrElse, depth)
		}

	case *While:
		p.block("while "+p.sub(s.Test, precTest), s.Body, depth)
		if len(s.OrElse) > 0 {
			p.block("else", s.OrElse, depth)
		}

	case *With:
		var items []string
		for _, it := range s.Items {
			item := p.sub(it.Context, precTest)
			if it.Vars != nil {
				item += " as " + p.sub(it.Vars, precTest)
			}
			items = append(items, item)
		}
		head := "with "
		if s.IsAsync {
			head = "async with "
		}
		p.block(head+strings.Join(items, ", "), s.Body, depth)

	case *Try:
		p.block("try", s.Body, depth)
		for _, h := range s.Handlers {
			head := "except"
			if h.Type != nil {
				head += " " + p.sub(h.Type, precTest)
				if h.Name != "" {
					head += " as " + h.Name
				}
			}
			p.block(head, h.Body, depth)
		}
		if len(s.OrElse) > 0 {
			p.block("else", s.OrElse, depth)
		}
		if len(s.FinalBody) > 0 {
			p.block("finally", s.FinalBody, depth)
		}

	default:
		p.line(depth, fmt.Sprintf("pass  # unknown statement %T", s))
	}
}

func (p *printer) ifChain(s *If, keyword string, depth int) {
	p.block(keyword+" "+p.sub(s.Test, precTest), s.Body, depth)
	if len(s.OrElse) == 1 {
		if elif, ok := s.OrElse[0].(*If); ok {
			p.ifChain(elif, "elif", depth)
			return
		}
	}
	if len(s.OrElse) > 0 {
		p.block("else", s.OrElse, depth)
	}
}

func aliases(names []Alias) string {
	parts := make([]string, len(names))
	for i, a := range names {
		parts[i] = a.Name
		if a.AsName != "" {
			parts[i] += " as " + a.AsName
		}
	}
	return strings.Join(parts, ", ")
}

func (p *printer) arguments(a *Arguments, annotated bool) string {
	if a == nil {
		return ""
	}
	var parts []string
	param := func(arg Arg, def Expr) string {
		out := arg.Name
		if annotated && arg.Annotation != nil {
			out += ": " + p.sub(arg.Annotation, precTest)
			if def != nil {
				return out + " = " + p.sub(def, precTest)
			}
			return out
		}
		if def != nil {
			out += "=" + p.sub(def, precTest)
		}
		return out
	}

	positional := a.Positional()
	firstDefault := len(positional) - len(a.Defaults)
	for i, arg := range positional {
		var def Expr
		if i >= firstDefault {
			def = a.Defaults[i-firstDefault]
		}
		parts = append(parts, param(arg, def))
		if i == len(a.PosOnly)-1 {
			parts = append(parts, "/")
		}
	}
	if a.VarArg != nil {
		parts = append(parts, "*"+param(*a.VarArg, nil))
	} else if len(a.KwOnly) > 0 {
		parts = append(parts, "*")
	}
	for i, arg := range a.KwOnly {
		var def Expr
		if i < len(a.KwDefaults) {
			def = a.KwDefaults[i]
		}
		parts = append(parts, param(arg, def))
	}
	if a.KwArg != nil {
		parts = append(parts, "**"+param(*a.KwArg, nil))
	}
	return strings.Join(parts, ", ")
}

// =============================================================================
// Expressions
// =============================================================================

// sub renders e into a fresh string with the printer's quoting mode.
func (p *printer) sub(e Expr, prec int) string {
	q := &printer{fquote: p.fquote}
	q.expr(e, prec)
	return q.String()
}

func (p *printer) exprList(es []Expr, prec int) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = p.sub(e, prec)
	}
	return strings.Join(parts, ", ")
}

func (p *printer) keyword(k Keyword) string {
	if k.Arg == "" {
		return "**" + p.sub(k.Value, precBor)
	}
	return k.Arg + "=" + p.sub(k.Value, precTest)
}

func precedence(e Expr) int {
	switch e := e.(type) {
	case *NamedExpr:
		return precNamed
	case *Yield, *YieldFrom:
		return precYield
	case *Lambda, *IfExp:
		return precTest
	case *BoolOp:
		if e.Op == Or {
			return precOr
		}
		return precAnd
	case *UnaryOp:
		if e.Op == Not {
			return precNot
		}
		return precFactor
	case *Compare:
		return precCmp
	case *BinOp:
		return binaryPrecedence(e.Op)
	case *Await:
		return precAwait
	}
	return precAtom
}

func binaryPrecedence(op Operator) int {
	switch op {
	case BitOr:
		return precBor
	case BitXor:
		return precBxor
	case BitAnd:
		return precBand
	case LShift, RShift:
		return precShift
	case Add, Sub:
		return precArith
	case Pow:
		return precPower
	}
	return precTerm
}

func (p *printer) expr(e Expr, prec int) {
	if precedence(e) < prec {
		p.WriteByte('(')
		defer p.WriteByte(')')
	}

	switch e := e.(type) {
	case *BoolOp:
		own := precedence(e)
		for i, v := range e.Values {
			if i > 0 {
				p.WriteString(" " + e.Op.Symbol() + " ")
			}
			p.expr(v, own+1)
		}

	case *NamedExpr:
		p.expr(e.Target, precAtom)
		p.WriteString(" := ")
		p.expr(e.Value, precTest)

	case *BinOp:
		own := binaryPrecedence(e.Op)
		left, right := own, own+1
		if e.Op == Pow {
			left, right = precAwait, precFactor
		}
		p.expr(e.Left, left)
		p.WriteString(" " + e.Op.Symbol() + " ")
		p.expr(e.Right, right)

	case *UnaryOp:
		if e.Op == Not {
			p.WriteString("not ")
			p.expr(e.Operand, precNot)
			return
		}
		p.WriteString(e.Op.Symbol())
		p.expr(e.Operand, precFactor)

	case *Lambda:
		p.WriteString("lambda")
		if !e.Args.Empty() {
			p.WriteString(" " + p.arguments(e.Args, false))
		}
		p.WriteString(": ")
		p.expr(e.Body, precTest)

	case *IfExp:
		p.expr(e.Body, precOr)
		p.WriteString(" if ")
		p.expr(e.Test, precOr)
		p.WriteString(" else ")
		p.expr(e.OrElse, precTest)

	case *Dict:
		p.WriteByte('{')
		for i := range e.Values {
			if i > 0 {
				p.WriteString(", ")
			}
			if i >= len(e.Keys) || e.Keys[i] == nil {
				p.WriteString("**")
				p.expr(e.Values[i], precBor)
				continue
			}
			p.expr(e.Keys[i], precTest)
			p.WriteString(": ")
			p.expr(e.Values[i], precTest)
		}
		p.WriteByte('}')

	case *Set:
		if len(e.Elts) == 0 {
			// {} is a dict
			p.WriteString("{*()}")
			return
		}
		p.WriteString("{" + p.exprList(e.Elts, precTest) + "}")

	case *ListComp:
		p.WriteString("[")
		p.expr(e.Elt, precTest)
		p.comprehensions(e.Generators)
		p.WriteString("]")

	case *SetComp:
		p.WriteString("{")
		p.expr(e.Elt, precTest)
		p.comprehensions(e.Generators)
		p.WriteString("}")

	case *DictComp:
		p.WriteString("{")
		p.expr(e.Key, precTest)
		p.WriteString(": ")
		p.expr(e.Value, precTest)
		p.comprehensions(e.Generators)
		p.WriteString("}")

	case *GeneratorExp:
		p.WriteString("(")
		p.expr(e.Elt, precTest)
		p.comprehensions(e.Generators)
		p.WriteString(")")

	case *Await:
		p.WriteString("await ")
		p.expr(e.Value, precAtom)

	case *Yield:
		p.WriteString("yield")
		if e.Value != nil {
			p.WriteString(" ")
			p.expr(e.Value, precTest)
		}

	case *YieldFrom:
		p.WriteString("yield from ")
		p.expr(e.Value, precTest)

	case *Compare:
		p.expr(e.Left, precCmp+1)
		for i, op := range e.Ops {
			p.WriteString(" " + op.Symbol() + " ")
			if i < len(e.Comparators) {
				p.expr(e.Comparators[i], precCmp+1)
			}
		}

	case *Call:
		p.expr(e.Func, precAtom)
		parts := make([]string, 0, len(e.Args)+len(e.Keywords))
		for _, a := range e.Args {
			parts = append(parts, p.sub(a, precTest))
		}
		for _, k := range e.Keywords {
			parts = append(parts, p.keyword(k))
		}
		p.WriteString("(" + strings.Join(parts, ", ") + ")")

	case *JoinedStr:
		p.fstring(e)

	case *FormattedValue:
		p.fstring(&JoinedStr{Values: []Expr{e}})

	case *Constant:
		p.WriteString(p.constant(e.Value))

	case *Attribute:
		if c, ok := e.Value.(*Constant); ok && c.Kind() == KindInt {
			p.WriteString("(" + p.constant(c.Value) + ")")
		} else {
			p.expr(e.Value, precAtom)
		}
		p.WriteString("." + e.Attr)

	case *Subscript:
		p.expr(e.Value, precAtom)
		p.WriteString("[")
		if t, ok := e.Slice.(*Tuple); ok && len(t.Elts) > 0 {
			for i, el := range t.Elts {
				if i > 0 {
					p.WriteString(", ")
				}
				p.sliceItem(el)
			}
			if len(t.Elts) == 1 {
				p.WriteString(",")
			}
		} else {
			p.sliceItem(e.Slice)
		}
		p.WriteString("]")

	case *Starred:
		p.WriteString("*")
		p.expr(e.Value, precBor)

	case *Name:
		p.WriteString(e.ID)

	case *List:
		p.WriteString("[" + p.exprList(e.Elts, precTest) + "]")

	case *Tuple:
		p.WriteString("(" + p.exprList(e.Elts, precTest))
		if len(e.Elts) == 1 {
			p.WriteString(",")
		}
		p.WriteString(")")

	case *Slice:
		p.sliceItem(e)

	case *BadExpr:
		p.WriteString("None")

	default:
		p.WriteString(fmt.Sprintf("None  # unknown expression %T", e))
	}
}

func (p *printer) sliceItem(e Expr) {
	s, ok := e.(*Slice)
	if !ok {
		p.expr(e, precTest)
		return
	}
	if s.Lower != nil {
		p.expr(s.Lower, precTest)
	}
	p.WriteString(":")
	if s.Upper != nil {
		p.expr(s.Upper, precTest)
	}
	if s.Step != nil {
		p.WriteString(":")
		p.expr(s.Step, precTest)
	}
}

func (p *printer) comprehensions(gens []Comprehension) {
	for _, g := range gens {
		if g.IsAsync {
			p.WriteString(" async for ")
		} else {
			p.WriteString(" for ")
		}
		p.expr(g.Target, precTest)
		p.WriteString(" in ")
		p.expr(g.Iter, precOr)
		for _, cond := range g.Ifs {
			p.WriteString(" if ")
			p.expr(cond, precOr)
		}
	}
}

// fstringBody renders the inside of a single-quoted f-string.
func (p *printer) fstring(j *JoinedStr) {
	q := p.literalQuote()
	p.WriteString("f" + string(q) + p.fstringBody(j, q) + string(q))
}

// literalQuote picks the delimiter for a literal at the current position.
func (p *printer) literalQuote() byte {
	if p.fquote == '\'' {
		return '"'
	}
	return '\''
}

func (p *printer) fstringBody(j *JoinedStr, quote byte) string {
	inner := &printer{fquote: quote}
	var b strings.Builder
	for _, v := range j.Values {
		switch v := v.(type) {
		case *Constant:
			s, _ := v.Value.(string)
			body := quoteBody(s, quote)
			body = strings.ReplaceAll(body, "{", "{{")
			body = strings.ReplaceAll(body, "}", "}}")
			b.WriteString(body)
		case *FormattedValue:
			expr := inner.sub(v.Value, precTest)
			b.WriteByte('{')
			if strings.HasPrefix(expr, "{") {
				b.WriteByte(' ')
			}
			b.WriteString(expr)
			if v.Conversion > 0 {
				b.WriteByte('!')
				b.WriteRune(rune(v.Conversion))
			}
			if spec, ok := v.FormatSpec.(*JoinedStr); ok {
				b.WriteByte(':')
				b.WriteString(p.fstringBody(spec, quote))
			}
			b.WriteByte('}')
		default:
			b.WriteString("{" + inner.sub(v, precTest) + "}")
		}
	}
	return b.String()
}

func (p *printer) constant(v any) string {
	switch v := v.(type) {
	case nil:
		return "None"
	case bool:
		if v {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(v, 10)
	case *big.Int:
		return v.String()
	case float64:
		return formatFloat(v)
	case complex128:
		if real(v) == 0 {
			return formatImag(imag(v))
		}
		return "(" + formatFloat(real(v)) + " + " + formatImag(imag(v)) + ")"
	case string:
		quote := p.literalQuote()
		if p.fquote == 0 && strings.Contains(v, "'") && !strings.Contains(v, "\"") {
			quote = '"'
		}
		return string(quote) + quoteBody(v, quote) + string(quote)
	case Bytes:
		q := p.literalQuote()
		return "b" + string(q) + bytesBody(v, q) + string(q)
	case EllipsisType:
		return "..."
	}
	return fmt.Sprintf("%v", v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "1e309"
	case math.IsInf(f, -1):
		return "-1e309"
	case math.IsNaN(f):
		return "(1e309 - 1e309)"
	}
	abs := math.Abs(f)
	if abs == 0 || (abs >= 1e-4 && abs < 1e16) {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.ContainsAny(s, ".") {
			s += ".0"
		}
		return s
	}
	return strconv.FormatFloat(f, 'e', -1, 64)
}

func formatImag(f float64) string {
	if math.IsInf(f, 0) {
		return "1e309j"
	}
	return strconv.FormatFloat(f, 'g', -1, 64) + "j"
}

// quoteBody escapes s for a literal delimited by quote.
func quoteBody(s string, quote byte) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(quote):
			b.WriteByte('\\')
			b.WriteByte(quote)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		case !unicode.IsPrint(r) && r <= 0xffff:
			fmt.Fprintf(&b, `\u%04x`, r)
		case !unicode.IsPrint(r):
			fmt.Fprintf(&b, `\U%08x`, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func bytesBody(bs []byte, quote byte) string {
	var b strings.Builder
	for _, c := range bs {
		switch {
		case c == '\\':
			b.WriteString(`\\`)
		case c == quote:
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&b, `\x%02x`, c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
