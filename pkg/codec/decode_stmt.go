package codec

import (
	"sort"

	"github.com/matzehuels/astkg/pkg/kg"
	"github.com/matzehuels/astkg/pkg/pyast"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// stmt rebuilds one Statement node. Binding contexts are chosen here, by
// the statement that owns the target.
func (r *reader) stmt(n *kg.Node) pyast.Stmt {
	var pos pyast.Pos
	if line, ok := n.Int(kg.AttrLineno); ok {
		pos.Lineno = line
	}
	id := n.ID

	switch kind := n.Str(kg.AttrKind); kind {
	case "Assign":
		var targets []pyast.Expr
		if slots := r.x.OrderedByPrefix(id, kg.RelTarget); len(slots) > 0 {
			for _, s := range slots {
				t := r.expr(s.Dst)
				pyast.SetContext(t, pyast.Store)
				targets = append(targets, t)
			}
		} else {
			targets = []pyast.Expr{r.target(id, kg.RelTarget, pyast.Store)}
		}
		return &pyast.Assign{Pos: pos, Targets: targets, Value: r.req(id, kg.RelValue)}

	case "AugAssign":
		return &pyast.AugAssign{
			Pos:    pos,
			Target: r.target(id, kg.RelTarget, pyast.Store),
			Op:     r.binaryOp(id, kg.RelOperation),
			Value:  r.req(id, kg.RelValue),
		}

	case "AnnAssign":
		s := &pyast.AnnAssign{
			Pos:        pos,
			Target:     r.target(id, kg.RelTarget, pyast.Store),
			Annotation: r.req(id, kg.RelAnnotation),
			Value:      r.opt(id, kg.RelValue),
		}
		if v, ok := r.literal(id, kg.RelSimple, true); ok {
			switch v := v.(type) {
			case int64:
				s.Simple = v != 0
			case bool:
				s.Simple = v
			}
		}
		return s

	case "ExpressionStatement":
		return &pyast.ExprStmt{Pos: pos, Value: r.req(id, kg.RelValue)}

	case "Return":
		return &pyast.Return{Pos: pos, Value: r.opt(id, kg.RelComputes)}

	case "Delete":
		targets := r.list(id, kg.RelTarget)
		for _, t := range targets {
			pyast.SetContext(t, pyast.Del)
		}
		return &pyast.Delete{Pos: pos, Targets: targets}

	case "Pass":
		return &pyast.Pass{Pos: pos}
	case "Break":
		return &pyast.Break{Pos: pos}
	case "Continue":
		return &pyast.Continue{Pos: pos}

	case "Global":
		return &pyast.Global{Pos: pos, Names: r.names(id)}
	case "Nonlocal":
		return &pyast.Nonlocal{Pos: pos, Names: r.names(id)}

	case "Import":
		return &pyast.Import{Pos: pos, Names: r.aliases(id)}

	case "ImportFrom":
		s := &pyast.ImportFrom{Pos: pos, Module: r.literalString(id, kg.RelModule, true)}
		if _, ok, _ := r.x.One(id, kg.RelLevel, true); ok {
			s.Level = r.literalInt(id, kg.RelLevel)
		}
		s.Names = r.aliases(id)
		return s

	case "If":
		return &pyast.If{
			Pos:    pos,
			Test:   r.req(id, kg.RelCondition),
			Body:   nonEmpty(r.slot(id, kg.RelBodyStatement)),
			OrElse: r.slot(id, kg.RelOrElseStatement),
		}

	case "For", "AsyncFor":
		return &pyast.For{
			Pos:     pos,
			Target:  r.target(id, kg.RelTarget, pyast.Store),
			Iter:    r.req(id, kg.RelIterator),
			Body:    nonEmpty(r.slot(id, kg.RelBodyStatement)),
			OrElse:  r.slot(id, kg.RelOrElseStatement),
			IsAsync: kind == "AsyncFor",
		}

	case "While":
		return &pyast.While{
			Pos:    pos,
			Test:   r.req(id, kg.RelCondition),
			Body:   nonEmpty(r.slot(id, kg.RelBodyStatement)),
			OrElse: r.slot(id, kg.RelOrElseStatement),
		}

	case "With", "AsyncWith":
		s := &pyast.With{Pos: pos, IsAsync: kind == "AsyncWith"}
		for _, slot := range r.x.OrderedByPrefix(id, kg.RelItem) {
			if r.node(slot.Dst) == nil {
				break
			}
			item := pyast.WithItem{Context: r.req(slot.Dst, kg.RelContext)}
			if item.Vars = r.opt(slot.Dst, kg.RelTarget); item.Vars != nil {
				pyast.SetContext(item.Vars, pyast.Store)
			}
			s.Items = append(s.Items, item)
		}
		s.Body = nonEmpty(r.slot(id, kg.RelBodyStatement))
		return s

	case "Try":
		s := &pyast.Try{Pos: pos, Body: nonEmpty(r.slot(id, kg.RelBodyStatement))}
		for _, slot := range r.x.OrderedByPrefix(id, kg.RelHandler) {
			h := r.node(slot.Dst)
			if h == nil {
				break
			}
			if h.Kind != kg.KindExceptHandler {
				r.fail(apperr.Integrity(id, kg.Indexed(kg.RelHandler, slot.Index).String(), "expected ExceptHandler, got %s", h.Kind))
				break
			}
			s.Handlers = append(s.Handlers, pyast.ExceptHandler{
				Type: r.opt(h.ID, kg.RelType),
				Name: r.literalString(h.ID, kg.RelName, true),
				Body: nonEmpty(r.slot(h.ID, kg.RelBodyStatement)),
			})
		}
		s.OrElse = r.slot(id, kg.RelOrElseStatement)
		s.FinalBody = r.slot(id, kg.RelFinalBodyStatement)
		return s

	case "Raise":
		return &pyast.Raise{Pos: pos, Exc: r.opt(id, kg.RelException), Cause: r.opt(id, kg.RelCause)}

	case "Assert":
		return &pyast.Assert{Pos: pos, Test: r.req(id, kg.RelCondition), Msg: r.opt(id, kg.RelMessage)}

	case "Other":
		return &pyast.BadStmt{Pos: pos, Kind: n.Str(kg.AttrName)}

	default:
		r.unsupported(n, "unknown statement kind %q", kind)
		return &pyast.Pass{Pos: pos}
	}
}

func (r *reader) names(id string) []string {
	names, err := r.x.LiteralValues(id, kg.RelName)
	if err != nil {
		r.fail(err)
	}
	return names
}

func (r *reader) aliases(id string) []pyast.Alias {
	var out []pyast.Alias
	for _, slot := range r.x.OrderedByPrefix(id, kg.RelAlias) {
		n := r.node(slot.Dst)
		if n == nil {
			return nil
		}
		if n.Kind != kg.KindAlias {
			r.fail(apperr.Integrity(id, kg.Indexed(kg.RelAlias, slot.Index).String(), "expected Alias, got %s", n.Kind))
			return nil
		}
		out = append(out, pyast.Alias{Name: n.Str(kg.AttrName), AsName: n.Str(kg.AttrAsName)})
	}
	return out
}

// =============================================================================
// Definitions
// =============================================================================

func (r *reader) function(n *kg.Node) pyast.Stmt {
	s := &pyast.FunctionDef{
		Name:    n.Str(kg.AttrName),
		IsAsync: n.Kind == kg.KindAsyncFunction,
	}
	if line, ok := n.Int(kg.AttrLineno); ok {
		s.Lineno = line
	}
	s.Decorators = r.list(n.ID, kg.RelDecorator)
	s.Args = r.arguments(n.ID)
	s.Returns = r.opt(n.ID, kg.RelReturnAnnotation)
	s.Body = r.body(n.ID)
	return s
}

func (r *reader) class(n *kg.Node) pyast.Stmt {
	s := &pyast.ClassDef{Name: n.Str(kg.AttrName)}
	if line, ok := n.Int(kg.AttrLineno); ok {
		s.Lineno = line
	}
	s.Decorators = r.list(n.ID, kg.RelDecorator)
	s.Bases = r.list(n.ID, kg.RelBase)
	s.Keywords = r.keywords(n.ID)
	s.Body = r.body(n.ID)
	return s
}

// keywords merges KeywordValue_i and KeywordStar_i by their shared index.
// A named keyword takes its name from the KeywordKey_i literal.
func (r *reader) keywords(id string) []pyast.Keyword {
	values := r.x.ByIndex(id, kg.RelKeywordValue)
	stars := r.x.ByIndex(id, kg.RelKeywordStar)
	if len(values) == 0 && len(stars) == 0 {
		return nil
	}
	keys := r.x.ByIndex(id, kg.RelKeywordKey)

	idx := make([]int, 0, len(values)+len(stars))
	for i := range values {
		idx = append(idx, i)
	}
	for i := range stars {
		if _, dup := values[i]; !dup {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)

	out := make([]pyast.Keyword, 0, len(idx))
	for _, i := range idx {
		if dst, ok := stars[i]; ok {
			out = append(out, pyast.Keyword{Value: r.expr(dst)})
			continue
		}
		rel := kg.Indexed(kg.RelKeywordKey, i).String()
		keyID, ok := keys[i]
		if !ok {
			r.fail(apperr.Integrity(id, rel, "keyword value without a name"))
			return nil
		}
		name, _ := r.literalNode(id, rel, keyID)
		arg, isStr := name.(string)
		if !isStr && r.err == nil {
			r.fail(apperr.Integrity(id, rel, "keyword name is not a str literal"))
		}
		out = append(out, pyast.Keyword{Arg: arg, Value: r.expr(values[i])})
	}
	return out
}

// arguments rebuilds the parameter list owned by a function or lambda.
// Positional defaults are reattached to the trailing suffix of the
// positional parameters; a graph whose defaults are not a suffix fails.
func (r *reader) arguments(owner string) *pyast.Arguments {
	a := &pyast.Arguments{}
	if r.err != nil {
		return a
	}
	positional, err := kg.PositionalParameters(r.x, owner)
	if err != nil {
		r.fail(err)
		return a
	}
	count, err := kg.DefaultSuffix(r.x, owner, positional)
	if err != nil {
		r.fail(err)
		return a
	}
	first := len(positional) - count
	for i, p := range positional {
		arg := r.arg(p)
		if p.Str(kg.AttrKind) == kg.ParamPositionOnly {
			a.PosOnly = append(a.PosOnly, arg)
		} else {
			a.Args = append(a.Args, arg)
		}
		if i >= first {
			a.Defaults = append(a.Defaults, r.req(p.ID, kg.RelDefault))
		}
	}

	var kwonly []*kg.Node
	for _, id := range r.x.Many(owner, kg.RelHasParameter) {
		p := r.node(id)
		if p == nil {
			return a
		}
		switch kind := p.Str(kg.AttrKind); kind {
		case kg.ParamPositionOnly, kg.ParamArg:
		case kg.ParamVariableArg:
			arg := r.arg(p)
			a.VarArg = &arg
		case kg.ParamKeywordArg:
			arg := r.arg(p)
			a.KwArg = &arg
		case kg.ParamKeywordOnly:
			kwonly = append(kwonly, p)
		default:
			r.fail(apperr.Integrity(p.ID, "", "unknown parameter kind %q", kind))
			return a
		}
	}
	sort.SliceStable(kwonly, func(i, j int) bool {
		pi, _ := kwonly[i].Int(kg.AttrPosition)
		pj, _ := kwonly[j].Int(kg.AttrPosition)
		return pi < pj
	})
	for _, p := range kwonly {
		a.KwOnly = append(a.KwOnly, r.arg(p))
		a.KwDefaults = append(a.KwDefaults, r.opt(p.ID, kg.RelDefault))
	}
	return a
}

func (r *reader) arg(p *kg.Node) pyast.Arg {
	return pyast.Arg{Name: p.Str(kg.AttrName), Annotation: r.opt(p.ID, kg.RelAnnotation)}
}
