package codec

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/astkg/pkg/kg"
	"github.com/matzehuels/astkg/pkg/pyast"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// Encode walks mod depth first and returns its knowledge graph.
//
// Encoding is total: constructs outside the supported grammar become
// placeholder nodes. The only failure is a nesting depth beyond the
// configured limit, reported as *errors.DepthError.
func Encode(mod *pyast.Module, opts ...Option) (*kg.Graph, error) {
	cfg := newConfig(opts)
	e := &encoder{
		g:        kg.New(),
		counters: make(map[string]int),
		maxDepth: cfg.maxDepth,
		log:      cfg.logger,
	}
	if err := e.g.AddNode(kg.Node{ID: kg.RootID, Kind: kg.KindModule}); err != nil {
		return nil, err
	}
	e.scopes = []*scope{{id: kg.RootID}}
	if mod != nil {
		e.suite(mod.Body)
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.g, nil
}

// =============================================================================
// Encoder state
// =============================================================================

// encoder is the state of one Encode call. Nothing in it is shared.
type encoder struct {
	g        *kg.Graph
	counters map[string]int
	seq      int
	scopes   []*scope
	depth    int
	maxDepth int
	last     string
	log      *log.Logger

	// err is sticky: once set, no further nodes are linked.
	err error
}

// scope is an enclosing module, function or class. Each scope keeps its
// own container stack so a definition nested in a loop body starts
// with an empty one.
type scope struct {
	id         string
	containers []container
}

// container is the structural slot statements currently attach to.
type container struct {
	id  string
	rel string
}

func (e *encoder) current() *scope { return e.scopes[len(e.scopes)-1] }

func (e *encoder) pushScope(id string) { e.scopes = append(e.scopes, &scope{id: id}) }

func (e *encoder) popScope() { e.scopes = e.scopes[:len(e.scopes)-1] }

// inSlot encodes body into the slot rel of the compound statement id.
func (e *encoder) inSlot(id, rel string, body []pyast.Stmt) {
	s := e.current()
	s.containers = append(s.containers, container{id: id, rel: rel})
	e.suite(body)
	s.containers = s.containers[:len(s.containers)-1]
}

// attach links a statement or definition to the innermost container, or
// to the enclosing scope through scopeRel when no slot is open.
func (e *encoder) attach(id, scopeRel string) {
	s := e.current()
	if n := len(s.containers); n > 0 {
		top := s.containers[n-1]
		e.link(top.id, top.rel, id)
		return
	}
	e.link(s.id, scopeRel, id)
}

// newID returns the next id for prefix.
func (e *encoder) newID(prefix string) string {
	n := e.counters[prefix]
	e.counters[prefix] = n + 1
	return fmt.Sprintf("%s_%d", prefix, n)
}

// node adds a node and returns its id.
func (e *encoder) node(prefix string, kind kg.Kind, attrs kg.Attrs) string {
	id := e.newID(prefix)
	e.last = id
	if err := e.g.AddNode(kg.Node{ID: id, Kind: kind, Attrs: attrs}); err != nil && e.err == nil {
		e.err = apperr.Wrap(apperr.ErrCodeInternal, err, "add node %s", id)
	}
	return id
}

// exprNode adds an Expression node of the given type.
func (e *encoder) exprNode(prefix, typ string, attrs kg.Attrs) string {
	if attrs == nil {
		attrs = kg.Attrs{}
	}
	attrs[kg.AttrType] = typ
	return e.node(prefix, kg.KindExpression, attrs)
}

func (e *encoder) link(src, rel, dst string) {
	if e.err != nil || dst == "" {
		return
	}
	if err := e.g.AddEdge(kg.Edge{Src: src, Rel: rel, Dst: dst}); err != nil {
		e.err = apperr.Wrap(apperr.ErrCodeInternal, err, "add edge %s -%s-> %s", src, rel, dst)
	}
}

func (e *encoder) linkAt(src, family string, i int, dst string) {
	e.link(src, kg.Indexed(family, i).String(), dst)
}

// enter guards recursion depth. It returns false once the limit is hit;
// the error names the last node created.
func (e *encoder) enter() bool {
	if e.err != nil {
		return false
	}
	e.depth++
	if e.depth > e.maxDepth {
		e.err = &apperr.DepthError{Limit: e.maxDepth, NodeID: e.last}
		return false
	}
	return true
}

func (e *encoder) leave() { e.depth-- }

// ordered returns the ordering attributes shared by statements and
// definitions: order is the source line when known, else the insertion
// counter; seq always records insertion order.
func (e *encoder) ordered(line int, attrs kg.Attrs) kg.Attrs {
	seq := e.seq
	e.seq++
	order := line
	if order <= 0 {
		order = seq
	}
	attrs[kg.AttrOrder] = order
	attrs[kg.AttrSeq] = seq
	if line > 0 {
		attrs[kg.AttrLineno] = line
	}
	return attrs
}

// =============================================================================
// Statements
// =============================================================================

func (e *encoder) suite(body []pyast.Stmt) {
	for _, s := range body {
		if e.err != nil {
			return
		}
		if s != nil {
			e.stmt(s)
		}
	}
}

// statement adds a Statement node of the given kind and attaches it.
func (e *encoder) statement(prefix, kind string, s pyast.Stmt) string {
	return e.statementAttrs(prefix, s, kg.Attrs{kg.AttrKind: kind})
}

func (e *encoder) statementAttrs(prefix string, s pyast.Stmt, attrs kg.Attrs) string {
	id := e.node(prefix, kg.KindStatement, e.ordered(s.Line(), attrs))
	e.attach(id, kg.RelHasStatement)
	return id
}

func (e *encoder) stmt(s pyast.Stmt) {
	if !e.enter() {
		return
	}
	defer e.leave()

	switch s := s.(type) {
	case *pyast.FunctionDef:
		e.functionDef(s)
	case *pyast.ClassDef:
		e.classDef(s)

	case *pyast.Assign:
		id := e.statement("assign", "Assign", s)
		if len(s.Targets) == 1 {
			e.link(id, kg.RelTarget, e.expr(s.Targets[0]))
		} else {
			for i, t := range s.Targets {
				e.linkAt(id, kg.RelTarget, i, e.expr(t))
			}
		}
		e.link(id, kg.RelValue, e.expr(s.Value))

	case *pyast.AugAssign:
		id := e.statement("augassign", "AugAssign", s)
		e.link(id, kg.RelTarget, e.expr(s.Target))
		e.link(id, kg.RelOperation, e.operation(string(s.Op)))
		e.link(id, kg.RelValue, e.expr(s.Value))

	case *pyast.AnnAssign:
		id := e.statement("annassign", "AnnAssign", s)
		e.link(id, kg.RelTarget, e.expr(s.Target))
		e.link(id, kg.RelAnnotation, e.expr(s.Annotation))
		e.link(id, kg.RelValue, e.optExpr(s.Value))
		simple := 0
		if s.Simple {
			simple = 1
		}
		e.link(id, kg.RelSimple, e.node("literal", kg.KindLiteral, intLiteral(simple)))

	case *pyast.ExprStmt:
		id := e.statement("ExpressionStatement", "ExpressionStatement", s)
		e.link(id, kg.RelValue, e.expr(s.Value))

	case *pyast.Return:
		id := e.statement("return", "Return", s)
		e.link(id, kg.RelComputes, e.optExpr(s.Value))

	case *pyast.Delete:
		id := e.statement("delete", "Delete", s)
		for i, t := range s.Targets {
			e.linkAt(id, kg.RelTarget, i, e.expr(t))
		}

	case *pyast.Pass:
		e.statement("pass", "Pass", s)
	case *pyast.Break:
		e.statement("break", "Break", s)
	case *pyast.Continue:
		e.statement("continue", "Continue", s)

	case *pyast.Global:
		e.names(e.statement("global", "Global", s), s.Names)
	case *pyast.Nonlocal:
		e.names(e.statement("nonlocal", "Nonlocal", s), s.Names)

	case *pyast.Import:
		id := e.statement("import", "Import", s)
		e.aliases(id, s.Names)

	case *pyast.ImportFrom:
		id := e.statement("importfrom", "ImportFrom", s)
		e.link(id, kg.RelModule, e.node("literal", kg.KindLiteral, strLiteral(s.Module)))
		e.link(id, kg.RelLevel, e.node("literal", kg.KindLiteral, intLiteral(s.Level)))
		e.aliases(id, s.Names)

	case *pyast.If:
		id := e.statement("if", "If", s)
		e.link(id, kg.RelCondition, e.expr(s.Test))
		e.inSlot(id, kg.RelBodyStatement, s.Body)
		e.inSlot(id, kg.RelOrElseStatement, s.OrElse)

	case *pyast.For:
		prefix, kind := "for", "For"
		if s.IsAsync {
			prefix, kind = "asyncfor", "AsyncFor"
		}
		id := e.statement(prefix, kind, s)
		e.link(id, kg.RelTarget, e.expr(s.Target))
		e.link(id, kg.RelIterator, e.expr(s.Iter))
		e.inSlot(id, kg.RelBodyStatement, s.Body)
		e.inSlot(id, kg.RelOrElseStatement, s.OrElse)

	case *pyast.While:
		id := e.statement("while", "While", s)
		e.link(id, kg.RelCondition, e.expr(s.Test))
		e.inSlot(id, kg.RelBodyStatement, s.Body)
		e.inSlot(id, kg.RelOrElseStatement, s.OrElse)

	case *pyast.With:
		prefix, kind := "with", "With"
		if s.IsAsync {
			prefix, kind = "asyncwith", "AsyncWith"
		}
		id := e.statement(prefix, kind, s)
		for i, item := range s.Items {
			wi := e.node("withitem", kg.KindWithItem, kg.Attrs{kg.AttrOrder: i})
			e.linkAt(id, kg.RelItem, i, wi)
			e.link(wi, kg.RelContext, e.expr(item.Context))
			e.link(wi, kg.RelTarget, e.optExpr(item.Vars))
		}
		e.inSlot(id, kg.RelBodyStatement, s.Body)

	case *pyast.Try:
		id := e.statement("try", "Try", s)
		e.inSlot(id, kg.RelBodyStatement, s.Body)
		for i, h := range s.Handlers {
			hid := e.node("except", kg.KindExceptHandler, kg.Attrs{kg.AttrOrder: i})
			e.linkAt(id, kg.RelHandler, i, hid)
			e.link(hid, kg.RelType, e.optExpr(h.Type))
			if h.Name != "" {
				e.link(hid, kg.RelName, e.node("literal", kg.KindLiteral, strLiteral(h.Name)))
			}
			e.inSlot(hid, kg.RelBodyStatement, h.Body)
		}
		e.inSlot(id, kg.RelOrElseStatement, s.OrElse)
		e.inSlot(id, kg.RelFinalBodyStatement, s.FinalBody)

	case *pyast.Raise:
		id := e.statement("raise", "Raise", s)
		e.link(id, kg.RelException, e.optExpr(s.Exc))
		e.link(id, kg.RelCause, e.optExpr(s.Cause))

	case *pyast.Assert:
		id := e.statement("assert", "Assert", s)
		e.link(id, kg.RelCondition, e.expr(s.Test))
		e.link(id, kg.RelMessage, e.optExpr(s.Msg))

	case *pyast.BadStmt:
		id := e.statementAttrs("other_stmt", s, kg.Attrs{kg.AttrKind: "Other", kg.AttrName: s.Kind})
		e.log.Debug("unsupported statement", "construct", s.Kind, "line", s.Lineno, "node", id)
	}
}

func (e *encoder) names(id string, names []string) {
	for i, n := range names {
		e.linkAt(id, kg.RelName, i, e.node("literal", kg.KindLiteral, strLiteral(n)))
	}
}

func (e *encoder) aliases(id string, names []pyast.Alias) {
	for i, a := range names {
		attrs := kg.Attrs{kg.AttrName: a.Name}
		if a.AsName != "" {
			attrs[kg.AttrAsName] = a.AsName
		}
		e.linkAt(id, kg.RelAlias, i, e.node("alias", kg.KindAlias, attrs))
	}
}

// =============================================================================
// Definitions
// =============================================================================

func (e *encoder) functionDef(s *pyast.FunctionDef) {
	prefix, kind := "Function", kg.KindFunction
	if s.IsAsync {
		prefix, kind = "AsyncFunction", kg.KindAsyncFunction
	}
	id := e.node(prefix, kind, e.ordered(s.Lineno, kg.Attrs{kg.AttrName: s.Name}))
	e.attach(id, kg.RelHasDef)

	for i, d := range s.Decorators {
		e.linkAt(id, kg.RelDecorator, i, e.expr(d))
	}
	e.parameters(id, s.Args)
	e.link(id, kg.RelReturnAnnotation, e.optExpr(s.Returns))

	e.pushScope(id)
	e.suite(s.Body)
	e.popScope()
}

func (e *encoder) classDef(s *pyast.ClassDef) {
	id := e.node("class", kg.KindClass, e.ordered(s.Lineno, kg.Attrs{kg.AttrName: s.Name}))
	e.attach(id, kg.RelHasClass)

	for i, d := range s.Decorators {
		e.linkAt(id, kg.RelDecorator, i, e.expr(d))
	}
	for i, b := range s.Bases {
		e.linkAt(id, kg.RelBase, i, e.expr(b))
	}
	e.keywords(id, s.Keywords)

	e.pushScope(id)
	e.suite(s.Body)
	e.popScope()
}

// keywords encodes call or class keywords in one index space:
// name=value as KeywordKey_i/KeywordValue_i, **value as KeywordStar_i.
func (e *encoder) keywords(id string, kws []pyast.Keyword) {
	for i, k := range kws {
		if k.Arg == "" {
			e.linkAt(id, kg.RelKeywordStar, i, e.expr(k.Value))
			continue
		}
		e.linkAt(id, kg.RelKeywordKey, i, e.node("literal", kg.KindLiteral, strLiteral(k.Arg)))
		e.linkAt(id, kg.RelKeywordValue, i, e.expr(k.Value))
	}
}

// parameters encodes a parameter list under owner. Positions count across
// position-only and regular parameters, separately for keyword-only ones,
// and are 0 for the variadics. Defaults hang off the parameter they
// belong to.
func (e *encoder) parameters(owner string, a *pyast.Arguments) {
	if a == nil {
		return
	}
	positional := a.Positional()
	firstDefault := len(positional) - len(a.Defaults)
	for i, p := range positional {
		kind := kg.ParamArg
		if i < len(a.PosOnly) {
			kind = kg.ParamPositionOnly
		}
		pid := e.param(owner, p, kind, i)
		if i >= firstDefault {
			e.link(pid, kg.RelDefault, e.expr(a.Defaults[i-firstDefault]))
		}
	}
	if a.VarArg != nil {
		e.param(owner, *a.VarArg, kg.ParamVariableArg, 0)
	}
	for i, p := range a.KwOnly {
		pid := e.param(owner, p, kg.ParamKeywordOnly, i)
		if i < len(a.KwDefaults) {
			e.link(pid, kg.RelDefault, e.optExpr(a.KwDefaults[i]))
		}
	}
	if a.KwArg != nil {
		e.param(owner, *a.KwArg, kg.ParamKeywordArg, 0)
	}
}

func (e *encoder) param(owner string, p pyast.Arg, kind string, pos int) string {
	id := e.node("Parameter", kg.KindParameter, kg.Attrs{
		kg.AttrName:     p.Name,
		kg.AttrPosition: pos,
		kg.AttrKind:     kind,
	})
	e.link(owner, kg.RelHasParameter, id)
	e.link(id, kg.RelAnnotation, e.optExpr(p.Annotation))
	return id
}
