package pysrc

import (
	"strings"

	"github.com/charmbracelet/log"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/matzehuels/astkg/pkg/pyast"
)

// converter turns one tree-sitter tree into pyast nodes.
type converter struct {
	src []byte
	log *log.Logger
}

func (c *converter) text(n *sitter.Node) string { return n.Content(c.src) }

func line(n *sitter.Node) int { return int(n.StartPoint().Row) + 1 }

func pos(n *sitter.Node) pyast.Pos { return pyast.Pos{Lineno: line(n)} }

// named returns the named children of n, comments excluded.
func named(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		k := n.NamedChild(i)
		if k.Type() != "comment" {
			out = append(out, k)
		}
	}
	return out
}

// field returns every child of n stored under name, in order.
func field(n *sitter.Node, name string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == name {
			out = append(out, n.Child(i))
		}
	}
	return out
}

// hasToken reports whether n has an anonymous child spelled tok.
func hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		k := n.Child(i)
		if !k.IsNamed() && k.Type() == tok {
			return true
		}
	}
	return false
}

func same(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func (c *converter) bad(n *sitter.Node, kind string) pyast.Stmt {
	c.log.Debug("unsupported statement", "construct", kind, "line", line(n))
	return &pyast.BadStmt{Pos: pos(n), Kind: kind}
}

// =============================================================================
// Statements
// =============================================================================

// block converts the statements of a module or block node.
func (c *converter) block(n *sitter.Node) []pyast.Stmt {
	var out []pyast.Stmt
	for _, k := range named(n) {
		if s := c.stmt(k); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (c *converter) stmt(n *sitter.Node) pyast.Stmt {
	p := pos(n)
	switch n.Type() {
	case "expression_statement":
		return c.expressionStatement(n)

	case "return_statement":
		s := &pyast.Return{Pos: p}
		if kids := named(n); len(kids) > 0 {
			s.Value = c.exprs(kids)
		}
		return s

	case "delete_statement":
		s := &pyast.Delete{Pos: p}
		for _, k := range named(n) {
			if k.Type() == "expression_list" {
				for _, e := range named(k) {
					s.Targets = append(s.Targets, c.expr(e))
				}
			} else {
				s.Targets = append(s.Targets, c.expr(k))
			}
		}
		for _, t := range s.Targets {
			pyast.SetContext(t, pyast.Del)
		}
		return s

	case "pass_statement":
		return &pyast.Pass{Pos: p}
	case "break_statement":
		return &pyast.Break{Pos: p}
	case "continue_statement":
		return &pyast.Continue{Pos: p}

	case "raise_statement":
		s := &pyast.Raise{Pos: p}
		cause := n.ChildByFieldName("cause")
		for _, k := range named(n) {
			if same(k, cause) {
				continue
			}
			s.Exc = c.expr(k)
		}
		if cause != nil {
			s.Cause = c.expr(cause)
		}
		return s

	case "global_statement":
		return &pyast.Global{Pos: p, Names: c.identifiers(n)}
	case "nonlocal_statement":
		return &pyast.Nonlocal{Pos: p, Names: c.identifiers(n)}

	case "import_statement":
		return &pyast.Import{Pos: p, Names: c.aliases(field(n, "name"))}

	case "import_from_statement":
		s := &pyast.ImportFrom{Pos: p}
		if m := n.ChildByFieldName("module_name"); m != nil {
			s.Module, s.Level = c.moduleName(m)
		}
		s.Names = c.aliases(field(n, "name"))
		for _, k := range named(n) {
			if k.Type() == "wildcard_import" {
				s.Names = []pyast.Alias{{Name: "*"}}
			}
		}
		return s

	case "future_import_statement":
		return &pyast.ImportFrom{Pos: p, Module: "__future__", Names: c.aliases(field(n, "name"))}

	case "assert_statement":
		kids := named(n)
		s := &pyast.Assert{Pos: p, Test: c.expr(kids[0])}
		if len(kids) > 1 {
			s.Msg = c.expr(kids[1])
		}
		return s

	case "if_statement":
		return c.ifStatement(n)

	case "for_statement":
		s := &pyast.For{
			Pos:     p,
			Target:  c.expr(n.ChildByFieldName("left")),
			Iter:    c.expr(n.ChildByFieldName("right")),
			Body:    c.block(n.ChildByFieldName("body")),
			OrElse:  c.elseBody(n.ChildByFieldName("alternative")),
			IsAsync: hasToken(n, "async"),
		}
		pyast.SetContext(s.Target, pyast.Store)
		return s

	case "while_statement":
		return &pyast.While{
			Pos:    p,
			Test:   c.expr(n.ChildByFieldName("condition")),
			Body:   c.block(n.ChildByFieldName("body")),
			OrElse: c.elseBody(n.ChildByFieldName("alternative")),
		}

	case "with_statement":
		return c.withStatement(n)

	case "try_statement":
		return c.tryStatement(n)

	case "function_definition":
		return c.functionDef(n, nil)
	case "class_definition":
		return c.classDef(n, nil)
	case "decorated_definition":
		var decorators []pyast.Expr
		for _, k := range named(n) {
			if k.Type() == "decorator" {
				decorators = append(decorators, c.expr(named(k)[0]))
			}
		}
		def := n.ChildByFieldName("definition")
		switch def.Type() {
		case "function_definition":
			return c.functionDef(def, decorators)
		case "class_definition":
			return c.classDef(def, decorators)
		}
		return c.bad(n, def.Type())

	case "match_statement":
		return c.bad(n, "Match")
	case "type_alias_statement":
		return c.bad(n, "TypeAlias")
	case "print_statement":
		return c.bad(n, "Print")
	case "exec_statement":
		return c.bad(n, "Exec")
	}
	return c.bad(n, n.Type())
}

func (c *converter) expressionStatement(n *sitter.Node) pyast.Stmt {
	p := pos(n)
	kids := named(n)
	if len(kids) == 1 {
		switch k := kids[0]; k.Type() {
		case "assignment":
			return c.assignment(p, k)
		case "augmented_assignment":
			op, ok := pyast.OperatorFromSymbol(c.text(k.ChildByFieldName("operator")))
			if !ok {
				return c.bad(n, "AugAssign")
			}
			s := &pyast.AugAssign{
				Pos:    p,
				Target: c.expr(k.ChildByFieldName("left")),
				Op:     op,
				Value:  c.expr(k.ChildByFieldName("right")),
			}
			pyast.SetContext(s.Target, pyast.Store)
			return s
		}
	}
	return &pyast.ExprStmt{Pos: p, Value: c.exprs(kids)}
}

// assignment handles plain, chained and annotated assignment. Chained
// targets arrive as nested assignment nodes on the right.
func (c *converter) assignment(p pyast.Pos, n *sitter.Node) pyast.Stmt {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if typ := n.ChildByFieldName("type"); typ != nil {
		s := &pyast.AnnAssign{
			Pos:        p,
			Target:     c.expr(left),
			Annotation: c.expr(typ),
			Simple:     left.Type() == "identifier",
		}
		if right != nil {
			s.Value = c.expr(right)
		}
		pyast.SetContext(s.Target, pyast.Store)
		return s
	}

	s := &pyast.Assign{Pos: p, Targets: []pyast.Expr{c.expr(left)}}
	for right != nil && right.Type() == "assignment" {
		s.Targets = append(s.Targets, c.expr(right.ChildByFieldName("left")))
		right = right.ChildByFieldName("right")
	}
	for _, t := range s.Targets {
		pyast.SetContext(t, pyast.Store)
	}
	s.Value = c.expr(right)
	return s
}

func (c *converter) ifStatement(n *sitter.Node) pyast.Stmt {
	root := &pyast.If{
		Pos:  pos(n),
		Test: c.expr(n.ChildByFieldName("condition")),
		Body: c.block(n.ChildByFieldName("consequence")),
	}
	tail := root
	for _, alt := range field(n, "alternative") {
		switch alt.Type() {
		case "elif_clause":
			next := &pyast.If{
				Pos:  pos(alt),
				Test: c.expr(alt.ChildByFieldName("condition")),
				Body: c.block(alt.ChildByFieldName("consequence")),
			}
			tail.OrElse = []pyast.Stmt{next}
			tail = next
		case "else_clause":
			tail.OrElse = c.block(alt.ChildByFieldName("body"))
		}
	}
	return root
}

func (c *converter) elseBody(n *sitter.Node) []pyast.Stmt {
	if n == nil {
		return nil
	}
	return c.block(n.ChildByFieldName("body"))
}

func (c *converter) withStatement(n *sitter.Node) pyast.Stmt {
	s := &pyast.With{Pos: pos(n), IsAsync: hasToken(n, "async")}
	for _, k := range named(n) {
		if k.Type() != "with_clause" {
			continue
		}
		for _, item := range named(k) {
			if item.Type() != "with_item" {
				continue
			}
			value := item.ChildByFieldName("value")
			if value == nil {
				value = named(item)[0]
			}
			var wi pyast.WithItem
			if value.Type() == "as_pattern" {
				wi.Context, wi.Vars = c.asPattern(value)
			} else {
				wi.Context = c.expr(value)
				if alias := item.ChildByFieldName("alias"); alias != nil {
					wi.Vars = c.expr(alias)
				}
			}
			pyast.SetContext(wi.Vars, pyast.Store)
			s.Items = append(s.Items, wi)
		}
	}
	s.Body = c.block(n.ChildByFieldName("body"))
	return s
}

// asPattern splits "value as target".
func (c *converter) asPattern(n *sitter.Node) (value, target pyast.Expr) {
	kids := named(n)
	value = c.expr(kids[0])
	if alias := n.ChildByFieldName("alias"); alias != nil {
		if inner := named(alias); len(inner) == 1 {
			return value, c.expr(inner[0])
		}
		return value, c.expr(alias)
	}
	if len(kids) > 1 {
		target = c.expr(kids[len(kids)-1])
	}
	return value, target
}

func (c *converter) tryStatement(n *sitter.Node) pyast.Stmt {
	s := &pyast.Try{Pos: pos(n), Body: c.block(n.ChildByFieldName("body"))}
	for _, k := range named(n) {
		switch k.Type() {
		case "except_group_clause":
			return c.bad(n, "TryStar")
		case "except_clause":
			s.Handlers = append(s.Handlers, c.handler(k))
		case "else_clause":
			s.OrElse = c.block(k.ChildByFieldName("body"))
		case "finally_clause":
			s.FinalBody = c.block(named(k)[0])
		}
	}
	return s
}

func (c *converter) handler(n *sitter.Node) pyast.ExceptHandler {
	var h pyast.ExceptHandler
	kids := named(n)
	var exprs []*sitter.Node
	for _, k := range kids {
		if k.Type() == "block" {
			h.Body = c.block(k)
			continue
		}
		exprs = append(exprs, k)
	}
	switch {
	case len(exprs) == 1 && exprs[0].Type() == "as_pattern":
		var name pyast.Expr
		h.Type, name = c.asPattern(exprs[0])
		if id, ok := name.(*pyast.Name); ok {
			h.Name = id.ID
		}
	case len(exprs) >= 1:
		h.Type = c.expr(exprs[0])
		if len(exprs) > 1 {
			h.Name = c.text(exprs[1])
		}
	}
	return h
}

func (c *converter) identifiers(n *sitter.Node) []string {
	var out []string
	for _, k := range named(n) {
		out = append(out, c.text(k))
	}
	return out
}

func (c *converter) aliases(names []*sitter.Node) []pyast.Alias {
	var out []pyast.Alias
	for _, n := range names {
		if n.Type() == "aliased_import" {
			out = append(out, pyast.Alias{
				Name:   dotted(c.text(n.ChildByFieldName("name"))),
				AsName: c.text(n.ChildByFieldName("alias")),
			})
			continue
		}
		out = append(out, pyast.Alias{Name: dotted(c.text(n))})
	}
	return out
}

// moduleName splits a from-import source into module and relative level.
func (c *converter) moduleName(n *sitter.Node) (string, int) {
	if n.Type() != "relative_import" {
		return dotted(c.text(n)), 0
	}
	var module string
	level := 0
	for _, k := range named(n) {
		switch k.Type() {
		case "import_prefix":
			level = strings.Count(c.text(k), ".")
		case "dotted_name":
			module = dotted(c.text(k))
		}
	}
	return module, level
}

// dotted drops whitespace the grammar allows inside dotted names.
func dotted(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// =============================================================================
// Definitions
// =============================================================================

func (c *converter) functionDef(n *sitter.Node, decorators []pyast.Expr) pyast.Stmt {
	if n.ChildByFieldName("type_parameters") != nil {
		return c.bad(n, "GenericFunctionDef")
	}
	s := &pyast.FunctionDef{
		Pos:        pos(n),
		Name:       c.text(n.ChildByFieldName("name")),
		Args:       c.parameters(n.ChildByFieldName("parameters")),
		Body:       c.block(n.ChildByFieldName("body")),
		Decorators: decorators,
		IsAsync:    hasToken(n, "async"),
	}
	if r := n.ChildByFieldName("return_type"); r != nil {
		s.Returns = c.expr(r)
	}
	return s
}

func (c *converter) classDef(n *sitter.Node, decorators []pyast.Expr) pyast.Stmt {
	if n.ChildByFieldName("type_parameters") != nil {
		return c.bad(n, "GenericClassDef")
	}
	s := &pyast.ClassDef{
		Pos:        pos(n),
		Name:       c.text(n.ChildByFieldName("name")),
		Body:       c.block(n.ChildByFieldName("body")),
		Decorators: decorators,
	}
	if sup := n.ChildByFieldName("superclasses"); sup != nil {
		s.Bases, s.Keywords = c.arguments(sup)
	}
	return s
}

// parameters converts a parameters or lambda_parameters node. A bare *
// or *args switches to keyword-only parameters; / closes the
// position-only group.
func (c *converter) parameters(n *sitter.Node) *pyast.Arguments {
	a := &pyast.Arguments{}
	if n == nil {
		return a
	}
	kwonly := false
	add := func(arg pyast.Arg, def *sitter.Node) {
		var d pyast.Expr
		if def != nil {
			d = c.expr(def)
		}
		if kwonly {
			a.KwOnly = append(a.KwOnly, arg)
			a.KwDefaults = append(a.KwDefaults, d)
			return
		}
		a.Args = append(a.Args, arg)
		if d != nil {
			a.Defaults = append(a.Defaults, d)
		}
	}
	splat := func(k *sitter.Node, annotation pyast.Expr) {
		arg := pyast.Arg{Name: c.text(named(k)[0]), Annotation: annotation}
		if k.Type() == "dictionary_splat_pattern" {
			a.KwArg = &arg
			return
		}
		a.VarArg = &arg
		kwonly = true
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		k := n.Child(i)
		switch k.Type() {
		case "identifier":
			add(pyast.Arg{Name: c.text(k)}, nil)
		case "typed_parameter":
			var annotation pyast.Expr
			if t := k.ChildByFieldName("type"); t != nil {
				annotation = c.expr(t)
			}
			inner := named(k)[0]
			switch inner.Type() {
			case "list_splat_pattern", "dictionary_splat_pattern":
				splat(inner, annotation)
			default:
				add(pyast.Arg{Name: c.text(inner), Annotation: annotation}, nil)
			}
		case "default_parameter":
			add(pyast.Arg{Name: c.text(k.ChildByFieldName("name"))}, k.ChildByFieldName("value"))
		case "typed_default_parameter":
			add(pyast.Arg{
				Name:       c.text(k.ChildByFieldName("name")),
				Annotation: c.expr(k.ChildByFieldName("type")),
			}, k.ChildByFieldName("value"))
		case "list_splat_pattern", "dictionary_splat_pattern":
			splat(k, nil)
		case "keyword_separator", "*":
			kwonly = true
		case "positional_separator", "/":
			a.PosOnly, a.Args = a.Args, nil
		}
	}
	return a
}
