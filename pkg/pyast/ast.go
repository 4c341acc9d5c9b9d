package pyast

// Stmt is implemented by every statement node.
// The set of implementations is closed: only types in this package satisfy it.
type Stmt interface {
	Line() int
	stmtNode()
}

// Expr is implemented by every expression node.
// The set of implementations is closed: only types in this package satisfy it.
type Expr interface {
	exprNode()
}

// Pos carries the 1-based source line of a statement. Zero means unknown.
type Pos struct {
	Lineno int
}

// Line returns the statement's source line, or 0 when unknown.
func (p Pos) Line() int { return p.Lineno }

// Context records how an expression binds: read, assigned or deleted.
type Context int

const (
	Load Context = iota
	Store
	Del
)

// String returns the context name as used by the Python ast module.
func (c Context) String() string {
	switch c {
	case Store:
		return "Store"
	case Del:
		return "Del"
	default:
		return "Load"
	}
}

// Module is the root of a parsed source file.
type Module struct {
	Body []Stmt
}

// =============================================================================
// Definitions
// =============================================================================

// FunctionDef is a def or async def statement.
type FunctionDef struct {
	Pos
	Name       string
	Args       *Arguments
	Body       []Stmt
	Decorators []Expr
	Returns    Expr // return annotation, may be nil
	IsAsync    bool
}

// ClassDef is a class statement.
type ClassDef struct {
	Pos
	Name       string
	Bases      []Expr
	Keywords   []Keyword
	Body       []Stmt
	Decorators []Expr
}

// Arguments is a parameter list shared by functions and lambdas.
// Defaults belong to the trailing len(Defaults) entries of PosOnly+Args.
// KwDefaults is parallel to KwOnly, with nil for parameters without one.
type Arguments struct {
	PosOnly    []Arg
	Args       []Arg
	VarArg     *Arg
	KwOnly     []Arg
	KwDefaults []Expr
	KwArg      *Arg
	Defaults   []Expr
}

// Arg is one parameter.
type Arg struct {
	Name       string
	Annotation Expr
}

// Positional returns position-only followed by regular parameters.
func (a *Arguments) Positional() []Arg {
	out := make([]Arg, 0, len(a.PosOnly)+len(a.Args))
	out = append(out, a.PosOnly...)
	return append(out, a.Args...)
}

// Empty reports whether the list declares no parameters at all.
func (a *Arguments) Empty() bool {
	return a == nil || (len(a.PosOnly) == 0 && len(a.Args) == 0 && a.VarArg == nil &&
		len(a.KwOnly) == 0 && a.KwArg == nil)
}

// =============================================================================
// Simple statements
// =============================================================================

// Return is a return statement; Value may be nil.
type Return struct {
	Pos
	Value Expr
}

// Delete is a del statement.
type Delete struct {
	Pos
	Targets []Expr
}

// Assign is a (possibly chained) assignment: t1 = t2 = value.
type Assign struct {
	Pos
	Targets []Expr
	Value   Expr
}

// AugAssign is an augmented assignment such as x += 1.
type AugAssign struct {
	Pos
	Target Expr
	Op     Operator
	Value  Expr
}

// AnnAssign is an annotated assignment; Value may be nil.
// Simple is set when the target is a bare name not wrapped in parentheses.
type AnnAssign struct {
	Pos
	Target     Expr
	Annotation Expr
	Value      Expr
	Simple     bool
}

// Raise is a raise statement; both fields may be nil.
type Raise struct {
	Pos
	Exc   Expr
	Cause Expr
}

// Assert is an assert statement; Msg may be nil.
type Assert struct {
	Pos
	Test Expr
	Msg  Expr
}

// Import is an import statement.
type Import struct {
	Pos
	Names []Alias
}

// ImportFrom is a from-import. Level counts leading dots.
type ImportFrom struct {
	Pos
	Module string
	Names  []Alias
	Level  int
}

// Alias is one imported name with its optional rename.
type Alias struct {
	Name   string
	AsName string
}

// Global is a global declaration.
type Global struct {
	Pos
	Names []string
}

// Nonlocal is a nonlocal declaration.
type Nonlocal struct {
	Pos
	Names []string
}

// ExprStmt is an expression evaluated for its side effects.
type ExprStmt struct {
	Pos
	Value Expr
}

type Pass struct{ Pos }

type Break struct{ Pos }

type Continue struct{ Pos }

// BadStmt stands in for syntax outside the supported grammar.
// Kind names the construct (for example "match_statement").
type BadStmt struct {
	Pos
	Kind string
}

// =============================================================================
// Compound statements
// =============================================================================

// If is an if statement; an elif chain nests in OrElse.
type If struct {
	Pos
	Test   Expr
	Body   []Stmt
	OrElse []Stmt
}

// For is a for or async for loop.
type For struct {
	Pos
	Target  Expr
	Iter    Expr
	Body    []Stmt
	OrElse  []Stmt
	IsAsync bool
}

// While is a while loop.
type While struct {
	Pos
	Test   Expr
	Body   []Stmt
	OrElse []Stmt
}

// With is a with or async with statement.
type With struct {
	Pos
	Items   []WithItem
	Body    []Stmt
	IsAsync bool
}

// WithItem is one context manager; Vars may be nil.
type WithItem struct {
	Context Expr
	Vars    Expr
}

// Try is a try statement.
type Try struct {
	Pos
	Body      []Stmt
	Handlers  []ExceptHandler
	OrElse    []Stmt
	FinalBody []Stmt
}

// ExceptHandler is one except clause. Type may be nil and Name empty.
type ExceptHandler struct {
	Type Expr
	Name string
	Body []Stmt
}

// =============================================================================
// Expressions
// =============================================================================

type (
	// BoolOp is a chain of and/or with two or more operands.
	BoolOp struct {
		Op     BoolOperator
		Values []Expr
	}

	// NamedExpr is an assignment expression (x := value).
	NamedExpr struct {
		Target Expr
		Value  Expr
	}

	BinOp struct {
		Left  Expr
		Op    Operator
		Right Expr
	}

	UnaryOp struct {
		Op      UnaryOperator
		Operand Expr
	}

	Lambda struct {
		Args *Arguments
		Body Expr
	}

	// IfExp is a conditional expression: Body if Test else OrElse.
	IfExp struct {
		Test   Expr
		Body   Expr
		OrElse Expr
	}

	// Dict is a dict display. A nil key marks a ** unpacking of the value.
	Dict struct {
		Keys   []Expr
		Values []Expr
	}

	Set struct {
		Elts []Expr
	}

	ListComp struct {
		Elt        Expr
		Generators []Comprehension
	}

	SetComp struct {
		Elt        Expr
		Generators []Comprehension
	}

	DictComp struct {
		Key        Expr
		Value      Expr
		Generators []Comprehension
	}

	GeneratorExp struct {
		Elt        Expr
		Generators []Comprehension
	}

	Await struct {
		Value Expr
	}

	// Yield is a yield expression; Value may be nil.
	Yield struct {
		Value Expr
	}

	YieldFrom struct {
		Value Expr
	}

	// Compare is a comparison chain: Left Ops[0] Comparators[0] Ops[1] ...
	Compare struct {
		Left        Expr
		Ops         []CmpOperator
		Comparators []Expr
	}

	// Call is a call expression. Starred positionals live in Args as
	// *Starred; keyword unpacking is a Keyword with an empty Arg.
	Call struct {
		Func     Expr
		Args     []Expr
		Keywords []Keyword
	}

	// FormattedValue is one {...} field in an f-string.
	FormattedValue struct {
		Value      Expr
		Conversion int  // -1 none, 's', 'r' or 'a'
		FormatSpec Expr // *JoinedStr or nil
	}

	// JoinedStr is an f-string: a sequence of str constants and
	// formatted values.
	JoinedStr struct {
		Values []Expr
	}

	Constant struct {
		Value any
	}

	Attribute struct {
		Value Expr
		Attr  string
		Ctx   Context
	}

	Subscript struct {
		Value Expr
		Slice Expr
		Ctx   Context
	}

	Starred struct {
		Value Expr
		Ctx   Context
	}

	Name struct {
		ID  string
		Ctx Context
	}

	List struct {
		Elts []Expr
		Ctx  Context
	}

	Tuple struct {
		Elts []Expr
		Ctx  Context
	}

	// Slice is lower:upper:step inside a subscript; every part may be nil.
	Slice struct {
		Lower Expr
		Upper Expr
		Step  Expr
	}

	// BadExpr stands in for an expression outside the supported grammar.
	BadExpr struct {
		Kind string
	}
)

// Keyword is a name=value argument, or **value when Arg is empty.
type Keyword struct {
	Arg   string
	Value Expr
}

// Comprehension is one for clause with its if filters.
type Comprehension struct {
	Target  Expr
	Iter    Expr
	Ifs     []Expr
	IsAsync bool
}

// Conversion flags for FormattedValue.
const (
	ConversionNone  = -1
	ConversionStr   = 's'
	ConversionRepr  = 'r'
	ConversionASCII = 'a'
)

func (*FunctionDef) stmtNode() {}
func (*ClassDef) stmtNode()    {}
func (*Return) stmtNode()      {}
func (*Delete) stmtNode()      {}
func (*Assign) stmtNode()      {}
func (*AugAssign) stmtNode()   {}
func (*AnnAssign) stmtNode()   {}
func (*Raise) stmtNode()       {}
func (*Assert) stmtNode()      {}
func (*Import) stmtNode()      {}
func (*ImportFrom) stmtNode()  {}
func (*Global) stmtNode()      {}
func (*Nonlocal) stmtNode()    {}
func (*ExprStmt) stmtNode()    {}
func (*Pass) stmtNode()        {}
func (*Break) stmtNode()       {}
func (*Continue) stmtNode()    {}
func (*BadStmt) stmtNode()     {}
func (*If) stmtNode()          {}
func (*For) stmtNode()         {}
func (*While) stmtNode()       {}
func (*With) stmtNode()        {}
func (*Try) stmtNode()         {}

func (*BoolOp) exprNode()         {}
func (*NamedExpr) exprNode()      {}
func (*BinOp) exprNode()          {}
func (*UnaryOp) exprNode()        {}
func (*Lambda) exprNode()         {}
func (*IfExp) exprNode()          {}
func (*Dict) exprNode()           {}
func (*Set) exprNode()            {}
func (*ListComp) exprNode()       {}
func (*SetComp) exprNode()        {}
func (*DictComp) exprNode()       {}
func (*GeneratorExp) exprNode()   {}
func (*Await) exprNode()          {}
func (*Yield) exprNode()          {}
func (*YieldFrom) exprNode()      {}
func (*Compare) exprNode()        {}
func (*Call) exprNode()           {}
func (*FormattedValue) exprNode() {}
func (*JoinedStr) exprNode()      {}
func (*Constant) exprNode()       {}
func (*Attribute) exprNode()      {}
func (*Subscript) exprNode()      {}
func (*Starred) exprNode()        {}
func (*Name) exprNode()           {}
func (*List) exprNode()           {}
func (*Tuple) exprNode()          {}
func (*Slice) exprNode()          {}
func (*BadExpr) exprNode()        {}
