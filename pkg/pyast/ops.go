package pyast

// Operator is a binary arithmetic or bitwise operator. Values are the
// operator class names of the Python ast module, which double as their
// wire names in the graph.
type Operator string

const (
	Add      Operator = "Add"
	Sub      Operator = "Sub"
	Mult     Operator = "Mult"
	MatMult  Operator = "MatMult"
	Div      Operator = "Div"
	Mod      Operator = "Mod"
	Pow      Operator = "Pow"
	LShift   Operator = "LShift"
	RShift   Operator = "RShift"
	BitOr    Operator = "BitOr"
	BitXor   Operator = "BitXor"
	BitAnd   Operator = "BitAnd"
	FloorDiv Operator = "FloorDiv"
)

// BoolOperator is and/or.
type BoolOperator string

const (
	And BoolOperator = "And"
	Or  BoolOperator = "Or"
)

// UnaryOperator is a prefix operator.
type UnaryOperator string

const (
	Invert UnaryOperator = "Invert"
	Not    UnaryOperator = "Not"
	UAdd   UnaryOperator = "UAdd"
	USub   UnaryOperator = "USub"
)

// CmpOperator is a comparison operator.
type CmpOperator string

const (
	Eq    CmpOperator = "Eq"
	NotEq CmpOperator = "NotEq"
	Lt    CmpOperator = "Lt"
	LtE   CmpOperator = "LtE"
	Gt    CmpOperator = "Gt"
	GtE   CmpOperator = "GtE"
	Is    CmpOperator = "Is"
	IsNot CmpOperator = "IsNot"
	In    CmpOperator = "In"
	NotIn CmpOperator = "NotIn"
)

var binarySymbols = map[Operator]string{
	Add: "+", Sub: "-", Mult: "*", MatMult: "@", Div: "/", Mod: "%", Pow: "**",
	LShift: "<<", RShift: ">>", BitOr: "|", BitXor: "^", BitAnd: "&", FloorDiv: "//",
}

var unarySymbols = map[UnaryOperator]string{
	Invert: "~", Not: "not", UAdd: "+", USub: "-",
}

var cmpSymbols = map[CmpOperator]string{
	Eq: "==", NotEq: "!=", Lt: "<", LtE: "<=", Gt: ">", GtE: ">=",
	Is: "is", IsNot: "is not", In: "in", NotIn: "not in",
}

// Symbol returns the source spelling, e.g. "//" for FloorDiv.
func (o Operator) Symbol() string { return binarySymbols[o] }

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool { _, ok := binarySymbols[o]; return ok }

// Symbol returns "and" or "or".
func (o BoolOperator) Symbol() string {
	if o == And {
		return "and"
	}
	return "or"
}

// Valid reports whether o is a known boolean operator.
func (o BoolOperator) Valid() bool { return o == And || o == Or }

// Symbol returns the source spelling.
func (o UnaryOperator) Symbol() string { return unarySymbols[o] }

// Valid reports whether o is a known unary operator.
func (o UnaryOperator) Valid() bool { _, ok := unarySymbols[o]; return ok }

// Symbol returns the source spelling, e.g. "not in".
func (o CmpOperator) Symbol() string { return cmpSymbols[o] }

// Valid reports whether o is a known comparison operator.
func (o CmpOperator) Valid() bool { _, ok := cmpSymbols[o]; return ok }

// OperatorFromSymbol maps a binary or augmented operator token ("+", "+=")
// to its Operator.
func OperatorFromSymbol(sym string) (Operator, bool) {
	if len(sym) > 1 && sym[len(sym)-1] == '=' {
		sym = sym[:len(sym)-1]
	}
	for op, s := range binarySymbols {
		if s == sym {
			return op, true
		}
	}
	return "", false
}

// CmpOperatorFromSymbol maps a comparison token to its CmpOperator.
// The legacy "<>" spelling maps to NotEq.
func CmpOperatorFromSymbol(sym string) (CmpOperator, bool) {
	if sym == "<>" {
		return NotEq, true
	}
	for op, s := range cmpSymbols {
		if s == sym {
			return op, true
		}
	}
	return "", false
}
