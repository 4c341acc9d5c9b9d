package kg

// Relation families. Indexed families are used with [Indexed]; the rest
// appear on the wire exactly as spelled here.
const (
	// Containment of statements and definitions.
	RelHasStatement       = "Has_Statement"
	RelBodyStatement      = "Body_Statement"
	RelOrElseStatement    = "OrElse_Statement"
	RelFinalBodyStatement = "FinalBody_Statement"
	RelHandler            = "Handler" // indexed
	RelHasParameter       = "Has_Parameter"
	RelHasDef             = "Has_def"
	RelHasClass           = "Has_class"
	RelItem               = "Item" // indexed

	// Definition details.
	RelDecorator        = "Decorator" // indexed
	RelBase             = "Base"      // indexed
	RelReturnAnnotation = "ReturnAnnotation"
	RelAnnotation       = "Annotation"
	RelDefault          = "Default"

	// Statement slots.
	RelTarget    = "Target" // singular, or indexed for chained assignment and del
	RelValue     = "Value"  // singular, or indexed for boolop, dict and f-string parts
	RelSimple    = "Simple"
	RelComputes  = "Computes"
	RelName      = "Name"  // indexed
	RelAlias     = "Alias" // indexed
	RelModule    = "Module"
	RelLevel     = "Level"
	RelCondition = "Condition"
	RelIterator  = "Iterator"
	RelContext   = "Context"
	RelType      = "Type"
	RelException = "Exception"
	RelCause     = "Cause"
	RelMessage   = "Message"

	// Expression slots.
	RelOperation    = "Operation"
	RelLeft         = "Left"
	RelRight        = "Right"
	RelOperand      = "Operand"
	RelOp           = "Op"         // indexed
	RelComparator   = "Comparator" // indexed
	RelFunctionCall = "Function_call"
	RelArg          = "Arg"          // indexed
	RelKeywordKey   = "KeywordKey"   // indexed
	RelKeywordValue = "KeywordValue" // indexed
	RelKeywordStar  = "KeywordStar"  // indexed
	RelSlice        = "Slice"
	RelLower        = "Lower"
	RelUpper        = "Upper"
	RelStep         = "Step"
	RelElement      = "Element" // singular for comprehensions, indexed for displays
	RelKey          = "Key"     // singular for dictcomp, indexed for dict displays
	RelGen          = "Gen"     // indexed
	RelIf           = "If"      // indexed
	RelIsAsync      = "IsAsync"
	RelBody         = "Body"
	RelOrElse       = "OrElse"
	RelFormatSpec   = "FormatSpecification"
)

// Attribute keys.
const (
	AttrKind         = "kind"
	AttrType         = "type"
	AttrOrder        = "order"
	AttrLineno       = "lineno"
	AttrSeq          = "seq"
	AttrName         = "name"
	AttrAsName       = "asname"
	AttrPosition     = "position"
	AttrOperation    = "operation"
	AttrLiteralValue = "literal_value"
	AttrLiteralType  = "literal_type"
	AttrAttribute    = "attribute_value"
	AttrConversion   = "conversion"
)

// Parameter kinds stored in the Parameter "kind" attribute.
const (
	ParamPositionOnly = "PositionOnly"
	ParamArg          = "arg"
	ParamVariableArg  = "VariableArg"
	ParamKeywordOnly  = "KeywordOnly"
	ParamKeywordArg   = "KeywordArg"
)

// indexGroups lists indexed families whose indices are counted together.
// The second element of each dependent pair must be a subset of the first.
var (
	indexGroups = [][]string{
		{RelKeywordValue, RelKeywordStar},
	}
	dependentFamilies = map[string]string{
		RelKeywordKey: RelKeywordValue,
		RelKey:        RelValue,
	}
)
