package codec

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"math/big"
	"strconv"

	"github.com/matzehuels/astkg/pkg/kg"
	"github.com/matzehuels/astkg/pkg/pyast"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// literalAttrs maps a constant onto JSON-safe attributes. literal_type
// keeps the Python type exact across serialization: ints that overflow
// int64 travel as decimal strings, bytes as base64, complex numbers as
// [re, im] and non-finite floats as strings. ok is false when the value
// has no Python literal form.
func literalAttrs(c *pyast.Constant) (attrs kg.Attrs, ok bool) {
	value, ok := canonicalValue(c.Value)
	if !ok {
		return nil, false
	}
	c = &pyast.Constant{Value: value}
	kind := c.Kind()
	var v any
	switch x := c.Value.(type) {
	case nil:
		v = nil
	case bool, int64, string:
		v = x
	case *big.Int:
		v = x.String()
	case float64:
		v = floatValue(x)
	case complex128:
		v = []any{floatValue(real(x)), floatValue(imag(x))}
	case pyast.Bytes:
		v = base64.StdEncoding.EncodeToString(x)
	case pyast.EllipsisType:
		v = "..."
	}
	return kg.Attrs{kg.AttrLiteralValue: v, kg.AttrLiteralType: string(kind)}, true
}

// canonicalValue converts the Go types a caller may build a constant from
// into the value types of [pyast.Constant].
func canonicalValue(v any) (any, bool) {
	switch x := v.(type) {
	case nil, bool, int64, string, *big.Int, float64, complex128, pyast.Bytes, pyast.EllipsisType:
		return v, true
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint:
		return unsignedValue(uint64(x)), true
	case uint64:
		return unsignedValue(x), true
	case float32:
		return float64(x), true
	case complex64:
		return complex128(x), true
	case []byte:
		return pyast.Bytes(x), true
	}
	return nil, false
}

func unsignedValue(u uint64) any {
	if u > math.MaxInt64 {
		return new(big.Int).SetUint64(u)
	}
	return int64(u)
}

func floatValue(f float64) any {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	return f
}

// literalValue is the inverse of literalAttrs. It accepts the Go values
// produced in memory as well as those read back from JSON or a store.
func literalValue(n *kg.Node) (any, error) {
	v, ok := n.Attrs[kg.AttrLiteralValue]
	if !ok {
		return nil, apperr.Integrity(n.ID, "", "literal has no %s", kg.AttrLiteralValue)
	}
	kind := pyast.ConstantKind(n.Str(kg.AttrLiteralType))
	if kind == "" {
		kind = inferKind(v)
	}
	bad := func() (any, error) {
		return nil, apperr.Integrity(n.ID, "", "literal_value %v is not a valid %s", v, kind)
	}

	switch kind {
	case pyast.KindNone:
		return nil, nil
	case pyast.KindBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			if b == "True" || b == "true" {
				return true, nil
			}
			if b == "False" || b == "false" {
				return false, nil
			}
		}
		return bad()
	case pyast.KindInt:
		if i, ok := intValue(v); ok {
			return i, nil
		}
		return bad()
	case pyast.KindFloat:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
		return bad()
	case pyast.KindComplex:
		parts, ok := v.([]any)
		if !ok || len(parts) != 2 {
			return bad()
		}
		re, ok1 := toFloat(parts[0])
		im, ok2 := toFloat(parts[1])
		if !ok1 || !ok2 {
			return bad()
		}
		return complex(re, im), nil
	case pyast.KindStr:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return bad()
	case pyast.KindBytes:
		s, ok := v.(string)
		if !ok {
			return bad()
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return bad()
		}
		return pyast.Bytes(b), nil
	case pyast.KindEllipsis:
		return pyast.Ellipsis, nil
	}
	return nil, apperr.Integrity(n.ID, "", "unknown literal_type %q", kind)
}

func inferKind(v any) pyast.ConstantKind {
	switch x := v.(type) {
	case nil:
		return pyast.KindNone
	case bool:
		return pyast.KindBool
	case int, int64, *big.Int:
		return pyast.KindInt
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return pyast.KindInt
		}
		return pyast.KindFloat
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return pyast.KindInt
		}
		return pyast.KindFloat
	case []any:
		return pyast.KindComplex
	}
	return pyast.KindStr
}

func intValue(v any) (any, bool) {
	var s string
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case *big.Int:
		return x, true
	case float64:
		if x != math.Trunc(x) {
			return nil, false
		}
		if math.Abs(x) < 1<<63 {
			return int64(x), true
		}
		b, _ := big.NewFloat(x).Int(nil)
		return b, true
	case json.Number:
		s = x.String()
	case string:
		s = x
	default:
		return nil, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, false
	}
	return b, true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		switch x {
		case "inf":
			return math.Inf(1), true
		case "-inf":
			return math.Inf(-1), true
		case "nan":
			return math.NaN(), true
		}
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

// boolLiteral and intLiteral build the literal attributes used for flags
// such as IsAsync, Simple and Level.
func boolLiteral(b bool) kg.Attrs {
	return kg.Attrs{kg.AttrLiteralValue: b, kg.AttrLiteralType: string(pyast.KindBool)}
}

func intLiteral(i int) kg.Attrs {
	return kg.Attrs{kg.AttrLiteralValue: int64(i), kg.AttrLiteralType: string(pyast.KindInt)}
}

func strLiteral(s string) kg.Attrs {
	return kg.Attrs{kg.AttrLiteralValue: s, kg.AttrLiteralType: string(pyast.KindStr)}
}
