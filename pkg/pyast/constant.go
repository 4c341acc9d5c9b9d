package pyast

import (
	"math/big"
)

// EllipsisType is the type of the ... literal.
type EllipsisType struct{}

// Ellipsis is the value of a Constant written as "...".
var Ellipsis = EllipsisType{}

// Bytes is the value of a bytes literal.
type Bytes []byte

// ConstantKind names the Python type of a constant value.
type ConstantKind string

const (
	KindNone     ConstantKind = "none"
	KindBool     ConstantKind = "bool"
	KindInt      ConstantKind = "int"
	KindFloat    ConstantKind = "float"
	KindComplex  ConstantKind = "complex"
	KindStr      ConstantKind = "str"
	KindBytes    ConstantKind = "bytes"
	KindEllipsis ConstantKind = "ellipsis"
)

// Kind reports the Python type of the constant. Ints are int64, or
// *big.Int when they overflow.
func (c *Constant) Kind() ConstantKind {
	switch c.Value.(type) {
	case nil:
		return KindNone
	case bool:
		return KindBool
	case int64, *big.Int:
		return KindInt
	case float64:
		return KindFloat
	case complex128:
		return KindComplex
	case string:
		return KindStr
	case Bytes:
		return KindBytes
	case EllipsisType:
		return KindEllipsis
	}
	return ""
}

// Str builds a str constant.
func Str(s string) *Constant { return &Constant{Value: s} }

// Int builds an int constant.
func Int(v int64) *Constant { return &Constant{Value: v} }

// None builds the None constant.
func None() *Constant { return &Constant{} }

// NewName builds a Name in load context.
func NewName(id string) *Name { return &Name{ID: id} }
