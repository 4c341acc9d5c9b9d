package kg

import (
	"strconv"
	"strings"
)

// Rel is a typed relation label. Indexed relations are written
// "<Family>_<Index>" on the wire; singular and unordered relations are
// just the family name and carry Index -1.
type Rel struct {
	Family string
	Index  int
}

// Named returns an unindexed relation.
func Named(family string) Rel { return Rel{Family: family, Index: -1} }

// Indexed returns the i-th member of an indexed family.
func Indexed(family string, i int) Rel { return Rel{Family: family, Index: i} }

// IsIndexed reports whether the relation carries a position.
func (r Rel) IsIndexed() bool { return r.Index >= 0 }

// String returns the wire form of the relation.
func (r Rel) String() string {
	if r.Index < 0 {
		return r.Family
	}
	return r.Family + "_" + strconv.Itoa(r.Index)
}

// ParseRel splits a wire label into family and index. A label whose
// last "_" segment is not a non-negative decimal number is unindexed,
// so "Body_Statement" and "Function_call" parse as families.
func ParseRel(s string) Rel {
	i := strings.LastIndexByte(s, '_')
	if i <= 0 || i == len(s)-1 {
		return Named(s)
	}
	suffix := s[i+1:]
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return Named(s)
		}
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return Named(s)
	}
	return Rel{Family: s[:i], Index: n}
}
