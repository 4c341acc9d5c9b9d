package pysrc

import (
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/matzehuels/astkg/pkg/pyast"
)

// strLit is one string token with its prefix decoded and the byte range
// of its body between the quotes.
type strLit struct {
	node             *sitter.Node
	raw, bytes, fstr bool
	start, end       uint32
}

func (c *converter) lit(n *sitter.Node) strLit {
	t := c.text(n)
	i := strings.IndexAny(t, `'"`)
	if i < 0 {
		i = 0
	}
	prefix := strings.ToLower(t[:i])
	q := 1
	if strings.HasPrefix(t[i:], `"""`) || strings.HasPrefix(t[i:], `'''`) {
		q = 3
	}
	start := n.StartByte() + uint32(i+q)
	end := n.EndByte() - uint32(q)
	if end < start {
		end = start
	}
	return strLit{
		node:  n,
		raw:   strings.Contains(prefix, "r"),
		bytes: strings.Contains(prefix, "b"),
		fstr:  strings.Contains(prefix, "f"),
		start: start,
		end:   end,
	}
}

// stringLiteral converts one string token or an implicit concatenation.
// Concatenations containing an f-string become one JoinedStr.
func (c *converter) stringLiteral(nodes []*sitter.Node) pyast.Expr {
	lits := make([]strLit, 0, len(nodes))
	anyF, anyBytes := false, false
	for _, n := range nodes {
		l := c.lit(n)
		anyF = anyF || l.fstr
		anyBytes = anyBytes || l.bytes
		lits = append(lits, l)
	}

	switch {
	case anyBytes:
		var b []byte
		for _, l := range lits {
			b = append(b, unescape(string(c.src[l.start:l.end]), l.raw, true)...)
		}
		return &pyast.Constant{Value: pyast.Bytes(b)}
	case !anyF:
		var b strings.Builder
		for _, l := range lits {
			b.WriteString(unescape(string(c.src[l.start:l.end]), l.raw, false))
		}
		return pyast.Str(b.String())
	}

	j := &pyast.JoinedStr{}
	for _, l := range lits {
		if !l.fstr {
			appendText(j, unescape(string(c.src[l.start:l.end]), l.raw, false))
			continue
		}
		c.fstringParts(j, l.node, l.start, l.end, l.raw)
	}
	return j
}

// fstringParts appends the text and replacement fields of an f-string
// body, or of a format specifier, to j.
func (c *converter) fstringParts(j *pyast.JoinedStr, n *sitter.Node, start, end uint32, raw bool) {
	cursor := start
	for i := 0; i < int(n.ChildCount()); i++ {
		k := n.Child(i)
		if t := k.Type(); t != "interpolation" && t != "format_expression" {
			continue
		}
		appendText(j, fstringText(string(c.src[cursor:k.StartByte()]), raw))
		c.interpolation(j, k, raw)
		cursor = k.EndByte()
	}
	if cursor < end {
		appendText(j, fstringText(string(c.src[cursor:end]), raw))
	}
}

func (c *converter) interpolation(j *pyast.JoinedStr, n *sitter.Node, raw bool) {
	e := n.ChildByFieldName("expression")
	if e == nil {
		e = named(n)[0]
	}
	fv := &pyast.FormattedValue{Value: c.expr(e), Conversion: pyast.ConversionNone}

	conv := n.ChildByFieldName("type_conversion")
	if conv != nil {
		t := c.text(conv)
		fv.Conversion = int(t[len(t)-1])
	}
	spec := n.ChildByFieldName("format_specifier")
	if spec != nil {
		sj := &pyast.JoinedStr{}
		c.fstringParts(sj, spec, spec.StartByte()+1, spec.EndByte(), raw)
		fv.FormatSpec = sj
	}

	// f"{x=}" expands to the expression text followed by its repr.
	for i := 0; i < int(n.ChildCount()); i++ {
		if k := n.Child(i); !k.IsNamed() && k.Type() == "=" {
			appendText(j, string(c.src[n.StartByte()+1:k.EndByte()]))
			if conv == nil && spec == nil {
				fv.Conversion = pyast.ConversionRepr
			}
			break
		}
	}
	j.Values = append(j.Values, fv)
}

// appendText adds s to j, merging it into a preceding str constant.
func appendText(j *pyast.JoinedStr, s string) {
	if s == "" {
		return
	}
	if n := len(j.Values); n > 0 {
		if prev, ok := j.Values[n-1].(*pyast.Constant); ok {
			if ps, ok := prev.Value.(string); ok {
				prev.Value = ps + s
				return
			}
		}
	}
	j.Values = append(j.Values, pyast.Str(s))
}

func fstringText(s string, raw bool) string {
	s = strings.ReplaceAll(s, "{{", "{")
	s = strings.ReplaceAll(s, "}}", "}")
	return unescape(s, raw, false)
}

// unescape resolves Python backslash escapes. For bytes literals the
// result holds raw bytes; \u, \U and \N are only escapes in str literals.
// Named escapes (\N{...}) are kept verbatim.
func unescape(s string, raw, isBytes bool) string {
	if raw || !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	put := func(v rune) {
		if isBytes {
			b.WriteByte(byte(v))
			return
		}
		b.WriteRune(v)
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' || i+1 == len(s) {
			b.WriteByte(ch)
			continue
		}
		i++
		switch e := s[i]; e {
		case '\n':
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case '\\', '\'', '"':
			b.WriteByte(e)
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(s[i:j], 8, 32)
			put(rune(v))
			i = j - 1
		case 'x':
			if v, ok := hexDigits(s, i+1, 2); ok {
				put(rune(v))
				i += 2
				continue
			}
			b.WriteString(`\x`)
		case 'u', 'U':
			width := 4
			if e == 'U' {
				width = 8
			}
			if v, ok := hexDigits(s, i+1, width); ok && !isBytes && utf8.ValidRune(rune(v)) {
				b.WriteRune(rune(v))
				i += width
				continue
			}
			b.WriteByte('\\')
			b.WriteByte(e)
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String()
}

func hexDigits(s string, at, n int) (uint64, bool) {
	if at+n > len(s) {
		return 0, false
	}
	v, err := strconv.ParseUint(s[at:at+n], 16, 32)
	return v, err == nil
}
