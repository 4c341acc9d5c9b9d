package pysrc

import (
	"context"
	"errors"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/astkg/pkg/codec"
	"github.com/matzehuels/astkg/pkg/pyast"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// canonical sources are already in the printer's layout, so parsing and
// formatting them must reproduce them byte for byte.
var canonical = map[string]string{
	"imports": `import os, numpy as np
from ..pkg import a as b, c
from . import d
from __future__ import annotations
`,
	"assignments": `x = a + b * 2
x = y = f(1, *rest, key=3, **kw)
(a, b) = (b, a)
count: int = 0
self.x: str
total += 1
del a[0], b.c
`,
	"definitions": `@decorator
async def fetch(a, /, b: int = 1, *args, c, d=2, **kw) -> str:
    return await get(a)
class Thing(Base, metaclass=Meta):
    field: int
    def method(self):
        return [v * 2 for v in self.items if v]
`,
	"control flow": `for (k, v) in items.items():
    if k is not None and v not in seen:
        continue
    elif k:
        break
    else:
        pass
else:
    pass
while True:
    break
with open(path) as fh, lock:
    data = fh.read()
try:
    risky()
except (ValueError, KeyError) as e:
    raise Wrapped() from e
except Exception:
    pass
else:
    ok = True
finally:
    cleanup()
`,
	"expressions": `f = lambda x, y=1: x if x > y else -y
g = {'k': [1, 2.5, None], **extra}
h = {*items, 3}
s = xs[1:10:2]
t = m[0, :]
n = (value := compute())
q = not a or b
r = sum((v for v in vs))
`,
}

func TestParseCanonical(t *testing.T) {
	for name, src := range canonical {
		t.Run(name, func(t *testing.T) {
			m, err := Parse(context.Background(), []byte(src))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := pyast.Format(m); got != src {
				t.Errorf("Format(Parse(src)) =\n%s\nwant:\n%s", got, src)
			}
		})
	}
}

// Parsed modules survive the graph codec unchanged.
func TestParseEncodeDecode(t *testing.T) {
	for name, src := range canonical {
		t.Run(name, func(t *testing.T) {
			m, err := Parse(context.Background(), []byte(src))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			g, err := codec.Encode(m)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			back, err := codec.Decode(g, "")
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got := pyast.Format(back); got != src {
				t.Errorf("round trip =\n%s\nwant:\n%s", got, src)
			}
		})
	}
}

func parseExpr(t *testing.T, src string) pyast.Expr {
	t.Helper()
	m, err := Parse(context.Background(), []byte(src+"\n"))
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	if len(m.Body) != 1 {
		t.Fatalf("Parse(%q) = %d statements, want 1", src, len(m.Body))
	}
	s, ok := m.Body[0].(*pyast.ExprStmt)
	if !ok {
		t.Fatalf("Parse(%q) = %T, want *ExprStmt", src, m.Body[0])
	}
	return s.Value
}

func TestNumbers(t *testing.T) {
	huge, _ := new(big.Int).SetString("1000000000000000000000000000000", 10)
	tests := []struct {
		src  string
		want any
	}{
		{"0", int64(0)},
		{"1_000", int64(1000)},
		{"0x1F", int64(31)},
		{"0o17", int64(15)},
		{"0b101", int64(5)},
		{"1000000000000000000000000000000", huge},
		{"1.5", 1.5},
		{"1e3", 1000.0},
		{"3j", complex(0, 3)},
		{"2.5j", complex(0, 2.5)},
	}
	for _, tt := range tests {
		c, ok := parseExpr(t, tt.src).(*pyast.Constant)
		if !ok {
			t.Errorf("%s: not a constant", tt.src)
			continue
		}
		if b, isBig := tt.want.(*big.Int); isBig {
			if got, ok := c.Value.(*big.Int); !ok || got.Cmp(b) != 0 {
				t.Errorf("%s = %#v, want %s", tt.src, c.Value, b)
			}
			continue
		}
		if c.Value != tt.want {
			t.Errorf("%s = %#v, want %#v", tt.src, c.Value, tt.want)
		}
	}

	c := parseExpr(t, "1e309").(*pyast.Constant)
	if f, ok := c.Value.(float64); !ok || !math.IsInf(f, 1) {
		t.Errorf("1e309 = %#v, want +Inf", c.Value)
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{`'plain'`, "plain"},
		{`"it's"`, "it's"},
		{`'a' 'b'`, "ab"},
		{`'tab\there'`, "tab\there"},
		{`r'\n'`, `\n`},
		{`'\u00e9\x41\101'`, "éAA"},
		{`'''triple
quoted'''`, "triple\nquoted"},
		{`b'\x00\xff'`, pyast.Bytes{0x00, 0xff}},
		{`b'ab' b'c'`, pyast.Bytes("abc")},
	}
	for _, tt := range tests {
		c, ok := parseExpr(t, tt.src).(*pyast.Constant)
		if !ok {
			t.Errorf("%s: not a constant", tt.src)
			continue
		}
		if b, isBytes := tt.want.(pyast.Bytes); isBytes {
			if got, ok := c.Value.(pyast.Bytes); !ok || string(got) != string(b) {
				t.Errorf("%s = %#v, want %#v", tt.src, c.Value, b)
			}
			continue
		}
		if c.Value != tt.want {
			t.Errorf("%s = %#v, want %#v", tt.src, c.Value, tt.want)
		}
	}
}

func TestFString(t *testing.T) {
	j, ok := parseExpr(t, `f'n={n!r:>8} {{lit}}'`).(*pyast.JoinedStr)
	if !ok {
		t.Fatal("not a JoinedStr")
	}
	if len(j.Values) != 3 {
		t.Fatalf("len(Values) = %d, want 3", len(j.Values))
	}
	if s := j.Values[0].(*pyast.Constant).Value; s != "n=" {
		t.Errorf("Values[0] = %q, want %q", s, "n=")
	}
	fv := j.Values[1].(*pyast.FormattedValue)
	if fv.Conversion != pyast.ConversionRepr {
		t.Errorf("Conversion = %c, want r", fv.Conversion)
	}
	spec, ok := fv.FormatSpec.(*pyast.JoinedStr)
	if !ok || len(spec.Values) != 1 || spec.Values[0].(*pyast.Constant).Value != ">8" {
		t.Errorf("FormatSpec = %#v, want >8", fv.FormatSpec)
	}
	if s := j.Values[2].(*pyast.Constant).Value; s != " {lit}" {
		t.Errorf("Values[2] = %q, want %q", s, " {lit}")
	}
}

func TestContexts(t *testing.T) {
	m, err := Parse(context.Background(), []byte("for (a, *b) in c:\n    del d[a]\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	loop := m.Body[0].(*pyast.For)
	target := loop.Target.(*pyast.Tuple)
	if target.Ctx != pyast.Store || target.Elts[1].(*pyast.Starred).Value.(*pyast.Name).Ctx != pyast.Store {
		t.Error("loop target should be Store")
	}
	if loop.Body[0].(*pyast.Delete).Targets[0].(*pyast.Subscript).Ctx != pyast.Del {
		t.Error("del target should be Del")
	}
}

func TestLineNumbers(t *testing.T) {
	src := "x = 1\n\n# comment\ndef f():\n    y = 2; z = 3\n"
	m, err := Parse(context.Background(), []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Body[0].Line() != 1 || m.Body[1].Line() != 4 {
		t.Errorf("lines = %d, %d, want 1, 4", m.Body[0].Line(), m.Body[1].Line())
	}
	body := m.Body[1].(*pyast.FunctionDef).Body
	if len(body) != 2 || body[0].Line() != 5 || body[1].Line() != 5 {
		t.Errorf("function body = %d statements, want two on line 5", len(body))
	}
}

func TestUnsupportedSyntax(t *testing.T) {
	src := "match command:\n    case 'go':\n        pass\nx = 1\n"
	m, err := Parse(context.Background(), []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	bad, ok := m.Body[0].(*pyast.BadStmt)
	if !ok || bad.Kind != "Match" {
		t.Errorf("Body[0] = %#v, want BadStmt{Match}", m.Body[0])
	}
	if _, ok := m.Body[1].(*pyast.Assign); !ok {
		t.Errorf("Body[1] = %T, want *Assign", m.Body[1])
	}
}

func TestSyntaxError(t *testing.T) {
	_, err := Parse(context.Background(), []byte("x = 1\ndef f(:\n    pass\n"))
	if !apperr.Is(err, apperr.ErrCodeParse) {
		t.Errorf("error = %v, want %s", err, apperr.ErrCodeParse)
	}
}

func TestParseInterrupted(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()

	tests := []struct {
		name  string
		ctx   context.Context
		cause error
	}{
		{"cancelled", cancelled, context.Canceled},
		{"deadline", expired, context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.ctx, []byte("x = 1\n"))
			if !apperr.Is(err, apperr.ErrCodeTimeout) {
				t.Errorf("error = %v, want %s", err, apperr.ErrCodeTimeout)
			}
			if !errors.Is(err, tt.cause) {
				t.Errorf("errors.Is(%v, %v) = false, want true", err, tt.cause)
			}
		})
	}
}

func TestParseLimits(t *testing.T) {
	p := New(WithMaxFileSize(4))
	if _, err := p.Parse(context.Background(), []byte("x = 12345\n")); !apperr.Is(err, apperr.ErrCodeInvalidInput) {
		t.Errorf("oversized source: error = %v, want %s", err, apperr.ErrCodeInvalidInput)
	}
	if _, err := Parse(context.Background(), []byte{'x', '=', 0xff}); !apperr.Is(err, apperr.ErrCodeInvalidInput) {
		t.Errorf("invalid UTF-8: error = %v, want %s", err, apperr.ErrCodeInvalidInput)
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.py")
	if err := os.WriteFile(path, []byte("print('hi')\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := New().ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(m.Body) != 1 {
		t.Errorf("len(Body) = %d, want 1", len(m.Body))
	}

	_, err = New().ParseFile(context.Background(), filepath.Join(dir, "missing.py"))
	if !apperr.Is(err, apperr.ErrCodeFileNotFound) {
		t.Errorf("missing file: error = %v, want %s", err, apperr.ErrCodeFileNotFound)
	}
}
