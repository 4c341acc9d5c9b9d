// Package pysrc parses Python source into [pyast] trees.
//
// Parsing uses tree-sitter's Python grammar. Source with syntax errors
// is rejected with an error naming the first bad line. Valid syntax that
// the syntax tree does not model (match statements, type aliases, generic
// definitions, except* clauses) is kept as [pyast.BadStmt] or
// [pyast.BadExpr] so that encoding still succeeds.
package pysrc

import (
	"context"
	"io"
	"os"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/matzehuels/astkg/pkg/pyast"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// DefaultMaxFileSize is the largest source accepted by default.
const DefaultMaxFileSize = 10 << 20

// Parser converts Python source to syntax trees. It is safe for
// concurrent use; every call builds its own tree-sitter parser.
type Parser struct {
	maxFileSize int
	logger      *log.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxFileSize rejects sources larger than n bytes. Values <= 0 keep
// the default.
func WithMaxFileSize(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxFileSize = n
		}
	}
}

// WithLogger routes debug output about unsupported syntax to l.
func WithLogger(l *log.Logger) Option {
	return func(p *Parser) { p.logger = l }
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return p
}

// Parse parses src with a default Parser.
func Parse(ctx context.Context, src []byte) (*pyast.Module, error) {
	return New().Parse(ctx, src)
}

// ParseFile reads and parses the file at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*pyast.Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.ErrCodeFileNotFound, err, "read %s", path)
		}
		return nil, apperr.Wrap(apperr.ErrCodeInvalidPath, err, "read %s", path)
	}
	m, err := p.Parse(ctx, src)
	if err != nil {
		return nil, apperr.Wrap(apperr.GetCode(err), err, "%s", path)
	}
	return m, nil
}

// Parse parses src into a module.
func (p *Parser) Parse(ctx context.Context, src []byte) (*pyast.Module, error) {
	if len(src) > p.maxFileSize {
		return nil, apperr.New(apperr.ErrCodeInvalidInput, "source is %d bytes, limit is %d", len(src), p.maxFileSize)
	}
	if !utf8.Valid(src) {
		return nil, apperr.New(apperr.ErrCodeInvalidInput, "source is not valid UTF-8")
	}

	if err := ctx.Err(); err != nil {
		return nil, interrupted(err)
	}

	ts := sitter.NewParser()
	defer ts.Close()
	ts.SetLanguage(python.GetLanguage())

	tree, err := ts.ParseCtx(ctx, nil, src)
	if err != nil {
		// tree-sitter reports cancellation as an operation limit.
		if cerr := ctx.Err(); cerr != nil {
			return nil, interrupted(cerr)
		}
		return nil, apperr.Wrap(apperr.ErrCodeParse, err, "tree-sitter")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(root)
	}

	c := &converter{src: src, log: p.logger}
	return &pyast.Module{Body: c.block(root)}, nil
}

// interrupted keeps the context error in the chain so callers can still
// tell an interrupt from a deadline.
func interrupted(err error) error {
	return apperr.Wrap(apperr.ErrCodeTimeout, err, "parse interrupted")
}

// syntaxError locates the first ERROR or missing node under root.
func syntaxError(root *sitter.Node) error {
	n := firstError(root)
	if n == nil {
		n = root
	}
	pt := n.StartPoint()
	if n.IsMissing() {
		return apperr.New(apperr.ErrCodeParse, "line %d, column %d: expected %q", pt.Row+1, pt.Column+1, n.Type())
	}
	return apperr.New(apperr.ErrCodeParse, "line %d, column %d: invalid syntax", pt.Row+1, pt.Column+1)
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || (!c.HasError() && !c.IsMissing()) {
			continue
		}
		if e := firstError(c); e != nil {
			return e
		}
	}
	return nil
}
