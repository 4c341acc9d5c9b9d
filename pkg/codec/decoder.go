package codec

import (
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/astkg/pkg/kg"
	"github.com/matzehuels/astkg/pkg/pyast"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// Decoder rebuilds syntax trees from graphs. A Decoder may be reused;
// Warnings accumulates across calls.
type Decoder struct {
	cfg config

	mu sync.Mutex
	// Warnings lists nodes that were degraded instead of aborting the
	// decode: unknown statement kinds or expression types, and in lenient
	// mode statements whose reconstruction failed.
	Warnings []error
}

// NewDecoder creates a decoder with the given options.
func NewDecoder(opts ...Option) *Decoder {
	return &Decoder{cfg: newConfig(opts)}
}

// Decode rebuilds the module rooted at root, which defaults to
// kg.RootID when empty. It is a convenience for NewDecoder(opts...).Decode.
func Decode(g *kg.Graph, root string, opts ...Option) (*pyast.Module, error) {
	return NewDecoder(opts...).Decode(g, root)
}

// Decode rebuilds the module rooted at root. The graph is never modified.
//
// A missing required relation or a dangling node reference fails with
// *errors.IntegrityError naming the node and relation, unless the decoder
// is lenient.
func (d *Decoder) Decode(g *kg.Graph, root string) (*pyast.Module, error) {
	if root == "" {
		root = kg.RootID
	}
	x := kg.NewIndex(g)
	n, err := x.Node(root)
	if err != nil {
		return nil, err
	}
	if n.Kind != kg.KindModule {
		return nil, apperr.New(apperr.ErrCodeInvalidGraph, "root %s has kind %s, want %s", root, n.Kind, kg.KindModule)
	}

	r := &reader{x: x, d: d}
	ids := r.ordered(r.scopeChildren(root))
	if r.err != nil {
		return nil, r.err
	}

	var body []pyast.Stmt
	if d.cfg.parallel && len(ids) > 1 {
		body, err = d.parallelSuite(x, ids)
	} else {
		body = r.stmts(ids)
		err = r.err
	}
	if err != nil {
		return nil, err
	}
	return &pyast.Module{Body: body}, nil
}

// parallelSuite rebuilds top-level statements concurrently. Each
// goroutine owns its reader; results are placed by index.
func (d *Decoder) parallelSuite(x *kg.Index, ids []string) ([]pyast.Stmt, error) {
	out := make([]pyast.Stmt, len(ids))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, id := range ids {
		g.Go(func() error {
			r := &reader{x: x, d: d}
			s := r.member(id)
			if r.err != nil {
				if !d.cfg.lenient {
					return r.err
				}
				d.warn(r.err)
				s = &pyast.Pass{}
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Decoder) warn(err error) {
	d.cfg.logger.Debug("degraded node", "err", err)
	d.mu.Lock()
	d.Warnings = append(d.Warnings, err)
	d.mu.Unlock()
}

// =============================================================================
// Reader
// =============================================================================

// reader is the state of one decoding goroutine. err is sticky: after a
// failure every method returns zero values until the error is taken by
// a lenient suite or returned to the caller.
type reader struct {
	x     *kg.Index
	d     *Decoder
	depth int
	err   error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) enter(id string) bool {
	if r.err != nil {
		return false
	}
	if r.depth >= r.d.cfg.maxDepth {
		r.fail(&apperr.DepthError{Limit: r.d.cfg.maxDepth, NodeID: id})
		return false
	}
	r.depth++
	return true
}

func (r *reader) leave() { r.depth-- }

func (r *reader) node(id string) *kg.Node {
	if r.err != nil {
		return nil
	}
	n, err := r.x.Node(id)
	if err != nil {
		r.fail(err)
		return nil
	}
	return n
}

// scopeChildren gathers statements and definitions owned by a module,
// function or class.
func (r *reader) scopeChildren(id string) []string {
	var ids []string
	ids = append(ids, r.x.Many(id, kg.RelHasStatement)...)
	ids = append(ids, r.x.Many(id, kg.RelHasDef)...)
	return append(ids, r.x.Many(id, kg.RelHasClass)...)
}

// ordered sorts sibling ids by (order, seq, id).
func (r *reader) ordered(ids []string) []string {
	type key struct {
		id         string
		order, seq int
	}
	keys := make([]key, 0, len(ids))
	for _, id := range ids {
		n := r.node(id)
		if n == nil {
			return nil
		}
		order, _ := n.Int(kg.AttrOrder)
		seq, _ := n.Int(kg.AttrSeq)
		keys = append(keys, key{id: id, order: order, seq: seq})
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.order != b.order {
			return a.order < b.order
		}
		if a.seq != b.seq {
			return a.seq < b.seq
		}
		return a.id < b.id
	})
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.id
	}
	return out
}

// stmts rebuilds an ordered suite. In lenient mode a failing statement
// becomes pass and its error is recorded.
func (r *reader) stmts(ids []string) []pyast.Stmt {
	out := make([]pyast.Stmt, 0, len(ids))
	for _, id := range ids {
		if r.err != nil {
			return nil
		}
		s := r.member(id)
		if r.err != nil {
			if !r.d.cfg.lenient {
				return nil
			}
			r.d.warn(r.err)
			r.err = nil
			s = &pyast.Pass{}
		}
		out = append(out, s)
	}
	return out
}

// body rebuilds a scope's suite; an empty result becomes [pass].
func (r *reader) body(id string) []pyast.Stmt {
	return nonEmpty(r.stmts(r.ordered(r.scopeChildren(id))))
}

// slot rebuilds the suite hanging off a compound statement's slot.
func (r *reader) slot(id, rel string) []pyast.Stmt {
	ids := r.ordered(r.x.Many(id, rel))
	if len(ids) == 0 {
		return nil
	}
	return r.stmts(ids)
}

func nonEmpty(body []pyast.Stmt) []pyast.Stmt {
	if len(body) == 0 {
		return []pyast.Stmt{&pyast.Pass{}}
	}
	return body
}

// member dispatches a suite member on its node kind.
func (r *reader) member(id string) pyast.Stmt {
	n := r.node(id)
	if n == nil || !r.enter(id) {
		return nil
	}
	defer r.leave()

	switch n.Kind {
	case kg.KindStatement:
		return r.stmt(n)
	case kg.KindFunction, kg.KindAsyncFunction:
		return r.function(n)
	case kg.KindClass:
		return r.class(n)
	}
	r.unsupported(n, "node kind %s in a statement list", n.Kind)
	return &pyast.Pass{}
}

func (r *reader) unsupported(n *kg.Node, format string, args ...any) {
	r.d.warn(apperr.New(apperr.ErrCodeUnsupported, "node %s: "+format, append([]any{n.ID}, args...)...))
}

// =============================================================================
// Relation helpers
// =============================================================================

// req decodes the destination of a required singular relation.
func (r *reader) req(src, rel string) pyast.Expr {
	if r.err != nil {
		return nil
	}
	dst, _, err := r.x.One(src, rel, false)
	if err != nil {
		r.fail(err)
		return nil
	}
	return r.expr(dst)
}

// opt decodes an optional singular relation, nil when absent.
func (r *reader) opt(src, rel string) pyast.Expr {
	if r.err != nil {
		return nil
	}
	dst, ok, err := r.x.One(src, rel, true)
	if err != nil {
		r.fail(err)
		return nil
	}
	if !ok {
		return nil
	}
	return r.expr(dst)
}

// target decodes a binding target and sets its context.
func (r *reader) target(src, rel string, ctx pyast.Context) pyast.Expr {
	x := r.req(src, rel)
	pyast.SetContext(x, ctx)
	return x
}

// list decodes an indexed family in index order.
func (r *reader) list(src, family string) []pyast.Expr {
	slots := r.x.OrderedByPrefix(src, family)
	if len(slots) == 0 {
		return nil
	}
	out := make([]pyast.Expr, 0, len(slots))
	for _, s := range slots {
		out = append(out, r.expr(s.Dst))
	}
	return out
}

// literal returns the value of the Literal reached through rel.
func (r *reader) literal(src, rel string, optional bool) (any, bool) {
	if r.err != nil {
		return nil, false
	}
	dst, ok, err := r.x.One(src, rel, optional)
	if err != nil {
		r.fail(err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return r.literalNode(src, rel, dst)
}

func (r *reader) literalNode(src, rel, id string) (any, bool) {
	n := r.node(id)
	if n == nil {
		return nil, false
	}
	if n.Kind != kg.KindLiteral {
		r.fail(apperr.Integrity(src, rel, "expected Literal, got %s", n.Kind))
		return nil, false
	}
	v, err := literalValue(n)
	if err != nil {
		r.fail(err)
		return nil, false
	}
	return v, true
}

func (r *reader) literalString(src, rel string, optional bool) string {
	v, ok := r.literal(src, rel, optional)
	if !ok {
		return ""
	}
	if s, isStr := v.(string); isStr {
		return s
	}
	if v != nil {
		r.fail(apperr.Integrity(src, rel, "expected a str literal, got %T", v))
	}
	return ""
}

func (r *reader) literalInt(src, rel string) int {
	v, ok := r.literal(src, rel, false)
	if !ok {
		return 0
	}
	i, isInt := v.(int64)
	if !isInt {
		r.fail(apperr.Integrity(src, rel, "expected an int literal, got %T", v))
	}
	return int(i)
}

func (r *reader) literalBool(src, rel string) bool {
	v, ok := r.literal(src, rel, true)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	}
	r.fail(apperr.Integrity(src, rel, "expected a bool literal, got %T", v))
	return false
}

// operation returns the operator name stored on the Operation node
// reached through rel.
func (r *reader) operation(src, rel string) string {
	if r.err != nil {
		return ""
	}
	dst, _, err := r.x.One(src, rel, false)
	if err != nil {
		r.fail(err)
		return ""
	}
	return r.operationNode(src, rel, dst)
}

func (r *reader) operationNode(src, rel, id string) string {
	n := r.node(id)
	if n == nil {
		return ""
	}
	if n.Kind != kg.KindOperation {
		r.fail(apperr.Integrity(src, rel, "expected Operation, got %s", n.Kind))
		return ""
	}
	return n.Str(kg.AttrOperation)
}

func (r *reader) binaryOp(src, rel string) pyast.Operator {
	op := pyast.Operator(r.operation(src, rel))
	if r.err == nil && !op.Valid() {
		r.fail(apperr.Integrity(src, rel, "unknown binary operator %q", op))
	}
	return op
}
