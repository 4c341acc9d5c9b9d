package pipeline

import (
	"bytes"
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/astkg/pkg/buildinfo"
	"github.com/matzehuels/astkg/pkg/cache"
	"github.com/matzehuels/astkg/pkg/codec"
	"github.com/matzehuels/astkg/pkg/kg"
	"github.com/matzehuels/astkg/pkg/observability"
	"github.com/matzehuels/astkg/pkg/pyast"
	"github.com/matzehuels/astkg/pkg/pysrc"
	"github.com/matzehuels/astkg/pkg/render/dot"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use it to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// TTL overrides the default cache entry lifetimes when > 0.
	TTL time.Duration
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// =============================================================================
// Encode
// =============================================================================

// Encode parses src and encodes it into a graph, consulting the cache
// first unless opts.Refresh is set.
func (r *Runner) Encode(ctx context.Context, name string, src []byte, opts Options) (res *EncodeResult, err error) {
	r.applyLogger(&opts)
	opts.SetDefaults()

	start := time.Now()
	observability.Pipeline().OnEncodeStart(ctx, name)
	defer func() {
		nodes := 0
		if res != nil {
			nodes = res.Graph.NodeCount()
		}
		observability.Pipeline().OnEncodeComplete(ctx, name, nodes, time.Since(start), err)
	}()

	key := r.Keyer.GraphKey(cache.Hash(src), cache.GraphKeyOpts{
		MaxDepth: opts.MaxDepth,
		Version:  buildinfo.CacheTag(),
	})

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			if g, err := kg.ReadGraph(bytes.NewReader(data)); err == nil {
				observability.Cache().OnCacheHit(ctx, "graph")
				r.Logger.Debug("graph from cache", "source", name)
				return &EncodeResult{
					Source:    name,
					Graph:     g,
					GraphHash: cache.Hash(data),
					CacheHit:  true,
					Duration:  time.Since(start),
				}, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "graph")
	}

	mod, err := r.parse(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	g, err := codec.Encode(mod, opts.CodecOptions()...)
	if err != nil {
		return nil, err
	}
	data, err := kg.MarshalGraph(g)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInternal, err, "serialize graph")
	}
	if err := r.Cache.Set(ctx, key, data, r.ttl(cache.TTLGraph)); err != nil {
		r.Logger.Warn("cache write failed", "source", name, "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "graph", len(data))
	}

	res = &EncodeResult{
		Source:    name,
		Graph:     g,
		GraphHash: cache.Hash(data),
		Duration:  time.Since(start),
	}
	r.Logger.Info("encoded",
		"source", name,
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"duration", res.Duration)
	return res, nil
}

// EncodeFile reads path and encodes it. The path "-" reads stdin.
func (r *Runner) EncodeFile(ctx context.Context, path string, opts Options) (*EncodeResult, error) {
	src, err := readSource(path)
	if err != nil {
		return nil, err
	}
	res, err := r.Encode(ctx, path, src, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.GetCode(err), err, "%s", path)
	}
	return res, nil
}

// EncodeFiles encodes paths concurrently, at most opts.Concurrency at a
// time. Results keep the order of paths. With opts.Lenient a failing file
// is reported in its FileResult and the batch continues; otherwise the
// first failure cancels the rest and is returned.
func (r *Runner) EncodeFiles(ctx context.Context, paths []string, opts Options) ([]FileResult, error) {
	r.applyLogger(&opts)
	opts.SetDefaults()

	out := make([]FileResult, len(paths))
	var finished atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, path := range paths {
		g.Go(func() error {
			res, err := r.EncodeFile(gctx, path, opts)
			out[i] = FileResult{Path: path, Result: res, Err: err}
			if opts.Progress != nil {
				opts.Progress(int(finished.Add(1)), len(paths))
			}
			if err != nil && !opts.Lenient {
				return err
			}
			if err != nil {
				r.Logger.Warn("skipped", "source", path, "err", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Runner) parse(ctx context.Context, src []byte, opts Options) (*pyast.Module, error) {
	p := pysrc.New(pysrc.WithMaxFileSize(opts.MaxFileSize), pysrc.WithLogger(opts.Logger))
	return p.Parse(ctx, src)
}

func readSource(path string) ([]byte, error) {
	if path == "-" {
		data, err := readAll(os.Stdin)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "read stdin")
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, apperr.Wrap(apperr.ErrCodeFileNotFound, err, "read %s", path)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidPath, err, "read %s", path)
	}
	return data, nil
}

func readAll(f *os.File) ([]byte, error) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(f)
	return buf.Bytes(), err
}

// =============================================================================
// Decode
// =============================================================================

// Decode rebuilds the module stored in g and prints it.
func (r *Runner) Decode(ctx context.Context, name string, g *kg.Graph, opts Options) (res *DecodeResult, err error) {
	r.applyLogger(&opts)
	opts.SetDefaults()

	start := time.Now()
	observability.Pipeline().OnDecodeStart(ctx, name, g.NodeCount())
	defer func() {
		stmts := 0
		if res != nil {
			stmts = len(res.Module.Body)
		}
		observability.Pipeline().OnDecodeComplete(ctx, name, stmts, time.Since(start), err)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := codec.NewDecoder(opts.CodecOptions()...)
	mod, err := d.Decode(g, "")
	if err != nil {
		return nil, err
	}
	res = &DecodeResult{
		Source:   name,
		Module:   mod,
		Text:     pyast.Format(mod),
		Warnings: d.Warnings,
		Duration: time.Since(start),
	}
	for _, w := range d.Warnings {
		r.Logger.Warn("degraded node", "source", name, "err", w)
	}
	r.Logger.Info("decoded",
		"source", name,
		"statements", len(mod.Body),
		"warnings", len(d.Warnings),
		"duration", res.Duration)
	return res, nil
}

// RoundTrip encodes src, decodes the graph and compares the printed
// module with the printed parse of src.
func (r *Runner) RoundTrip(ctx context.Context, name string, src []byte, opts Options) (*RoundTripResult, error) {
	r.applyLogger(&opts)
	opts.SetDefaults()

	mod, err := r.parse(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	enc, err := r.Encode(ctx, name, src, opts)
	if err != nil {
		return nil, err
	}
	dec, err := r.Decode(ctx, name, enc.Graph, opts)
	if err != nil {
		return nil, err
	}
	original := pyast.Format(mod)
	return &RoundTripResult{
		Encode:   enc,
		Decode:   dec,
		Original: original,
		Equal:    original == dec.Text,
	}, nil
}

// RoundTripFile runs RoundTrip on the file at path ("-" reads stdin).
func (r *Runner) RoundTripFile(ctx context.Context, path string, opts Options) (*RoundTripResult, error) {
	src, err := readSource(path)
	if err != nil {
		return nil, err
	}
	return r.RoundTrip(ctx, path, src, opts)
}

// =============================================================================
// Render
// =============================================================================

// Render draws g in opts.Format, using the cache unless opts.Refresh is
// set. It reports whether the output came from the cache.
func (r *Runner) Render(ctx context.Context, g *kg.Graph, opts Options) (out []byte, hit bool, err error) {
	r.applyLogger(&opts)
	if err := opts.Validate(); err != nil {
		return nil, false, err
	}

	start := time.Now()
	observability.Pipeline().OnRenderStart(ctx, opts.Format)
	defer func() {
		observability.Pipeline().OnRenderComplete(ctx, opts.Format, time.Since(start), err)
	}()

	data, err := kg.MarshalGraph(g)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.ErrCodeInternal, err, "serialize graph")
	}
	detail := ""
	if opts.Detailed {
		detail = "detailed"
	}
	key := r.Keyer.RenderKey(cache.Hash(data), cache.RenderKeyOpts{
		Format: opts.Format,
		Detail: detail + opts.Direction,
	})

	if !opts.Refresh {
		if cached, ok, err := r.Cache.Get(ctx, key); err == nil && ok {
			observability.Cache().OnCacheHit(ctx, "render")
			return cached, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, "render")
	}

	out, err = dot.RenderGraph(ctx, g, opts.Format, opts.RenderOptions())
	if err != nil {
		return nil, false, err
	}
	if err := r.Cache.Set(ctx, key, out, r.ttl(cache.TTLRender)); err == nil {
		observability.Cache().OnCacheSet(ctx, "render", len(out))
	}
	r.Logger.Debug("rendered", "format", opts.Format, "bytes", len(out), "duration", time.Since(start))
	return out, false, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) ttl(def time.Duration) time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return def
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
