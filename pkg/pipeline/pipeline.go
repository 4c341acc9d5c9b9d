// Package pipeline runs the astkg stages end to end: parse Python source,
// encode it into a knowledge graph, decode the graph back into a syntax
// tree, and render graphs as diagrams.
//
// The CLI and the HTTP server both drive the codec through a [Runner], so
// caching, logging and observability hooks behave the same everywhere.
//
// # Stages
//
//  1. Encode: source text → pyast.Module (pysrc) → kg.Graph (codec)
//  2. Decode: kg.Graph → pyast.Module (codec) → source text (pyast.Format)
//  3. Render: kg.Graph → DOT, SVG or PNG (render/dot)
//
// Encode and Render results are cached by content hash. Decoding is cheap
// relative to parsing and is never cached.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	enc, err := runner.EncodeFile(ctx, "main.py", pipeline.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dec, err := runner.Decode(ctx, "main.py", enc.Graph, pipeline.Options{})
//	fmt.Print(dec.Text)
package pipeline

import (
	"io"
	"runtime"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/astkg/pkg/codec"
	"github.com/matzehuels/astkg/pkg/kg"
	"github.com/matzehuels/astkg/pkg/pyast"
	"github.com/matzehuels/astkg/pkg/pysrc"
	"github.com/matzehuels/astkg/pkg/render/dot"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultMaxDepth is the nesting limit applied by both codec directions.
	DefaultMaxDepth = codec.DefaultMaxDepth

	// DefaultMaxFileSize is the largest source file accepted.
	DefaultMaxFileSize = pysrc.DefaultMaxFileSize

	// DefaultFormat is the default render format.
	DefaultFormat = dot.FormatSVG
)

// DefaultConcurrency bounds EncodeFiles.
var DefaultConcurrency = runtime.GOMAXPROCS(0)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options configures one pipeline run. It supports JSON for API requests.
type Options struct {
	// Codec options
	MaxDepth int  `json:"max_depth,omitempty"`
	Lenient  bool `json:"lenient,omitempty"`
	Parallel bool `json:"parallel,omitempty"`

	// Refresh bypasses cached encodings and renderings.
	Refresh bool `json:"refresh,omitempty"`

	// Render options
	Format    string `json:"format,omitempty"`
	Detailed  bool   `json:"detailed,omitempty"`
	Direction string `json:"direction,omitempty"`

	// Runtime options (not serialized)
	MaxFileSize int         `json:"-"`
	Concurrency int         `json:"-"`
	Logger      *log.Logger `json:"-"`

	// Progress, if set, is called by EncodeFiles after each file with the
	// number of files finished so far. Calls may come from several
	// goroutines.
	Progress func(done, total int) `json:"-"`
}

// SetDefaults fills zero fields. It is idempotent.
func (o *Options) SetDefaults() {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Validate checks the options after applying defaults.
func (o *Options) Validate() error {
	o.SetDefaults()
	return ValidateFormat(o.Format)
}

// ValidateFormat checks that a render format is supported.
func ValidateFormat(format string) error {
	if !dot.ValidFormats[format] {
		return apperr.New(apperr.ErrCodeInvalidFormat, "invalid format: %q (must be one of: dot, svg, png)", format)
	}
	return nil
}

// CodecOptions translates o into codec options.
func (o *Options) CodecOptions() []codec.Option {
	opts := []codec.Option{codec.WithMaxDepth(o.MaxDepth), codec.WithLogger(o.Logger)}
	if o.Lenient {
		opts = append(opts, codec.WithLenient())
	}
	if o.Parallel {
		opts = append(opts, codec.WithParallel())
	}
	return opts
}

// RenderOptions translates o into diagram options.
func (o *Options) RenderOptions() dot.Options {
	return dot.Options{Detailed: o.Detailed, Direction: o.Direction}
}

// =============================================================================
// Results
// =============================================================================

// EncodeResult is the output of the encode stage.
type EncodeResult struct {
	// Source names the input (a path, "-" or a request label).
	Source string

	Graph *kg.Graph

	// GraphHash is the content hash of the graph's JSON form.
	GraphHash string

	// CacheHit reports whether Graph came from the cache.
	CacheHit bool

	Duration time.Duration
}

// DecodeResult is the output of the decode stage.
type DecodeResult struct {
	Source string
	Module *pyast.Module

	// Text is the printed module.
	Text string

	// Warnings lists degraded nodes (unknown kinds, and with Lenient
	// failed statements).
	Warnings []error

	Duration time.Duration
}

// RoundTripResult compares a module with the module rebuilt from its graph.
type RoundTripResult struct {
	Encode *EncodeResult
	Decode *DecodeResult

	// Original is the parsed source printed canonically.
	Original string

	// Equal reports whether the rebuilt module prints identically.
	Equal bool
}

// FileResult is one entry of a batch encode. Err is set instead of
// Result when the file failed and the batch continued.
type FileResult struct {
	Path   string
	Result *EncodeResult
	Err    error
}
