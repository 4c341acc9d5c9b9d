package codec

import (
	"io"

	"github.com/charmbracelet/log"
)

// DefaultMaxDepth bounds statement and expression nesting on both sides
// of the codec.
const DefaultMaxDepth = 1000

// Option configures Encode and Decode.
type Option func(*config)

type config struct {
	maxDepth int
	lenient  bool
	parallel bool
	logger   *log.Logger
}

func newConfig(opts []Option) config {
	c := config{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&c)
	}
	if c.maxDepth <= 0 {
		c.maxDepth = DefaultMaxDepth
	}
	if c.logger == nil {
		c.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return c
}

// WithMaxDepth sets the nesting limit. Values <= 0 restore the default.
func WithMaxDepth(n int) Option {
	return func(c *config) { c.maxDepth = n }
}

// WithLenient makes the decoder replace a statement it cannot rebuild
// with pass and record the failure in Decoder.Warnings.
func WithLenient() Option {
	return func(c *config) { c.lenient = true }
}

// WithParallel makes the decoder rebuild top-level statements concurrently.
// Output order is unchanged.
func WithParallel() Option {
	return func(c *config) { c.parallel = true }
}

// WithLogger routes debug output (placeholders, degraded nodes) to l.
func WithLogger(l *log.Logger) Option {
	return func(c *config) { c.logger = l }
}
