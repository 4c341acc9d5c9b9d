// Package cache stores encoded graphs and rendered artifacts between runs.
//
// Entries are opaque byte slices under string keys produced by a [Keyer].
// Keys hash everything that influences the cached value, so a change to
// the source text or to codec options yields a different key rather than
// a stale hit.
//
// Backends:
//
//   - [FileCache]: one JSON file per entry under a directory, for the CLI
//   - [RedisCache]: shared cache for the HTTP server
//   - [NullCache]: caching disabled
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Cache is a key-value store with per-entry expiry.
type Cache interface {
	// Get returns the entry for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl <= 0 never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error
}

// Default lifetimes. Graph encoding is a pure function of source and
// options, so entries only expire to bound disk use.
const (
	TTLGraph  = 7 * 24 * time.Hour
	TTLRender = 7 * 24 * time.Hour
)

// Keyer derives cache keys.
type Keyer interface {
	// GraphKey names the encoded graph of a source file.
	GraphKey(sourceHash string, opts GraphKeyOpts) string

	// RenderKey names a rendering of an encoded graph.
	RenderKey(graphHash string, opts RenderKeyOpts) string
}

// GraphKeyOpts holds the encoder settings that change its output.
type GraphKeyOpts struct {
	MaxDepth int    `json:"max_depth"`
	Version  string `json:"version,omitempty"`
}

// RenderKeyOpts holds the renderer settings that change its output.
type RenderKeyOpts struct {
	Format string `json:"format"`
	Detail string `json:"detail,omitempty"`
}

// DefaultKeyer builds keys of the form "<kind>:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer creates a DefaultKeyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// GraphKey generates the key for an encoded graph.
func (DefaultKeyer) GraphKey(sourceHash string, opts GraphKeyOpts) string {
	return hashKey("graph", sourceHash, opts)
}

// RenderKey generates the key for a rendered graph.
func (DefaultKeyer) RenderKey(graphHash string, opts RenderKeyOpts) string {
	return hashKey("render", graphHash, opts)
}

func hashKey(kind string, parts ...any) string {
	data, _ := json.Marshal(parts)
	return kind + ":" + Hash(data)
}

// Hash returns the hex SHA-256 of data. Source text and serialized graphs
// are identified by it.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NullCache misses on every Get and drops every Set.
type NullCache struct{}

// NewNullCache returns a cache that stores nothing.
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NullCache) Delete(context.Context, string) error { return nil }

func (NullCache) Close() error { return nil }
