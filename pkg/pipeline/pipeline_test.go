package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/matzehuels/astkg/pkg/cache"
	"github.com/matzehuels/astkg/pkg/kg"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// sample is in the printer's canonical layout.
const sample = `import os
def greet(name, greeting='hello'):
    return greeting + ' ' + name
class Greeter(object):
    count = 0
    def run(self):
        for i in range(3):
            print(greet(os.name))
`

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"svg", false},
		{"png", false},
		{"dot", false},
		{"pdf", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
		if err != nil && !apperr.Is(err, apperr.ErrCodeInvalidFormat) {
			t.Errorf("ValidateFormat(%q) code = %v, want %v", tt.format, apperr.GetCode(err), apperr.ErrCodeInvalidFormat)
		}
	}
}

func TestSetDefaults(t *testing.T) {
	var o Options
	o.SetDefaults()
	if o.MaxDepth != DefaultMaxDepth {
		t.Errorf("MaxDepth = %d, want %d", o.MaxDepth, DefaultMaxDepth)
	}
	if o.MaxFileSize != DefaultMaxFileSize {
		t.Errorf("MaxFileSize = %d, want %d", o.MaxFileSize, DefaultMaxFileSize)
	}
	if o.Format != DefaultFormat {
		t.Errorf("Format = %q, want %q", o.Format, DefaultFormat)
	}
	if o.Concurrency < 1 {
		t.Errorf("Concurrency = %d, want >= 1", o.Concurrency)
	}
	if o.Logger == nil {
		t.Error("Logger = nil, want discard logger")
	}

	o = Options{MaxDepth: 7, Format: "png"}
	o.SetDefaults()
	if o.MaxDepth != 7 || o.Format != "png" {
		t.Errorf("SetDefaults overwrote explicit values: %+v", o)
	}
}

func TestCodecOptions(t *testing.T) {
	o := Options{Lenient: true, Parallel: true}
	o.SetDefaults()
	if got := len(o.CodecOptions()); got != 4 {
		t.Errorf("len(CodecOptions) = %d, want 4", got)
	}
	o = Options{}
	o.SetDefaults()
	if got := len(o.CodecOptions()); got != 2 {
		t.Errorf("len(CodecOptions) = %d, want 2", got)
	}
}

// countingCache records cache traffic around a real backend.
type countingCache struct {
	cache.Cache
	gets, hits int
}

func (c *countingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := c.Cache.Get(ctx, key)
	c.gets++
	if ok {
		c.hits++
	}
	return data, ok, err
}

func newRunner(t *testing.T) (*Runner, *countingCache) {
	t.Helper()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	cc := &countingCache{Cache: fc}
	r := NewRunner(cc, nil, nil)
	t.Cleanup(func() { r.Close() })
	return r, cc
}

func TestEncodeDecode(t *testing.T) {
	ctx := context.Background()
	r, _ := newRunner(t)

	enc, err := r.Encode(ctx, "sample.py", []byte(sample), Options{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if enc.CacheHit {
		t.Error("first Encode reported a cache hit")
	}
	if enc.GraphHash == "" {
		t.Error("GraphHash is empty")
	}
	if _, ok := enc.Graph.Node(kg.RootID); !ok {
		t.Errorf("graph has no %s node", kg.RootID)
	}

	dec, err := r.Decode(ctx, "sample.py", enc.Graph, Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(dec.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", dec.Warnings)
	}
	if len(dec.Module.Body) != 3 {
		t.Errorf("len(Body) = %d, want 3", len(dec.Module.Body))
	}
	if !strings.Contains(dec.Text, "def greet(name, greeting='hello'):") {
		t.Errorf("decoded text lost the function header:\n%s", dec.Text)
	}
}

func TestEncodeCache(t *testing.T) {
	ctx := context.Background()
	r, cc := newRunner(t)

	first, err := r.Encode(ctx, "a.py", []byte(sample), Options{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	second, err := r.Encode(ctx, "a.py", []byte(sample), Options{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !second.CacheHit {
		t.Error("second Encode missed the cache")
	}
	if first.GraphHash != second.GraphHash {
		t.Errorf("GraphHash = %s, want %s", second.GraphHash, first.GraphHash)
	}
	if second.Graph.NodeCount() != first.Graph.NodeCount() {
		t.Errorf("cached NodeCount = %d, want %d", second.Graph.NodeCount(), first.Graph.NodeCount())
	}

	gets := cc.gets
	third, err := r.Encode(ctx, "a.py", []byte(sample), Options{Refresh: true})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if third.CacheHit || cc.gets != gets {
		t.Error("Refresh consulted the cache")
	}

	other, err := r.Encode(ctx, "a.py", []byte(sample), Options{MaxDepth: 50})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if other.CacheHit {
		t.Error("different MaxDepth shared a cache entry")
	}
}

func TestEncodeErrors(t *testing.T) {
	ctx := context.Background()
	r, _ := newRunner(t)

	tests := []struct {
		name string
		src  string
		opts Options
		code apperr.Code
	}{
		{"syntax", "def (:\n", Options{}, apperr.ErrCodeParse},
		{"too large", sample, Options{MaxFileSize: 10}, apperr.ErrCodeInvalidInput},
		{"too deep", "x = ((((((1))))))\ny = [[[[[[[[1]]]]]]]]\n", Options{MaxDepth: 3}, apperr.ErrCodeDepthExceeded},
	}
	for _, tt := range tests {
		_, err := r.Encode(ctx, tt.name, []byte(tt.src), tt.opts)
		if !apperr.Is(err, tt.code) {
			t.Errorf("%s: error = %v, want code %s", tt.name, err, tt.code)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, _ := newRunner(t)

	res, err := r.RoundTrip(ctx, "sample.py", []byte(sample), Options{})
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if !res.Equal {
		t.Errorf("round trip differs:\noriginal:\n%s\ndecoded:\n%s", res.Original, res.Decode.Text)
	}
	if res.Original != sample {
		t.Errorf("Original = %q, want %q", res.Original, sample)
	}
}

func TestEncodeFiles(t *testing.T) {
	ctx := context.Background()
	r, _ := newRunner(t)
	dir := t.TempDir()

	var paths []string
	for i, src := range []string{"x = 1\n", "def f():\n    pass\n", "def (:\n"} {
		p := filepath.Join(dir, string(rune('a'+i))+".py")
		if err := os.WriteFile(p, []byte(src), 0o600); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	paths = append(paths, filepath.Join(dir, "missing.py"))

	if _, err := r.EncodeFiles(ctx, paths, Options{Concurrency: 2}); err == nil {
		t.Error("strict EncodeFiles succeeded with a broken file")
	}

	var mu sync.Mutex
	var calls []int
	progress := func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if total != len(paths) {
			t.Errorf("progress total = %d, want %d", total, len(paths))
		}
		calls = append(calls, done)
	}
	res, err := r.EncodeFiles(ctx, paths, Options{Lenient: true, Concurrency: 2, Progress: progress})
	if err != nil {
		t.Fatalf("lenient EncodeFiles: %v", err)
	}
	sort.Ints(calls)
	if want := []int{1, 2, 3, 4}; !slices.Equal(calls, want) {
		t.Errorf("progress calls = %v, want %v", calls, want)
	}
	if len(res) != len(paths) {
		t.Fatalf("len(results) = %d, want %d", len(res), len(paths))
	}
	for i, fr := range res {
		if fr.Path != paths[i] {
			t.Errorf("results[%d].Path = %s, want %s", i, fr.Path, paths[i])
		}
	}
	if res[0].Err != nil || res[1].Err != nil {
		t.Errorf("valid files failed: %v, %v", res[0].Err, res[1].Err)
	}
	if !apperr.Is(res[2].Err, apperr.ErrCodeParse) {
		t.Errorf("results[2].Err = %v, want parse error", res[2].Err)
	}
	if !apperr.Is(res[3].Err, apperr.ErrCodeFileNotFound) {
		t.Errorf("results[3].Err = %v, want file not found", res[3].Err)
	}
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	r, _ := newRunner(t)

	enc, err := r.Encode(ctx, "x.py", []byte("x = 1\n"), Options{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	out, hit, err := r.Render(ctx, enc.Graph, Options{Format: "dot"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if hit {
		t.Error("first Render reported a cache hit")
	}
	if !strings.HasPrefix(string(out), "digraph") {
		t.Errorf("Render(dot) = %q, want digraph source", out)
	}

	again, hit, err := r.Render(ctx, enc.Graph, Options{Format: "dot"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !hit || string(again) != string(out) {
		t.Error("second Render did not come from the cache")
	}

	if _, _, err := r.Render(ctx, enc.Graph, Options{Format: "gif"}); !apperr.Is(err, apperr.ErrCodeInvalidFormat) {
		t.Errorf("Render(gif) error = %v, want invalid format", err)
	}
}
