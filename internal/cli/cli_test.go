package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/astkg/internal/config"
	"github.com/matzehuels/astkg/pkg/kg"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

const sample = `import os
def greet(name):
    return 'hello ' + name
print(greet(os.name))
`

// setup writes a config that keeps graphs in a sqlite file under a temp
// dir and disables the cache, and returns the dir.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := `[store]
backend = "sqlite"
path = "` + filepath.ToSlash(filepath.Join(dir, "graphs.db")) + `"

[cache]
enabled = false
`
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvPath, path)
	return dir
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestEncodeDecodeCommands(t *testing.T) {
	dir := setup(t)
	src := writeFile(t, dir, "app.py", sample)
	graph := filepath.Join(dir, "app.json")
	out := filepath.Join(dir, "out.py")

	if err := runCLI(t, "encode", src, "-o", graph); err != nil {
		t.Fatalf("encode: %v", err)
	}
	g, err := kg.ReadGraphFile(graph)
	if err != nil {
		t.Fatalf("ReadGraphFile: %v", err)
	}
	if _, ok := g.Node(kg.RootID); !ok {
		t.Errorf("encoded graph has no %s", kg.RootID)
	}

	if err := runCLI(t, "decode", graph, "-o", out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := readFile(t, out); got != sample {
		t.Errorf("decoded source = %q, want %q", got, sample)
	}

	if err := runCLI(t, "validate", graph); err != nil {
		t.Errorf("validate: %v", err)
	}
	if err := runCLI(t, "roundtrip", src); err != nil {
		t.Errorf("roundtrip: %v", err)
	}
}

func TestEncodeManyCommand(t *testing.T) {
	dir := setup(t)
	a := writeFile(t, dir, "a.py", sample)
	b := writeFile(t, dir, "b.py", "x = 1\n")
	bad := writeFile(t, dir, "bad.py", "def (:\n")
	outDir := filepath.Join(dir, "graphs")

	if err := runCLI(t, "encode", a, b, "-o", outDir); err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, name := range []string{"a.json", "b.json"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	err := runCLI(t, "encode", a, bad, "-o", outDir)
	if !apperr.Is(err, apperr.ErrCodeParse) {
		t.Errorf("encode with a broken file = %v, want %s", err, apperr.ErrCodeParse)
	}

	err = runCLI(t, "encode", a, b)
	if !apperr.Is(err, apperr.ErrCodeInvalidInput) {
		t.Errorf("encode without --output = %v, want %s", err, apperr.ErrCodeInvalidInput)
	}
}

func TestEncodeManyKeepsPackages(t *testing.T) {
	dir := setup(t)
	t.Chdir(dir)
	for _, pkg := range []string{"a", "b"} {
		if err := os.MkdirAll(filepath.Join(dir, pkg), 0o755); err != nil {
			t.Fatal(err)
		}
		writeFile(t, dir, filepath.Join(pkg, "mod.py"), "x = 1\n")
	}

	if err := runCLI(t, "encode", "a/mod.py", "b/mod.py", "-o", "graphs"); err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, name := range []string{"graphs/a/mod.json", "graphs/b/mod.json"} {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name))); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestStoreCommands(t *testing.T) {
	dir := setup(t)
	src := writeFile(t, dir, "app.py", sample)
	out := filepath.Join(dir, "out.py")
	fetched := filepath.Join(dir, "fetched.json")

	if err := runCLI(t, "store", "put", src, "--id", "app"); err != nil {
		t.Fatalf("store put: %v", err)
	}
	if err := runCLI(t, "store", "get", "app", "-o", fetched); err != nil {
		t.Fatalf("store get: %v", err)
	}
	if _, err := kg.ReadGraphFile(fetched); err != nil {
		t.Errorf("fetched graph unreadable: %v", err)
	}
	if err := runCLI(t, "decode", "--id", "app", "-o", out); err != nil {
		t.Fatalf("decode --id: %v", err)
	}
	if got := readFile(t, out); got != sample {
		t.Errorf("decoded stored source = %q, want %q", got, sample)
	}

	if err := runCLI(t, "store", "rm", "app"); err != nil {
		t.Fatalf("store rm: %v", err)
	}
	err := runCLI(t, "store", "get", "app")
	if !apperr.Is(err, apperr.ErrCodeGraphNotFound) {
		t.Errorf("get after rm = %v, want %s", err, apperr.ErrCodeGraphNotFound)
	}

	err = runCLI(t, "store", "put", src, "--id", "bad id")
	if !apperr.Is(err, apperr.ErrCodeInvalidGraphID) {
		t.Errorf("put with bad id = %v, want %s", err, apperr.ErrCodeInvalidGraphID)
	}
}

func TestCompleteGraphIDs(t *testing.T) {
	dir := setup(t)
	src := writeFile(t, dir, "app.py", sample)
	for _, id := range []string{"app", "api", "lib"} {
		if err := runCLI(t, "store", "put", src, "--id", id); err != nil {
			t.Fatalf("store put %s: %v", id, err)
		}
	}

	c := New(io.Discard, LogInfo)
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	got, directive := c.completeGraphIDs(cmd, []string{"api"}, "a")
	if directive != cobra.ShellCompDirectiveNoFileComp {
		t.Errorf("directive = %v, want NoFileComp", directive)
	}
	if len(got) != 1 || got[0] != "app" {
		t.Errorf("completeGraphIDs = %v, want [app]", got)
	}
}

func TestDotCommand(t *testing.T) {
	dir := setup(t)
	src := writeFile(t, dir, "app.py", sample)
	out := filepath.Join(dir, "app.dot")

	if err := runCLI(t, "dot", src, "-o", out); err != nil {
		t.Fatalf("dot: %v", err)
	}
	if got := readFile(t, out); !strings.HasPrefix(got, "digraph G {") {
		t.Errorf("dot output starts with %q", got[:min(len(got), 20)])
	}

	err := runCLI(t, "dot", src, "-f", "gif")
	if !apperr.Is(err, apperr.ErrCodeInvalidFormat) {
		t.Errorf("dot -f gif = %v, want %s", err, apperr.ErrCodeInvalidFormat)
	}
}

func TestConfigErrors(t *testing.T) {
	dir := t.TempDir()
	err := runCLI(t, "--config", filepath.Join(dir, "missing.toml"), "cache", "path")
	if !apperr.Is(err, apperr.ErrCodeFileNotFound) {
		t.Errorf("missing --config = %v, want %s", err, apperr.ErrCodeFileNotFound)
	}

	path := writeFile(t, dir, "bad.toml", "[codec]\nmax_dpeth = 3\n")
	err = runCLI(t, "--config", path, "cache", "path")
	if !apperr.Is(err, apperr.ErrCodeInvalidFormat) {
		t.Errorf("unknown key = %v, want %s", err, apperr.ErrCodeInvalidFormat)
	}
}

func TestOptions(t *testing.T) {
	c := New(io.Discard, LogInfo)
	c.Config.Codec = config.Codec{MaxDepth: 50, Lenient: true}

	opts := c.options(codecFlags{})
	if opts.MaxDepth != 50 {
		t.Errorf("MaxDepth = %d, want 50 from config", opts.MaxDepth)
	}
	if !opts.Lenient {
		t.Error("Lenient = false, want true from config")
	}

	opts = c.options(codecFlags{maxDepth: 7, parallel: true})
	if opts.MaxDepth != 7 {
		t.Errorf("MaxDepth = %d, want 7 from flag", opts.MaxDepth)
	}
	if !opts.Parallel {
		t.Error("Parallel = false, want true from flag")
	}
}

func TestValidateInput(t *testing.T) {
	tests := []struct {
		path, id string
		wantErr  bool
	}{
		{"a.json", "", false},
		{"", "app", false},
		{"", "", true},
		{"a.json", "app", true},
	}
	for _, tt := range tests {
		err := validateInput(tt.path, tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateInput(%q, %q) = %v, wantErr %v", tt.path, tt.id, err, tt.wantErr)
		}
	}
}

func TestGraphFileName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"app.py", "app.json"},
		{"src/pkg/mod.py", filepath.FromSlash("src/pkg/mod.json")},
		{"./stubs/types.pyi", filepath.FromSlash("stubs/types.json")},
		{"noext", "noext.json"},
		{"/abs/path/mod.py", "mod.json"},
		{"../outside/mod.py", "mod.json"},
	}
	for _, tt := range tests {
		if got := graphFileName(tt.in); got != tt.want {
			t.Errorf("graphFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsSource(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"app.py", true},
		{"types.pyi", true},
		{"app.json", false},
		{"-", false},
	}
	for _, tt := range tests {
		if got := isSource(tt.path); got != tt.want {
			t.Errorf("isSource(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct{ path, want string }{
		{"", "dot"},
		{"out.svg", "svg"},
		{"OUT.PNG", "png"},
		{"out.gv", "dot"},
	}
	for _, tt := range tests {
		if got := formatFromPath(tt.path); got != tt.want {
			t.Errorf("formatFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestFirstDiffLine(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"x\ny\n", "x\nz\n", 2},
		{"a", "b", 1},
		{"x\ny\n", "x\ny\nz\n", 3},
	}
	for _, tt := range tests {
		if got := firstDiffLine(tt.a, tt.b); got != tt.want {
			t.Errorf("firstDiffLine(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCountTable(t *testing.T) {
	out := countTable("Kind", map[string]int{"Statement": 3, "Name": 5})
	for _, want := range []string{"Kind", "Count", "Statement", "Name", "5"} {
		if !strings.Contains(out, want) {
			t.Errorf("countTable output lacks %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Name") > strings.Index(out, "Statement") {
		t.Error("countTable should list larger counts first")
	}
}

func TestNodeBrowser(t *testing.T) {
	g := kg.New()
	mustAdd(t, g.AddNode(kg.Node{ID: kg.RootID, Kind: kg.KindModule}))
	mustAdd(t, g.AddNode(kg.Node{ID: "s0", Kind: kg.KindStatement, Attrs: kg.Attrs{kg.AttrKind: "Pass"}}))
	mustAdd(t, g.AddNode(kg.Node{ID: "s1", Kind: kg.KindStatement, Attrs: kg.Attrs{kg.AttrKind: "Break"}}))
	mustAdd(t, g.AddEdge(kg.Edge{Src: kg.RootID, Rel: kg.RelHasStatement, Dst: "s0"}))
	mustAdd(t, g.AddEdge(kg.Edge{Src: kg.RootID, Rel: kg.RelHasStatement, Dst: "s1"}))

	var m tea.Model = NewNodeBrowserModel(g)
	press := func(key tea.KeyType) {
		m, _ = m.Update(tea.KeyMsg{Type: key})
	}

	press(tea.KeyDown)
	press(tea.KeyEnter)
	if got := m.(NodeBrowserModel).Current; got != "s1" {
		t.Fatalf("Current after down+enter = %q, want s1", got)
	}
	if view := m.View(); !strings.Contains(view, "Break") || !strings.Contains(view, kg.RelHasStatement) {
		t.Errorf("view lacks node details or breadcrumb:\n%s", view)
	}

	press(tea.KeyEnter) // leaf: no-op
	press(tea.KeyBackspace)
	bm := m.(NodeBrowserModel)
	if bm.Current != kg.RootID || bm.Cursor != 1 {
		t.Errorf("after back: Current = %q, Cursor = %d; want %q, 1", bm.Current, bm.Cursor, kg.RootID)
	}

	press(tea.KeyBackspace) // at root: no-op
	if got := m.(NodeBrowserModel).Current; got != kg.RootID {
		t.Errorf("back at root moved to %q", got)
	}
}

func mustAdd(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
