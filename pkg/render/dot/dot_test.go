package dot

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/astkg/pkg/codec"
	"github.com/matzehuels/astkg/pkg/kg"
	"github.com/matzehuels/astkg/pkg/pyast"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

func sample(t *testing.T) *kg.Graph {
	t.Helper()
	mod := &pyast.Module{Body: []pyast.Stmt{
		&pyast.Assign{
			Pos:     pyast.Pos{Lineno: 1},
			Targets: []pyast.Expr{&pyast.Name{ID: "answer", Ctx: pyast.Store}},
			Value:   pyast.Int(42),
		},
	}}
	g, err := codec.Encode(mod)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return g
}

func TestToDOT(t *testing.T) {
	src := ToDOT(sample(t), Options{})

	for _, want := range []string{
		"digraph G {",
		"rankdir=TB;",
		`"Module:<top>" -> "assign_0" [label="Has_Statement", style=solid];`,
		`"assign_0" -> "name_0" [label="Target", style=dashed];`,
		`label="name_0\nanswer"`,
		`label="literal_0\n42"`,
	} {
		if !strings.Contains(src, want) {
			t.Errorf("ToDOT output missing %q\n%s", want, src)
		}
	}
	if strings.Contains(src, "lineno:") {
		t.Error("attributes should only appear in detailed labels")
	}
}

func TestToDOTDetailed(t *testing.T) {
	src := ToDOT(sample(t), Options{Detailed: true, Direction: "LR"})
	if !strings.Contains(src, "rankdir=LR;") {
		t.Error("Direction should set rankdir")
	}
	if !strings.Contains(src, `lineno: 1`) {
		t.Errorf("detailed labels should list attributes\n%s", src)
	}
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	src := ToDOT(sample(t), Options{})

	out, err := Render(ctx, src, FormatDOT)
	if err != nil || string(out) != src {
		t.Errorf("Render(dot) = %q, %v, want source unchanged", out, err)
	}

	svg, err := Render(ctx, src, FormatSVG)
	if err != nil {
		t.Fatalf("Render(svg): %v", err)
	}
	if !bytes.Contains(svg, []byte("<svg")) || !bytes.Contains(svg, []byte("assign_0")) {
		t.Errorf("Render(svg) does not look like the graph:\n%s", svg)
	}

	png, err := RenderGraph(ctx, sample(t), FormatPNG, Options{})
	if err != nil {
		t.Fatalf("RenderGraph(png): %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("Render(png) should start with the PNG signature")
	}

	if _, err := Render(ctx, src, "pdf"); !apperr.Is(err, apperr.ErrCodeInvalidFormat) {
		t.Errorf("Render(pdf) error = %v, want %s", err, apperr.ErrCodeInvalidFormat)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="100pt" height="50pt" viewBox="0.00 0.00 100.00 50.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	got := string(normalizeViewBox(in))
	want := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100.00 50.00" width="100" height="50"><g/></svg>`
	if got != want {
		t.Errorf("normalizeViewBox = %s, want %s", got, want)
	}
}
