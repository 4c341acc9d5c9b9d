package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/astkg/pkg/kg"
	"github.com/matzehuels/astkg/pkg/pipeline"
	"github.com/matzehuels/astkg/pkg/store"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

type encodeFlags struct {
	codecFlags
	output  string
	triples bool
	save    bool
	id      string
	jobs    int
}

// encodeCommand creates the encode command.
func (c *CLI) encodeCommand() *cobra.Command {
	var flags encodeFlags

	cmd := &cobra.Command{
		Use:   "encode <file.py>...",
		Short: "Encode Python source files as knowledge graphs",
		Long: `Encode Python source files as knowledge graphs.

With one input the graph is written to --output or stdout. With several
inputs --output names a directory that receives one <name>.json per file;
files are encoded concurrently.

Examples:
  astkg encode app.py -o app.json
  astkg encode --triples app.py
  astkg encode --save --id app app.py
  astkg encode -o graphs/ src/*.py`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return c.runEncode(cmd.Context(), args[0], flags)
			}
			return c.runEncodeMany(cmd.Context(), args, flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file, or directory for several inputs (stdout if empty)")
	cmd.Flags().BoolVar(&flags.triples, "triples", false, "write (source, relation, destination) triples instead of the graph document")
	cmd.Flags().BoolVar(&flags.save, "save", false, "store the graph in the configured triple store")
	cmd.Flags().StringVar(&flags.id, "id", "", "graph id for --save (random UUID if empty)")
	cmd.Flags().IntVarP(&flags.jobs, "jobs", "j", 0, "concurrent encodings for several inputs (default GOMAXPROCS)")

	return cmd
}

func (c *CLI) runEncode(ctx context.Context, path string, flags encodeFlags) error {
	r, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	res, err := r.EncodeFile(ctx, path, c.options(flags.codecFlags))
	if err != nil {
		return err
	}

	if flags.save {
		st, err := c.openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		id, err := store.SaveGraph(ctx, st, flags.id, res.Graph)
		if err != nil {
			return err
		}
		printSuccess("Stored %s as %s", path, StyleHighlight.Render(id))
		printGraphStats(res.Graph.Stats(), res.CacheHit)
		if flags.output == "" {
			return nil
		}
	}

	w, err := openOutput(flags.output)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := writeEncoded(w, res.Graph, flags.triples); err != nil {
		return err
	}
	if flags.output != "" {
		printSuccess("Encoded %s", path)
		printGraphStats(res.Graph.Stats(), res.CacheHit)
		printFile(flags.output)
	}
	return nil
}

func (c *CLI) runEncodeMany(ctx context.Context, paths []string, flags encodeFlags) error {
	if flags.output == "" && !flags.save {
		return apperr.New(apperr.ErrCodeInvalidInput, "several inputs need --output <dir> or --save")
	}
	if flags.save && flags.id != "" {
		return apperr.New(apperr.ErrCodeInvalidInput, "--id names a single graph; omit it for several inputs")
	}
	if flags.output != "" {
		if err := os.MkdirAll(flags.output, 0o755); err != nil {
			return apperr.Wrap(apperr.ErrCodeInvalidPath, err, "create %s", flags.output)
		}
	}

	r, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	opts := c.options(flags.codecFlags)
	opts.Concurrency = flags.jobs
	// Batch encodes keep going past broken files and report them at the end.
	opts.Lenient = true

	prog := newProgress(loggerFromContext(ctx))
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Encoding %d files...", len(paths)))
	opts.Progress = spinner.Progress("Encoding")
	spinner.Start()
	results, err := r.EncodeFiles(ctx, paths, opts)
	if err != nil {
		spinner.StopWithError("Encoding failed")
		prog.fail(err)
		return err
	}
	spinner.StopWithSuccess(fmt.Sprintf("Encoded %d files", len(results)))

	var st store.Store
	if flags.save {
		if st, err = c.openStore(ctx); err != nil {
			return err
		}
		defer st.Close()
	}

	failed := 0
	for _, fr := range results {
		if fr.Err != nil {
			failed++
			printFailure(fr.Path, fr.Err)
			continue
		}
		if err := c.emitBatchResult(ctx, st, fr, flags); err != nil {
			return err
		}
	}
	prog.done("Encoded %d of %d files", len(results)-failed, len(results))
	if failed > 0 {
		return apperr.New(apperr.ErrCodeParse, "%d of %d files failed", failed, len(results))
	}
	return nil
}

func (c *CLI) emitBatchResult(ctx context.Context, st store.Store, fr pipeline.FileResult, flags encodeFlags) error {
	g := fr.Result.Graph
	if st != nil {
		id, err := store.SaveGraph(ctx, st, "", g)
		if err != nil {
			return err
		}
		printSuccess("%s %s %s", fr.Path, StyleDim.Render(iconArrow), StyleHighlight.Render(id))
	}
	if flags.output == "" {
		return nil
	}
	out := filepath.Join(flags.output, graphFileName(fr.Path))
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidPath, err, "create %s", filepath.Dir(out))
	}
	f, err := os.Create(out)
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidPath, err, "create %s", out)
	}
	defer f.Close()
	if err := writeEncoded(f, g, flags.triples); err != nil {
		return err
	}
	if st == nil {
		printSuccess("%s", fr.Path)
	}
	printFile(out)
	return nil
}

// graphFileName maps an input to its file under the output directory.
// Relative inputs keep their directories, so pkg/a/mod.py and
// pkg/b/mod.py do not collide; paths that would escape the output
// directory fall back to the base name.
func graphFileName(path string) string {
	rel := filepath.ToSlash(filepath.Clean(path))
	if apperr.ValidatePath(rel) != nil {
		rel = filepath.Base(path)
	}
	return filepath.FromSlash(strings.TrimSuffix(rel, filepath.Ext(rel)) + ".json")
}

func writeEncoded(w io.Writer, g *kg.Graph, triples bool) error {
	if !triples {
		return kg.WriteGraph(g, w)
	}
	ts, err := kg.ToTriples(g)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ts)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput opens path for writing, or stdout if path is empty.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidPath, err, "create %s", path)
	}
	return f, nil
}
