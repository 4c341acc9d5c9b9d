package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

type decodeFlags struct {
	codecFlags
	output string
	id     string
}

// decodeCommand creates the decode command.
func (c *CLI) decodeCommand() *cobra.Command {
	var flags decodeFlags

	cmd := &cobra.Command{
		Use:   "decode [graph.json|-]",
		Short: "Decode a knowledge graph back into Python source",
		Long: `Decode a knowledge graph back into Python source.

The graph is read from a JSON file, from stdin ("-"), or with --id from the
configured triple store. Nodes of unknown kind decode as pass or None and
are reported as warnings.

Examples:
  astkg decode app.json -o app.py
  astkg encode app.py | astkg decode -
  astkg decode --id app --lenient`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return c.runDecode(cmd.Context(), input, flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().StringVar(&flags.id, "id", "", "decode the stored graph with this id")
	_ = cmd.RegisterFlagCompletionFunc("id", c.completeGraphIDs)

	return cmd
}

func (c *CLI) runDecode(ctx context.Context, input string, flags decodeFlags) error {
	if err := validateInput(input, flags.id); err != nil {
		return err
	}

	r, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	opts := c.options(flags.codecFlags)

	g, name, err := c.graphFor(ctx, r, input, flags.id, opts)
	if err != nil {
		return err
	}

	res, err := r.Decode(ctx, name, g, opts)
	if err != nil {
		return err
	}
	printWarnings(res.Warnings)

	w, err := openOutput(flags.output)
	if err != nil {
		return err
	}
	defer w.Close()
	if _, err := fmt.Fprint(w, res.Text); err != nil {
		return err
	}
	if flags.output != "" {
		printSuccess("Decoded %d statements", len(res.Module.Body))
		printFile(flags.output)
	}
	return nil
}

// roundTripCommand creates the roundtrip command.
func (c *CLI) roundTripCommand() *cobra.Command {
	var flags codecFlags

	cmd := &cobra.Command{
		Use:   "roundtrip <file.py>...",
		Short: "Check that files survive encode then decode unchanged",
		Long: `Encode each file, decode the graph, and compare the printed result with
the printed parse of the original. Exits non-zero if any file differs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRoundTrip(cmd.Context(), args, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *CLI) runRoundTrip(ctx context.Context, paths []string, flags codecFlags) error {
	r, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	opts := c.options(flags)
	prog := newProgress(loggerFromContext(ctx))

	differ := 0
	for _, path := range paths {
		res, err := r.RoundTripFile(ctx, path, opts)
		if err != nil {
			differ++
			printFailure(path, err)
			continue
		}
		if !res.Equal {
			differ++
			printError("%s differs after decoding", path)
			printDetail("first difference at line %d", firstDiffLine(res.Original, res.Decode.Text))
			continue
		}
		printSuccess("%s", path)
		printGraphStats(res.Encode.Graph.Stats(), res.Encode.CacheHit)
	}
	if differ > 0 {
		err := apperr.New(apperr.ErrCodeInternal, "%d of %d files did not round-trip", differ, len(paths))
		prog.fail(err)
		return err
	}
	prog.done("Round-tripped %d files", len(paths))
	return nil
}

// firstDiffLine returns the 1-based line where a and b first differ.
func firstDiffLine(a, b string) int {
	line := 1
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return line
		}
		if a[i] == '\n' {
			line++
		}
	}
	return line
}
