package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/astkg/pkg/render/dot"
)

type dotFlags struct {
	codecFlags
	format    string
	detailed  bool
	direction string
	output    string
	id        string
}

// dotCommand creates the dot command.
func (c *CLI) dotCommand() *cobra.Command {
	var flags dotFlags

	cmd := &cobra.Command{
		Use:   "dot [file.py|graph.json|-]",
		Short: "Render a knowledge graph with Graphviz",
		Long: `Render a knowledge graph as DOT, SVG or PNG.

The input is a Python file (encoded first), a graph JSON file, stdin ("-"),
or with --id a stored graph. When --output is set and --format is not, the
format is taken from the output extension.

Examples:
  astkg dot app.py > app.dot
  astkg dot app.json -o app.svg
  astkg dot --id app -f png --detailed --direction LR -o app.png`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			if !cmd.Flags().Changed("format") {
				flags.format = formatFromPath(flags.output)
			}
			return c.runDot(cmd.Context(), input, flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&flags.format, "format", "f", dot.FormatDOT, "output format: dot, svg, png")
	cmd.Flags().BoolVar(&flags.detailed, "detailed", false, "show every node attribute")
	cmd.Flags().StringVar(&flags.direction, "direction", "", "Graphviz rankdir: TB, LR, BT, RL")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().StringVar(&flags.id, "id", "", "render the stored graph with this id")
	_ = cmd.RegisterFlagCompletionFunc("id", c.completeGraphIDs)

	return cmd
}

func (c *CLI) runDot(ctx context.Context, input string, flags dotFlags) error {
	if err := validateInput(input, flags.id); err != nil {
		return err
	}

	r, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	opts := c.options(flags.codecFlags)
	opts.Format = flags.format
	opts.Detailed = flags.detailed
	opts.Direction = strings.ToUpper(flags.direction)

	g, _, err := c.graphFor(ctx, r, input, flags.id, opts)
	if err != nil {
		return err
	}

	spinner := newSpinnerWithContext(ctx, "Rendering "+opts.Format+"...")
	spinner.Start()
	out, hit, err := r.Render(ctx, g, opts)
	if err != nil {
		spinner.StopWithError("Rendering failed")
		return err
	}
	spinner.Stop()

	if flags.output == "" {
		_, err := os.Stdout.Write(out)
		return err
	}
	w, err := openOutput(flags.output)
	if err != nil {
		return err
	}
	defer w.Close()
	if _, err := w.Write(out); err != nil {
		return err
	}
	printSuccess("Rendered %s", opts.Format)
	printGraphStats(g.Stats(), hit)
	printFile(flags.output)
	return nil
}

// formatFromPath infers the render format from an output extension.
func formatFromPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if dot.ValidFormats[ext] {
		return ext
	}
	return dot.FormatDOT
}
