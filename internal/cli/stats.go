package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/astkg/pkg/codec"
	"github.com/matzehuels/astkg/pkg/kg"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// statsCommand creates the stats command.
func (c *CLI) statsCommand() *cobra.Command {
	var (
		flags  codecFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "stats <file.py|graph.json|->",
		Short: "Count nodes by kind and edges by relation family",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := c.newRunner(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			g, hit, err := c.loadGraph(ctx, r, args[0], c.options(flags))
			if err != nil {
				return err
			}
			s := g.Stats()
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			printStatsReport(args[0], s, hit)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the counts as JSON")
	return cmd
}

func printStatsReport(name string, s kg.Stats, cached bool) {
	fmt.Println(StyleTitle.Render(name))
	printGraphStats(s, cached)
	printNewline()

	kinds := make(map[string]int, len(s.ByKind))
	for k, n := range s.ByKind {
		kinds[string(k)] = n
	}
	fmt.Println(countTable("Kind", kinds))
	fmt.Println(countTable("Relation", s.ByFamily))
}

// countTable renders counts sorted by descending count, then name.
func countTable(header string, counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	rows := make([][]string, len(names))
	for i, k := range names {
		rows[i] = []string{k, strconv.Itoa(counts[k])}
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(header, "Count").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 1:
				return StyleNumber.Align(lipgloss.Right)
			default:
				return StyleValue
			}
		}).
		Render()
}

// validateCommand creates the validate command.
func (c *CLI) validateCommand() *cobra.Command {
	var flags codecFlags

	cmd := &cobra.Command{
		Use:   "validate <graph.json|->...",
		Short: "Check graphs for structural integrity",
		Long: `Check that each graph forms a tree rooted at the module node, that
indexed relations are contiguous, and that the graph decodes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate(cmd.Context(), args, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *CLI) runValidate(ctx context.Context, paths []string, flags codecFlags) error {
	r, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	opts := c.options(flags)

	invalid := 0
	for _, path := range paths {
		g, _, err := c.loadGraph(ctx, r, path, opts)
		if err == nil {
			err = validateGraph(g, opts.CodecOptions()...)
		}
		if err != nil {
			invalid++
			printFailure(path, err)
			continue
		}
		printSuccess("%s", path)
		printGraphStats(g.Stats(), false)
	}
	if invalid > 0 {
		return apperr.New(apperr.ErrCodeInvalidGraph, "%d of %d graphs invalid", invalid, len(paths))
	}
	return nil
}

// validateGraph runs the structural checks and a trial decode.
func validateGraph(g *kg.Graph, opts ...codec.Option) error {
	if err := kg.Validate(g); err != nil {
		return err
	}
	_, err := codec.NewDecoder(opts...).Decode(g, "")
	return err
}
