package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/astkg/pkg/store"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// storeCommand creates the store command with its subcommands.
func (c *CLI) storeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage graphs in the triple store",
		Long: `Manage graphs kept in the configured triple store.

The backend (memory, sqlite, badger, redis, mongo) is chosen by the [store]
section of the config file.`,
	}

	cmd.AddCommand(c.storePutCommand())
	cmd.AddCommand(c.storeGetCommand())
	cmd.AddCommand(c.storeListCommand())
	cmd.AddCommand(c.storeRmCommand())

	return cmd
}

func (c *CLI) storePutCommand() *cobra.Command {
	var (
		flags codecFlags
		id    string
	)

	cmd := &cobra.Command{
		Use:   "put <file.py|graph.json|->",
		Short: "Store a graph, encoding Python input first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if id != "" {
				if err := apperr.ValidateGraphID(id); err != nil {
					return err
				}
			}

			r, err := c.newRunner(ctx)
			if err != nil {
				return err
			}
			defer r.Close()
			g, hit, err := c.loadGraph(ctx, r, args[0], c.options(flags))
			if err != nil {
				return err
			}

			return c.withStore(ctx, func(st store.Store) error {
				stored, err := store.SaveGraph(ctx, st, id, g)
				if err != nil {
					return err
				}
				printSuccess("Stored %s as %s", args[0], StyleHighlight.Render(stored))
				printGraphStats(g.Stats(), hit)
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&id, "id", "", "graph id (random UUID if empty)")
	return cmd
}

func (c *CLI) storeGetCommand() *cobra.Command {
	var (
		output  string
		triples bool
	)

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Write a stored graph as JSON",
		Args:  cobra.ExactArgs(1),

		ValidArgsFunction: c.completeGraphIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withStore(ctx, func(st store.Store) error {
				g, err := store.LoadGraph(ctx, st, args[0])
				if err != nil {
					return err
				}
				w, err := openOutput(output)
				if err != nil {
					return err
				}
				defer w.Close()
				if err := writeEncoded(w, g, triples); err != nil {
					return err
				}
				if output != "" {
					printSuccess("Fetched %s", args[0])
					printFile(output)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().BoolVar(&triples, "triples", false, "write raw triples instead of the graph document")
	return cmd
}

func (c *CLI) storeListCommand() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored graph ids",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withStore(ctx, func(st store.Store) error {
				ids, err := st.List(ctx)
				if err != nil {
					return err
				}
				if quiet {
					for _, id := range ids {
						fmt.Println(id)
					}
					return nil
				}
				if len(ids) == 0 {
					printInfo("No graphs stored")
					printNextStep("Store one", "astkg store put app.py --id app")
					return nil
				}
				printInfo("%s backend, %d graphs", c.Config.Store.Backend, len(ids))
				for _, id := range ids {
					printDetail("%s", id)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print ids only")
	return cmd
}

func (c *CLI) storeRmCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Delete stored graphs",
		Args:    cobra.MinimumNArgs(1),

		ValidArgsFunction: c.completeGraphIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withStore(ctx, func(st store.Store) error {
				for _, id := range args {
					if err := st.Delete(ctx, id); err != nil {
						return err
					}
					printSuccess("Deleted %s", id)
				}
				return nil
			})
		},
	}
}

// withStore opens the configured store for the duration of fn.
func (c *CLI) withStore(ctx context.Context, fn func(store.Store) error) error {
	st, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}
