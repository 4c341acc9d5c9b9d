package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/astkg/pkg/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noStore bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the codec over HTTP",
		Long: `Serve encode, decode and round-trip over HTTP, together with the
/v1/graphs routes backed by the configured triple store.

Examples:
  astkg serve
  astkg serve --addr 127.0.0.1:9000 --no-store`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = c.Config.Server.Addr
			}

			r, err := c.newRunner(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			opts := server.Options{
				MaxBodyBytes:   c.Config.Server.MaxBodyBytes,
				RequestTimeout: c.Config.Server.RequestTimeout.Duration,
				Pipeline:       c.options(codecFlags{}),
			}

			var srv *server.Server
			if noStore {
				srv = server.New(r, nil, c.Logger, opts)
			} else {
				st, err := c.openStore(ctx)
				if err != nil {
					return err
				}
				defer st.Close()
				srv = server.New(r, st, c.Logger, opts)
			}

			storeDesc := "disabled"
			if !noStore {
				storeDesc = c.Config.Store.Backend
			}
			cacheDesc := "disabled"
			if c.Config.Cache.Enabled && !c.noCache {
				cacheDesc = c.Config.Cache.Backend
			}
			printInfo("Serving astkg %s", StyleLink.Render(listenURL(addr)))
			printKeyValue("store", storeDesc)
			printKeyValue("cache", cacheDesc)
			printKeyValue("max depth", strconv.Itoa(opts.Pipeline.MaxDepth))
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "disable the /v1/graphs routes")
	return cmd
}

// listenURL turns a listen address such as ":8080" into a clickable URL.
func listenURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}
