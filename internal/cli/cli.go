// Package cli implements the astkg command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/astkg/internal/config"
	"github.com/matzehuels/astkg/pkg/buildinfo"
	"github.com/matzehuels/astkg/pkg/cache"
	"github.com/matzehuels/astkg/pkg/kg"
	"github.com/matzehuels/astkg/pkg/pipeline"
	"github.com/matzehuels/astkg/pkg/store"

	apperr "github.com/matzehuels/astkg/pkg/errors"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "astkg"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Config is loaded before any command runs.
	Config config.Config

	configPath string
	noCache    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "astkg converts Python syntax trees to knowledge graphs and back",
		Long: `astkg encodes Python modules as knowledge graphs of typed nodes and
labelled edges, and decodes such graphs back into equivalent Python source.

Graphs are written as JSON, kept in a triple store, rendered with Graphviz,
or served over HTTP.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.Config = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/astkg/config.toml)")
	root.PersistentFlags().BoolVar(&c.noCache, "no-cache", false, "disable the graph and render cache")

	// Register all subcommands
	root.AddCommand(c.encodeCommand())
	root.AddCommand(c.decodeCommand())
	root.AddCommand(c.roundTripCommand())
	root.AddCommand(c.statsCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.dotCommand())
	root.AddCommand(c.storeCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner & Store Factories
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context) (*pipeline.Runner, error) {
	ch, err := c.newCache(ctx)
	if err != nil {
		return nil, err
	}
	var keyer cache.Keyer
	if p := c.Config.Cache.KeyPrefix; p != "" {
		keyer = cache.NewScopedKeyer(nil, p)
	}
	r := pipeline.NewRunner(ch, keyer, c.Logger)
	r.TTL = c.Config.Cache.TTL.Duration
	return r, nil
}

// newCache opens the configured cache. A file cache that cannot be
// created disables caching rather than failing the command.
func (c *CLI) newCache(ctx context.Context) (cache.Cache, error) {
	cc := c.Config.Cache
	if c.noCache || !cc.Enabled {
		return cache.NewNullCache(), nil
	}
	if cc.Backend == config.CacheRedis {
		return cache.NewRedisCache(ctx, cc.RedisAddr, cc.RedisDB)
	}
	dir, err := c.fileCacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Warn("cache disabled", "dir", dir, "err", err)
		return cache.NewNullCache(), nil
	}
	return fc, nil
}

// openStore opens the configured triple store.
func (c *CLI) openStore(ctx context.Context) (store.Store, error) {
	cfg := c.Config.Store
	cfg.Logger = c.Logger
	return store.Open(ctx, cfg)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/astkg/).
func cacheDir() (string, error) {
	return config.CacheDir()
}

// =============================================================================
// Options Helpers
// =============================================================================

// codecFlags are the codec switches shared by several commands. Unset
// flags fall back to the [codec] config section.
type codecFlags struct {
	maxDepth int
	lenient  bool
	parallel bool
	refresh  bool
}

func (f *codecFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.maxDepth, "max-depth", 0, "maximum nesting depth (default from config, 1000)")
	cmd.Flags().BoolVar(&f.lenient, "lenient", false, "replace statements that fail to decode with pass")
	cmd.Flags().BoolVar(&f.parallel, "parallel", false, "decode top-level statements concurrently")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "bypass cached graphs and renderings")
}

// options merges f over the loaded configuration.
func (c *CLI) options(f codecFlags) pipeline.Options {
	opts := pipeline.Options{
		MaxDepth: f.maxDepth,
		Lenient:  f.lenient || c.Config.Codec.Lenient,
		Parallel: f.parallel || c.Config.Codec.Parallel,
		Refresh:  f.refresh,
		Logger:   c.Logger,
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = c.Config.Codec.MaxDepth
	}
	opts.SetDefaults()
	return opts
}

// isSource reports whether path names Python source rather than a graph.
func isSource(path string) bool {
	return strings.HasSuffix(path, ".py") || strings.HasSuffix(path, ".pyi")
}

// loadGraph reads a graph from a JSON file, from stdin ("-"), or by
// encoding a Python file. The bool reports a cache hit.
func (c *CLI) loadGraph(ctx context.Context, r *pipeline.Runner, path string, opts pipeline.Options) (*kg.Graph, bool, error) {
	if isSource(path) {
		res, err := r.EncodeFile(ctx, path, opts)
		if err != nil {
			return nil, false, err
		}
		return res.Graph, res.CacheHit, nil
	}
	if path == "-" {
		g, err := kg.ReadGraph(os.Stdin)
		return g, false, err
	}
	g, err := kg.ReadGraphFile(path)
	return g, false, err
}

// validateInput checks that exactly one of a path argument or --id is set.
func validateInput(path, id string) error {
	if (path == "") == (id == "") {
		return apperr.New(apperr.ErrCodeInvalidInput, "give exactly one of an input file or --id")
	}
	return nil
}

// graphFor loads the graph named by path, or by id from the store. It
// returns the graph and a display name.
func (c *CLI) graphFor(ctx context.Context, r *pipeline.Runner, path, id string, opts pipeline.Options) (*kg.Graph, string, error) {
	if id == "" {
		g, _, err := c.loadGraph(ctx, r, path, opts)
		return g, path, err
	}
	st, err := c.openStore(ctx)
	if err != nil {
		return nil, "", err
	}
	defer st.Close()
	g, err := store.LoadGraph(ctx, st, id)
	return g, id, err
}
