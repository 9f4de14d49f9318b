package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/viewgraph/pkg/buildinfo"
	"github.com/matzehuels/viewgraph/pkg/cache"
	"github.com/matzehuels/viewgraph/pkg/config"
	"github.com/matzehuels/viewgraph/pkg/layout"
	"github.com/matzehuels/viewgraph/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for display.
const appName = "viewgraph"

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

	configPath string
	verbose    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Viewgraph lays out model graphs for display",
		Long:         `Viewgraph turns a model graph document (inputs, outputs and nodes joined by named arguments) into 2-D positions for every entity. It runs as an HTTP service or computes layouts locally.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a TOML config file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	// Register all subcommands
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.requestCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig reads the configuration selected by --config. The configured
// log level applies unless --verbose was given.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if !c.verbose {
		c.SetLogLevel(cfg.LogLevel())
	}
	return cfg, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner with the configured engine and cache.
// The caller must Close the runner.
func (c *CLI) newRunner(ctx context.Context, cfg *config.Config) (*pipeline.Runner, error) {
	engine, err := layout.NewEngine(cfg.Layout.Engine)
	if err != nil {
		return nil, err
	}
	store, err := cache.New(ctx, cfg.CacheOptions())
	if err != nil {
		return nil, err
	}
	r := pipeline.NewRunner(engine, store, cfg.CacheKeyer(), c.Logger)
	r.TTL = cfg.Cache.TTL
	return r, nil
}

// =============================================================================
// Shared Flags
// =============================================================================

// engineFlags override the configured layout engine and cache backend.
type engineFlags struct {
	engine  string
	backend string
}

func (f *engineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.engine, "engine", "e", "", "layout engine: dot, layered (default from config)")
	cmd.Flags().StringVar(&f.backend, "cache", "", "cache backend: none, file, redis, mongo (default from config)")
}

// apply copies the flags that were given over cfg and revalidates it.
func (f engineFlags) apply(cfg *config.Config) error {
	if f.engine != "" {
		cfg.Layout.Engine = f.engine
	}
	if f.backend != "" {
		cfg.Cache.Backend = f.backend
	}
	return cfg.Validate()
}
