package cli

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/viewgraph/internal/server"
	"github.com/matzehuels/viewgraph/pkg/buildinfo"
	"github.com/matzehuels/viewgraph/pkg/config"
)

// serveCommand creates the serve command that runs the HTTP layout service.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr  string
		flags engineFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP layout service",
		Long: `Run the HTTP layout service.

The service answers POST /layout with the positions of every input, output
and node of the posted document, plus GET /healthz, /version and /metrics.
SIGINT or SIGTERM stops accepting connections and waits for in-flight
requests up to the configured shutdown timeout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if err := flags.apply(cfg); err != nil {
				return err
			}
			return c.runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default "+config.DefaultAddr+")")
	flags.register(cmd)

	return cmd
}

// runServe builds the runner and server and serves until ctx is done.
func (c *CLI) runServe(ctx context.Context, cfg *config.Config) error {
	logger := loggerFromContext(ctx)

	runner, err := c.newRunner(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	srv, err := server.New(cfg, runner, logger)
	if err != nil {
		return err
	}
	srv.Metrics().Register()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}
	logger.Debug("layout service ready", "version", buildinfo.Version)

	printSuccess("Layout service ready")
	printKeyValue("URL", StyleLink.Render("http://"+ln.Addr().String()))
	printKeyValue("Engine", runner.Engine.Name())
	printKeyValue("Cache", cfg.Cache.Backend)
	printNewline()

	return serveUntilDone(ctx, srv, ln, cfg.Server.ShutdownTimeout)
}

// serveUntilDone serves on ln until ctx is done, then shuts srv down
// gracefully, waiting at most timeout for in-flight requests.
func serveUntilDone(ctx context.Context, srv *server.Server, ln net.Listener, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
