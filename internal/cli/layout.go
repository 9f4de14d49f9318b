package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/viewgraph/pkg/config"
	"github.com/matzehuels/viewgraph/pkg/viewgraph"
)

// layoutCommand creates the layout command for computing layouts locally.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output string
		table  bool
		flags  engineFlags
	)

	cmd := &cobra.Command{
		Use:   "layout [document.json]",
		Short: "Compute a layout from a graph document",
		Long: `Compute a layout from a graph document without a server.

The layout command runs the same pipeline as POST /layout and writes the
response (inputs, outputs and nodes mapped to x/y positions) to a JSON file
that can be browsed with 'inspect'.

Results are cached when a cache backend is configured.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cfg); err != nil {
				return err
			}
			return c.runLayout(cmd.Context(), cfg, args[0], output, table)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")
	cmd.Flags().BoolVar(&table, "table", false, "also print the positions as a table")
	flags.register(cmd)

	return cmd
}

// runLayout reads the document, computes the layout, and writes output.
func (c *CLI) runLayout(ctx context.Context, cfg *config.Config, input, output string, table bool) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read document %s: %w", input, err)
	}

	runner, err := c.newRunner(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Computing %s layout...", runner.Engine.Name()))
	spinner.Start()

	result, err := runner.Execute(ctx, data)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return fmt.Errorf("compute layout: %w", err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	outputPath := output
	if outputPath == "" {
		outputPath = defaultOutputPath(input)
	}
	if err := viewgraph.WriteResponseFile(result.Response, outputPath); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	printSuccess("Layout complete")
	printFile(outputPath)
	printStats(result.Stats.Vertices, result.Stats.Edges, result.CacheHit)
	if table {
		printNewline()
		fmt.Println(renderResponseTable(result.Response))
	}
	printNewline()
	printNextStep("Inspect", appName+" inspect "+outputPath)

	return nil
}

// defaultOutputPath derives "<input>.layout.json" from the document path.
func defaultOutputPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".layout.json"
}
