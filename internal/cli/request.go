package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/viewgraph/pkg/buildinfo"
	"github.com/matzehuels/viewgraph/pkg/client"
	"github.com/matzehuels/viewgraph/pkg/viewgraph"
)

// requestCommand creates the request command that posts a document to a
// running layout service.
func (c *CLI) requestCommand() *cobra.Command {
	var (
		serverURL string
		output    string
		table     bool
		attempts  int
	)

	cmd := &cobra.Command{
		Use:   "request [document.json]",
		Short: "Send a graph document to a running layout service",
		Long: `Send a graph document to a running layout service.

The document is posted unchanged to POST /layout. Connection errors and
5xx responses are retried; a 4xx response is reported with its error code.
The server defaults to the configured listen address.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" {
				cfg, err := c.loadConfig()
				if err != nil {
					return err
				}
				serverURL = cfg.Server.Addr
			}
			cl, err := client.New(serverURL,
				client.WithRetry(attempts, client.DefaultDelay),
				client.WithUserAgent(appName+"/"+buildinfo.Version))
			if err != nil {
				return err
			}
			return c.runRequest(cmd.Context(), cl, args[0], output, table)
		},
	}

	cmd.Flags().StringVarP(&serverURL, "server", "s", "", "layout service URL")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")
	cmd.Flags().BoolVar(&table, "table", false, "also print the positions as a table")
	cmd.Flags().IntVar(&attempts, "attempts", client.DefaultAttempts, "attempts for transient failures")

	return cmd
}

// runRequest posts the document file and writes the response.
func (c *CLI) runRequest(ctx context.Context, cl *client.Client, input, output string, table bool) error {
	logger := loggerFromContext(ctx)

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read document %s: %w", input, err)
	}

	logger.Debug("posting document", "server", cl.BaseURL(), "bytes", len(data))
	prog := newProgress(logger)

	spinner := newSpinnerWithContext(ctx, "Requesting layout from "+cl.BaseURL()+"...")
	spinner.Start()

	resp, err := cl.LayoutBytes(ctx, data)
	if err != nil {
		spinner.StopWithError("Request failed")
		var se *client.StatusError
		if errors.As(err, &se) && se.Code != "" {
			printDetail("Error code: %s", se.Code)
		}
		return fmt.Errorf("request layout: %w", err)
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Received %d positions", resp.Len()))

	outputPath := output
	if outputPath == "" {
		outputPath = defaultOutputPath(input)
	}
	if err := viewgraph.WriteResponseFile(resp, outputPath); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	printSuccess("Layout received")
	printFile(outputPath)
	if table {
		printNewline()
		fmt.Println(renderResponseTable(resp))
	}
	printNewline()
	printNextStep("Inspect", appName+" inspect "+outputPath)

	return nil
}
