// Bookmarketer drives book marketing sessions: market landscape, reader
// personas, artifact feedback, A/B tests and a marketing strategy.
//
// Usage:
//
//	bookmarketer [--config FILE] [--mock] [--json] <command> [flags]
//
// Commands:
//
//	new      Ingest a book and start a session
//	run      Run a workflow step in a session
//	status   Show step progress of a session
//	list     List checkpointed sessions
//	export   Write a session document as JSON or YAML
//	config   Manage the configuration file
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set through ldflags at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rootCmd, a := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	a.close()
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{stdout: os.Stdout, stderr: os.Stderr}

	rootCmd := &cobra.Command{
		Use:           "bookmarketer",
		Short:         "Book marketing workflow on top of a language model",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[annotationNoApp] == "true" {
				return nil
			}
			return a.open(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.opts.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/bookmarketer/config.yaml)")
	flags.BoolVar(&a.opts.mock, "mock", false, "Use the deterministic mock model instead of a provider")
	flags.StringVar(&a.opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the command runs")
	flags.BoolVar(&a.opts.json, "json", false, "Output in JSON format")

	rootCmd.AddCommand(
		newNewCmd(a),
		newRunCmd(a),
		newStatusCmd(a),
		newListCmd(a),
		newExportCmd(a),
		newConfigCmd(a),
	)
	return rootCmd, a
}
