package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/embroider-build/embroider-sub001/cmd/embroider/build"
	"github.com/embroider-build/embroider-sub001/cmd/embroider/externals"
	"github.com/embroider-build/embroider-sub001/cmd/embroider/watch"
	"github.com/embroider-build/embroider-sub001/internal/logger"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:   "embroider",
		Short: "Convert a classic Ember app and its v1 addons into v2 packages",
		Long: `embroider rebuilds a classic Ember app and every v1 addon it consumes
as v2 packages in a workspace that mirrors the app's node_modules layout.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetVerbose(true)
			}
		},
	}
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose debug logging")
	root.PersistentFlags().String("config", "", "config file (default: <app>/embroider.yaml)")

	root.AddCommand(
		build.NewCommand(version),
		watch.NewCommand(),
		externals.NewCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
