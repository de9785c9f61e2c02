package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:          "dmcore",
		Short:        "Direct messaging server",
		SilenceUsage: true,
		// No subcommand means serve.
		RunE: serve.RunE,
	}
	root.AddCommand(serve, newMigrateCmd(), newDigestCmd(), newTokenCmd())
	return root
}
