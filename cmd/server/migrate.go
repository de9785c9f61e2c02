package main

import (
	"github.com/spf13/cobra"

	"github.com/vedran77/dmcore/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the messaging schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := database.Migrate(ctx, a.pool); err != nil {
				return err
			}
			a.log.Info("schema up to date")
			return nil
		},
	}
}
