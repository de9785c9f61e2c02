package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDigestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Send the unread-message digest once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := a.digest(a.directory(), a.emailClient()).SendDailyDigest(ctx)
			if err != nil {
				return err
			}
			a.log.Info("digest finished",
				zap.Int("attempted", report.Attempted),
				zap.Int("sent", report.Sent),
				zap.Int("failed", report.Failed),
			)
			return nil
		},
	}
}
