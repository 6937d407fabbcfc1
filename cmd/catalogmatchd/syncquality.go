package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncQualityCmd = &cobra.Command{
	Use:   "sync-quality",
	Short: "Run one full quality-metric sync and exit",
	Long: `sync-quality performs the same full sync the daemon's QualitySyncScheduler
runs at startup (spec §4.10), then exits instead of entering the daily
incremental loop. Useful for cron-driven deployments or a manual refresh.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices()
		if err != nil {
			return err
		}

		svc.qualitySc.Start(rootCtx)
		svc.qualitySc.Stop()

		logger.Info("catalogmatchd: quality sync complete")
		fmt.Fprintln(cmd.OutOrStdout(), "quality sync complete")
		return nil
	},
}
