package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exportMetricsCmd = &cobra.Command{
	Use:   "export-metrics",
	Short: "Force one metrics export batch and exit",
	Long: `export-metrics builds a services bundle, records nothing new, and asks
the DataMeshExporter to flush whatever the MetricsCollector currently
holds (spec §4.11 ExportNow), mirroring the POST /monitoring/export/now
HTTP endpoint for cron-driven or manual use.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices()
		if err != nil {
			return err
		}

		svc.exporter.ExportNow(rootCtx)
		logger.Info("catalogmatchd: metrics export complete")
		fmt.Fprintln(cmd.OutOrStdout(), "metrics export complete")
		return nil
	},
}
