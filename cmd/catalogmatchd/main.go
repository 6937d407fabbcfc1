// Command catalogmatchd runs the data-catalog search and validation
// service (spec §9): the retrieval HTTP API plus its background
// schedulers (quality-metric sync, telemetry export, involvement sweep).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgPath      string
	catalogPath  string
	synonymsPath string
	logger       *zap.Logger

	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "catalogmatchd",
	Short: "catalogmatchd - data catalog search and validation service",
	Long: `catalogmatchd serves the retrieval pipeline (intent normalization,
domain/owner/table/column search, disambiguation, LLM reranking) and the
suggestion-approval workflow described in the service specification.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

		l, err := zap.NewProduction()
		if err != nil {
			return fmt.Errorf("catalogmatchd: building logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file (defaults to built-in defaults + env)")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "path to YAML catalog snapshot (domains/owners/tables)")
	rootCmd.PersistentFlags().StringVar(&synonymsPath, "synonyms", "", "path to YAML synonym dictionary overlay")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncQualityCmd)
	rootCmd.AddCommand(exportMetricsCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
