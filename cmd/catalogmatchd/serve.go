package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the search/validation HTTP API and its background schedulers",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices()
		if err != nil {
			return err
		}

		svc.qualitySc.Start(rootCtx)
		defer svc.qualitySc.Stop()

		svc.sweeper.Start(rootCtx)
		defer svc.sweeper.Stop()

		svc.exporter.Start(rootCtx)
		defer svc.exporter.Stop(rootCtx)

		if cfgPath != "" {
			svc.cfg.Watch(func() { logger.Info("catalogmatchd: config reloaded") })
		}

		if synonymsPath != "" {
			if stop, err := svc.synonyms.Watch(synonymsPath, logger); err != nil {
				logger.Warn("catalogmatchd: synonym hot-reload disabled", zap.Error(err))
			} else {
				defer stop()
			}
		}

		srv := newHTTPServer(svc)
		logger.Info("catalogmatchd: starting", zap.String("addr", serveAddr))
		if err := srv.Start(rootCtx, serveAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}

		logger.Info("catalogmatchd: shut down")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address")
}
