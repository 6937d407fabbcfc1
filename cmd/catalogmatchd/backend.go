package main

import (
	"context"
	"fmt"
	"os"

	"github.com/steveyegge/catalogmatch/internal/telemetry"
)

// defaultExportBackend resolves the DataMeshExporter backend from the
// environment (spec §4.11: object-store append, streaming write, or
// HTTP POST, plus the §4.14 OTel metrics mirror). With nothing
// configured it falls back to a StreamBackend that writes
// newline-delimited JSON to stdout, so `export-metrics` and the
// background exporter always have somewhere to put a batch.
func defaultExportBackend() telemetry.Backend {
	switch os.Getenv("CATALOGMATCH_METRICS_OTEL_BACKEND") {
	case "otlp":
		endpoint := os.Getenv("CATALOGMATCH_METRICS_OTEL_ENDPOINT")
		provider, err := telemetry.NewOTLPHTTPMeterProvider(rootCtx, endpoint)
		if err != nil {
			logger.Warn(fmt.Sprintf("catalogmatchd: otlp meter provider disabled: %v", err))
			break
		}
		return &telemetry.SDKMetricBackend{Provider: provider}
	case "stdout":
		provider, err := telemetry.NewStdoutMeterProvider()
		if err != nil {
			logger.Warn(fmt.Sprintf("catalogmatchd: stdout meter provider disabled: %v", err))
			break
		}
		return &telemetry.SDKMetricBackend{Provider: provider}
	}

	if url := os.Getenv("CATALOGMATCH_METRICS_EXPORT_URL"); url != "" {
		return &telemetry.HTTPBackend{URL: url, BearerToken: os.Getenv("CATALOGMATCH_METRICS_EXPORT_TOKEN")}
	}
	return &telemetry.StreamBackend{Write: writeRecordToStdout}
}

func writeRecordToStdout(ctx context.Context, record []byte) error {
	_, err := os.Stdout.Write(append(record, '\n'))
	return err
}
