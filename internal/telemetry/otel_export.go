package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// SDKMetricBackend adapts an OTel SDK MeterProvider to the Backend
// interface: Flush triggers the provider's ForceFlush, pushing every
// instrument registered against its Meter (including the Collector's
// own request/ambiguity/rerank instruments built in NewCollector)
// through whichever exporter the provider was built with. This mirrors
// DataMeshExporter's object-store/streaming backends as an OTLP-HTTP or
// stdout metrics option selectable via config (spec §4.14).
type SDKMetricBackend struct {
	Provider *sdkmetric.MeterProvider
}

func (b *SDKMetricBackend) Flush(ctx context.Context, batch []ExportRecord) error {
	if b.Provider == nil {
		return nil
	}
	return b.Provider.ForceFlush(ctx)
}

// NewOTLPHTTPMeterProvider builds a MeterProvider that pushes to an
// OTLP collector over HTTP at endpoint on a periodic reader, the
// "streaming service" backend option named in §4.14.
func NewOTLPHTTPMeterProvider(ctx context.Context, endpoint string) (*sdkmetric.MeterProvider, error) {
	exp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("telemetry: building otlp http exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp))), nil
}

// NewStdoutMeterProvider builds a MeterProvider that prints metrics to
// stdout, the local/dev backend option named in §4.14.
func NewStdoutMeterProvider() (*sdkmetric.MeterProvider, error) {
	exp, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: building stdout exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp))), nil
}
