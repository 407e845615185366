// Package metrics wires the bridge's OpenTelemetry instruments to a
// Prometheus exporter, exposed over HTTP by cmd/lookinmcp's debug server.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Recorder holds the request counters and latency histogram that
// RecordRequest feeds. The transport and session do not call RecordRequest.
type Recorder struct {
	provider *sdkmetric.MeterProvider

	requestsSent   metric.Int64Counter
	requestErrors  metric.Int64Counter
	requestLatency metric.Float64Histogram
}

// New builds a Recorder backed by a fresh Prometheus exporter and registers
// its instruments against a dedicated meter.
func New() (*Recorder, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("lookinmcp")

	requestsSent, err := meter.Int64Counter(
		"lookinmcp_requests_sent_total",
		metric.WithDescription("LookinServer requests sent, by operation"),
	)
	if err != nil {
		return nil, err
	}

	requestErrors, err := meter.Int64Counter(
		"lookinmcp_request_errors_total",
		metric.WithDescription("LookinServer requests that failed, by operation and error kind"),
	)
	if err != nil {
		return nil, err
	}

	requestLatency, err := meter.Float64Histogram(
		"lookinmcp_request_duration_seconds",
		metric.WithDescription("LookinServer request round-trip latency, by operation"),
	)
	if err != nil {
		return nil, err
	}

	return &Recorder{
		provider:       provider,
		requestsSent:   requestsSent,
		requestErrors:  requestErrors,
		requestLatency: requestLatency,
	}, nil
}

// RecordRequest records one completed operation's outcome and latency.
func (r *Recorder) RecordRequest(ctx context.Context, operation string, seconds float64, errKind string) {
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	r.requestsSent.Add(ctx, 1, attrs)
	r.requestLatency.Record(ctx, seconds, attrs)
	if errKind != "" {
		r.requestErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("kind", errKind),
		))
	}
}

// Handler returns the Prometheus exposition HTTP handler for /metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes and stops the underlying meter provider.
func (r *Recorder) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}
