// Package telemetry exposes LLM call metrics through OpenTelemetry, exported
// in Prometheus format.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const instrumentationName = "github.com/fleveque/crm-service"

// Metrics records outbound LLM calls.
type Metrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	calls, err := meter.Int64Counter("llm.calls",
		metric.WithDescription("Outbound LLM calls by prompt, provider and outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("creating llm.calls counter: %w", err)
	}

	duration, err := meter.Float64Histogram("llm.call.duration",
		metric.WithDescription("Latency of outbound LLM calls."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating llm.call.duration histogram: %w", err)
	}

	return &Metrics{calls: calls, duration: duration}, nil
}

// Nop returns Metrics that record nothing. Used when metrics are disabled and in tests.
func Nop() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(instrumentationName))
	return m
}

// RecordCall records one LLM call. outcome is "ok" or an error kind.
func (m *Metrics) RecordCall(ctx context.Context, prompt, provider, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("prompt", prompt),
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	)
	m.calls.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// Setup builds a meter provider backed by a Prometheus exporter on a private
// registry. It returns the Metrics, the /metrics handler and a shutdown func.
func Setup(serviceName string) (*Metrics, http.Handler, func(context.Context) error, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	metrics, err := NewMetrics(provider.Meter(instrumentationName))
	if err != nil {
		return nil, nil, nil, err
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return metrics, handler, provider.Shutdown, nil
}
