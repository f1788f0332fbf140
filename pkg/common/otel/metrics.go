package otel

import (
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// NewMeterProvider creates an in-process meter provider with the given service
// name. It has no exporter attached and is used by tests that want real
// instruments without a collector.
func NewMeterProvider(serviceName string, opts ...sdkmetric.Option) metric.MeterProvider {
	opts = append(opts, sdkmetric.WithResource(NewResource(serviceName)))
	return sdkmetric.NewMeterProvider(opts...)
}

// NewResource creates a new OpenTelemetry resource with service name.
func NewResource(serviceName string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)
}
