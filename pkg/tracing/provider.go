package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

// ProviderConfig configures the process tracer provider
type ProviderConfig struct {
	ServiceName string
	// ExportEnabled sends spans to the OTLP collector. Spans are still created when false.
	ExportEnabled bool
	OTLP          exporters.OTLPConfig
}

// NewProvider builds the tracer provider, registers it globally and sets the package tracer.
// Callers own Shutdown.
func NewProvider(ctx context.Context, config ProviderConfig) (*sdktrace.TracerProvider, error) {
	res := resource.NewSchemaless(attribute.String("service.name", config.ServiceName))
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if config.ExportEnabled {
		exporter, err := exporters.NewOTLPExporter(ctx, config.OTLP)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	SetTracer(provider.Tracer(config.ServiceName))

	return provider, nil
}
