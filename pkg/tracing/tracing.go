// Package tracing holds the process tracer and helpers for spans and W3C trace headers.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

// SetTracer installs the process tracer. nil turns span creation into a no-op.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// GetActiveSpan returns the recording span on ctx, or nil when tracing is off or ctx has none.
func GetActiveSpan(ctx context.Context) trace.Span {
	if tracer == nil {
		return nil
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	return span
}

// StartSpan starts a child span of ctx. With no tracer it returns ctx and its current span unchanged.
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError marks the span failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// InjectHeaders writes the traceparent and tracestate of ctx into a header map.
func InjectHeaders(ctx context.Context, headers map[string]string) {
	if GetActiveSpan(ctx) == nil {
		return
	}
	propagation.TraceContext{}.Inject(ctx, propagation.MapCarrier(headers))
}

// ExtractHeaders returns ctx carrying the remote span described by headers.
func ExtractHeaders(ctx context.Context, headers map[string]string) context.Context {
	return propagation.TraceContext{}.Extract(ctx, propagation.MapCarrier(headers))
}

// GetTraceParent returns the trace parent from the context.
func GetTraceParent(ctx context.Context) string {
	carrier := propagation.MapCarrier{}
	InjectHeaders(ctx, carrier)
	return carrier.Get("traceparent")
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := GetActiveSpan(ctx)
	if span == nil {
		return ""
	}
	return span.SpanContext().TraceID().String()
}

// GetSpanID returns the span ID from the context.
func GetSpanID(ctx context.Context) string {
	span := GetActiveSpan(ctx)
	if span == nil {
		return ""
	}
	return span.SpanContext().SpanID().String()
}

// ShipmentAttributes identifies the shipment a span works on.
func ShipmentAttributes(companyID, shipmentRoutingID int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("fern.company_id", companyID),
		attribute.Int64("fern.shipment_routing_id", shipmentRoutingID),
	}
}
