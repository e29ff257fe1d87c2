// Package telemetry configures OpenTelemetry tracing shared by all three
// services.
//
// Custom span attributes use the `observatory.` prefix.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "agentobservatory.io/core"

// Tracer returns the package-level tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTraceProvider initializes the OTel trace provider with an OTLP gRPC
// exporter. If endpoint is empty, tracing is disabled (a no-op provider is
// installed). Returns a shutdown function that must be called on exit.
func InitTraceProvider(ctx context.Context, endpoint, serviceName, version string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// --- Span helpers ---

// StartIngestSpan creates the parent span for one run-ingest request.
func StartIngestSpan(ctx context.Context, agentID string, environment string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "ingest.submit_run",
		trace.WithAttributes(
			attribute.String("observatory.agent_id", agentID),
			attribute.String("observatory.environment", environment),
		),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// EndIngestSpan enriches the ingest span with its outcome.
func EndIngestSpan(span trace.Span, outcome string) {
	span.SetAttributes(attribute.String("observatory.write_outcome", outcome))
	span.End()
}

// StartQuerySpan creates a span for one query-service read operation.
func StartQuerySpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "query."+operation,
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartProfileBuildSpan creates a span for one behavior-profile build.
func StartProfileBuildSpan(ctx context.Context, agentID, agentVersion, environment string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "analytics.build_profile",
		trace.WithAttributes(
			attribute.String("observatory.agent_id", agentID),
			attribute.String("observatory.agent_version", agentVersion),
			attribute.String("observatory.environment", environment),
		),
	)
}

// StartDriftDetectSpan creates a span for one baseline's drift-detection
// pass.
func StartDriftDetectSpan(ctx context.Context, baselineID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "analytics.detect_drift",
		trace.WithAttributes(
			attribute.String("observatory.baseline_id", baselineID),
		),
	)
}

// EndDriftDetectSpan enriches the drift-detect span with the count of
// records produced.
func EndDriftDetectSpan(span trace.Span, driftCount int) {
	span.SetAttributes(attribute.Int("observatory.drift_records", driftCount))
	span.End()
}

// StartAlertDispatchSpan creates a span for one alert sink dispatch.
func StartAlertDispatchSpan(ctx context.Context, driftID, channel string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "alert.dispatch",
		trace.WithAttributes(
			attribute.String("observatory.drift_id", driftID),
			attribute.String("observatory.alert_channel", channel),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndAlertDispatchSpan enriches the alert span with its delivery status.
func EndAlertDispatchSpan(span trace.Span, status string) {
	span.SetAttributes(attribute.String("observatory.delivery_status", status))
	span.End()
}
