// Copyright 2026 fanjia1024
// OpenTelemetry integration for sequence tracing

package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "arrange-orchestrator"

// OTelConfig OpenTelemetry 配置
type OTelConfig struct {
	ServiceName    string
	ExportEndpoint string
	Insecure       bool
}

// InitTracer 初始化 OpenTelemetry tracer
func InitTracer(config OTelConfig) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.ExportEndpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// StartSequenceSpan 开始 tool sequence execution span
func StartSequenceSpan(ctx context.Context, sessionID string, steps int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "sequence.execute",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("sequence.steps", steps),
		),
	)
}

// StartStepSpan 开始单步 tool invocation span
func StartStepSpan(ctx context.Context, toolName string, index int, origin string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tool.invoke",
		trace.WithAttributes(
			attribute.String("tool.name", toolName),
			attribute.Int("step.index", index),
			attribute.String("step.origin", origin),
		),
	)
}

// StartPlannerSpan 开始 planner 调用 span
func StartPlannerSpan(ctx context.Context, planner string, attempt int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "planner.plan",
		trace.WithAttributes(
			attribute.String("planner.name", planner),
			attribute.Int("planner.attempt", attempt),
		),
	)
}
