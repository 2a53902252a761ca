package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "github.com/birdayz/kflow"

// Tracer returns the engine's tracer from tp, or from the global provider if
// tp is nil.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(TracerName)
}

// StartTick starts the span covering one external message.
func StartTick(ctx context.Context, tracer trace.Tracer, program, operator, port string, t int64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "kflow.tick",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("kflow.program", program),
			attribute.String("kflow.operator", operator),
			attribute.String("kflow.port", port),
			attribute.Int64("kflow.time", t),
		))
}

func StartRestore(ctx context.Context, tracer trace.Tracer, size int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "kflow.restore",
		trace.WithAttributes(attribute.Int("kflow.snapshot_bytes", size)))
}

// End finishes span, marking it failed if err is non-nil.
func End(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
