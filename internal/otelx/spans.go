package otelx

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Standard attribute keys for engine spans.
var (
	AttrSessionID = attribute.Key("recall.session.id")
	AttrToolName  = attribute.Key("recall.tool.name")
	AttrRefID     = attribute.Key("recall.ref.id")
	AttrSizeBytes = attribute.Key("recall.content.size_bytes")
)

// StartSpan starts an internal span with common attributes.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}
