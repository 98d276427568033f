package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer name used by the span helpers.
const InstrumentationName = "github.com/onnwee/askaround"

// MutationOperation names a write performed through the mutation coordinator.
type MutationOperation string

const (
	// MutationCreate creates an entity.
	MutationCreate MutationOperation = "create"
	// MutationUpdate edits an entity.
	MutationUpdate MutationOperation = "update"
	// MutationDelete deletes an entity.
	MutationDelete MutationOperation = "delete"
	// MutationVote records a poll vote.
	MutationVote MutationOperation = "vote"
)

func endFunc(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// StartFetchSpan creates a span for fetching one page of a paginated query.
//
// Example usage:
//
//	ctx, endSpan := tracing.StartFetchSpan(ctx, "questions", key.String(), offset, limit)
//	defer endSpan(err)
func StartFetchSpan(ctx context.Context, kind, key string, offset, limit int) (context.Context, func(error)) {
	ctx, span := otel.Tracer(InstrumentationName).Start(ctx, "fetch_page "+kind,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("query.kind", kind),
			attribute.String("query.key", key),
			attribute.Int("query.offset", offset),
			attribute.Int("query.limit", limit),
		),
	)
	return ctx, endFunc(span)
}

// StartMutationSpan creates a span for a write against entity type kind.
func StartMutationSpan(ctx context.Context, kind string, op MutationOperation, id string) (context.Context, func(error)) {
	ctx, span := otel.Tracer(InstrumentationName).Start(ctx, string(op)+" "+kind,
		trace.WithAttributes(
			attribute.String("mutation.kind", kind),
			attribute.String("mutation.operation", string(op)),
		),
	)
	if id != "" {
		span.SetAttributes(attribute.String("mutation.entity_id", id))
	}
	return ctx, endFunc(span)
}

// StartSpan creates a new span for a general operation.
// Returns the new context and a function to end the span.
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := otel.Tracer(InstrumentationName).Start(ctx, name)
	return ctx, endFunc(span)
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attrs...)
}
