// Package otel provides tracing helpers shared by the sync pipeline.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/catalog-watcher/internal/syncerr"
)

// Attribute keys used on sync spans
const (
	AttrCycleID     = attribute.Key("sync.cycle_id")
	AttrFirstRun    = attribute.Key("sync.first_run")
	AttrPages       = attribute.Key("catalog.pages")
	AttrItemCount   = attribute.Key("catalog.item_count")
	AttrItemID      = attribute.Key("catalog.item_id")
	AttrEventKind   = attribute.Key("notify.kind")
	AttrErrorKind   = attribute.Key("error.kind")
	AttrKnownItems  = attribute.Key("state.known_items")
	AttrSkipped     = attribute.Key("sync.skipped")
	AttrDispatched  = attribute.Key("notify.dispatched")
	AttrFailedCount = attribute.Key("notify.failures")
)

// StartSpan starts a span on tracer, or returns the span already in ctx when tracer is nil
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks it failed. The status description
// only carries the error kind; the message stays in the exception event.
func RecordError(span trace.Span, err error) {
	if err == nil || span == nil {
		return
	}
	kind := syncerr.KindOf(err).String()
	span.RecordError(err, trace.WithAttributes(AttrErrorKind.String(kind)))
	span.SetStatus(codes.Error, kind)
}
