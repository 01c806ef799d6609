package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/catalog-watcher/internal/syncerr"
)

func newTestTracerProvider(t *testing.T) (*tracetest.InMemoryExporter, trace.TracerProvider) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter, tp
}

func TestStartSpan_NilTracer(t *testing.T) {
	t.Parallel()

	resultCtx, span := StartSpan(context.Background(), nil, "sync.cycle")

	require.NotNil(t, resultCtx)
	require.NotNil(t, span)
	assert.False(t, span.SpanContext().IsValid())
	assert.NotPanics(t, func() { span.End() })
}

func TestStartSpan_WithTracer(t *testing.T) {
	t.Parallel()

	exporter, tp := newTestTracerProvider(t)

	_, span := StartSpan(context.Background(), tp.Tracer("test"), "sync.cycle",
		trace.WithAttributes(AttrCycleID.String("c-1"), AttrFirstRun.Bool(true)),
	)
	require.True(t, span.SpanContext().IsValid())
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "sync.cycle", spans[0].Name)
	assert.Contains(t, spans[0].Attributes, AttrCycleID.String("c-1"))
	assert.Contains(t, spans[0].Attributes, AttrFirstRun.Bool(true))
}

func TestRecordError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		expectedMsg string
	}{
		{"transient", syncerr.Transient("fetch page 2", 503, "", "", nil), "transient"},
		{"persistence", syncerr.Persistence("save state", errors.New("disk full")), "persistence"},
		{"untyped", errors.New("boom"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			exporter, tp := newTestTracerProvider(t)
			_, span := tp.Tracer("test").Start(context.Background(), "op")

			RecordError(span, tt.err)
			span.End()

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, codes.Error, spans[0].Status.Code)
			assert.Equal(t, tt.expectedMsg, spans[0].Status.Description)
			require.NotEmpty(t, spans[0].Events)
			assert.Equal(t, "exception", spans[0].Events[0].Name)
		})
	}
}

func TestRecordError_NilSafety(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { RecordError(nil, errors.New("x")) })
	assert.NotPanics(t, func() { RecordError(nil, nil) })

	exporter, tp := newTestTracerProvider(t)
	_, span := tp.Tracer("test").Start(context.Background(), "op")
	RecordError(span, nil)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Empty(t, spans[0].Events)
}
