package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_NilLeavesCallerSpanOpen(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, parent := tp.Tracer("test").Start(context.Background(), "caller")

	var obs *Observability
	gotCtx, span := obs.StartSpan(ctx, "insights.execute")
	span.End()

	assert.Equal(t, ctx, gotCtx)
	assert.False(t, span.SpanContext().IsValid())
	assert.Empty(t, recorder.Ended())

	parent.End()
	require.Len(t, recorder.Ended(), 1)
	assert.Equal(t, "caller", recorder.Ended()[0].Name())
}

func TestStartSpan_RecordsChildSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	obs := New("insights-test", WithSpanProcessor(recorder))
	defer obs.Shutdown()

	_, span := obs.StartSpan(context.Background(), "insights.narrate")
	span.End()
	obs.RecordAnswer(context.Background(), "answered", "cache", 5*time.Millisecond)

	require.Len(t, recorder.Ended(), 1)
	assert.Equal(t, "insights.narrate", recorder.Ended()[0].Name())
}

func TestNilObservability_IsSafe(t *testing.T) {
	var obs *Observability
	assert.NotPanics(t, func() {
		obs.RecordAnswer(context.Background(), "failed", "", time.Millisecond)
		obs.Shutdown()
	})
}
