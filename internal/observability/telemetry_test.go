package observability

import (
	"context"
	"testing"

	"github.com/annel0/trigger-store/internal/config"
	"github.com/annel0/trigger-store/internal/script"
	"github.com/annel0/trigger-store/internal/storage"
	"github.com/annel0/trigger-store/internal/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTelemetry_Disabled(t *testing.T) {
	shutdown, err := InitTelemetry(context.Background(), config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStoreSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp, err := NewTracerProvider(context.Background(), "trigger-store-test", sdktrace.WithSyncer(exporter))
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	b := storage.NewMemoryBackend()
	require.NoError(t, b.Write(context.Background(), "0. world@1,2,3", "say hi"))
	require.NoError(t, b.Write(context.Background(), "broken", "say hi"))

	s, _, err := trigger.NewStore(context.Background(), b, script.NewLexer(),
		trigger.WithTracer(tp.Tracer("test")))
	require.NoError(t, err)
	defer s.Close()
	s.SaveAll(context.Background())

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "triggers.Reload", spans[0].Name)
	assert.Equal(t, "triggers.SaveAll", spans[1].Name)

	attrs := map[string]int64{}
	for _, kv := range spans[0].Attributes {
		if kv.Value.Type() == attribute.INT64 {
			attrs[string(kv.Key)] = kv.Value.AsInt64()
		}
	}
	assert.Equal(t, int64(1), attrs["triggers.loaded"])
	assert.Equal(t, int64(1), attrs["triggers.failed"])
	assert.Equal(t, "trigger-store-test", serviceName(spans[0]))
}

func serviceName(span tracetest.SpanStub) string {
	for _, kv := range span.Resource.Attributes() {
		if kv.Key == "service.name" {
			return kv.Value.AsString()
		}
	}
	return ""
}
