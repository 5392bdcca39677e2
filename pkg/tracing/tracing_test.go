package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestStartSpan_WithoutTracer(t *testing.T) {
	SetTracer(nil)
	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()

	assert.False(t, span.SpanContext().IsValid())
	assert.Equal(t, "", GetTraceParent(ctx))
}

func TestSetup_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	shutdown := Setup("matcher-test", sdktrace.WithSpanProcessor(recorder))
	defer func() {
		require.NoError(t, shutdown(context.Background()))
		SetTracer(nil)
	}()

	ctx, span := StartSpan(context.Background(), "resolver.Resolver.Resolve")
	SetInt64(span, "scrap_id", 7)
	RecordError(span, errors.New("boom"))
	assert.NotEmpty(t, GetTraceParent(ctx))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "resolver.Resolver.Resolve", ended[0].Name())
}

func TestWithTraceParent(t *testing.T) {
	const parent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

	ctx := WithTraceParent(context.Background(), parent)
	sc := trace.SpanContextFromContext(ctx)
	require.True(t, sc.IsValid())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", sc.TraceID().String())
	assert.True(t, sc.IsRemote())

	assert.Equal(t, context.Background(), WithTraceParent(context.Background(), ""))
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ExporterConfig
		wantNil bool
		wantErr bool
	}{
		{name: "no endpoint", cfg: ExporterConfig{}, wantNil: true},
		{name: "grpc", cfg: ExporterConfig{Endpoint: "localhost:4317", Protocol: ProtocolGRPC, Insecure: true}},
		{name: "http", cfg: ExporterConfig{Endpoint: "localhost:4318", Protocol: ProtocolHTTP, Insecure: true}},
		{name: "unknown protocol", cfg: ExporterConfig{Endpoint: "localhost:4317", Protocol: "udp"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter, err := NewExporter(context.Background(), tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, exporter)
				return
			}
			require.NotNil(t, exporter)
			assert.NoError(t, exporter.Shutdown(context.Background()))
		})
	}
}
