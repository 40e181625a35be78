// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func restoreGlobalProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestNewProviderDisabled(t *testing.T) {
	restoreGlobalProvider(t)

	p, err := NewProvider(context.Background(), Config{Enabled: false, ServiceName: "society"})
	require.NoError(t, err)
	require.NoError(t, p.Shutdown(context.Background()))

	_, span := Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid(), "disabled telemetry records nothing")
	span.End()
}

func TestNewProviderUnsupportedExporter(t *testing.T) {
	restoreGlobalProvider(t)

	_, err := NewProvider(context.Background(), Config{Enabled: true, ExporterType: "zipkin"})
	require.ErrorContains(t, err, "unsupported exporter type")
}

func TestProviderExportsSpans(t *testing.T) {
	restoreGlobalProvider(t)

	exp := tracetest.NewInMemoryExporter()
	p, err := newProvider(context.Background(), Config{
		Enabled:        true,
		ServiceName:    "society",
		ServiceVersion: "test",
		SamplingRate:   1,
	}, exp)
	require.NoError(t, err)

	_, span := Tracer("test").Start(context.Background(), "launch.resolve",
		trace.WithAttributes(LaunchAttributes(7, "authenticatedReady")...))
	span.End()
	require.NoError(t, p.tp.ForceFlush(context.Background()))
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "launch.resolve", spans[0].Name)
	assert.Contains(t, spans[0].Attributes, attribute.Int64(LaunchGenerationKey, 7))
	assert.Contains(t, spans[0].Attributes, attribute.String(LaunchStateKey, "authenticatedReady"))
}

func TestSamplerNeverSamplesAtZero(t *testing.T) {
	restoreGlobalProvider(t)

	exp := tracetest.NewInMemoryExporter()
	p, err := newProvider(context.Background(), Config{Enabled: true, SamplingRate: 0}, exp)
	require.NoError(t, err)

	_, span := Tracer("test").Start(context.Background(), "dropped")
	span.End()
	require.NoError(t, p.tp.ForceFlush(context.Background()))
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	assert.Empty(t, exp.GetSpans())
}

func TestShutdownNilProvider(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, (&Provider{}).Shutdown(ctx))
}

func TestAttributes(t *testing.T) {
	assert.Equal(t, []attribute.KeyValue{
		attribute.String(HTTPMethodKey, "GET"),
		attribute.String(HTTPRouteKey, "/rest/v1/profiles"),
	}, HTTPAttributes("GET", "/rest/v1/profiles", 0))

	assert.Contains(t, HTTPAttributes("POST", "/auth/v1/token", 400), attribute.Int(HTTPStatusCodeKey, 400))

	supa := SupabaseAttributes("rest", "GET", "/rest/v1/events")
	assert.Equal(t, attribute.String(SupabaseAPIKey, "rest"), supa[0])
	assert.Len(t, supa, 3)

	assert.Equal(t, []attribute.KeyValue{attribute.Int64(LaunchGenerationKey, 3)}, LaunchAttributes(3, ""))

	assert.Nil(t, ErrorAttributes(nil, "transient"))
	assert.Equal(t, []attribute.KeyValue{
		attribute.String(ErrorKey, "boom"),
		attribute.String(ErrorTypeKey, "transient"),
	}, ErrorAttributes(errors.New("boom"), "transient"))
}
