// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracing

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/verisource/verisource-api-production-sub000"

var (
	providerMu sync.Mutex
	provider   *sdktrace.TracerProvider
)

// exportRequested reports whether the environment asks for OTLP export.
// Export is opt-in: an endpoint must be configured, or OTEL_TRACES_EXPORTER
// must name otlp explicitly.
func exportRequested(getenv func(string) string) bool {
	switch getenv("OTEL_TRACES_EXPORTER") {
	case "none":
		return false
	case "otlp":
		return true
	}
	return getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" || getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") != ""
}

// InitFromEnv installs an OTLP/HTTP tracer when the standard OTEL_*
// variables request one. serviceName applies unless OTEL_SERVICE_NAME is set.
// The exporter reads its endpoint and headers from the environment itself.
func InitFromEnv(serviceName string) error {
	if !exportRequested(os.Getenv) {
		return nil
	}
	exp, err := otlptracehttp.New(context.Background())
	if err != nil {
		return fmt.Errorf("creating OTLP trace exporter: %w", err)
	}
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		serviceName = name
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName))),
	)

	providerMu.Lock()
	provider = tp
	providerMu.Unlock()

	otel.SetTracerProvider(tp)
	SetTracer(otelTracer{tp.Tracer(instrumentationName)})
	return nil
}

// Shutdown flushes any batched spans and uninstalls the tracer. It is safe to
// call when InitFromEnv installed nothing.
func Shutdown(ctx context.Context) error {
	providerMu.Lock()
	tp := provider
	provider = nil
	providerMu.Unlock()

	if tp == nil {
		return nil
	}
	SetTracer(nil)
	return tp.Shutdown(ctx)
}

type otelTracer struct{ t trace.Tracer }

func (o otelTracer) Start(ctx context.Context, name string) (context.Context, Span) {
	ctx, s := o.t.Start(ctx, name)
	return ctx, otelSpan{s}
}

type otelSpan struct{ s trace.Span }

func (o otelSpan) SetAttribute(key string, value interface{}) {
	o.s.SetAttributes(toAttribute(key, value))
}

func (o otelSpan) RecordError(err error) {
	o.s.RecordError(err)
	o.s.SetStatus(codes.Error, err.Error())
}

func (o otelSpan) End() { o.s.End() }

func toAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
