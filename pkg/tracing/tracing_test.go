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
	"errors"
	"testing"

	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
)

type recordedSpan struct {
	name  string
	attrs map[string]interface{}
	err   error
	ended bool
}

func (s *recordedSpan) SetAttribute(k string, v interface{}) { s.attrs[k] = v }
func (s *recordedSpan) RecordError(err error)                { s.err = err }
func (s *recordedSpan) End()                                 { s.ended = true }

type recordingTracer struct {
	spans []*recordedSpan
}

func (r *recordingTracer) Start(ctx context.Context, name string) (context.Context, Span) {
	s := &recordedSpan{name: name, attrs: map[string]interface{}{}}
	r.spans = append(r.spans, s)
	return ctx, s
}

func TestRunWithoutTracer(t *testing.T) {
	SetTracer(nil)
	if Enabled() {
		t.Fatal("Enabled() = true with the no-op tracer")
	}
	called := false
	if err := Run(context.Background(), "noop", nil, func(context.Context) error {
		called = true
		return nil
	}); err != nil || !called {
		t.Errorf("Run() = %v, called = %v", err, called)
	}
}

func TestRunRecordsSpan(t *testing.T) {
	rec := &recordingTracer{}
	SetTracer(rec)
	defer SetTracer(nil)

	boom := errors.New("boom")
	err := Run(context.Background(), "Verify", map[string]interface{}{"recipe": "img:v2"}, func(context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rec.spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(rec.spans))
	}
	s := rec.spans[0]
	if s.name != "Verify" || s.attrs["recipe"] != "img:v2" || !errors.Is(s.err, boom) || !s.ended {
		t.Errorf("span = %+v", s)
	}
}

func TestRunRecordsFailureKind(t *testing.T) {
	rec := &recordingTracer{}
	SetTracer(rec)
	defer SetTracer(nil)

	_ = Run(context.Background(), StageCanonicalize, nil, func(context.Context) error {
		return failure.New(failure.KindDecode, "decode", "truncated stream")
	})
	_ = Run(context.Background(), StageCompare, nil, func(context.Context) error { return nil })

	if len(rec.spans) != 2 {
		t.Fatalf("recorded %d spans, want 2", len(rec.spans))
	}
	if got := rec.spans[0].attrs[FailureKindKey]; got != failure.KindDecode.String() {
		t.Errorf("failed span %s = %v, want %q", FailureKindKey, got, failure.KindDecode.String())
	}
	if _, ok := rec.spans[1].attrs[FailureKindKey]; ok {
		t.Errorf("successful span carries %s", FailureKindKey)
	}
}

func TestExportRequested(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"empty", nil, false},
		{"endpoint", map[string]string{"OTEL_EXPORTER_OTLP_ENDPOINT": "http://collector:4318"}, true},
		{"traces endpoint", map[string]string{"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT": "http://collector:4318/v1/traces"}, true},
		{"explicit otlp", map[string]string{"OTEL_TRACES_EXPORTER": "otlp"}, true},
		{"none wins", map[string]string{"OTEL_TRACES_EXPORTER": "none", "OTEL_EXPORTER_OTLP_ENDPOINT": "http://collector:4318"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(k string) string { return tt.env[k] }
			if got := exportRequested(getenv); got != tt.want {
				t.Errorf("exportRequested() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShutdownWithoutProvider(t *testing.T) {
	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
}
