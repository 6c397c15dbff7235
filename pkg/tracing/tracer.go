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

// Package tracing wraps the verification stages in spans. Stages run
// untraced until a Tracer is installed, either directly with SetTracer or
// from the OpenTelemetry environment with InitFromEnv.
package tracing

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
)

// Stage names used for the spans the engine and CLI open.
const (
	StageVerify        = "Verify"
	StageFingerprint   = "Fingerprint"
	StageCanonicalize  = "Canonicalize"
	StagePerceptual    = "PerceptualHash"
	StageSegments      = "BuildSegments"
	StageCompare       = "Compare"
	StageVerifyCommand = "VerifyCommand"

	StageCanonicalizeCommand = "CanonicalizeCommand"
	StagePHashCommand        = "PHashCommand"
)

// FailureKindKey is the span attribute carrying the failure kind of a stage
// that returned an error.
const FailureKindKey = "failure.kind"

// Span is the subset of a tracing span the stages use.
type Span interface {
	SetAttribute(key string, value interface{})
	RecordError(err error)
	End()
}

// Tracer opens spans.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, Span)
}

type installed struct{ tracer Tracer }

var active atomic.Pointer[installed]

// SetTracer installs t for all later stages. A nil t turns tracing off.
func SetTracer(t Tracer) {
	if t == nil {
		active.Store(nil)
		return
	}
	active.Store(&installed{tracer: t})
}

func current() Tracer {
	if in := active.Load(); in != nil {
		return in.tracer
	}
	return nil
}

// Enabled reports whether a tracer is installed.
func Enabled() bool { return current() != nil }

// Run executes fn inside a span called name. Attributes are applied in key
// order. When fn fails the span records the error and its failure kind.
func Run(ctx context.Context, name string, attrs map[string]interface{}, fn func(context.Context) error) error {
	t := current()
	if t == nil {
		return fn(ctx)
	}
	ctx, span := t.Start(ctx, name)
	defer span.End()

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		span.SetAttribute(k, attrs[k])
	}

	err := fn(ctx)
	if err != nil {
		span.SetAttribute(FailureKindKey, failure.KindOf(err).String())
		span.RecordError(err)
	}
	return err
}
