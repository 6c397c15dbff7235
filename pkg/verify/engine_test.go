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

package verify

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/verisource/verisource-api-production-sub000/pkg/canonical"
	"github.com/verisource/verisource-api-production-sub000/pkg/credential"
	"github.com/verisource/verisource-api-production-sub000/pkg/decoder"
	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
	"github.com/verisource/verisource-api-production-sub000/pkg/fingerprint"
	"github.com/verisource/verisource-api-production-sub000/pkg/logging"
	"github.com/verisource/verisource-api-production-sub000/pkg/phash"
	"github.com/verisource/verisource-api-production-sub000/pkg/recipe"
	"github.com/verisource/verisource-api-production-sub000/pkg/worker"
)

type clipDecoder struct {
	frames []decoder.RawFrame
}

type clipStream struct {
	frames []decoder.RawFrame
}

func (d clipDecoder) Open(context.Context, []byte, recipe.VideoParams) (decoder.Stream, error) {
	return &clipStream{frames: d.frames}, nil
}

func (s *clipStream) Next(context.Context) (decoder.RawFrame, error) {
	if len(s.frames) == 0 {
		return decoder.RawFrame{}, io.EOF
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *clipStream) Close() error { return nil }

// sweep renders n 30 fps frames with a gradient that shifts every frame.
func sweep(n int) []decoder.RawFrame {
	const w, h = 64, 36
	frames := make([]decoder.RawFrame, n)
	for i := range frames {
		pix := make([]byte, w*h*3)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				o := (y*w + x) * 3
				pix[o] = byte((x*4 + i*9) % 256)
				pix[o+1] = byte(y * 6)
				pix[o+2] = byte((x ^ (y + i)) * 3)
			}
		}
		frames[i] = decoder.RawFrame{PTS: time.Duration(i) * 33333 * time.Microsecond, Width: w, Height: h, Pix: pix}
	}
	return frames
}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 60, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 60; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 6), B: uint8((x + y) * 2), A: 180})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newEngine(t *testing.T, dec decoder.Decoder) (*Engine, *fingerprint.Builder) {
	t.Helper()
	b := fingerprint.NewBuilder(canonical.NewEngine(dec, logging.Discard()), recipe.Default(), fingerprint.BuilderOptions{Workers: 2})
	e, err := NewEngine(b, worker.NewPool(2, time.Minute, logging.Discard()), DefaultPolicy(), logging.Discard())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e, b
}

func issue(t *testing.T, mediaType string, bundle *fingerprint.Bundle) *credential.Credential {
	t.Helper()
	c, err := credential.New(mediaType, *bundle,
		credential.Creator{DID: "did:web:studio.example", Type: credential.CreatorHuman},
		map[string]interface{}{"title": "test asset"}, "https://revocation.example/list", credential.Options{})
	if err != nil {
		t.Fatalf("credential.New() error = %v", err)
	}
	return c
}

// flip inverts the low n bits of a declared perceptual hash.
func flip(t *testing.T, declared string, n uint) string {
	t.Helper()
	h, err := phash.Parse(declared)
	if err != nil {
		t.Fatal(err)
	}
	return (h ^ phash.Hash(1<<n-1)).String()
}

func TestVerifyImage(t *testing.T) {
	ctx := context.Background()
	e, b := newEngine(t, nil)
	input := testImage(t)

	base, err := b.Build(ctx, input, "image/png", false)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	otherSHA := strings.Repeat("ab", 32)

	tests := []struct {
		name         string
		mutate       func(*fingerprint.Bundle)
		wantVerdict  Verdict
		wantDistance int
		wantCoverage float64
	}{
		{"exact", func(*fingerprint.Bundle) {}, ProvenStrong, -1, 1},
		{"perceptual match", func(b *fingerprint.Bundle) { b.SHA256Canonical = otherSHA }, ProvenDerived, 0, 1},
		{"weak match", func(b *fingerprint.Bundle) {
			b.SHA256Canonical = otherSHA
			b.PerceptualHash = flip(t, b.PerceptualHash, 12)
		}, Inconclusive, 12, 0},
		{"different", func(b *fingerprint.Bundle) {
			b.SHA256Canonical = otherSHA
			b.PerceptualHash = flip(t, b.PerceptualHash, 40)
		}, NotProven, 40, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle := *base
			tt.mutate(&bundle)
			out, err := e.Verify(ctx, input, issue(t, "image/png", &bundle))
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if out.Verdict != tt.wantVerdict || out.Coverage != tt.wantCoverage {
				t.Errorf("Verdict = %s, Coverage = %v; want %s, %v", out.Verdict, out.Coverage, tt.wantVerdict, tt.wantCoverage)
			}
			if out.Canonicalization != recipe.ImageV2.String() || out.SegmentsCompared != 1 {
				t.Errorf("outcome = %+v", out)
			}
			switch {
			case tt.wantDistance < 0 && out.PerceptualDistance != nil:
				t.Errorf("PerceptualDistance = %d, want unset", *out.PerceptualDistance)
			case tt.wantDistance >= 0 && (out.PerceptualDistance == nil || *out.PerceptualDistance != tt.wantDistance):
				t.Errorf("PerceptualDistance = %v, want %d", out.PerceptualDistance, tt.wantDistance)
			}
			if tt.wantVerdict.Proven() != (len(out.MatchedRanges) == 1) {
				t.Errorf("MatchedRanges = %v", out.MatchedRanges)
			}
		})
	}
}

func TestVerifyTransitionCredential(t *testing.T) {
	ctx := context.Background()
	e, b := newEngine(t, nil)
	input := testImage(t)

	bundle, err := b.Build(ctx, input, "image/png", true)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	bundle.SHA256Canonical = strings.Repeat("cd", 32)
	bundle.PerceptualHash = flip(t, bundle.PerceptualHash, 40)

	out, err := e.Verify(ctx, input, issue(t, "image/png", bundle))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if out.Verdict != ProvenDerived {
		t.Errorf("Verdict = %s, want PROVEN_DERIVED", out.Verdict)
	}
	if !strings.Contains(strings.Join(out.Notes, "\n"), "img:v1 alternative hash") {
		t.Errorf("Notes = %q", out.Notes)
	}
}

func TestVerifyLegacyCredential(t *testing.T) {
	ctx := context.Background()
	e, b := newEngine(t, nil)
	input := testImage(t)

	fp, err := b.Compute(ctx, input, recipe.ImageV1)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	bundle := &fingerprint.Bundle{
		Algorithm:        fingerprint.AlgorithmImage,
		Canonicalization: recipe.ImageV1.String(),
		SHA256Canonical:  fp.Output.Digest.Hex(),
	}

	out, err := e.Verify(ctx, input, issue(t, "image/png", bundle))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if out.Verdict != ProvenStrong || out.Canonicalization != recipe.ImageV1.String() {
		t.Errorf("outcome = %+v", out)
	}

	bundle.SHA256Canonical = strings.Repeat("ef", 32)
	out, err = e.Verify(ctx, input, issue(t, "image/png", bundle))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if out.Verdict != NotProven || len(out.FirstMismatches) != 1 {
		t.Errorf("outcome = %+v", out)
	}
}

func TestVerifyVideo(t *testing.T) {
	ctx := context.Background()
	e, b := newEngine(t, clipDecoder{frames: sweep(90)})

	bundle, err := b.Build(ctx, []byte("clip"), "video/mp4", false)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	n := len(bundle.SegmentHashes)
	if n < 2 {
		t.Fatalf("segments = %d, want at least 2", n)
	}

	out, err := e.Verify(ctx, []byte("clip"), issue(t, "video/mp4", bundle))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if out.Verdict != ProvenStrong || out.Coverage != 1 || out.SegmentsMatched != n {
		t.Errorf("outcome = %+v", out)
	}
	if len(out.MatchedRanges) != 1 || out.MatchedRanges[0] != (Range{0, n - 1}) {
		t.Errorf("MatchedRanges = %v", out.MatchedRanges)
	}

	tampered := *bundle
	tampered.SegmentHashes = append([]string{"seg_0:" + strings.Repeat("0", 64)}, bundle.SegmentHashes[1:]...)
	out, err = e.Verify(ctx, []byte("clip"), issue(t, "video/mp4", &tampered))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if out.Verdict != Inconclusive || out.SegmentsMatched != n-1 {
		t.Errorf("outcome = %+v", out)
	}
	if len(out.FirstMismatches) != 1 || out.FirstMismatches[0].Index != 0 {
		t.Errorf("FirstMismatches = %+v", out.FirstMismatches)
	}
}

func TestVerifyErrors(t *testing.T) {
	ctx := context.Background()
	e, b := newEngine(t, nil)
	input := testImage(t)
	base, err := b.Build(ctx, input, "image/png", false)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	tests := []struct {
		name      string
		mediaType string
		mutate    func(*fingerprint.Bundle)
		candidate []byte
		wantKind  failure.Kind
	}{
		{
			name:      "declared recipe differs",
			mediaType: "image/png",
			mutate: func(b *fingerprint.Bundle) {
				b.Canonicalization = strings.Replace(b.Canonicalization, "max2048", "max4096", 1)
			},
			// undecodable input proves the recipe check comes first
			candidate: []byte("not an image"),
			wantKind:  failure.KindCanonicalizationMismatch,
		},
		{
			name:      "unknown recipe version",
			mediaType: "image/png",
			mutate:    func(b *fingerprint.Bundle) { b.Canonicalization = "img:v9:exif-orient|srgb" },
			candidate: input,
			wantKind:  failure.KindCredentialIncompatible,
		},
		{
			name:      "media type does not fit recipe",
			mediaType: "video/mp4",
			mutate:    func(*fingerprint.Bundle) {},
			candidate: input,
			wantKind:  failure.KindCredentialIncompatible,
		},
		{
			name:      "undecodable candidate",
			mediaType: "image/png",
			mutate:    func(*fingerprint.Bundle) {},
			candidate: []byte("not an image"),
			wantKind:  failure.KindCandidateDecode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle := *base
			tt.mutate(&bundle)
			_, err := e.Verify(ctx, tt.candidate, issue(t, tt.mediaType, &bundle))
			if !failure.IsKind(err, tt.wantKind) {
				t.Fatalf("Verify() error = %v, want %s", err, tt.wantKind)
			}
			if tt.wantKind == failure.KindCanonicalizationMismatch {
				fe, _ := failure.As(err)
				if fe.Expected != bundle.Canonicalization || fe.Actual != recipe.ImageV2.String() {
					t.Errorf("Expected/Actual = %q / %q", fe.Expected, fe.Actual)
				}
			}
		})
	}

	if _, err := e.Verify(ctx, input, nil); !failure.IsKind(err, failure.KindCredentialValidation) {
		t.Errorf("Verify(nil) error = %v, want CredentialValidationError", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := e.Verify(canceled, input, issue(t, "image/png", base)); !failure.IsKind(err, failure.KindCanceled) {
		t.Errorf("Verify(canceled) error = %v, want CanceledError", err)
	}
}

func TestVerifyBusy(t *testing.T) {
	b := fingerprint.NewBuilder(canonical.NewEngine(nil, logging.Discard()), recipe.Default(), fingerprint.BuilderOptions{})
	pool := worker.NewPool(1, time.Minute, logging.Discard())
	e, err := NewEngine(b, pool, DefaultPolicy(), nil)
	if err != nil {
		t.Fatal(err)
	}
	input := testImage(t)
	bundle, err := b.Build(context.Background(), input, "image/png", false)
	if err != nil {
		t.Fatal(err)
	}
	cred := issue(t, "image/png", bundle)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- pool.Do(context.Background(), "hold", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	if _, err := e.Verify(context.Background(), input, cred); !failure.IsKind(err, failure.KindConcurrencyLimit) {
		t.Errorf("Verify() error = %v, want ConcurrencyLimitError", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if _, err := e.Verify(context.Background(), input, cred); err != nil {
		t.Errorf("Verify() after release error = %v", err)
	}
}

func TestNewEngineRejectsBadPolicy(t *testing.T) {
	b := fingerprint.NewBuilder(canonical.NewEngine(nil, logging.Discard()), recipe.Default(), fingerprint.BuilderOptions{})
	p := DefaultPolicy()
	p.RunLength = 0
	if _, err := NewEngine(b, nil, p, nil); err == nil {
		t.Error("NewEngine() expected error for invalid policy")
	}
	if _, err := NewEngine(nil, nil, DefaultPolicy(), nil); err == nil {
		t.Error("NewEngine() expected error without builder")
	}
}
