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

package fingerprint

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/verisource/verisource-api-production-sub000/pkg/canonical"
	"github.com/verisource/verisource-api-production-sub000/pkg/decoder"
	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
	"github.com/verisource/verisource-api-production-sub000/pkg/logging"
	"github.com/verisource/verisource-api-production-sub000/pkg/recipe"
	"github.com/verisource/verisource-api-production-sub000/pkg/segment"
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

// movingBars renders n frames at 30 fps with a bar that moves each frame.
func movingBars(n int) []decoder.RawFrame {
	const w, h = 64, 36
	frames := make([]decoder.RawFrame, n)
	for i := range frames {
		pix := make([]byte, w*h*3)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := byte(20)
				if (x+2*i)%w < 16 {
					v = 230
				}
				o := (y*w + x) * 3
				pix[o], pix[o+1], pix[o+2] = v, byte(y*7), 128
			}
		}
		frames[i] = decoder.RawFrame{PTS: time.Duration(i) * 33333 * time.Microsecond, Width: w, Height: h, Pix: pix}
	}
	return frames
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 48, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 48; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 5), G: uint8(y * 8), B: uint8((x ^ y) * 4), A: 200})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newBuilder(dec decoder.Decoder) *Builder {
	return NewBuilder(canonical.NewEngine(dec, logging.Discard()), recipe.Default(), BuilderOptions{Workers: 3})
}

func TestBuildImage(t *testing.T) {
	b := newBuilder(nil)
	input := testPNG(t)

	bundle, err := b.Build(context.Background(), input, "image/png", true)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if bundle.Algorithm != AlgorithmImage || bundle.Canonicalization != recipe.ImageV2.String() {
		t.Errorf("bundle = %+v", bundle)
	}
	if !strings.HasPrefix(bundle.PerceptualHash, "phash:") || len(bundle.SHA256Canonical) != 64 {
		t.Errorf("bundle hashes = %q, %q", bundle.SHA256Canonical, bundle.PerceptualHash)
	}
	alt := bundle.Ext.AltHashes["img:v1"]
	if len(alt) != 64 || alt == bundle.SHA256Canonical {
		t.Errorf("alt hash = %q", alt)
	}

	r, err := bundle.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if r.Shape != ShapeTransition {
		t.Errorf("Shape = %v, want transition", r.Shape)
	}

	fp, err := b.Compute(context.Background(), input, recipe.ImageV2)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if fp.Output.Digest.Hex() != bundle.SHA256Canonical || fp.PHash.String() != bundle.PerceptualHash {
		t.Error("Compute() disagrees with Build()")
	}

	plain, err := b.Build(context.Background(), input, "image/png", false)
	if err != nil {
		t.Fatal(err)
	}
	if plain.Ext != nil {
		t.Errorf("Ext = %+v without legacy hashes", plain.Ext)
	}
}

func TestBuildVideo(t *testing.T) {
	// 45 frames at 30 fps resample to 23 frames at 15 fps: one full window.
	b := newBuilder(clipDecoder{frames: movingBars(45)})

	fp, err := b.Compute(context.Background(), []byte("clip"), recipe.VideoV1)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if len(fp.FrameHashes) != 23 {
		t.Fatalf("frame hashes = %d, want 23", len(fp.FrameHashes))
	}
	if len(fp.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(fp.Segments))
	}

	var concat strings.Builder
	for _, h := range fp.FrameHashes[:15] {
		concat.WriteString(h.Hex())
	}
	sum := sha256.Sum256([]byte(concat.String()))
	if fp.Segments[0].Digest != hex.EncodeToString(sum[:]) || fp.Segments[0].Index != 0 {
		t.Errorf("segment = %v", fp.Segments[0])
	}

	bundle, err := b.Build(context.Background(), []byte("clip"), "video/mp4", true)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if bundle.Algorithm != AlgorithmVideo || len(bundle.SegmentHashes) != 1 || bundle.Ext != nil {
		t.Errorf("bundle = %+v", bundle)
	}
	if bundle.SegmentHashes[0] != fp.Segments[0].String() {
		t.Error("Build() is not deterministic")
	}
}

func TestBuildVideoWindowComesFromRecipe(t *testing.T) {
	params, _ := recipe.VideoV1.Video()
	if params.WindowSeconds != 1 {
		t.Fatalf("vid:v1 window = %ds, want 1s", params.WindowSeconds)
	}
	frames := movingBars(90)

	// Builder options never change the segmentation.
	a, err := NewBuilder(canonical.NewEngine(clipDecoder{frames: frames}, logging.Discard()), recipe.Default(), BuilderOptions{Workers: 1}).
		Compute(context.Background(), []byte("clip"), recipe.VideoV1)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	b, err := NewBuilder(canonical.NewEngine(clipDecoder{frames: frames}, logging.Discard()), recipe.Default(), BuilderOptions{Workers: 8}).
		Compute(context.Background(), []byte("clip"), recipe.VideoV1)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if len(a.Segments) != 3 || strings.Join(segment.Strings(a.Segments), ",") != strings.Join(segment.Strings(b.Segments), ",") {
		t.Errorf("segments differ across builders: %v vs %v", a.Segments, b.Segments)
	}

	params.WindowSeconds = 2
	wide := recipe.NewVideo(1, params)
	c, err := newBuilder(clipDecoder{frames: frames}).Compute(context.Background(), []byte("clip"), wide)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if len(c.Segments) != 1 || c.Segments[0].Digest == a.Segments[0].Digest {
		t.Errorf("two second windows = %v", c.Segments)
	}
}

func TestBuildVideoTooShort(t *testing.T) {
	b := newBuilder(clipDecoder{frames: movingBars(20)})
	if _, err := b.Compute(context.Background(), []byte("clip"), recipe.VideoV1); !failure.IsKind(err, failure.KindEmptyFingerprint) {
		t.Errorf("Compute() error = %v, want EmptyFingerprintError", err)
	}
}

func TestBuildUnknownMediaType(t *testing.T) {
	if _, err := newBuilder(nil).Build(context.Background(), nil, "audio/mpeg", false); !failure.IsKind(err, failure.KindUnsupportedRecipe) {
		t.Errorf("Build() error = %v, want UnsupportedRecipeError", err)
	}
}
