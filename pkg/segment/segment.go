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

// Package segment reduces per-frame perceptual hashes to fixed-length,
// non-overlapping segment hashes.
package segment

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
	hashengines "github.com/verisource/verisource-api-production-sub000/pkg/hashing/engines"
	"github.com/verisource/verisource-api-production-sub000/pkg/hashing/engines/memory"
	"github.com/verisource/verisource-api-production-sub000/pkg/phash"
)

// FramesPerWindow returns F = fps * seconds for a frame rate in
// thousandths of a frame per second. The product must be a whole number
// of frames.
func FramesPerWindow(fpsMilli, seconds int) (int, error) {
	if fpsMilli <= 0 || seconds <= 0 {
		return 0, fmt.Errorf("invalid segment window: fps=%d/1000 seconds=%d", fpsMilli, seconds)
	}
	total := fpsMilli * seconds
	if total%1000 != 0 {
		return 0, fmt.Errorf("segment window of %ds at %d.%03d fps is not a whole number of frames",
			seconds, fpsMilli/1000, fpsMilli%1000)
	}
	return total / 1000, nil
}

// Hash is one segment hash.
type Hash struct {
	Index  int
	Digest string
}

var tokenPattern = regexp.MustCompile(`^seg_(0|[1-9][0-9]*):([0-9a-f]+)$`)

// String renders "seg_<index>:<hex>".
func (h Hash) String() string {
	return "seg_" + strconv.Itoa(h.Index) + ":" + h.Digest
}

// Parse reads a segment token.
func Parse(token string) (Hash, error) {
	m := tokenPattern.FindStringSubmatch(token)
	if m == nil {
		return Hash{}, fmt.Errorf("invalid segment token %q", token)
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil {
		return Hash{}, fmt.Errorf("invalid segment index in %q: %w", token, err)
	}
	return Hash{Index: idx, Digest: m[2]}, nil
}

// ParseAll reads a token list and checks that indices are contiguous from 0.
func ParseAll(tokens []string) ([]Hash, error) {
	out := make([]Hash, len(tokens))
	for i, tok := range tokens {
		h, err := Parse(tok)
		if err != nil {
			return nil, err
		}
		if h.Index != i {
			return nil, fmt.Errorf("segment token %q at position %d: indices must be contiguous from 0", tok, i)
		}
		out[i] = h
	}
	return out, nil
}

// Strings renders hashes as tokens.
func Strings(hashes []Hash) []string {
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.String()
	}
	return out
}

// Builder partitions frame hashes into windows and hashes each window.
type Builder struct {
	// FramesPerWindow is F, the exact number of frames per segment.
	FramesPerWindow int
	// Algorithm names the registered hash engine used per window.
	Algorithm string
}

// NewBuilder returns a SHA-256 builder with F frames per window.
func NewBuilder(framesPerWindow int) *Builder {
	return &Builder{FramesPerWindow: framesPerWindow, Algorithm: memory.SHA256}
}

// Build hashes every complete window of frame hashes. A trailing remainder
// shorter than one window is dropped.
func (b *Builder) Build(frames []phash.Hash) ([]Hash, error) {
	if len(frames) == 0 {
		return nil, failure.New(failure.KindEmptyFingerprint, "segment", "no frames to fingerprint")
	}
	if b.FramesPerWindow <= 0 {
		return nil, failure.Newf(failure.KindHashComputation, "segment",
			"invalid window of %d frames", b.FramesPerWindow)
	}

	engine, err := hashengines.New(b.Algorithm)
	if err != nil {
		return nil, failure.Wrap(failure.KindHashComputation, "segment", "creating segment hasher", err)
	}

	n := len(frames) / b.FramesPerWindow
	if n == 0 {
		return nil, failure.Newf(failure.KindEmptyFingerprint, "segment",
			"%d frames are fewer than one %d-frame window", len(frames), b.FramesPerWindow)
	}

	out := make([]Hash, 0, n)
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.Reset()
		for _, fh := range frames[i*b.FramesPerWindow : (i+1)*b.FramesPerWindow] {
			sb.WriteString(fh.Hex())
		}
		engine.Reset()
		_, _ = io.WriteString(engine, sb.String())
		out = append(out, Hash{Index: i, Digest: engine.Digest().Hex()})
	}
	return out, nil
}
