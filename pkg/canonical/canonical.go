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

// Package canonical implements the versioned pixel pipelines that normalize
// arbitrary input media into a reproducible canonical form.
//
// Canonicalization depends only on the input bytes and the recipe. It never
// mutates its input and keeps no state between calls.
package canonical

import (
	"context"

	"github.com/ipfs/go-cid"

	"github.com/verisource/verisource-api-production-sub000/pkg/decoder"
	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
	"github.com/verisource/verisource-api-production-sub000/pkg/hashing/digests"
	"github.com/verisource/verisource-api-production-sub000/pkg/logging"
	"github.com/verisource/verisource-api-production-sub000/pkg/media"
	"github.com/verisource/verisource-api-production-sub000/pkg/recipe"
	"github.com/verisource/verisource-api-production-sub000/pkg/tracing"
)

// FrameSink receives canonical frames in index order. Frames are read-only;
// consecutive video frames may share pixel buffers when a source frame is
// duplicated.
type FrameSink func(media.Frame) error

// Output summarizes one canonicalization.
type Output struct {
	// Recipe is the recipe string the output was produced under.
	Recipe string
	// Width and Height are the canonical dimensions (of the last frame for video).
	Width  int
	Height int
	// Frames is the number of canonical frames produced.
	Frames int
	// Encoded holds the canonical PNG bytes for images; nil for video.
	Encoded []byte
	// Digest is SHA-256 of Encoded for images and BLAKE3 of the rgb24
	// frame stream for video.
	Digest digests.Digest
	// CID addresses the canonical bytes.
	CID cid.Cid
}

// Engine dispatches to the image or video pipeline of a recipe.
type Engine struct {
	decoder decoder.Decoder
	logger  logging.Logger
}

// NewEngine creates an engine. dec may be nil when only images are handled.
func NewEngine(dec decoder.Decoder, logger logging.Logger) *Engine {
	return &Engine{decoder: dec, logger: logging.EnsureLogger(logger)}
}

// Canonicalize runs the pipeline of rc over input. sink may be nil.
func (e *Engine) Canonicalize(ctx context.Context, input []byte, rc recipe.Recipe, sink FrameSink) (*Output, error) {
	var out *Output
	err := tracing.Run(ctx, tracing.StageCanonicalize, map[string]interface{}{
		"recipe":      rc.String(),
		"input_bytes": len(input),
	}, func(ctx context.Context) error {
		if err := failure.FromContext(ctx, "canonicalize"); err != nil {
			return err
		}

		var err error
		switch rc.Family() {
		case recipe.FamilyImage:
			out, err = e.canonicalizeImage(ctx, input, rc, sink)
		case recipe.FamilyVideo:
			out, err = e.canonicalizeVideo(ctx, input, rc, sink)
		default:
			err = failure.Newf(failure.KindUnsupportedRecipe, "canonicalize",
				"no pipeline for recipe %q", rc.String())
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(map[string]interface{}{
		"recipe": out.Recipe,
		"frames": out.Frames,
		"digest": out.Digest.String(),
	}).Debugln("canonicalized")
	return out, nil
}

func withCID(out *Output) (*Output, error) {
	id, err := out.Digest.CID()
	if err != nil {
		return nil, failure.Wrap(failure.KindHashComputation, "canonicalize", "addressing canonical bytes", err)
	}
	out.CID = id
	return out, nil
}
