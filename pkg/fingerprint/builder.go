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
	"context"
	"errors"
	"runtime"

	"github.com/verisource/verisource-api-production-sub000/pkg/canonical"
	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
	"github.com/verisource/verisource-api-production-sub000/pkg/media"
	"github.com/verisource/verisource-api-production-sub000/pkg/phash"
	"github.com/verisource/verisource-api-production-sub000/pkg/recipe"
	"github.com/verisource/verisource-api-production-sub000/pkg/segment"
	"github.com/verisource/verisource-api-production-sub000/pkg/tracing"
)

// Fingerprint is the freshly computed fingerprint of one asset.
type Fingerprint struct {
	Recipe recipe.Recipe
	Output *canonical.Output

	// PHash is set for images.
	PHash phash.Hash
	// FrameHashes and Segments are set for video.
	FrameHashes []phash.Hash
	Segments    []segment.Hash
}

// Bundle renders the fingerprint in wire form.
func (f *Fingerprint) Bundle() *Bundle {
	algorithm, _ := AlgorithmFor(f.Recipe.Family())
	b := &Bundle{Algorithm: algorithm, Canonicalization: f.Recipe.String()}
	if f.Recipe.Family() == recipe.FamilyVideo {
		b.SegmentHashes = segment.Strings(f.Segments)
	} else {
		b.SHA256Canonical = f.Output.Digest.Hex()
		b.PerceptualHash = f.PHash.String()
	}
	return b
}

// BuilderOptions tune a Builder.
type BuilderOptions struct {
	// Workers bounds concurrent per-frame hashing. Zero means GOMAXPROCS.
	Workers int
}

// Builder canonicalizes assets and derives their fingerprints. Issuers use
// Build; the verifier calls Compute with the recipe a credential declares.
type Builder struct {
	engine   *canonical.Engine
	registry *recipe.Registry
	opts     BuilderOptions
}

// NewBuilder creates a builder over engine and registry.
func NewBuilder(engine *canonical.Engine, registry *recipe.Registry, opts BuilderOptions) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Builder{engine: engine, registry: registry, opts: opts}
}

// Registry returns the recipe registry the builder resolves against.
func (b *Builder) Registry() *recipe.Registry {
	return b.registry
}

// Compute canonicalizes input under rc and hashes the result.
func (b *Builder) Compute(ctx context.Context, input []byte, rc recipe.Recipe) (*Fingerprint, error) {
	switch rc.Family() {
	case recipe.FamilyImage:
		return b.computeImage(ctx, input, rc)
	case recipe.FamilyVideo:
		return b.computeVideo(ctx, input, rc)
	default:
		return nil, failure.Newf(failure.KindUnsupportedRecipe, "fingerprint", "no fingerprint scheme for recipe %q", rc.String())
	}
}

func (b *Builder) computeImage(ctx context.Context, input []byte, rc recipe.Recipe) (*Fingerprint, error) {
	fp := &Fingerprint{Recipe: rc}
	var frame media.Frame
	out, err := b.engine.Canonicalize(ctx, input, rc, func(f media.Frame) error {
		frame = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	fp.Output = out

	err = tracing.Run(ctx, tracing.StagePerceptual, map[string]interface{}{"frames": 1}, func(context.Context) error {
		fp.PHash, err = phash.Compute(frame)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fp, nil
}

func (b *Builder) computeVideo(ctx context.Context, input []byte, rc recipe.Recipe) (*Fingerprint, error) {
	params, _ := rc.Video()
	perWindow, err := segment.FramesPerWindow(params.FPSMilli, params.WindowSeconds)
	if err != nil {
		return nil, failure.Wrap(failure.KindUnsupportedRecipe, "segment", "recipe frame rate does not fit the segment window", err)
	}

	fp := &Fingerprint{Recipe: rc}
	batch := phash.NewBatch(ctx, b.opts.Workers)
	out, cerr := b.engine.Canonicalize(ctx, input, rc, batch.Submit)
	hashes, werr := batch.Wait()
	switch {
	case werr != nil && !errors.Is(werr, context.Canceled) && !errors.Is(werr, context.DeadlineExceeded):
		// a failing hash cancels the batch, which surfaces as a sink error
		return nil, werr
	case cerr != nil:
		return nil, cerr
	case werr != nil:
		if err := failure.FromContext(ctx, "phash"); err != nil {
			return nil, err
		}
		return nil, failure.Wrap(failure.KindHashComputation, "phash", "hashing frames", werr)
	}
	fp.Output = out
	fp.FrameHashes = hashes

	err = tracing.Run(ctx, tracing.StageSegments, map[string]interface{}{
		"frames":            len(hashes),
		"frames_per_window": perWindow,
	}, func(context.Context) error {
		fp.Segments, err = segment.NewBuilder(perWindow).Build(hashes)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fp, nil
}

// Build computes the bundle an issuer embeds in a credential for an asset
// of the given IANA media type, using the registry's current recipe. With
// withLegacy set, image bundles also carry the img:v1 alternative hash.
func (b *Builder) Build(ctx context.Context, input []byte, mediaType string, withLegacy bool) (*Bundle, error) {
	mt, err := media.TypeOf(mediaType)
	if err != nil {
		return nil, failure.Wrap(failure.KindUnsupportedRecipe, "fingerprint", "no recipe for media type", err)
	}
	family := recipe.FamilyImage
	if mt == media.TypeVideo {
		family = recipe.FamilyVideo
	}
	rc, err := b.registry.Current(family)
	if err != nil {
		return nil, err
	}

	fp, err := b.Compute(ctx, input, rc)
	if err != nil {
		return nil, err
	}
	bundle := fp.Bundle()

	if withLegacy && family == recipe.FamilyImage && rc.Key() != LegacyImageKey {
		legacy, err := b.registry.Lookup(LegacyImageKey)
		if err != nil {
			return nil, err
		}
		out, err := b.engine.Canonicalize(ctx, input, legacy, nil)
		if err != nil {
			return nil, err
		}
		bundle.Ext = &Ext{AltHashes: map[string]string{LegacyImageKey: out.Digest.Hex()}}
	}
	return bundle, nil
}
