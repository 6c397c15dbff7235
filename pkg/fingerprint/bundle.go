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

// Package fingerprint models the FingerprintBundle carried inside a
// provenance credential and computes fingerprints for reference and
// candidate assets.
//
// A bundle is resolved exactly once into a Resolved value whose Shape says
// which comparison paths apply:
//
//	ShapeCurrent     recipe at the current version, no legacy hashes
//	ShapeTransition  img:v2 with an img:v1 alternative hash
//	ShapeLegacyV1    credential issued under img:v1
//
// The declared recipe string is never rebuilt from other fields.
package fingerprint

import (
	"fmt"
	"regexp"

	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
	"github.com/verisource/verisource-api-production-sub000/pkg/media"
	"github.com/verisource/verisource-api-production-sub000/pkg/phash"
	"github.com/verisource/verisource-api-production-sub000/pkg/recipe"
	"github.com/verisource/verisource-api-production-sub000/pkg/segment"
)

const (
	// AlgorithmImage tags image bundles: SHA-256 of the canonical PNG plus a pHash.
	AlgorithmImage = "sha256+phash"
	// AlgorithmVideo tags video bundles: SHA-256 segment hashes over frame pHashes.
	AlgorithmVideo = "sha256+segphash"
)

// LegacyImageKey is the alt_hashes key of the pre-v2 image hash.
var LegacyImageKey = recipe.ImageV1.Key()

var sha256Hex = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Ext holds optional bundle extensions.
type Ext struct {
	// AltHashes maps a recipe key such as "img:v1" to the hex SHA-256 of the
	// canonical output under that recipe.
	AltHashes map[string]string `json:"alt_hashes,omitempty" yaml:"alt_hashes,omitempty"`
}

// Bundle is the wire form of a fingerprint bundle.
type Bundle struct {
	Algorithm        string   `json:"algorithm" yaml:"algorithm" validate:"required,max=64"`
	Canonicalization string   `json:"canonicalization" yaml:"canonicalization" validate:"required,max=512"`
	SHA256Canonical  string   `json:"sha256_canonical,omitempty" yaml:"sha256_canonical,omitempty" validate:"omitempty,len=64,hexadecimal"`
	PerceptualHash   string   `json:"perceptualHash,omitempty" yaml:"perceptualHash,omitempty" validate:"omitempty,startswith=phash:"`
	SegmentHashes    []string `json:"segmentHashes,omitempty" yaml:"segmentHashes,omitempty" validate:"omitempty,dive,startswith=seg_"`
	Ext              *Ext     `json:"ext,omitempty" yaml:"ext,omitempty"`
}

// AlgorithmFor returns the algorithm tag expected for a recipe family.
func AlgorithmFor(f recipe.Family) (string, bool) {
	switch f {
	case recipe.FamilyImage:
		return AlgorithmImage, true
	case recipe.FamilyVideo:
		return AlgorithmVideo, true
	default:
		return "", false
	}
}

// Shape discriminates the credential layouts the verifier understands.
type Shape int

const (
	ShapeCurrent Shape = iota
	ShapeTransition
	ShapeLegacyV1
)

func (s Shape) String() string {
	switch s {
	case ShapeTransition:
		return "transition"
	case ShapeLegacyV1:
		return "legacy-v1"
	default:
		return "current"
	}
}

// ImageHashes are the declared hashes of an image bundle.
type ImageHashes struct {
	// SHA256 is the lowercase hex SHA-256 of the canonical PNG.
	SHA256 string
	// PHash is valid when HasPHash is set. Legacy credentials may omit it.
	PHash    phash.Hash
	HasPHash bool
	// LegacyV1 is the img:v1 alternative hash of a transition credential.
	LegacyV1 string
}

// Resolved is a validated bundle.
type Resolved struct {
	Shape  Shape
	Prefix recipe.Prefix
	// Recipe is the declared canonicalization string, verbatim.
	Recipe string
	Media  media.Type

	Image    *ImageHashes
	Segments []segment.Hash
}

// Resolve validates b and classifies its shape. A recipe that cannot be
// parsed or an algorithm tag that does not fit the recipe family yields
// KindCredentialIncompatible; missing or malformed hashes yield
// KindCredentialValidation.
func (b *Bundle) Resolve() (*Resolved, error) {
	if b.Canonicalization == "" {
		return nil, failure.New(failure.KindCredentialValidation, "credential", "fingerprint bundle has no canonicalization recipe")
	}
	prefix, err := recipe.ParsePrefix(b.Canonicalization)
	if err != nil {
		return nil, failure.Recast(err, failure.KindUnsupportedRecipe, failure.KindCredentialIncompatible)
	}
	want, _ := AlgorithmFor(prefix.Family)
	if b.Algorithm != want {
		return nil, failure.Mismatch(failure.KindCredentialIncompatible, "credential",
			fmt.Sprintf("algorithm tag does not fit a %s recipe", prefix.Family), want, b.Algorithm)
	}

	r := &Resolved{Prefix: prefix, Recipe: b.Canonicalization}
	if prefix.Family == recipe.FamilyVideo {
		r.Media = media.TypeVideo
		if len(b.SegmentHashes) == 0 {
			return nil, failure.New(failure.KindCredentialValidation, "credential", "video bundle has no segment hashes")
		}
		if r.Segments, err = segment.ParseAll(b.SegmentHashes); err != nil {
			return nil, failure.Wrap(failure.KindCredentialValidation, "credential", "invalid segment hashes", err)
		}
		return r, nil
	}

	r.Media = media.TypeImage
	if err := b.resolveImage(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (b *Bundle) resolveImage(r *Resolved) error {
	if !sha256Hex.MatchString(b.SHA256Canonical) {
		return failure.New(failure.KindCredentialValidation, "credential",
			"sha256_canonical must be 64 lowercase hex characters")
	}
	img := &ImageHashes{SHA256: b.SHA256Canonical}
	legacy := r.Prefix.Key() == LegacyImageKey

	switch {
	case b.PerceptualHash != "":
		h, err := phash.Parse(b.PerceptualHash)
		if err != nil {
			return failure.Wrap(failure.KindCredentialValidation, "credential", "invalid perceptualHash", err)
		}
		img.PHash, img.HasPHash = h, true
	case !legacy:
		return failure.New(failure.KindCredentialValidation, "credential", "image bundle has no perceptualHash")
	}

	r.Image = img
	switch {
	case legacy:
		r.Shape = ShapeLegacyV1
	case b.Ext != nil && b.Ext.AltHashes[LegacyImageKey] != "":
		alt := b.Ext.AltHashes[LegacyImageKey]
		if !sha256Hex.MatchString(alt) {
			return failure.Newf(failure.KindCredentialValidation, "credential",
				"alt_hashes[%q] must be 64 lowercase hex characters", LegacyImageKey)
		}
		img.LegacyV1 = alt
		r.Shape = ShapeTransition
	default:
		r.Shape = ShapeCurrent
	}
	return nil
}
