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

// Package recipe defines the frozen, versioned canonicalization pipelines.
//
// A recipe string has the form "<family>:v<N>:<step|step|...>" and is the only
// input a verifier needs to recompute a comparable hash. Recipes are values:
// once registered they are never mutated, and a behavior change always means a
// new version.
package recipe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
)

// Family identifies the media class a recipe applies to.
type Family string

const (
	// FamilyImage is the still image family.
	FamilyImage Family = "img"
	// FamilyVideo is the video family.
	FamilyVideo Family = "vid"
)

// ImageParams holds the parameters of an image pipeline.
type ImageParams struct {
	// MaxEdge bounds the longest edge in pixels. Zero disables resizing.
	MaxEdge int
	// FlattenWhite composites alpha onto an opaque white background.
	FlattenWhite bool
	// CompressionLevel is the zlib level used for the PNG encoding (0-9).
	CompressionLevel int
}

// VideoParams holds the parameters of a video pipeline.
type VideoParams struct {
	// Deinterlace names the deinterlacing filter ("yadif").
	Deinterlace string
	// Matrix is the YUV to RGB colour matrix ("bt709").
	Matrix string
	// Range is the output colour range ("full").
	Range string
	// PixelFormat is the decoded pixel layout ("rgb24").
	PixelFormat string
	// MaxEdge bounds the longest edge in pixels.
	MaxEdge int
	// FPSMilli is the output frame rate in thousandths of a frame per second.
	FPSMilli int
	// Kernel is the spatial resampling kernel ("lanczos3").
	Kernel string
	// WindowSeconds is the segment length the fingerprint groups frames by.
	// It is frozen with the version and not rendered as a step, so changing
	// it requires a new version.
	WindowSeconds int
}

// FrameInterval returns the output frame period as the rational
// num/den seconds.
func (p VideoParams) FrameInterval() (num, den int64) {
	return 1000, int64(p.FPSMilli)
}

// Recipe is an immutable canonicalization pipeline definition.
type Recipe struct {
	family  Family
	version int
	steps   []string
	image   *ImageParams
	video   *VideoParams
}

// NewImage builds an image recipe whose step list is derived from params.
func NewImage(version int, params ImageParams) Recipe {
	steps := []string{"exif-orient", "srgb"}
	if params.MaxEdge > 0 {
		steps = append(steps, fmt.Sprintf("max%d", params.MaxEdge))
	}
	if params.FlattenWhite {
		steps = append(steps, "flatten-white")
	}
	steps = append(steps, fmt.Sprintf("png(cl%d,palette0,prog0)", params.CompressionLevel))

	p := params
	return Recipe{family: FamilyImage, version: version, steps: steps, image: &p}
}

// NewVideo builds a video recipe whose step list is derived from params.
func NewVideo(version int, params VideoParams) Recipe {
	steps := []string{
		"deint=" + params.Deinterlace,
		params.Matrix,
		params.Range,
		params.PixelFormat,
		fmt.Sprintf("max%d", params.MaxEdge),
		fmt.Sprintf("fps%d.%03d", params.FPSMilli/1000, params.FPSMilli%1000),
		"resize=" + params.Kernel,
	}
	p := params
	return Recipe{family: FamilyVideo, version: version, steps: steps, video: &p}
}

// Family returns the media family.
func (r Recipe) Family() Family { return r.family }

// Version returns the version number.
func (r Recipe) Version() int { return r.version }

// Key returns the "<family>:v<N>" prefix that identifies the recipe.
func (r Recipe) Key() string {
	return Key(r.family, r.version)
}

// Steps returns a copy of the ordered pipeline steps.
func (r Recipe) Steps() []string {
	out := make([]string, len(r.steps))
	copy(out, r.steps)
	return out
}

// String returns the full recipe string.
func (r Recipe) String() string {
	return r.Key() + ":" + strings.Join(r.steps, "|")
}

// Image returns the image parameters. ok is false for video recipes.
func (r Recipe) Image() (ImageParams, bool) {
	if r.image == nil {
		return ImageParams{}, false
	}
	return *r.image, true
}

// Video returns the video parameters. ok is false for image recipes.
func (r Recipe) Video() (VideoParams, bool) {
	if r.video == nil {
		return VideoParams{}, false
	}
	return *r.video, true
}

// IsZero reports whether r is the zero Recipe.
func (r Recipe) IsZero() bool {
	return r.family == "" && r.version == 0
}

// Key formats a family and version as "<family>:v<N>".
func Key(f Family, version int) string {
	return string(f) + ":v" + strconv.Itoa(version)
}

// Prefix is the parsed "<family>:v<N>:" head of a recipe string.
type Prefix struct {
	Family   Family
	Version  int
	Pipeline string
}

// Key returns the "<family>:v<N>" form of the prefix.
func (p Prefix) Key() string {
	return Key(p.Family, p.Version)
}

// ParsePrefix splits a recipe string into family, version and pipeline.
// It validates syntax only; whether the version exists is a registry question.
func ParsePrefix(s string) (Prefix, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Prefix{}, failure.Newf(failure.KindUnsupportedRecipe, "recipe",
			"malformed recipe string %q", s)
	}
	fam := Family(parts[0])
	if fam != FamilyImage && fam != FamilyVideo {
		return Prefix{}, failure.Newf(failure.KindUnsupportedRecipe, "recipe",
			"unknown recipe family %q", parts[0])
	}
	if !strings.HasPrefix(parts[1], "v") {
		return Prefix{}, failure.Newf(failure.KindUnsupportedRecipe, "recipe",
			"malformed recipe version %q", parts[1])
	}
	v, err := strconv.Atoi(parts[1][1:])
	if err != nil || v <= 0 || strconv.Itoa(v) != parts[1][1:] {
		return Prefix{}, failure.Newf(failure.KindUnsupportedRecipe, "recipe",
			"malformed recipe version %q", parts[1])
	}
	return Prefix{Family: fam, Version: v, Pipeline: parts[2]}, nil
}
