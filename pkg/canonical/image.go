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

package canonical

import (
	"bytes"
	"context"
	"image"
	"image/png"

	// Additional input formats; imaging registers jpeg, png and gif.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"

	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
	hashengines "github.com/verisource/verisource-api-production-sub000/pkg/hashing/engines"
	"github.com/verisource/verisource-api-production-sub000/pkg/hashing/engines/memory"
	"github.com/verisource/verisource-api-production-sub000/pkg/media"
	"github.com/verisource/verisource-api-production-sub000/pkg/recipe"
)

// maxImagePixels rejects decompression bombs before any pixel work.
const maxImagePixels = 100_000_000

// canonicalizeImage checks ctx after every pixel stage so an aborted job
// stops within one stage.
func (e *Engine) canonicalizeImage(ctx context.Context, input []byte, rc recipe.Recipe, sink FrameSink) (*Output, error) {
	params, ok := rc.Image()
	if !ok {
		return nil, failure.Newf(failure.KindUnsupportedRecipe, "canonicalize", "recipe %s has no image parameters", rc.Key())
	}
	encoder, err := pngEncoder(params.CompressionLevel)
	if err != nil {
		return nil, err
	}

	img, err := decodeImage(input)
	if err != nil {
		return nil, err
	}
	if err := failure.FromContext(ctx, "decode"); err != nil {
		return nil, err
	}

	nrgba := ToSRGB(img)
	if err := failure.FromContext(ctx, "srgb"); err != nil {
		return nil, err
	}
	if params.MaxEdge > 0 {
		nrgba = BoundLongestEdge(nrgba, params.MaxEdge)
	}
	if err := failure.FromContext(ctx, "resize"); err != nil {
		return nil, err
	}
	if params.FlattenWhite {
		nrgba = FlattenOnWhite(nrgba)
	}
	if err := failure.FromContext(ctx, "flatten"); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := encoder.Encode(&buf, nrgba); err != nil {
		return nil, failure.Wrap(failure.KindHashComputation, "encode", "encoding canonical PNG", err)
	}
	if err := failure.FromContext(ctx, "encode"); err != nil {
		return nil, err
	}
	encoded := buf.Bytes()

	digest, err := hashengines.Sum(memory.SHA256, encoded)
	if err != nil {
		return nil, failure.Wrap(failure.KindHashComputation, "encode", "hashing canonical PNG", err)
	}

	b := nrgba.Bounds()
	if sink != nil {
		if err := sink(media.FromImage(0, nrgba)); err != nil {
			return nil, err
		}
	}

	return withCID(&Output{
		Recipe:  rc.String(),
		Width:   b.Dx(),
		Height:  b.Dy(),
		Frames:  1,
		Encoded: encoded,
		Digest:  digest,
	})
}

// decodeImage decodes input and applies its EXIF orientation.
func decodeImage(input []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		return nil, failure.Wrap(failure.KindDecode, "decode", "unrecognized or corrupt image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxImagePixels {
		return nil, failure.Newf(failure.KindDecode, "decode",
			"image dimensions %dx%d are out of range", cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(input), imaging.AutoOrientation(true))
	if err != nil {
		return nil, failure.Wrap(failure.KindDecode, "decode", "decoding image", err)
	}
	return img, nil
}

// ToSRGB converts any decoded colour model (YCbCr, CMYK, 16-bit, grey,
// paletted) to 8-bit non-premultiplied RGBA anchored at the origin.
// Embedded ICC profiles are not interpreted; pixel data is taken as sRGB.
func ToSRGB(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// BoundLongestEdge downsamples with Lanczos-3 so that neither side exceeds
// maxEdge. Smaller images are returned unchanged.
func BoundLongestEdge(img *image.NRGBA, maxEdge int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() <= maxEdge && b.Dy() <= maxEdge {
		return img
	}
	return imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
}

// FlattenOnWhite composites img over opaque white using integer arithmetic.
func FlattenOnWhite(img *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(img.Bounds())
	for i := 0; i+3 < len(img.Pix); i += 4 {
		a := uint32(img.Pix[i+3])
		for c := 0; c < 3; c++ {
			v := uint32(img.Pix[i+c])
			out.Pix[i+c] = uint8((v*a + 255*(255-a) + 127) / 255)
		}
		out.Pix[i+3] = 0xff
	}
	return out
}

// pngEncoder maps a zlib level to the closest image/png setting. Only levels
// with an exact zlib equivalent are accepted.
func pngEncoder(level int) (*png.Encoder, error) {
	var cl png.CompressionLevel
	switch level {
	case 0:
		cl = png.NoCompression
	case 1:
		cl = png.BestSpeed
	case 6:
		cl = png.DefaultCompression
	case 9:
		cl = png.BestCompression
	default:
		return nil, failure.Newf(failure.KindUnsupportedRecipe, "encode",
			"PNG compression level %d is not supported", level)
	}
	return &png.Encoder{CompressionLevel: cl}, nil
}
