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

// Package media holds the pixel containers exchanged between the decoder,
// the canonicalization pipelines and the perceptual hash.
package media

import (
	"fmt"
	"image"
	"image/draw"
	"time"
)

// PixelFormat is the only layout frames use: packed 8-bit R, G, B.
const PixelFormat = "rgb24"

// Type is the media class of an asset.
type Type string

const (
	// TypeImage is a still image.
	TypeImage Type = "image"
	// TypeVideo is a video.
	TypeVideo Type = "video"
)

// TypeOf maps an IANA media type ("video/mp4") to its class.
func TypeOf(mediaType string) (Type, error) {
	switch {
	case len(mediaType) > 6 && mediaType[:6] == "image/":
		return TypeImage, nil
	case len(mediaType) > 6 && mediaType[:6] == "video/":
		return TypeVideo, nil
	default:
		return "", fmt.Errorf("unsupported media type %q", mediaType)
	}
}

// Frame is one canonical image or video frame in rgb24.
type Frame struct {
	// Index is the zero-based output frame number.
	Index int
	// PTS is the presentation time of the frame on the output timeline.
	PTS time.Duration
	// Width and Height are in pixels.
	Width  int
	Height int
	// Pix holds Height rows of Width*3 bytes.
	Pix []byte
}

// Stride returns the number of bytes per row.
func (f Frame) Stride() int {
	return f.Width * 3
}

// Validate checks the frame is non-empty and its buffer matches its size.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("degenerate frame %dx%d", f.Width, f.Height)
	}
	if want := f.Width * f.Height * 3; len(f.Pix) != want {
		return fmt.Errorf("frame buffer is %d bytes, want %d for %dx%d", len(f.Pix), want, f.Width, f.Height)
	}
	return nil
}

// FromImage converts img to an rgb24 frame. Alpha is dropped without
// compositing; callers that need flattening do it first.
func FromImage(index int, img image.Image) Frame {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || b.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}

	w, h := b.Dx(), b.Dy()
	pix := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		src := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		dst := pix[y*w*3 : (y+1)*w*3]
		for x := 0; x < w; x++ {
			dst[x*3] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}
	return Frame{Index: index, Width: w, Height: h, Pix: pix}
}

// Image returns the frame as an opaque *image.NRGBA.
func (f Frame) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i+2 < len(f.Pix) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = f.Pix[i]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}
