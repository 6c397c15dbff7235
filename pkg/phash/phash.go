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

// Package phash computes 64-bit DCT perceptual hashes of canonical frames.
//
// The frame is reduced to a 32x32 luma grid, transformed with a separable
// 2-D DCT-II, and the low-frequency 8x8 block is thresholded against the
// median of its 63 non-DC coefficients. Bits are packed row-major, most
// significant bit first.
package phash

import (
	"fmt"
	"math"
	"math/bits"
	"sort"
	"strconv"
	"strings"

	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
	"github.com/verisource/verisource-api-production-sub000/pkg/media"
)

const (
	// GridSize is the side of the downsampled luma grid.
	GridSize = 32
	// BlockSize is the side of the retained low-frequency block.
	BlockSize = 8
	// Bits is the hash width.
	Bits = BlockSize * BlockSize

	// Tag prefixes the rendered hash.
	Tag = "phash:"
)

// cosTable[k][n] = cos(pi*(2n+1)*k / 2N), only the rows the 8x8 block needs.
var cosTable = func() [BlockSize][GridSize]float64 {
	var t [BlockSize][GridSize]float64
	for k := 0; k < BlockSize; k++ {
		for n := 0; n < GridSize; n++ {
			t[k][n] = math.Cos(math.Pi * float64(2*n+1) * float64(k) / (2 * GridSize))
		}
	}
	return t
}()

// Hash is a 64-bit perceptual hash.
type Hash uint64

// String renders the hash as "phash:" followed by 16 lowercase hex digits.
func (h Hash) String() string {
	return fmt.Sprintf("%s%016x", Tag, uint64(h))
}

// Hex returns the 16 hex digits without the tag.
func (h Hash) Hex() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// Parse reads a hash rendered by String. The tag is required.
func Parse(s string) (Hash, error) {
	hexPart, ok := strings.CutPrefix(s, Tag)
	if !ok || len(hexPart) != Bits/4 {
		return 0, fmt.Errorf("invalid perceptual hash %q", s)
	}
	v, err := strconv.ParseUint(hexPart, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid perceptual hash %q: %w", s, err)
	}
	return Hash(v), nil
}

// Distance returns the Hamming distance between two hashes.
func Distance(a, b Hash) int {
	return bits.OnesCount64(uint64(a ^ b))
}

// Compute hashes one canonical frame.
func Compute(f media.Frame) (Hash, error) {
	if err := f.Validate(); err != nil {
		return 0, failure.Wrap(failure.KindHashComputation, "phash",
			fmt.Sprintf("frame %d cannot be hashed", f.Index), err)
	}

	grid := downsample(f)
	coeffs := lowFrequencyDCT(&grid)

	ac := make([]float64, 0, Bits-1)
	ac = append(ac, coeffs[1:]...)
	sort.Float64s(ac)
	median := ac[len(ac)/2]

	var h uint64
	for i, c := range coeffs {
		if c > median {
			h |= 1 << uint(Bits-1-i)
		}
	}
	return Hash(h), nil
}

// downsample reduces the frame to a GridSize x GridSize luma grid by area
// averaging. Luma uses integer ITU-R 601 weights so the grid is exact.
func downsample(f media.Frame) [GridSize][GridSize]float64 {
	var grid [GridSize][GridSize]float64
	stride := f.Stride()

	for gy := 0; gy < GridSize; gy++ {
		y0, y1 := span(gy, f.Height)
		for gx := 0; gx < GridSize; gx++ {
			x0, x1 := span(gx, f.Width)

			var sum, count uint64
			for y := y0; y < y1; y++ {
				row := f.Pix[y*stride:]
				for x := x0; x < x1; x++ {
					p := row[x*3 : x*3+3]
					sum += (299*uint64(p[0]) + 587*uint64(p[1]) + 114*uint64(p[2]) + 500) / 1000
					count++
				}
			}
			grid[gy][gx] = float64(sum) / float64(count)
		}
	}
	return grid
}

// span returns the source range [lo, hi) covered by grid cell i. Every cell
// covers at least one source pixel, so frames smaller than the grid repeat.
func span(i, size int) (int, int) {
	lo := i * size / GridSize
	hi := (i + 1) * size / GridSize
	if hi <= lo {
		hi = lo + 1
	}
	if lo >= size {
		lo, hi = size-1, size
	}
	return lo, hi
}

// lowFrequencyDCT applies the DCT-II to rows then columns and returns the
// top-left BlockSize x BlockSize coefficients in row-major order. Only the
// needed output frequencies are computed. Products are rounded explicitly
// so the compiler cannot fuse them into FMA instructions on some GOARCHes.
func lowFrequencyDCT(grid *[GridSize][GridSize]float64) [Bits]float64 {
	var rows [GridSize][BlockSize]float64
	for y := 0; y < GridSize; y++ {
		for k := 0; k < BlockSize; k++ {
			var acc float64
			for n := 0; n < GridSize; n++ {
				acc += float64(grid[y][n] * cosTable[k][n])
			}
			rows[y][k] = acc
		}
	}

	var out [Bits]float64
	for u := 0; u < BlockSize; u++ {
		for v := 0; v < BlockSize; v++ {
			var acc float64
			for n := 0; n < GridSize; n++ {
				acc += float64(rows[n][v] * cosTable[u][n])
			}
			out[u*BlockSize+v] = acc
		}
	}
	return out
}
