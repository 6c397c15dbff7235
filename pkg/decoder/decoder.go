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

// Package decoder turns encoded video into a stream of raw rgb24 frames at the
// spatial and colour parameters of a recipe. Temporal resampling is left to
// the caller so that it stays independent of the decoder implementation.
package decoder

import (
	"context"
	"time"

	"github.com/verisource/verisource-api-production-sub000/pkg/recipe"
)

// RawFrame is one decoded frame on the source timeline.
type RawFrame struct {
	// PTS is the presentation timestamp relative to the start of the stream.
	PTS time.Duration
	// Width and Height are in pixels.
	Width  int
	Height int
	// Pix holds Height rows of Width*3 bytes. It is owned by the caller.
	Pix []byte
}

// Stream is a bounded-lifetime handle to a running decode.
// Close must always be called and releases every resource the decode holds,
// including temporary files and subprocesses.
type Stream interface {
	// Next returns the next frame or io.EOF once the stream is exhausted.
	Next(ctx context.Context) (RawFrame, error)
	// Close stops the decode and releases its resources.
	Close() error
}

// Decoder opens decode streams.
type Decoder interface {
	Open(ctx context.Context, input []byte, params recipe.VideoParams) (Stream, error)
}

// WithStream opens a stream, passes it to fn and closes it on every exit
// path, including panics and cancellation.
func WithStream(ctx context.Context, d Decoder, input []byte, params recipe.VideoParams, fn func(Stream) error) (err error) {
	s, err := d.Open(ctx, input, params)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(s)
}
