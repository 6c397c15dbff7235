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
	"context"
	"errors"
	"io"

	"github.com/verisource/verisource-api-production-sub000/pkg/decoder"
	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
	hashengines "github.com/verisource/verisource-api-production-sub000/pkg/hashing/engines"
	"github.com/verisource/verisource-api-production-sub000/pkg/hashing/engines/memory"
	"github.com/verisource/verisource-api-production-sub000/pkg/media"
	"github.com/verisource/verisource-api-production-sub000/pkg/recipe"
)

func (e *Engine) canonicalizeVideo(ctx context.Context, input []byte, rc recipe.Recipe, sink FrameSink) (*Output, error) {
	params, ok := rc.Video()
	if !ok {
		return nil, failure.Newf(failure.KindUnsupportedRecipe, "canonicalize", "recipe %s has no video parameters", rc.Key())
	}
	if e.decoder == nil {
		return nil, failure.New(failure.KindDecode, "decode", "no video decoder configured")
	}
	if params.FPSMilli <= 0 {
		return nil, failure.Newf(failure.KindUnsupportedRecipe, "canonicalize", "recipe %s has no frame rate", rc.Key())
	}

	stream, err := hashengines.New(memory.BLAKE3)
	if err != nil {
		return nil, failure.Wrap(failure.KindHashComputation, "canonicalize", "creating stream hasher", err)
	}

	out := &Output{Recipe: rc.String()}
	rs := NewResampler(params.FPSMilli, func(f media.Frame) error {
		_, _ = stream.Write(f.Pix)
		out.Width, out.Height = f.Width, f.Height
		if sink != nil {
			return sink(f)
		}
		return nil
	})

	dropped := 0
	err = decoder.WithStream(ctx, e.decoder, input, params, func(s decoder.Stream) error {
		for {
			raw, err := s.Next(ctx)
			if errors.Is(err, io.EOF) {
				return rs.Flush()
			}
			if err != nil {
				return err
			}
			if raw.Width > params.MaxEdge || raw.Height > params.MaxEdge {
				return failure.Newf(failure.KindDecode, "decode",
					"decoder returned %dx%d, larger than the %d px bound", raw.Width, raw.Height, params.MaxEdge)
			}
			accepted, err := rs.Push(media.Frame{PTS: raw.PTS, Width: raw.Width, Height: raw.Height, Pix: raw.Pix})
			if err != nil {
				return err
			}
			if !accepted {
				dropped++
			}
		}
	})
	if cerr := failure.FromContext(ctx, "decode"); cerr != nil {
		return nil, cerr
	}
	if err != nil {
		if _, ok := failure.As(err); ok {
			return nil, err
		}
		return nil, failure.Wrap(failure.KindDecode, "decode", "reading video", err)
	}
	if dropped > 0 {
		e.logger.WithField("recipe", rc.Key()).Debug("dropped %d frames with non-increasing timestamps", dropped)
	}

	out.Frames = rs.Count()
	if out.Frames == 0 {
		return nil, failure.New(failure.KindEmptyFingerprint, "canonicalize", "video produced no frames")
	}
	out.Digest = stream.Digest()
	return withCID(out)
}
