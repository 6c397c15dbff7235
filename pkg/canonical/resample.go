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
	"time"

	"github.com/verisource/verisource-api-production-sub000/pkg/media"
)

// Resampler converts a variable-rate frame sequence to a constant rate by
// nearest-timestamp selection. Frames are duplicated or dropped, never
// blended. Output frame k sits at k/fps seconds after the first input frame;
// ties go to the earlier input frame. All arithmetic is on integer
// microseconds and the rational frame period, so the selection is exact.
type Resampler struct {
	fpsMilli int64
	emit     func(media.Frame) error

	origin  time.Duration
	started bool
	last    media.Frame
	lastRel int64 // microseconds since origin
	prevGap int64 // spacing between the last two accepted inputs
	next    int64 // index of the next output frame
}

// NewResampler creates a resampler at fpsMilli/1000 frames per second.
func NewResampler(fpsMilli int, emit func(media.Frame) error) *Resampler {
	return &Resampler{fpsMilli: int64(fpsMilli), emit: emit}
}

// reached reports whether output frame k is at or before t microseconds:
// k * 1e9 / fpsMilli <= t.
func (r *Resampler) reached(k, t int64) bool {
	return k*1_000_000_000 <= t*r.fpsMilli
}

// closerToFirst reports whether output frame k is at least as close to a as
// to b (a < b, both in microseconds).
func (r *Resampler) closerToFirst(k, a, b int64) bool {
	return 2*k*1_000_000_000 <= (a+b)*r.fpsMilli
}

func (r *Resampler) out(src media.Frame) error {
	f := src
	f.Index = int(r.next)
	f.PTS = time.Duration(r.next * 1_000_000_000_000 / r.fpsMilli)
	r.next++
	return r.emit(f)
}

// Push feeds the next decoded frame. Frames whose timestamp does not advance
// are dropped and reported with accepted=false.
func (r *Resampler) Push(f media.Frame) (accepted bool, err error) {
	if !r.started {
		r.started = true
		r.origin = f.PTS
		r.last = f
		r.lastRel = 0
		for r.reached(r.next, 0) {
			if err := r.out(f); err != nil {
				return true, err
			}
		}
		return true, nil
	}

	rel := (f.PTS - r.origin).Microseconds()
	if rel <= r.lastRel {
		return false, nil
	}

	for r.reached(r.next, rel) {
		pick := f
		if r.closerToFirst(r.next, r.lastRel, rel) {
			pick = r.last
		}
		if err := r.out(pick); err != nil {
			return true, err
		}
	}
	r.prevGap = rel - r.lastRel
	r.last = f
	r.lastRel = rel
	return true, nil
}

// Flush emits the output frames covered by the display duration of the last
// input frame, estimated as the spacing of the final two inputs.
func (r *Resampler) Flush() error {
	if !r.started || r.prevGap == 0 {
		return nil
	}
	end := r.lastRel + r.prevGap
	// output frames strictly before the end of the last input frame
	for r.next*1_000_000_000 < end*r.fpsMilli {
		if err := r.out(r.last); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of frames emitted so far.
func (r *Resampler) Count() int {
	return int(r.next)
}
