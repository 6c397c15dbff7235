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

package phash

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/verisource/verisource-api-production-sub000/pkg/media"
)

// Batch hashes a stream of frames on a bounded number of goroutines.
// Results are stored by frame index, so the output order never depends on
// scheduling.
type Batch struct {
	g   *errgroup.Group
	ctx context.Context

	mu        sync.Mutex
	hashes    []Hash
	submitted int
}

// NewBatch creates a batch running at most workers hashes at once.
func NewBatch(ctx context.Context, workers int) *Batch {
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	return &Batch{g: g, ctx: gctx}
}

// Submit schedules f. Frames must arrive with contiguous indices from 0.
// It blocks while all workers are busy.
func (b *Batch) Submit(f media.Frame) error {
	if err := b.ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	if f.Index != b.submitted {
		b.mu.Unlock()
		return fmt.Errorf("frame index %d out of order, want %d", f.Index, b.submitted)
	}
	b.submitted++
	b.hashes = append(b.hashes, 0)
	b.mu.Unlock()

	b.g.Go(func() error {
		h, err := Compute(f)
		if err != nil {
			return err
		}
		b.mu.Lock()
		b.hashes[f.Index] = h
		b.mu.Unlock()
		return nil
	})
	return nil
}

// Wait blocks until every submitted frame is hashed and returns the hashes in
// frame order.
func (b *Batch) Wait() ([]Hash, error) {
	if err := b.g.Wait(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Hash, len(b.hashes))
	copy(out, b.hashes)
	return out, nil
}
