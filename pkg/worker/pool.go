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

// Package worker bounds the number of canonicalization jobs in flight.
// A job that finds every slot taken is rejected immediately; nothing is
// queued.
package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
	"github.com/verisource/verisource-api-production-sub000/pkg/logging"
)

const (
	// DefaultSize is the default number of concurrent jobs.
	DefaultSize = 2
	// DefaultTimeout is the default wall-clock budget of one job.
	DefaultTimeout = 10 * time.Minute
)

// Pool runs jobs under a concurrency limit and a per-job timeout.
type Pool struct {
	sem     *semaphore.Weighted
	size    int
	timeout time.Duration
	logger  logging.Logger
}

// NewPool creates a pool. Non-positive arguments select the defaults.
func NewPool(size int, timeout time.Duration, logger logging.Logger) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(size)),
		size:    size,
		timeout: timeout,
		logger:  logging.EnsureLogger(logger),
	}
}

// Size returns the number of slots.
func (p *Pool) Size() int { return p.size }

// Timeout returns the per-job budget.
func (p *Pool) Timeout() time.Duration { return p.timeout }

// Do runs fn in a free slot. fn receives a context that expires after the
// pool timeout. When no slot is free Do fails with KindConcurrencyLimit
// without calling fn.
//
// Once the job context ends Do returns KindTimeout or KindCanceled at once,
// without waiting for fn. The slot stays taken until fn actually returns, so
// fn must still stop soon after its context ends.
func (p *Pool) Do(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := failure.FromContext(ctx, name); err != nil {
		return err
	}
	if !p.sem.TryAcquire(1) {
		return failure.Newf(failure.KindConcurrencyLimit, name, "server busy: %d jobs already in flight", p.size)
	}

	log := p.logger.WithFields(map[string]interface{}{"job_id": uuid.NewString(), "job": name})
	jobCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	start := time.Now()
	log.Debugln("job started")

	done := make(chan error, 1)
	go func() {
		err := fn(jobCtx)
		p.sem.Release(1)
		done <- err
	}()

	var err error
	select {
	case err = <-done:
		if cerr := failure.FromContext(jobCtx, name); cerr != nil {
			err = cerr
		}
	case <-jobCtx.Done():
		err = failure.FromContext(jobCtx, name)
		log.Debugln("job abandoned; its slot frees when it stops")
	}
	if err != nil {
		log.WithField("kind", failure.KindOf(err).String()).Debug("job failed after %s", time.Since(start))
		return err
	}
	log.Debug("job finished in %s", time.Since(start))
	return nil
}
