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

package config

import (
	"fmt"
	"time"

	"github.com/verisource/verisource-api-production-sub000/pkg/canonical"
	"github.com/verisource/verisource-api-production-sub000/pkg/decoder"
	"github.com/verisource/verisource-api-production-sub000/pkg/fingerprint"
	"github.com/verisource/verisource-api-production-sub000/pkg/logging"
	"github.com/verisource/verisource-api-production-sub000/pkg/recipe"
	"github.com/verisource/verisource-api-production-sub000/pkg/usage"
	"github.com/verisource/verisource-api-production-sub000/pkg/verify"
	"github.com/verisource/verisource-api-production-sub000/pkg/worker"
)

// Canonicalizer creates a canonicalization engine decoding video with ffmpeg.
func (c *EngineConfig) Canonicalizer(logger logging.Logger) *canonical.Engine {
	return canonical.NewEngine(decoder.NewFFmpeg(c.FFmpegPath, logger), logger)
}

// Builder assembles a fingerprint builder over the default recipe registry.
func (c *EngineConfig) Builder(logger logging.Logger) *fingerprint.Builder {
	return fingerprint.NewBuilder(c.Canonicalizer(logger), recipe.Default(), fingerprint.BuilderOptions{
		Workers: c.HashWorkers,
	})
}

// Pool creates the worker pool bounding concurrent jobs.
func (c *EngineConfig) Pool(logger logging.Logger) *worker.Pool {
	return worker.NewPool(c.MaxConcurrent, time.Duration(c.DecodeTimeout), logger)
}

// Engine validates c and assembles a verification engine.
func (c *EngineConfig) Engine(logger logging.Logger) (*verify.Engine, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	logger = logging.EnsureLogger(logger)
	return verify.NewEngine(c.Builder(logger), c.Pool(logger), c.Policy, logger)
}

// UsageCounter opens the configured usage counter. Callers close it.
func (c *EngineConfig) UsageCounter() (usage.Counter, error) {
	window := time.Duration(c.Usage.Window)
	switch c.Usage.Backend {
	case UsageMemory:
		return usage.NewMemory(usage.MemoryConfig{Window: window, MaxKeys: c.Usage.MaxCallers}), nil
	case UsageRedis:
		return usage.NewRedis(usage.RedisConfig{
			Addr:     c.Usage.Redis.Addr,
			Password: c.Usage.Redis.Password,
			DB:       c.Usage.Redis.DB,
			Window:   window,
		})
	default:
		return nil, fmt.Errorf("unknown usage backend %q", c.Usage.Backend)
	}
}
