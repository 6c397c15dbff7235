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

// Package usage counts verification requests per caller. Caller
// identifiers are hashed before they are used as keys so raw identities
// never reach the backing store.
package usage

import (
	"context"
	"errors"
	"sync"
	"time"

	hashengines "github.com/verisource/verisource-api-production-sub000/pkg/hashing/engines"
	"github.com/verisource/verisource-api-production-sub000/pkg/hashing/engines/memory"
)

// ErrCapacity is returned when a bounded counter cannot track a new caller.
var ErrCapacity = errors.New("usage counter capacity exceeded")

// Counter increments and reports per-caller usage within a window.
type Counter interface {
	// Incr records one use by caller and returns the count in the current window.
	Incr(ctx context.Context, caller string) (int64, error)
	Close() error
}

// KeyFor derives the storage key of a caller.
func KeyFor(caller string) (string, error) {
	d, err := hashengines.Sum(memory.BLAKE2b256, []byte(caller))
	if err != nil {
		return "", err
	}
	return "usage:" + d.Hex(), nil
}

// MemoryConfig configures a Memory counter.
type MemoryConfig struct {
	Window  time.Duration
	MaxKeys int
	Now     func() time.Time
}

type bucket struct {
	count     int64
	windowEnd time.Time
}

// Memory is an in-process Counter bounded to MaxKeys callers.
type Memory struct {
	mu      sync.Mutex
	window  time.Duration
	maxKeys int
	now     func() time.Time
	data    map[string]*bucket
}

// NewMemory creates an in-process counter. Defaults: 24h window, 10000 callers.
func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Memory{window: cfg.Window, maxKeys: cfg.MaxKeys, now: cfg.Now, data: make(map[string]*bucket)}
}

// Incr implements Counter.
func (m *Memory) Incr(_ context.Context, caller string) (int64, error) {
	key, err := KeyFor(caller)
	if err != nil {
		return 0, err
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.data[key]
	if !ok || now.After(b.windowEnd) {
		if !ok && len(m.data) >= m.maxKeys {
			m.expire(now)
			if len(m.data) >= m.maxKeys {
				return 0, ErrCapacity
			}
		}
		b = &bucket{windowEnd: now.Add(m.window)}
		m.data[key] = b
	}
	b.count++
	return b.count, nil
}

func (m *Memory) expire(now time.Time) {
	for key, b := range m.data {
		if now.After(b.windowEnd) {
			delete(m.data, key)
		}
	}
}

// Close implements Counter.
func (m *Memory) Close() error { return nil }
