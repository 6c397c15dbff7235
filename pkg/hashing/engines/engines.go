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

// Package hashengines is the registry of hash algorithms used for
// canonical content hashes, segment hashes and caller-key hashing.
//
// Algorithms are registered by name from package init functions, so a
// recipe or segment builder names its hash as a plain string. Importing
// pkg/hashing/engines/memory registers the built-in algorithms.
package hashengines

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/verisource/verisource-api-production-sub000/pkg/hashing/digests"
)

// Engine is a running hash computation. Writes never fail.
type Engine interface {
	io.Writer

	// Algorithm returns the registered name, which becomes the algorithm
	// of every Digest the engine produces.
	Algorithm() string

	// Digest returns the digest of everything written since the last
	// Reset. It does not change the engine state.
	Digest() digests.Digest

	// Reset discards everything written so far.
	Reset()
}

// Factory creates a fresh engine.
type Factory func() Engine

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds an algorithm. Names are case-sensitive and may be
// registered once.
func Register(algorithm string, factory Factory) error {
	if algorithm == "" || factory == nil {
		return fmt.Errorf("hash engine registration needs a name and a factory")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[algorithm]; dup {
		return fmt.Errorf("hash algorithm %q already registered", algorithm)
	}
	factories[algorithm] = factory
	return nil
}

// MustRegister is Register for init functions.
func MustRegister(algorithm string, factory Factory) {
	if err := Register(algorithm, factory); err != nil {
		panic(err)
	}
}

// New returns a fresh engine for algorithm.
func New(algorithm string) (Engine, error) {
	mu.RLock()
	factory, ok := factories[algorithm]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported hash algorithm %q (have %s)", algorithm, strings.Join(Algorithms(), ", "))
	}
	return factory(), nil
}

// Sum hashes the concatenation of chunks.
func Sum(algorithm string, chunks ...[]byte) (digests.Digest, error) {
	e, err := New(algorithm)
	if err != nil {
		return digests.Digest{}, err
	}
	for _, c := range chunks {
		_, _ = e.Write(c)
	}
	return e.Digest(), nil
}

// Algorithms returns the registered names in sorted order.
func Algorithms() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
