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

// Package memory registers the in-process hash engines: SHA-256 for
// canonical images and segments, BLAKE3 for the canonical video stream and
// BLAKE2b-256 for caller identifiers.
package memory

import (
	"crypto/sha256"
	"hash"

	"golang.org/x/crypto/blake2b"
	"lukechampine.com/blake3"

	"github.com/verisource/verisource-api-production-sub000/pkg/hashing/digests"
	hashengines "github.com/verisource/verisource-api-production-sub000/pkg/hashing/engines"
)

// Registered algorithm names.
const (
	SHA256     = "sha256"
	BLAKE2b256 = "blake2b-256"
	BLAKE3     = "blake3"
)

func init() {
	hashengines.MustRegister(SHA256, func() hashengines.Engine {
		return Wrap(SHA256, sha256.New())
	})
	hashengines.MustRegister(BLAKE2b256, func() hashengines.Engine {
		// New256 only fails for keys longer than 64 bytes
		h, _ := blake2b.New256(nil)
		return Wrap(BLAKE2b256, h)
	})
	hashengines.MustRegister(BLAKE3, func() hashengines.Engine {
		return Wrap(BLAKE3, blake3.New(32, nil))
	})
}

type engine struct {
	algorithm string
	h         hash.Hash
}

// Wrap exposes h as an engine named algorithm.
func Wrap(algorithm string, h hash.Hash) hashengines.Engine {
	return &engine{algorithm: algorithm, h: h}
}

func (e *engine) Write(p []byte) (int, error) { return e.h.Write(p) }

func (e *engine) Algorithm() string { return e.algorithm }

func (e *engine) Digest() digests.Digest {
	return digests.NewDigest(e.algorithm, e.h.Sum(nil))
}

func (e *engine) Reset() { e.h.Reset() }
