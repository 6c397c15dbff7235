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

// Package digests provides the Digest value type used for canonical media
// hashes, segment hashes and credential signing inputs.
package digests

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Digest is an immutable pair of algorithm name and raw digest bytes.
// Constructors and accessors copy the underlying slice.
type Digest struct {
	algorithm string
	value     []byte
}

// NewDigest creates a Digest, copying value.
func NewDigest(algorithm string, value []byte) Digest {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	return Digest{algorithm: algorithm, value: valueCopy}
}

// FromHex decodes a lowercase or uppercase hex string into a Digest.
func FromHex(algorithm, s string) (Digest, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid %s hex digest: %w", algorithm, err)
	}
	return Digest{algorithm: algorithm, value: raw}, nil
}

// Algorithm returns the name of the hash algorithm.
func (d Digest) Algorithm() string {
	return d.algorithm
}

// Value returns a copy of the raw digest bytes.
func (d Digest) Value() []byte {
	valueCopy := make([]byte, len(d.value))
	copy(valueCopy, d.value)
	return valueCopy
}

// Hex returns the lowercase hex encoding of the digest value.
func (d Digest) Hex() string {
	return hex.EncodeToString(d.value)
}

// Size returns the digest length in bytes.
func (d Digest) Size() int {
	return len(d.value)
}

// IsZero reports whether the digest carries no value.
func (d Digest) IsZero() bool {
	return len(d.value) == 0
}

// String returns "algorithm:hex".
func (d Digest) String() string {
	return fmt.Sprintf("%s:%s", d.algorithm, d.Hex())
}

// Equal reports whether both algorithm and value are identical.
func (d Digest) Equal(other Digest) bool {
	return d.algorithm == other.algorithm && bytes.Equal(d.value, other.value)
}

// multihashCodes maps algorithm names to their multicodec identifiers.
var multihashCodes = map[string]uint64{
	"sha256": multihash.SHA2_256,
	"blake3": multihash.BLAKE3,
}

// CID returns the CIDv1 (raw codec) that addresses the hashed bytes.
//
// Only algorithms with a registered multicodec are supported.
func (d Digest) CID() (cid.Cid, error) {
	code, ok := multihashCodes[d.algorithm]
	if !ok {
		return cid.Undef, fmt.Errorf("no multihash code for algorithm %q", d.algorithm)
	}
	mh, err := multihash.Encode(d.value, code)
	if err != nil {
		return cid.Undef, fmt.Errorf("encoding multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}
