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

package digests

import (
	"crypto/sha256"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

func TestDigestImmutable(t *testing.T) {
	raw := []byte{1, 2, 3}
	d := NewDigest("sha256", raw)
	raw[0] = 9
	if d.Value()[0] != 1 {
		t.Error("NewDigest() should copy its input")
	}
	v := d.Value()
	v[1] = 9
	if d.Value()[1] != 2 {
		t.Error("Value() should return a copy")
	}
}

func TestFromHexRoundTrip(t *testing.T) {
	d, err := FromHex("sha256", "00ff10")
	if err != nil {
		t.Fatalf("FromHex() error = %v", err)
	}
	if d.Hex() != "00ff10" || d.Size() != 3 {
		t.Errorf("FromHex() = %s, size %d", d.Hex(), d.Size())
	}
	if d.String() != "sha256:00ff10" {
		t.Errorf("String() = %q", d.String())
	}
	if _, err := FromHex("sha256", "zz"); err == nil {
		t.Error("FromHex() expected error for invalid hex")
	}
}

func TestEqual(t *testing.T) {
	a := NewDigest("sha256", []byte{1, 2})
	if !a.Equal(NewDigest("sha256", []byte{1, 2})) {
		t.Error("identical digests should be equal")
	}
	if a.Equal(NewDigest("blake3", []byte{1, 2})) {
		t.Error("different algorithms should not be equal")
	}
	if a.Equal(NewDigest("sha256", []byte{1, 3})) {
		t.Error("different values should not be equal")
	}
	if !(Digest{}).IsZero() || a.IsZero() {
		t.Error("IsZero() mismatch")
	}
}

func TestCIDMatchesMultihashSum(t *testing.T) {
	data := []byte("canonical bytes")
	sum := sha256.Sum256(data)
	d := NewDigest("sha256", sum[:])

	got, err := d.CID()
	if err != nil {
		t.Fatalf("CID() error = %v", err)
	}

	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		t.Fatalf("multihash.Sum() error = %v", err)
	}
	want := cid.NewCidV1(cid.Raw, mh)
	if !got.Equals(want) {
		t.Errorf("CID() = %s, want %s", got, want)
	}

	if _, err := NewDigest("md5", sum[:]).CID(); err == nil {
		t.Error("CID() expected error for unsupported algorithm")
	}
}
