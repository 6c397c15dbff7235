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

import "fmt"

// Similarity classifies a Hamming distance.
type Similarity int

const (
	// NoMatch means the frames differ in content.
	NoMatch Similarity = iota
	// WeakMatch means the frames are related but noticeably altered.
	WeakMatch
	// Match means the frames are perceptually the same.
	Match
)

func (s Similarity) String() string {
	switch s {
	case Match:
		return "match"
	case WeakMatch:
		return "weak"
	default:
		return "no_match"
	}
}

// Thresholds are inclusive upper bounds on the Hamming distance.
type Thresholds struct {
	Match int `json:"match" yaml:"match"`
	Weak  int `json:"weak" yaml:"weak"`
}

// DefaultThresholds returns distance <= 8 match, 9..16 weak.
func DefaultThresholds() Thresholds {
	return Thresholds{Match: 8, Weak: 16}
}

// Validate checks 0 <= Match <= Weak <= Bits.
func (t Thresholds) Validate() error {
	if t.Match < 0 || t.Weak < t.Match || t.Weak > Bits {
		return fmt.Errorf("invalid perceptual hash thresholds match=%d weak=%d", t.Match, t.Weak)
	}
	return nil
}

// Classify maps a distance onto a Similarity.
func (t Thresholds) Classify(distance int) Similarity {
	switch {
	case distance <= t.Match:
		return Match
	case distance <= t.Weak:
		return WeakMatch
	default:
		return NoMatch
	}
}

// Compare returns the distance between a and b and its classification.
func (t Thresholds) Compare(a, b Hash) (int, Similarity) {
	d := Distance(a, b)
	return d, t.Classify(d)
}
