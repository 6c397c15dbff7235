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

package verify

import (
	"fmt"

	"github.com/verisource/verisource-api-production-sub000/pkg/phash"
)

// Policy holds every threshold the verdict depends on. It is built once
// and shared read-only between calls.
type Policy struct {
	// Thresholds classify image pHash distances.
	Thresholds phash.Thresholds `json:"thresholds" yaml:"thresholds"`

	// StrongCoverage is the coverage at or above which a comparison without
	// a mismatched run is PROVEN_STRONG.
	StrongCoverage float64 `json:"strongCoverage" yaml:"strongCoverage"`
	// DerivedCoverage is the lower bound of PROVEN_DERIVED.
	DerivedCoverage float64 `json:"derivedCoverage" yaml:"derivedCoverage"`
	// InconclusiveCoverage is the lower bound of INCONCLUSIVE.
	InconclusiveCoverage float64 `json:"inconclusiveCoverage" yaml:"inconclusiveCoverage"`

	// RunLength is the number of consecutive mismatches that form a run.
	RunLength int `json:"runLength" yaml:"runLength"`
	// MaxMismatches caps firstMismatches.
	MaxMismatches int `json:"maxMismatches" yaml:"maxMismatches"`
	// RequireFullOverlap withholds PROVEN_STRONG unless every reference
	// segment was compared.
	RequireFullOverlap bool `json:"requireFullOverlap" yaml:"requireFullOverlap"`
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{
		Thresholds:           phash.DefaultThresholds(),
		StrongCoverage:       0.98,
		DerivedCoverage:      0.80,
		InconclusiveCoverage: 0.30,
		RunLength:            3,
		MaxMismatches:        10,
	}
}

// Validate rejects inconsistent thresholds.
func (p Policy) Validate() error {
	if err := p.Thresholds.Validate(); err != nil {
		return err
	}
	if !(0 <= p.InconclusiveCoverage && p.InconclusiveCoverage <= p.DerivedCoverage &&
		p.DerivedCoverage <= p.StrongCoverage && p.StrongCoverage <= 1) {
		return fmt.Errorf("coverage thresholds must satisfy 0 <= inconclusive (%g) <= derived (%g) <= strong (%g) <= 1",
			p.InconclusiveCoverage, p.DerivedCoverage, p.StrongCoverage)
	}
	if p.RunLength < 1 {
		return fmt.Errorf("run length must be positive, got %d", p.RunLength)
	}
	if p.MaxMismatches < 0 {
		return fmt.Errorf("max mismatches must not be negative, got %d", p.MaxMismatches)
	}
	return nil
}

// Classify maps a coverage value to a verdict. fullOverlap reports whether
// every reference segment took part in the comparison.
func (p Policy) Classify(coverage float64, hasRun, fullOverlap bool) Verdict {
	strong := coverage == 1 || (coverage >= p.StrongCoverage && !hasRun)
	switch {
	case strong && (fullOverlap || !p.RequireFullOverlap):
		return ProvenStrong
	case coverage >= p.DerivedCoverage:
		return ProvenDerived
	case coverage >= p.InconclusiveCoverage:
		return Inconclusive
	default:
		return NotProven
	}
}
