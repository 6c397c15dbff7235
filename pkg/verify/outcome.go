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
	"math"
	"sort"

	"github.com/verisource/verisource-api-production-sub000/pkg/segment"
)

// Verdict is the terminal result of a verification.
type Verdict string

const (
	ProvenStrong  Verdict = "PROVEN_STRONG"
	ProvenDerived Verdict = "PROVEN_DERIVED"
	Inconclusive  Verdict = "INCONCLUSIVE"
	NotProven     Verdict = "NOT_PROVEN"
)

// Proven reports whether v is one of the PROVEN verdicts.
func (v Verdict) Proven() bool {
	return v == ProvenStrong || v == ProvenDerived
}

// Range is an inclusive [start, end] index range.
type Range [2]int

// Mismatch is one compared index whose hashes differ.
type Mismatch struct {
	Index     int    `json:"index"`
	Reference string `json:"reference"`
	Candidate string `json:"candidate"`
}

// Outcome is the explainable result of one verification.
type Outcome struct {
	Verdict                Verdict    `json:"verdict"`
	Coverage               float64    `json:"coverage"`
	SegmentsMatched        int        `json:"segmentsMatched"`
	SegmentsCompared       int        `json:"segmentsCompared"`
	CandidateSegmentsTotal int        `json:"candidateSegmentsTotal"`
	ReferenceSegmentsTotal int        `json:"referenceSegmentsTotal"`
	Canonicalization       string     `json:"canonicalization"`
	MatchedRanges          []Range    `json:"matchedRanges"`
	FirstMismatches        []Mismatch `json:"firstMismatches"`
	Notes                  []string   `json:"notes"`
	Warnings               []string   `json:"warnings"`

	// PerceptualDistance is the pHash Hamming distance of an image comparison.
	PerceptualDistance *int `json:"perceptualDistance,omitempty"`
}

// Comparison is the index-aligned comparison of two segment lists.
type Comparison struct {
	Matched         int
	Compared        int
	CandidateTotal  int
	ReferenceTotal  int
	Coverage        float64
	MatchedRanges   []Range
	FirstMismatches []Mismatch
	// LongestRun is the longest stretch of consecutive mismatched indices.
	LongestRun int
}

// Compare aligns reference and candidate by segment index. Only indices
// present on both sides are compared. Consecutive means adjacent index
// values, so a gap in the intersection ends both runs and ranges.
func Compare(reference, candidate []segment.Hash, maxMismatches int) Comparison {
	ref := make(map[int]string, len(reference))
	for _, h := range reference {
		ref[h.Index] = h.Digest
	}
	cand := make(map[int]string, len(candidate))
	for _, h := range candidate {
		cand[h.Index] = h.Digest
	}

	common := make([]int, 0, len(ref))
	for i := range ref {
		if _, ok := cand[i]; ok {
			common = append(common, i)
		}
	}
	sort.Ints(common)

	c := Comparison{
		Compared:        len(common),
		CandidateTotal:  len(cand),
		ReferenceTotal:  len(ref),
		MatchedRanges:   []Range{},
		FirstMismatches: []Mismatch{},
	}

	run, prev := 0, -2
	for _, i := range common {
		adjacent := i == prev+1
		prev = i

		if ref[i] == cand[i] {
			c.Matched++
			run = 0
			if n := len(c.MatchedRanges); n > 0 && adjacent && c.MatchedRanges[n-1][1] == i-1 {
				c.MatchedRanges[n-1][1] = i
			} else {
				c.MatchedRanges = append(c.MatchedRanges, Range{i, i})
			}
			continue
		}

		if adjacent && run > 0 {
			run++
		} else {
			run = 1
		}
		if run > c.LongestRun {
			c.LongestRun = run
		}
		if len(c.FirstMismatches) < maxMismatches {
			c.FirstMismatches = append(c.FirstMismatches, Mismatch{Index: i, Reference: ref[i], Candidate: cand[i]})
		}
	}

	if c.Compared > 0 {
		c.Coverage = float64(c.Matched) / float64(c.Compared)
	}
	return c
}

// roundCoverage rounds to four decimals for reporting.
func roundCoverage(c float64) float64 {
	return math.Round(c*10000) / 10000
}

// outcome classifies a comparison under p.
func (p Policy) outcome(c Comparison, recipe string) *Outcome {
	hasRun := c.LongestRun >= p.RunLength
	fullOverlap := c.Compared == c.ReferenceTotal
	o := &Outcome{
		Verdict:                p.Classify(c.Coverage, hasRun, fullOverlap),
		Coverage:               roundCoverage(c.Coverage),
		SegmentsMatched:        c.Matched,
		SegmentsCompared:       c.Compared,
		CandidateSegmentsTotal: c.CandidateTotal,
		ReferenceSegmentsTotal: c.ReferenceTotal,
		Canonicalization:       recipe,
		MatchedRanges:          c.MatchedRanges,
		FirstMismatches:        c.FirstMismatches,
		Notes:                  []string{},
		Warnings:               []string{},
	}

	if c.Compared > 0 && c.Coverage >= p.DerivedCoverage && c.Coverage < 1 {
		o.Warnings = append(o.Warnings, fmt.Sprintf("%.2f%% of compared segments differ",
			100*float64(c.Compared-c.Matched)/float64(c.Compared)))
	}
	if hasRun && o.Verdict != NotProven {
		o.Warnings = append(o.Warnings, fmt.Sprintf("clustered mismatches: %d consecutive segments differ", c.LongestRun))
	}
	if !fullOverlap {
		o.Warnings = append(o.Warnings, fmt.Sprintf("only %d of %d reference segments were compared",
			c.Compared, c.ReferenceTotal))
	}
	return o
}
