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
	"strings"
	"testing"

	"github.com/verisource/verisource-api-production-sub000/pkg/segment"
)

// segments returns n hashes whose digests are "ok" except at the given
// indices, where they are "bad".
func segments(n int, bad ...int) []segment.Hash {
	out := make([]segment.Hash, n)
	for i := range out {
		out[i] = segment.Hash{Index: i, Digest: "ok"}
	}
	for _, i := range bad {
		out[i].Digest = "bad"
	}
	return out
}

func TestClassifyBoundaries(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name     string
		coverage float64
		hasRun   bool
		want     Verdict
	}{
		{"full", 1, false, ProvenStrong},
		{"full with run flag", 1, true, ProvenStrong},
		{"strong threshold", 0.98, false, ProvenStrong},
		{"near strong with run", 0.985, true, ProvenDerived},
		{"below strong", 0.9799, false, ProvenDerived},
		{"derived threshold", 0.80, false, ProvenDerived},
		{"below derived", 0.7999, false, Inconclusive},
		{"inconclusive threshold", 0.30, false, Inconclusive},
		{"below inconclusive", 0.29999, false, NotProven},
		{"zero", 0, false, NotProven},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Classify(tt.coverage, tt.hasRun, true); got != tt.want {
				t.Errorf("Classify(%v, %v) = %s, want %s", tt.coverage, tt.hasRun, got, tt.want)
			}
		})
	}
}

func TestCompareCoverageIsExact(t *testing.T) {
	tests := []struct {
		name        string
		n           int
		bad         []int
		wantVerdict Verdict
		wantRun     int
	}{
		{"identical", 10, nil, ProvenStrong, 0},
		{"one scattered miss", 100, []int{40}, ProvenStrong, 1},
		{"clustered misses", 200, []int{50, 51, 52}, ProvenDerived, 3},
		{"ninety percent", 10, []int{9}, ProvenDerived, 1},
		{"half", 10, []int{0, 2, 4, 6, 8}, Inconclusive, 1},
		{"mostly different", 10, []int{0, 1, 2, 3, 4, 5, 6, 7}, NotProven, 8},
	}
	p := DefaultPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Compare(segments(tt.n), segments(tt.n, tt.bad...), p.MaxMismatches)
			want := float64(tt.n-len(tt.bad)) / float64(tt.n)
			if c.Coverage != want {
				t.Errorf("Coverage = %v, want %v", c.Coverage, want)
			}
			if c.Matched != tt.n-len(tt.bad) || c.Compared != tt.n {
				t.Errorf("Matched/Compared = %d/%d", c.Matched, c.Compared)
			}
			if c.LongestRun != tt.wantRun {
				t.Errorf("LongestRun = %d, want %d", c.LongestRun, tt.wantRun)
			}
			if got := p.outcome(c, "vid:v1:x").Verdict; got != tt.wantVerdict {
				t.Errorf("verdict = %s, want %s", got, tt.wantVerdict)
			}
		})
	}
}

func TestCompareRangesAndMismatches(t *testing.T) {
	c := Compare(segments(8), segments(8, 2, 3, 6), 2)

	wantRanges := []Range{{0, 1}, {4, 5}, {7, 7}}
	if len(c.MatchedRanges) != len(wantRanges) {
		t.Fatalf("MatchedRanges = %v, want %v", c.MatchedRanges, wantRanges)
	}
	for i, r := range wantRanges {
		if c.MatchedRanges[i] != r {
			t.Errorf("MatchedRanges[%d] = %v, want %v", i, c.MatchedRanges[i], r)
		}
	}

	if len(c.FirstMismatches) != 2 {
		t.Fatalf("FirstMismatches = %v, want 2 entries", c.FirstMismatches)
	}
	if m := c.FirstMismatches[0]; m.Index != 2 || m.Reference != "ok" || m.Candidate != "bad" {
		t.Errorf("FirstMismatches[0] = %+v", m)
	}
	if c.FirstMismatches[1].Index != 3 {
		t.Errorf("FirstMismatches[1].Index = %d, want 3", c.FirstMismatches[1].Index)
	}
}

func TestCompareIndexGapBreaksRuns(t *testing.T) {
	ref := segments(6, 1, 2, 4)
	cand := segments(6)
	// drop index 3 from the candidate so mismatches 1,2 and 4 are not adjacent
	cand = append(cand[:3], cand[4:]...)

	c := Compare(ref, cand, 10)
	if c.Compared != 5 || c.LongestRun != 2 {
		t.Errorf("Compared = %d, LongestRun = %d; want 5, 2", c.Compared, c.LongestRun)
	}
	if len(c.MatchedRanges) != 2 || c.MatchedRanges[1] != (Range{5, 5}) {
		t.Errorf("MatchedRanges = %v", c.MatchedRanges)
	}
}

func TestOutcomeWarnings(t *testing.T) {
	p := DefaultPolicy()

	o := p.outcome(Compare(segments(200), segments(200, 10, 11, 12), p.MaxMismatches), "vid:v1:x")
	if o.Verdict != ProvenDerived {
		t.Fatalf("Verdict = %s", o.Verdict)
	}
	if len(o.Warnings) != 2 || !strings.Contains(o.Warnings[0], "1.50% of compared segments differ") ||
		!strings.Contains(o.Warnings[1], "clustered mismatches") {
		t.Errorf("Warnings = %q", o.Warnings)
	}
	if o.Coverage != 0.985 {
		t.Errorf("Coverage = %v, want 0.985", o.Coverage)
	}

	// a run inside a NOT_PROVEN result is not worth a separate warning
	o = p.outcome(Compare(segments(4), segments(4, 0, 1, 2, 3), p.MaxMismatches), "vid:v1:x")
	if o.Verdict != NotProven || len(o.Warnings) != 0 {
		t.Errorf("Verdict = %s, Warnings = %q", o.Verdict, o.Warnings)
	}
}

func tokens(digests ...string) []string {
	out := make([]string, len(digests))
	for i, d := range digests {
		out[i] = fmt.Sprintf("seg_%d:%s", i, d)
	}
	return out
}

func TestOutcomeScenarios(t *testing.T) {
	ten := []string{"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8", "a9"}
	with := func(base []string, bad ...int) []string {
		out := append([]string(nil), base...)
		for _, i := range bad {
			out[i] = "ff"
		}
		return out
	}

	tests := []struct {
		name           string
		reference      []string
		candidate      []string
		wantVerdict    Verdict
		wantCoverage   float64
		wantRanges     []Range
		wantMismatches []int
		wantWarnings   []string
	}{
		{
			name:         "identical",
			reference:    []string{"seg_0:aaa", "seg_1:bbb", "seg_2:ccc"},
			candidate:    []string{"seg_0:aaa", "seg_1:bbb", "seg_2:ccc"},
			wantVerdict:  ProvenStrong,
			wantCoverage: 1,
			wantRanges:   []Range{{0, 2}},
		},
		{
			name:           "short tail mismatch",
			reference:      tokens(ten...),
			candidate:      tokens(with(ten, 8, 9)...),
			wantVerdict:    ProvenDerived,
			wantCoverage:   0.8,
			wantRanges:     []Range{{0, 7}},
			wantMismatches: []int{8, 9},
			wantWarnings:   []string{"20.00% of compared segments differ"},
		},
		{
			name:           "clustered mismatch",
			reference:      tokens(ten...),
			candidate:      tokens(with(ten, 3, 4, 5)...),
			wantVerdict:    Inconclusive,
			wantCoverage:   0.7,
			wantRanges:     []Range{{0, 2}, {6, 9}},
			wantMismatches: []int{3, 4, 5},
			wantWarnings:   []string{"clustered mismatches: 3 consecutive segments differ"},
		},
	}
	p := DefaultPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := segment.ParseAll(tt.reference)
			if err != nil {
				t.Fatalf("ParseAll(reference) error = %v", err)
			}
			cand, err := segment.ParseAll(tt.candidate)
			if err != nil {
				t.Fatalf("ParseAll(candidate) error = %v", err)
			}

			o := p.outcome(Compare(ref, cand, p.MaxMismatches), "vid:v1:x")
			if o.Verdict != tt.wantVerdict || o.Coverage != tt.wantCoverage {
				t.Errorf("verdict, coverage = %s, %v; want %s, %v", o.Verdict, o.Coverage, tt.wantVerdict, tt.wantCoverage)
			}
			if fmt.Sprint(o.MatchedRanges) != fmt.Sprint(tt.wantRanges) {
				t.Errorf("MatchedRanges = %v, want %v", o.MatchedRanges, tt.wantRanges)
			}
			var gotIdx []int
			for _, m := range o.FirstMismatches {
				gotIdx = append(gotIdx, m.Index)
			}
			if fmt.Sprint(gotIdx) != fmt.Sprint(tt.wantMismatches) {
				t.Errorf("FirstMismatches = %+v, want indices %v", o.FirstMismatches, tt.wantMismatches)
			}
			if o.FirstMismatches == nil {
				t.Error("FirstMismatches is nil, want an empty list")
			}
			if strings.Join(o.Warnings, "|") != strings.Join(tt.wantWarnings, "|") {
				t.Errorf("Warnings = %q, want %q", o.Warnings, tt.wantWarnings)
			}
		})
	}
}

func TestOutcomeWithoutOverlapHasNoPercentage(t *testing.T) {
	p := DefaultPolicy()
	p.InconclusiveCoverage, p.DerivedCoverage = 0, 0

	o := p.outcome(Compare(segments(3), nil, p.MaxMismatches), "vid:v1:x")
	for _, w := range o.Warnings {
		if strings.Contains(w, "NaN") || strings.Contains(w, "segments differ") {
			t.Errorf("unexpected warning %q", w)
		}
	}
	if len(o.Warnings) != 1 || !strings.Contains(o.Warnings[0], "only 0 of 3") {
		t.Errorf("Warnings = %q", o.Warnings)
	}
}

func TestPartialOverlap(t *testing.T) {
	ref := segments(5)
	cand := segments(4)

	p := DefaultPolicy()
	o := p.outcome(Compare(ref, cand, p.MaxMismatches), "vid:v1:x")
	if o.Verdict != ProvenStrong || o.SegmentsCompared != 4 || o.ReferenceSegmentsTotal != 5 {
		t.Errorf("outcome = %+v", o)
	}
	if len(o.Warnings) != 1 || !strings.Contains(o.Warnings[0], "only 4 of 5") {
		t.Errorf("Warnings = %q", o.Warnings)
	}

	p.RequireFullOverlap = true
	if o := p.outcome(Compare(ref, cand, p.MaxMismatches), "vid:v1:x"); o.Verdict != ProvenDerived {
		t.Errorf("Verdict with full overlap required = %s, want PROVEN_DERIVED", o.Verdict)
	}

	// extra candidate segments are ignored
	if o := p.outcome(Compare(cand, ref, p.MaxMismatches), "vid:v1:x"); o.Verdict != ProvenStrong || o.CandidateSegmentsTotal != 5 {
		t.Errorf("outcome = %+v", o)
	}
}

func TestCompareNoOverlap(t *testing.T) {
	c := Compare(segments(3), nil, 10)
	if c.Compared != 0 || c.Coverage != 0 {
		t.Errorf("Compared = %d, Coverage = %v", c.Compared, c.Coverage)
	}
	if v := DefaultPolicy().outcome(c, "vid:v1:x").Verdict; v != NotProven {
		t.Errorf("Verdict = %s", v)
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("DefaultPolicy().Validate() = %v", err)
	}
	bad := []func(*Policy){
		func(p *Policy) { p.StrongCoverage = 1.1 },
		func(p *Policy) { p.DerivedCoverage = 0.99 },
		func(p *Policy) { p.InconclusiveCoverage = -0.1 },
		func(p *Policy) { p.RunLength = 0 },
		func(p *Policy) { p.MaxMismatches = -1 },
		func(p *Policy) { p.Thresholds.Weak = 4 },
	}
	for i, mutate := range bad {
		p := DefaultPolicy()
		mutate(&p)
		if err := p.Validate(); err == nil {
			t.Errorf("case %d: Validate() = nil, want error", i)
		}
	}
}
