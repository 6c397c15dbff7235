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

// Package verify decides whether a candidate file is the content a
// credential was issued for.
//
// The engine re-canonicalizes the candidate under the recipe the credential
// declares, hashes it the same way and compares the result with the
// credential's fingerprint bundle. Every outcome carries the coverage,
// matched ranges and first mismatches that led to its verdict.
package verify

import (
	"context"
	"fmt"

	"github.com/verisource/verisource-api-production-sub000/pkg/credential"
	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
	"github.com/verisource/verisource-api-production-sub000/pkg/fingerprint"
	"github.com/verisource/verisource-api-production-sub000/pkg/logging"
	"github.com/verisource/verisource-api-production-sub000/pkg/media"
	"github.com/verisource/verisource-api-production-sub000/pkg/phash"
	"github.com/verisource/verisource-api-production-sub000/pkg/tracing"
	"github.com/verisource/verisource-api-production-sub000/pkg/worker"
)

// Engine verifies candidates against credentials. It is safe for
// concurrent use; the pool bounds how many verifications run at once.
type Engine struct {
	builder *fingerprint.Builder
	pool    *worker.Pool
	policy  Policy
	logger  logging.Logger
}

// NewEngine creates an engine. A nil pool selects worker defaults.
func NewEngine(builder *fingerprint.Builder, pool *worker.Pool, policy Policy, logger logging.Logger) (*Engine, error) {
	if builder == nil {
		return nil, fmt.Errorf("verify: builder is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	logger = logging.EnsureLogger(logger)
	if pool == nil {
		pool = worker.NewPool(0, 0, logger)
	}
	return &Engine{builder: builder, pool: pool, policy: policy, logger: logger}, nil
}

// Policy returns the verdict policy of the engine.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Verify checks candidate against cred. The credential signature is not
// checked here; callers that hold the issuer key run credential.Verify
// first.
func (e *Engine) Verify(ctx context.Context, candidate []byte, cred *credential.Credential) (*Outcome, error) {
	var out *Outcome
	err := tracing.Run(ctx, tracing.StageVerify, map[string]interface{}{"candidate_bytes": len(candidate)}, func(ctx context.Context) error {
		var err error
		out, err = e.verify(ctx, candidate, cred)
		return err
	})
	if err != nil {
		e.logger.WithField("kind", failure.KindOf(err).String()).Warn("verification failed: %v", err)
		return nil, err
	}
	e.logger.WithFields(map[string]interface{}{
		"verdict":  string(out.Verdict),
		"coverage": out.Coverage,
	}).Info("verification finished")
	return out, nil
}

func (e *Engine) verify(ctx context.Context, candidate []byte, cred *credential.Credential) (*Outcome, error) {
	if cred == nil {
		return nil, failure.New(failure.KindCredentialValidation, "credential", "no credential")
	}
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	resolved, err := cred.FingerprintBundle.Resolve()
	if err != nil {
		return nil, err
	}
	rc, err := e.builder.Registry().Lookup(resolved.Prefix.Key())
	if err != nil {
		return nil, failure.Recast(err, failure.KindUnsupportedRecipe, failure.KindCredentialIncompatible)
	}
	mt, err := media.TypeOf(cred.MediaType)
	if err != nil || mt != resolved.Media {
		return nil, failure.Mismatch(failure.KindCredentialIncompatible, "credential",
			"media type does not fit the canonicalization recipe", string(resolved.Media), cred.MediaType)
	}
	// The declared pipeline must be reproduced exactly before any media work.
	if resolved.Recipe != rc.String() {
		return nil, failure.Mismatch(failure.KindCanonicalizationMismatch, "recipe",
			"declared canonicalization differs from the registered recipe", resolved.Recipe, rc.String())
	}

	var out *Outcome
	err = e.pool.Do(ctx, "verify", func(ctx context.Context) error {
		fp, err := e.builder.Compute(ctx, candidate, rc)
		if err != nil {
			return failure.Recast(err, failure.KindDecode, failure.KindCandidateDecode)
		}
		if resolved.Media == media.TypeVideo {
			return tracing.Run(ctx, tracing.StageCompare, map[string]interface{}{
				"reference_segments": len(resolved.Segments),
				"candidate_segments": len(fp.Segments),
			}, func(context.Context) error {
				out = e.policy.outcome(Compare(resolved.Segments, fp.Segments, e.policy.MaxMismatches), rc.String())
				return nil
			})
		}
		out, err = e.compareImage(ctx, candidate, resolved, fp)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// compareImage treats an image as a single comparison unit.
func (e *Engine) compareImage(ctx context.Context, candidate []byte, r *fingerprint.Resolved, fp *fingerprint.Fingerprint) (*Outcome, error) {
	want := r.Image
	out := &Outcome{
		Verdict:                NotProven,
		SegmentsCompared:       1,
		CandidateSegmentsTotal: 1,
		ReferenceSegmentsTotal: 1,
		Canonicalization:       r.Recipe,
		MatchedRanges:          []Range{},
		FirstMismatches:        []Mismatch{},
		Notes:                  []string{fmt.Sprintf("credential shape: %s", r.Shape)},
		Warnings:               []string{},
	}

	if fp.Output.Digest.Hex() == want.SHA256 {
		matchUnit(out, ProvenStrong)
		out.Notes = append(out.Notes, "canonical SHA-256 matches exactly")
		return out, nil
	}

	similarity := phash.NoMatch
	if want.HasPHash {
		var distance int
		distance, similarity = e.policy.Thresholds.Compare(want.PHash, fp.PHash)
		out.PerceptualDistance = &distance
		out.Notes = append(out.Notes, fmt.Sprintf("perceptual hash distance %d (%s)", distance, similarity))
	} else {
		out.Notes = append(out.Notes, "credential carries no perceptual hash")
	}

	if similarity != phash.Match && r.Shape == fingerprint.ShapeTransition {
		matched, err := e.matchLegacy(ctx, candidate, want.LegacyV1)
		if err != nil {
			return nil, err
		}
		if matched {
			matchUnit(out, ProvenDerived)
			out.Notes = append(out.Notes, fmt.Sprintf("canonical SHA-256 matches the %s alternative hash", fingerprint.LegacyImageKey))
			return out, nil
		}
	}

	switch similarity {
	case phash.Match:
		matchUnit(out, ProvenDerived)
	case phash.WeakMatch:
		out.Verdict = Inconclusive
		out.Warnings = append(out.Warnings, "perceptual hash is only a weak match; the image was noticeably altered")
		out.FirstMismatches = append(out.FirstMismatches, Mismatch{Reference: want.PHash.String(), Candidate: fp.PHash.String()})
	default:
		reference := want.SHA256
		candidateHash := fp.Output.Digest.Hex()
		if want.HasPHash {
			reference, candidateHash = want.PHash.String(), fp.PHash.String()
		}
		out.FirstMismatches = append(out.FirstMismatches, Mismatch{Reference: reference, Candidate: candidateHash})
	}
	return out, nil
}

// matchLegacy canonicalizes candidate under the legacy image recipe and
// compares the result with the credential's alternative hash.
func (e *Engine) matchLegacy(ctx context.Context, candidate []byte, altHash string) (bool, error) {
	legacy, err := e.builder.Registry().Lookup(fingerprint.LegacyImageKey)
	if err != nil {
		e.logger.Debug("legacy recipe %s is not registered; skipping alternative hash", fingerprint.LegacyImageKey)
		return false, nil
	}
	fp, err := e.builder.Compute(ctx, candidate, legacy)
	if err != nil {
		return false, failure.Recast(err, failure.KindDecode, failure.KindCandidateDecode)
	}
	return fp.Output.Digest.Hex() == altHash, nil
}

func matchUnit(out *Outcome, v Verdict) {
	out.Verdict = v
	out.Coverage = 1
	out.SegmentsMatched = 1
	out.MatchedRanges = []Range{{0, 0}}
}
