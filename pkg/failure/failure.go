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

// Package failure defines the error taxonomy shared by the canonicalization,
// hashing and verification packages.
//
// Every error produced by the core carries a machine-distinguishable Kind,
// the pipeline Stage that failed and a human-readable message. Callers branch
// on the kind rather than on message text:
//
//	if failure.IsKind(err, failure.KindTimeout) {
//	    // retry later
//	}
package failure

import (
	"context"
	"errors"
	"fmt"
)

// Kind categorizes an error for programmatic handling.
type Kind int

const (
	// KindUnknown indicates an unclassified error.
	KindUnknown Kind = iota

	// KindDecode indicates that input media could not be read or decoded.
	KindDecode

	// KindCandidateDecode indicates the candidate under verification could not
	// be decoded. It is distinct from KindDecode so that callers can tell a bad
	// upload from a bad reference asset.
	KindCandidateDecode

	// KindUnsupportedRecipe indicates a recipe family or version that is not
	// registered.
	KindUnsupportedRecipe

	// KindCredentialIncompatible indicates a credential whose recipe or
	// algorithm tag cannot be verified by this engine.
	KindCredentialIncompatible

	// KindCanonicalizationMismatch indicates that the recomputed recipe string
	// differs from the declared one.
	KindCanonicalizationMismatch

	// KindHashComputation indicates a degenerate frame or a failing hash primitive.
	KindHashComputation

	// KindEmptyFingerprint indicates that no hashable frames were produced.
	KindEmptyFingerprint

	// KindCredentialValidation indicates a credential that does not satisfy the schema.
	KindCredentialValidation

	// KindTimeout indicates that processing exceeded its time budget.
	KindTimeout

	// KindConcurrencyLimit indicates that all worker slots are busy.
	KindConcurrencyLimit

	// KindSignatureInvalid indicates a credential signature that does not verify.
	KindSignatureInvalid

	// KindCanceled indicates that the caller aborted the job.
	KindCanceled
)

// String returns the stable, machine-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "DecodeError"
	case KindCandidateDecode:
		return "CandidateDecodeError"
	case KindUnsupportedRecipe:
		return "UnsupportedRecipeError"
	case KindCredentialIncompatible:
		return "CredentialIncompatibleError"
	case KindCanonicalizationMismatch:
		return "CanonicalizationMismatch"
	case KindHashComputation:
		return "HashComputationError"
	case KindEmptyFingerprint:
		return "EmptyFingerprintError"
	case KindCredentialValidation:
		return "CredentialValidationError"
	case KindTimeout:
		return "TimeoutError"
	case KindConcurrencyLimit:
		return "ConcurrencyLimitError"
	case KindSignatureInvalid:
		return "SignatureInvalidError"
	case KindCanceled:
		return "CanceledError"
	default:
		return "UnknownError"
	}
}

// MarshalText renders the kind by name in JSON output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error is the structured error type used throughout the core.
//
// Expected and Actual are populated for mismatches, most notably
// KindCanonicalizationMismatch where they hold the declared and recomputed
// recipe strings.
type Error struct {
	// Kind categorizes the error.
	Kind Kind `json:"kind"`

	// Stage names the pipeline step that failed (e.g. "decode", "phash").
	Stage string `json:"stage,omitempty"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Expected is the value the credential declared, if any.
	Expected string `json:"expected,omitempty"`

	// Actual is the value that was recomputed, if any.
	Actual string `json:"actual,omitempty"`

	// Cause is the underlying error.
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Stage != "" {
		msg += " [" + e.Stage + "]"
	}
	msg += ": " + e.Message
	if e.Expected != "" || e.Actual != "" {
		msg += fmt.Sprintf(" (expected %q, got %q)", e.Expected, e.Actual)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chain unwrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error of the given kind.
func New(kind Kind, stage, message string) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, stage, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Stage: stage, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around cause.
func Wrap(kind Kind, stage, message string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Cause: cause}
}

// Mismatch creates an error carrying both the expected and actual values.
func Mismatch(kind Kind, stage, message, expected, actual string) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Expected: expected, Actual: actual}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	if fe, ok := As(err); ok {
		return fe.Kind
	}
	return KindUnknown
}

// IsKind reports whether err's chain contains an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Recast returns err re-labelled as kind when it is an *Error of kind from.
// It is used to turn a generic decode failure into a candidate decode failure
// at the verification boundary without losing the original cause.
func Recast(err error, from, to Kind) error {
	fe, ok := As(err)
	if !ok || fe.Kind != from {
		return err
	}
	out := *fe
	out.Kind = to
	return &out
}

// FromContext converts the error of a finished context into a KindTimeout or
// KindCanceled error. It returns nil while ctx is still live.
func FromContext(ctx context.Context, stage string) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(KindTimeout, stage, "processing exceeded its time budget", err)
	default:
		return Wrap(KindCanceled, stage, "processing was canceled", err)
	}
}
