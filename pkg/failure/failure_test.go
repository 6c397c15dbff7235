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

package failure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindDecode, "DecodeError"},
		{KindCandidateDecode, "CandidateDecodeError"},
		{KindUnsupportedRecipe, "UnsupportedRecipeError"},
		{KindCredentialIncompatible, "CredentialIncompatibleError"},
		{KindCanonicalizationMismatch, "CanonicalizationMismatch"},
		{KindHashComputation, "HashComputationError"},
		{KindEmptyFingerprint, "EmptyFingerprintError"},
		{KindCredentialValidation, "CredentialValidationError"},
		{KindTimeout, "TimeoutError"},
		{KindConcurrencyLimit, "ConcurrencyLimitError"},
		{KindSignatureInvalid, "SignatureInvalidError"},
		{KindCanceled, "CanceledError"},
		{KindUnknown, "UnknownError"},
		{Kind(999), "UnknownError"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	err := Mismatch(KindCanonicalizationMismatch, "recipe", "recipe differs", "img:v2:a", "img:v2:b")
	msg := err.Error()
	for _, want := range []string{"CanonicalizationMismatch", "[recipe]", `"img:v2:a"`, `"img:v2:b"`} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}

	cause := errors.New("exit status 1")
	wrapped := Wrap(KindDecode, "decode", "ffmpeg failed", cause)
	if !strings.HasSuffix(wrapped.Error(), ": exit status 1") {
		t.Errorf("Error() = %q, want cause suffix", wrapped.Error())
	}
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestIsKindThroughWrapping(t *testing.T) {
	base := New(KindTimeout, "decode", "deadline exceeded")
	err := fmt.Errorf("verify: %w", base)

	if !IsKind(err, KindTimeout) {
		t.Error("IsKind(KindTimeout) = false, want true")
	}
	if IsKind(err, KindDecode) {
		t.Error("IsKind(KindDecode) = true, want false")
	}
	if IsKind(nil, KindUnknown) {
		t.Error("IsKind(nil) should be false")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("KindOf(plain error) should be KindUnknown")
	}
}

func TestRecast(t *testing.T) {
	cause := errors.New("bad header")
	err := Wrap(KindDecode, "decode", "cannot read image", cause)

	got := Recast(err, KindDecode, KindCandidateDecode)
	if !IsKind(got, KindCandidateDecode) {
		t.Fatalf("Recast() kind = %v, want CandidateDecodeError", KindOf(got))
	}
	if !errors.Is(got, cause) {
		t.Error("Recast() should keep the cause")
	}
	if err.Kind != KindDecode {
		t.Error("Recast() must not modify the original error")
	}

	other := New(KindTimeout, "decode", "slow")
	if Recast(other, KindDecode, KindCandidateDecode) != error(other) {
		t.Error("Recast() should leave other kinds untouched")
	}
}

func TestFromContext(t *testing.T) {
	if err := FromContext(context.Background(), "decode"); err != nil {
		t.Errorf("FromContext(live) = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := FromContext(ctx, "decode"); !IsKind(err, KindCanceled) {
		t.Errorf("FromContext(canceled) = %v, want CanceledError", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()
	err := FromContext(ctx, "decode")
	if !IsKind(err, KindTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("FromContext(deadline) = %v, want TimeoutError", err)
	}
}
