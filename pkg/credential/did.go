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

package credential

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
	"github.com/verisource/verisource-api-production-sub000/pkg/utils"
)

// didKeyPrefix starts every self-describing identifier. The rest is the
// unpadded base64url SubjectPublicKeyInfo of the creator key.
const didKeyPrefix = "did:key:z"

// IsKeyDID reports whether did embeds its own public key.
func IsKeyDID(did string) bool {
	return strings.HasPrefix(did, didKeyPrefix)
}

// KeyDID returns the did:key identifier for publicKey.
func KeyDID(publicKey crypto.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return "", fmt.Errorf("encoding public key: %w", err)
	}
	return didKeyPrefix + b64.EncodeToString(der), nil
}

// PublicKeyFromDID extracts the key a did:key identifier carries, so a
// signature can be checked without any key distribution.
func PublicKeyFromDID(did string) (crypto.PublicKey, error) {
	if !IsKeyDID(did) {
		return nil, failure.Newf(failure.KindSignatureInvalid, "creator.did",
			"%q does not embed a public key", did)
	}
	der, err := b64.DecodeString(strings.TrimRight(strings.TrimPrefix(did, didKeyPrefix), "="))
	if err != nil {
		return nil, failure.Wrap(failure.KindSignatureInvalid, "creator.did", "key material is not base64url", err)
	}
	key, err := utils.ParsePublicKeyDER(der)
	if err != nil {
		return nil, failure.Wrap(failure.KindSignatureInvalid, "creator.did", "key material is not a usable public key", err)
	}
	return key, nil
}
