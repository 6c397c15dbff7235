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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
	"github.com/verisource/verisource-api-production-sub000/pkg/utils"
)

// SignatureType is the only supported signature container type.
const SignatureType = "JWS-detached"

// Signature is a detached JWS stored next to the credential.
type Signature struct {
	Type      string `json:"type"`
	Alg       string `json:"alg"`
	KID       string `json:"kid"`
	Created   string `json:"created"`
	Signature string `json:"signature"`
}

type jwsHeader struct {
	Alg string `json:"alg"`
	KID string `json:"kid"`
	Typ string `json:"typ"`
	Iat string `json:"iat"`
}

var b64 = base64.RawURLEncoding

// ParseSignature decodes a signature container.
func ParseSignature(raw []byte) (*Signature, error) {
	var s Signature
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, failure.Wrap(failure.KindCredentialValidation, "signature", "signature is not valid JSON", err)
	}
	if s.Type != SignatureType || s.Alg == "" || s.KID == "" || s.Created == "" || s.Signature == "" {
		return nil, failure.Newf(failure.KindCredentialValidation, "signature",
			"signature container must be a complete %s object", SignatureType)
	}
	return &s, nil
}

func signingInput(alg, kid, created string, payload []byte) ([]byte, error) {
	header, err := MarshalCanonical(jwsHeader{Alg: alg, KID: kid, Typ: "JWS", Iat: created})
	if err != nil {
		return nil, err
	}
	return []byte(b64.EncodeToString(header) + "." + b64.EncodeToString(payload)), nil
}

// Sign produces a detached signature over the canonical form of c.
// key must be a crypto.Signer whose public half JWSAlgorithm understands.
func Sign(c *Credential, key crypto.Signer, kid string, now time.Time) (*Signature, error) {
	alg, err := utils.JWSAlgorithm(key.Public())
	if err != nil {
		return nil, err
	}
	payload, err := c.Canonical()
	if err != nil {
		return nil, fmt.Errorf("canonicalizing credential: %w", err)
	}
	created := now.UTC().Format(TimestampLayout)
	input, err := signingInput(alg, kid, created, payload)
	if err != nil {
		return nil, err
	}
	sig, err := utils.SignWithKey(key, input)
	if err != nil {
		return nil, err
	}
	return &Signature{
		Type:      SignatureType,
		Alg:       alg,
		KID:       kid,
		Created:   created,
		Signature: b64.EncodeToString(sig),
	}, nil
}

// Verify checks sig over c with publicKey. The key ID must belong to the
// credential's creator DID. Failures are KindSignatureInvalid.
func Verify(c *Credential, sig *Signature, publicKey crypto.PublicKey) error {
	if sig.Type != SignatureType {
		return failure.Newf(failure.KindSignatureInvalid, "signature", "unsupported signature type %q", sig.Type)
	}
	if !strings.HasPrefix(sig.KID, c.Creator.DID+"#") {
		return failure.Mismatch(failure.KindSignatureInvalid, "signature",
			"key ID does not belong to the creator", KeyID(c.Creator.DID, 1), sig.KID)
	}
	if err := checkAlgorithm(sig.Alg, publicKey); err != nil {
		return failure.Wrap(failure.KindSignatureInvalid, "signature", "algorithm does not fit the key", err)
	}

	raw, err := b64.DecodeString(strings.TrimRight(sig.Signature, "="))
	if err != nil {
		return failure.Wrap(failure.KindSignatureInvalid, "signature", "signature is not base64url", err)
	}
	payload, err := c.Canonical()
	if err != nil {
		return failure.Wrap(failure.KindCredentialValidation, "signature", "canonicalizing credential", err)
	}
	input, err := signingInput(sig.Alg, sig.KID, sig.Created, payload)
	if err != nil {
		return failure.Wrap(failure.KindSignatureInvalid, "signature", "building signing input", err)
	}
	if err := utils.VerifySignature(publicKey, input, raw); err != nil {
		return failure.Wrap(failure.KindSignatureInvalid, "signature", "signature does not verify", err)
	}
	return nil
}

func checkAlgorithm(alg string, publicKey crypto.PublicKey) error {
	want, err := utils.JWSAlgorithm(publicKey)
	if err != nil {
		return err
	}
	if alg == want || (alg == utils.AlgPS256 && want == utils.AlgRS256) {
		return nil
	}
	return fmt.Errorf("signature declares %s, key is %s", alg, want)
}
