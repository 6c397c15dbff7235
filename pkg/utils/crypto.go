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

package utils

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
)

// JWS algorithm names. RSA keys sign with PSS under the "RS256" label for
// compatibility with existing credentials; "PS256" is accepted on verify.
const (
	AlgRS256 = "RS256"
	AlgPS256 = "PS256"
	AlgES256 = "ES256"
	AlgES384 = "ES384"
	AlgES512 = "ES512"
	AlgEdDSA = "EdDSA"
)

// JWSAlgorithm returns the algorithm label for a public key.
func JWSAlgorithm(publicKey crypto.PublicKey) (string, error) {
	switch key := publicKey.(type) {
	case *rsa.PublicKey:
		return AlgRS256, nil
	case *ecdsa.PublicKey:
		switch key.Curve.Params().BitSize {
		case 256:
			return AlgES256, nil
		case 384:
			return AlgES384, nil
		case 521:
			return AlgES512, nil
		}
		return "", fmt.Errorf("unsupported ECDSA curve size: %d bits", key.Curve.Params().BitSize)
	case ed25519.PublicKey:
		return AlgEdDSA, nil
	default:
		return "", fmt.Errorf("unsupported public key type: %T", publicKey)
	}
}

// SignWithKey signs data. RSA uses PSS with SHA-256 and the largest salt
// the key allows, ECDSA emits the fixed-width R||S form, Ed25519 signs the
// message directly.
func SignWithKey(privateKey crypto.PrivateKey, data []byte) ([]byte, error) {
	switch key := privateKey.(type) {
	case *rsa.PrivateKey:
		digest := sha256.Sum256(data)
		sig, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthAuto,
			Hash:       crypto.SHA256,
		})
		if err != nil {
			return nil, fmt.Errorf("RSA-PSS signing failed: %w", err)
		}
		return sig, nil
	case *ecdsa.PrivateKey:
		digest, size, err := ecdsaDigest(key.Curve.Params().BitSize, data)
		if err != nil {
			return nil, err
		}
		r, s, err := ecdsa.Sign(rand.Reader, key, digest)
		if err != nil {
			return nil, fmt.Errorf("ECDSA signing failed: %w", err)
		}
		sig := make([]byte, 2*size)
		r.FillBytes(sig[:size])
		s.FillBytes(sig[size:])
		return sig, nil
	case ed25519.PrivateKey:
		return ed25519.Sign(key, data), nil
	default:
		return nil, fmt.Errorf("unsupported private key type: %T", privateKey)
	}
}

// VerifySignature checks signature over message. RSA signatures are tried as
// PSS with any salt length first and as PKCS#1 v1.5 second.
func VerifySignature(publicKey crypto.PublicKey, message, signature []byte) error {
	switch key := publicKey.(type) {
	case *rsa.PublicKey:
		digest := sha256.Sum256(message)
		if err := rsa.VerifyPSS(key, crypto.SHA256, digest[:], signature, nil); err != nil {
			if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], signature); err != nil {
				return fmt.Errorf("RSA signature verification failed: %w", err)
			}
		}
		return nil
	case *ecdsa.PublicKey:
		digest, size, err := ecdsaDigest(key.Curve.Params().BitSize, message)
		if err != nil {
			return err
		}
		if len(signature) != 2*size {
			return fmt.Errorf("ECDSA signature is %d bytes, want %d", len(signature), 2*size)
		}
		r := new(big.Int).SetBytes(signature[:size])
		s := new(big.Int).SetBytes(signature[size:])
		if !ecdsa.Verify(key, digest, r, s) {
			return fmt.Errorf("ECDSA signature verification failed")
		}
		return nil
	case ed25519.PublicKey:
		if !ed25519.Verify(key, message, signature) {
			return fmt.Errorf("Ed25519 signature verification failed")
		}
		return nil
	default:
		return fmt.Errorf("unsupported public key type for verification: %T", publicKey)
	}
}

// ecdsaDigest hashes data with the SHA-2 variant that matches the curve and
// returns the per-coordinate signature width.
func ecdsaDigest(bitSize int, data []byte) ([]byte, int, error) {
	switch bitSize {
	case 256:
		h := sha256.Sum256(data)
		return h[:], 32, nil
	case 384:
		h := sha512.Sum384(data)
		return h[:], 48, nil
	case 521:
		h := sha512.Sum512(data)
		return h[:], 66, nil
	default:
		return nil, 0, fmt.Errorf("unsupported ECDSA curve size: %d bits", bitSize)
	}
}

// ParsePublicKeyPEM reads a PKIX or PKCS#1 public key.
func ParsePublicKeyPEM(pemBytes []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		return checkPublicKey(key)
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return checkPublicKey(key)
	}
	return nil, fmt.Errorf("failed to parse public key (unsupported format)")
}

// ParsePublicKeyDER reads a DER encoded SubjectPublicKeyInfo.
func ParsePublicKeyDER(der []byte) (crypto.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return checkPublicKey(key)
}

// LoadPublicKey reads a PEM public key from path.
func LoadPublicKey(path string) (crypto.PublicKey, error) {
	if err := ValidateFileExists("public key", path); err != nil {
		return nil, err
	}
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	return ParsePublicKeyPEM(pemBytes)
}

func checkPublicKey(key interface{}) (crypto.PublicKey, error) {
	switch k := key.(type) {
	case *ecdsa.PublicKey:
		switch name := k.Curve.Params().Name; name {
		case "P-256", "P-384", "P-521":
			return k, nil
		default:
			return nil, fmt.Errorf("unsupported elliptic curve: %s (supported: P-256, P-384, P-521)", name)
		}
	case *rsa.PublicKey:
		if k.N.BitLen() < 2048 {
			return nil, fmt.Errorf("RSA key of %d bits is too small", k.N.BitLen())
		}
		return k, nil
	case ed25519.PublicKey:
		return k, nil
	default:
		return nil, fmt.Errorf("unsupported public key type: %T", key)
	}
}
