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

package options

import (
	"crypto"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verisource/verisource-api-production-sub000/pkg/credential"
	"github.com/verisource/verisource-api-production-sub000/pkg/utils"
)

// MaxInputBytes bounds every file the CLI reads into memory.
const MaxInputBytes int64 = 2 << 30

// maxDocumentBytes bounds credential and signature documents.
const maxDocumentBytes int64 = 1 << 20

// FlagAdder is implemented by any flag group that can register itself to a cobra command.
type FlagAdder interface {
	AddFlags(cmd *cobra.Command)
}

// AddAllFlags registers several flag groups at once.
func AddAllFlags(cmd *cobra.Command, flagGroups ...FlagAdder) {
	for _, fg := range flagGroups {
		fg.AddFlags(cmd)
	}
}

// CredentialFlags locate the credential a candidate is checked against.
type CredentialFlags struct {
	CredentialPath string
}

// AddFlags adds the credential flag.
func (o *CredentialFlags) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.CredentialPath, "credential", "", "Path to the content origin credential (JSON). [required]")
	_ = cmd.MarkFlagRequired("credential")
	_ = cmd.MarkFlagFilename("credential", "json")
}

// Load reads and validates the credential.
func (o *CredentialFlags) Load() (*credential.Credential, error) {
	raw, err := utils.ReadFileLimited("credential", o.CredentialPath, maxDocumentBytes)
	if err != nil {
		return nil, err
	}
	return credential.Parse(raw)
}

// SignatureFlags enable checking the credential's detached signature.
type SignatureFlags struct {
	SignaturePath string
	PublicKeyPath string
}

// AddFlags adds the signature and public key flags.
func (o *SignatureFlags) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.SignaturePath, "signature", "", "Path to the detached JWS signature of the credential.")
	cmd.Flags().StringVar(&o.PublicKeyPath, "public-key", "", "Path to the issuer public key (PEM). May be omitted when the creator is a did:key.")
	_ = cmd.MarkFlagFilename("public-key", "pem", "pub")
}

// Enabled reports whether a signature check was requested.
func (o *SignatureFlags) Enabled() bool {
	return o.SignaturePath != ""
}

// Validate rejects a public key given without a signature to check.
func (o *SignatureFlags) Validate() error {
	if o.PublicKeyPath != "" && o.SignaturePath == "" {
		return fmt.Errorf("--public-key requires --signature")
	}
	return nil
}

// Check verifies c against the configured signature. Without --public-key
// the key embedded in a did:key creator is used.
func (o *SignatureFlags) Check(c *credential.Credential) error {
	if o.PublicKeyPath == "" && !credential.IsKeyDID(c.Creator.DID) {
		return fmt.Errorf("--public-key is required for creator %s", c.Creator.DID)
	}
	raw, err := utils.ReadFileLimited("signature", o.SignaturePath, maxDocumentBytes)
	if err != nil {
		return err
	}
	sig, err := credential.ParseSignature(raw)
	if err != nil {
		return err
	}
	pub, err := o.publicKey(c)
	if err != nil {
		return err
	}
	return credential.Verify(c, sig, pub)
}

func (o *SignatureFlags) publicKey(c *credential.Credential) (crypto.PublicKey, error) {
	if o.PublicKeyPath == "" {
		return credential.PublicKeyFromDID(c.Creator.DID)
	}
	pub, err := utils.LoadPublicKey(o.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading public key: %w", err)
	}
	return pub, nil
}

// CallerFlags identify who is charged for a verification.
type CallerFlags struct {
	Caller string
}

// AddFlags adds the caller flag.
func (o *CallerFlags) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Caller, "caller", "", "Caller identifier counted against the usage window. Not recorded in clear.")
}

// MediaFlags describe an asset given on the command line.
type MediaFlags struct {
	MediaType  string
	WithLegacy bool
}

// AddFlags adds the media type flags.
func (o *MediaFlags) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.MediaType, "media-type", "", "IANA media type of the asset, e.g. image/jpeg or video/mp4. [required]")
	_ = cmd.MarkFlagRequired("media-type")
	cmd.Flags().BoolVar(&o.WithLegacy, "with-legacy", false, "Also record the img:v1 hash so older verifiers can match images.")
}

// ReadInput reads an asset named on the command line.
func ReadInput(field, path string) ([]byte, error) {
	return utils.ReadFileLimited(field, path, MaxInputBytes)
}
