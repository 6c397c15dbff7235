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

// Package credential parses, validates and signs content origin
// credentials, the envelope that carries a fingerprint bundle.
//
// Signatures are detached JWS over the canonical JSON of the credential,
// so the credential document itself is never modified by signing.
package credential

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
	"github.com/verisource/verisource-api-production-sub000/pkg/fingerprint"
)

const (
	// Version is the credential format version written by New.
	Version = "3.0.0"

	// TimestampLayout is the UTC second-precision form used for issued times.
	TimestampLayout = "2006-01-02T15:04:05Z"

	maxDIDLength = 512
)

// Creator types.
const (
	CreatorHuman         = "human"
	CreatorAISystem      = "ai-system"
	CreatorCollaboration = "human-ai-collaboration"
)

var (
	didPattern       = regexp.MustCompile(`^did:[a-z0-9]+:.+$`)
	mediaTypePattern = regexp.MustCompile(`^[a-z]+/[a-z0-9][a-z0-9.+_-]*[a-z0-9]$`)
)

// Creator identifies who produced the content without carrying PII.
type Creator struct {
	DID  string `json:"did" validate:"required,did"`
	Type string `json:"type" validate:"required,oneof=human ai-system human-ai-collaboration"`
}

// Timestamp records when the content was created and the credential issued.
type Timestamp struct {
	Created string `json:"created" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Issued  string `json:"issued" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

// Credential is a content origin credential.
type Credential struct {
	CredentialID      string                   `json:"credentialId" validate:"required,uuid"`
	Version           string                   `json:"version" validate:"required,semver"`
	MediaType         string                   `json:"mediaType" validate:"required,mediatype"`
	FingerprintBundle fingerprint.Bundle       `json:"fingerprintBundle" validate:"required"`
	Creator           Creator                  `json:"creator" validate:"required"`
	Timestamp         Timestamp                `json:"timestamp" validate:"required"`
	ContentMetadata   map[string]interface{}   `json:"contentMetadata" validate:"required"`
	RevocationPointer string                   `json:"revocationPointer" validate:"required"`
	ChainOfCustody    []map[string]interface{} `json:"chainOfCustody,omitempty"`
	Ext               map[string]interface{}   `json:"ext,omitempty"`

	// raw is the document as received; signatures cover its canonical
	// form so that fields this type does not model are still protected.
	raw []byte
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func schema() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("did", func(fl validator.FieldLevel) bool {
			return ValidDID(fl.Field().String())
		})
		_ = v.RegisterValidation("mediatype", func(fl validator.FieldLevel) bool {
			return mediaTypePattern.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// ValidDID reports whether did has the did:<method>:<id> shape and fits in
// 512 characters.
func ValidDID(did string) bool {
	return len(did) <= maxDIDLength && didPattern.MatchString(did)
}

// KeyID returns the JWS key identifier for the index-th key of did.
func KeyID(did string, index int) string {
	return fmt.Sprintf("%s#key-%d", did, index)
}

// Parse decodes and validates a credential document.
func Parse(raw []byte) (*Credential, error) {
	var c Credential
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, failure.Wrap(failure.KindCredentialValidation, "credential", "credential is not valid JSON", err)
	}
	c.raw = append([]byte(nil), raw...)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the credential against its schema.
func (c *Credential) Validate() error {
	err := schema().Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return failure.Wrap(failure.KindCredentialValidation, "credential", "validating credential", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
	}
	return failure.Wrap(failure.KindCredentialValidation, "credential", strings.Join(msgs, "; "), err)
}

// Canonical returns the canonical JSON the credential signature covers.
func (c *Credential) Canonical() ([]byte, error) {
	if c.raw != nil {
		return CanonicalJSON(c.raw)
	}
	return MarshalCanonical(c)
}

// Options are the optional parts of a new credential.
type Options struct {
	ChainOfCustody []map[string]interface{}
	Ext            map[string]interface{}
	// Created overrides the content creation time. It defaults to now.
	Created time.Time
	// Now fixes the issue time, for reproducible output.
	Now time.Time
}

// New assembles and validates a credential for bundle.
func New(mediaType string, bundle fingerprint.Bundle, creator Creator, contentMetadata map[string]interface{}, revocationPointer string, opts Options) (*Credential, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	created := opts.Created
	if created.IsZero() {
		created = now
	}
	if contentMetadata == nil {
		contentMetadata = map[string]interface{}{}
	}

	c := &Credential{
		CredentialID:      uuid.NewString(),
		Version:           Version,
		MediaType:         mediaType,
		FingerprintBundle: bundle,
		Creator:           creator,
		Timestamp: Timestamp{
			Created: created.UTC().Format(TimestampLayout),
			Issued:  now.UTC().Format(TimestampLayout),
		},
		ContentMetadata:   contentMetadata,
		RevocationPointer: revocationPointer,
		ChainOfCustody:    opts.ChainOfCustody,
		Ext:               opts.Ext,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// MarshalJSON renders the credential as received when it was parsed.
func (c *Credential) MarshalJSON() ([]byte, error) {
	if c.raw != nil {
		return append([]byte(nil), c.raw...), nil
	}
	type plain Credential
	return json.Marshal((*plain)(c))
}
