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

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verisource/verisource-api-production-sub000/cmd/media-provenance/cli/options"
	"github.com/verisource/verisource-api-production-sub000/pkg/config"
	"github.com/verisource/verisource-api-production-sub000/pkg/logging"
	"github.com/verisource/verisource-api-production-sub000/pkg/tracing"
	"github.com/verisource/verisource-api-production-sub000/pkg/verify"
)

// Exit codes of the verify command.
const (
	ExitCodeProven    = 0
	ExitCodeError     = 1
	ExitCodeNotProven = 2
)

// VerifyOptions are the flags of the verify command.
type VerifyOptions struct {
	options.CredentialFlags
	options.SignatureFlags
	options.CallerFlags
}

// AddFlags implements options.FlagAdder.
func (o *VerifyOptions) AddFlags(cmd *cobra.Command) {
	options.AddAllFlags(cmd, &o.CredentialFlags, &o.SignatureFlags, &o.CallerFlags)
}

// Verify creates the verify command.
func Verify() *cobra.Command {
	o := &VerifyOptions{}
	long := `Verify that CANDIDATE is the content a credential was issued for.

The candidate is canonicalized under the recipe the credential declares and
its fingerprint is compared with the credential's fingerprint bundle. The
outcome is printed as JSON.

When --signature is given, the credential's detached JWS signature is
checked before any media work. The key comes from --public-key, or from the
creator DID itself when it is a did:key.

Exit status is 0 for PROVEN_STRONG and PROVEN_DERIVED, 2 for INCONCLUSIVE
and NOT_PROVEN, and 1 when verification could not be performed.`

	cmd := &cobra.Command{
		Use:   "verify [OPTIONS] CANDIDATE",
		Short: "Verify a candidate file against a credential.",
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), ro.Timeout)
			defer cancel()

			attrs := map[string]interface{}{
				"media_provenance.candidate":  args[0],
				"media_provenance.credential": o.CredentialPath,
				"media_provenance.signed":     o.SignatureFlags.Enabled(),
			}
			var outcome *verify.Outcome
			err := tracing.Run(ctx, tracing.StageVerifyCommand, attrs, func(ctx context.Context) error {
				var err error
				outcome, err = runVerify(ctx, o, args[0])
				return err
			})
			if err != nil {
				return &ExitError{Code: ExitCodeError, Err: err}
			}
			if err := writeJSON(cmd.OutOrStdout(), outcome); err != nil {
				return &ExitError{Code: ExitCodeError, Err: err}
			}
			if !outcome.Verdict.Proven() {
				return &ExitError{Code: ExitCodeNotProven, Quiet: true, Err: fmt.Errorf("verdict %s", outcome.Verdict)}
			}
			return nil
		},
	}

	o.AddFlags(cmd)
	return cmd
}

func runVerify(ctx context.Context, o *VerifyOptions, candidatePath string) (*verify.Outcome, error) {
	logger := ro.NewLogger()
	if err := o.SignatureFlags.Validate(); err != nil {
		return nil, err
	}
	cfg, err := ro.EngineConfig()
	if err != nil {
		return nil, err
	}

	cred, err := o.Load()
	if err != nil {
		return nil, err
	}
	if o.SignatureFlags.Enabled() {
		if err := o.SignatureFlags.Check(cred); err != nil {
			return nil, err
		}
		logger.Debugln("credential signature verified")
	}

	candidate, err := options.ReadInput("candidate", candidatePath)
	if err != nil {
		return nil, err
	}
	if o.Caller != "" {
		countUsage(ctx, cfg, o.Caller, logger)
	}

	engine, err := cfg.Engine(logger)
	if err != nil {
		return nil, err
	}
	return engine.Verify(ctx, candidate, cred)
}

// countUsage records one verification for caller. Counting never blocks a
// verification; failures are logged.
func countUsage(ctx context.Context, cfg *config.EngineConfig, caller string, logger logging.Logger) {
	counter, err := cfg.UsageCounter()
	if err != nil {
		logger.Warn("usage counter unavailable: %v", err)
		return
	}
	defer counter.Close()

	n, err := counter.Incr(ctx, caller)
	if err != nil {
		logger.Warn("counting usage: %v", err)
		return
	}
	logger.WithFields(map[string]interface{}{
		"backend":         cfg.Usage.Backend,
		"calls_in_window": n,
	}).Info("usage recorded")
}
