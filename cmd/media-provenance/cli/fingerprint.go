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

	"github.com/spf13/cobra"

	"github.com/verisource/verisource-api-production-sub000/cmd/media-provenance/cli/options"
	"github.com/verisource/verisource-api-production-sub000/pkg/fingerprint"
	"github.com/verisource/verisource-api-production-sub000/pkg/tracing"
)

// Fingerprint creates the fingerprint command.
func Fingerprint() *cobra.Command {
	o := &options.MediaFlags{}
	long := `Compute the fingerprint bundle of a reference asset.

The asset is canonicalized under the current recipe for its media type and
the resulting bundle is printed as JSON, ready to be embedded in a
credential.`

	cmd := &cobra.Command{
		Use:   "fingerprint [OPTIONS] ASSET",
		Short: "Compute the fingerprint bundle of an asset.",
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), ro.Timeout)
			defer cancel()

			attrs := map[string]interface{}{
				"media_provenance.asset":       args[0],
				"media_provenance.media_type":  o.MediaType,
				"media_provenance.with_legacy": o.WithLegacy,
			}
			var bundle *fingerprint.Bundle
			err := tracing.Run(ctx, tracing.StageFingerprint, attrs, func(ctx context.Context) error {
				cfg, err := ro.EngineConfig()
				if err != nil {
					return err
				}
				input, err := options.ReadInput("asset", args[0])
				if err != nil {
					return err
				}
				logger := ro.NewLogger()
				builder := cfg.Builder(logger)
				return cfg.Pool(logger).Do(ctx, "fingerprint", func(ctx context.Context) error {
					bundle, err = builder.Build(ctx, input, o.MediaType, o.WithLegacy)
					return err
				})
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), bundle)
		},
	}

	o.AddFlags(cmd)
	return cmd
}
