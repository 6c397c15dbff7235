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
	"github.com/verisource/verisource-api-production-sub000/pkg/phash"
	"github.com/verisource/verisource-api-production-sub000/pkg/recipe"
	"github.com/verisource/verisource-api-production-sub000/pkg/tracing"
)

type phashReport struct {
	Recipe     string      `json:"recipe"`
	A          phash.Hash  `json:"a"`
	B          *phash.Hash `json:"b,omitempty"`
	Distance   *int        `json:"distance,omitempty"`
	Similarity string      `json:"similarity,omitempty"`
}

// PHash creates the phash command.
func PHash() *cobra.Command {
	return &cobra.Command{
		Use:   "phash IMAGE [IMAGE]",
		Short: "Print the perceptual hash of an image, or the distance between two.",
		Long: `Canonicalize each IMAGE under the current image recipe and print its
64-bit perceptual hash. With two images, also print their Hamming distance
and its classification under the configured thresholds.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), ro.Timeout)
			defer cancel()

			var report *phashReport
			err := tracing.Run(ctx, tracing.StagePHashCommand, map[string]interface{}{"media_provenance.images": len(args)},
				func(ctx context.Context) error {
					var err error
					report, err = runPHash(ctx, args)
					return err
				})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
}

func runPHash(ctx context.Context, paths []string) (*phashReport, error) {
	cfg, err := ro.EngineConfig()
	if err != nil {
		return nil, err
	}
	logger := ro.NewLogger()
	builder := cfg.Builder(logger)
	rc, err := builder.Registry().Current(recipe.FamilyImage)
	if err != nil {
		return nil, err
	}

	hashes := make([]phash.Hash, len(paths))
	for i, path := range paths {
		input, err := options.ReadInput("image", path)
		if err != nil {
			return nil, err
		}
		err = cfg.Pool(logger).Do(ctx, "phash", func(ctx context.Context) error {
			fp, err := builder.Compute(ctx, input, rc)
			if err != nil {
				return err
			}
			hashes[i] = fp.PHash
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	report := &phashReport{Recipe: rc.String(), A: hashes[0]}
	if len(hashes) == 2 {
		d, sim := cfg.Policy.Thresholds.Compare(hashes[0], hashes[1])
		report.B, report.Distance, report.Similarity = &hashes[1], &d, sim.String()
	}
	return report, nil
}
