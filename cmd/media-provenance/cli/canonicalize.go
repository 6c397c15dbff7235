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
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verisource/verisource-api-production-sub000/cmd/media-provenance/cli/options"
	"github.com/verisource/verisource-api-production-sub000/pkg/canonical"
	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
	"github.com/verisource/verisource-api-production-sub000/pkg/media"
	"github.com/verisource/verisource-api-production-sub000/pkg/recipe"
	"github.com/verisource/verisource-api-production-sub000/pkg/tracing"
)

// CanonicalizeOptions are the flags of the canonicalize command.
type CanonicalizeOptions struct {
	Recipe string
	Out    string
}

// AddFlags implements options.FlagAdder.
func (o *CanonicalizeOptions) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Recipe, "recipe", "", "Recipe key (img:v2) or full recipe string. [required]")
	_ = cmd.MarkFlagRequired("recipe")
	cmd.Flags().StringVar(&o.Out, "out", "", "Write the canonical bytes here: PNG for images, raw rgb24 frames for video.")
}

// canonicalSummary is the JSON printed by canonicalize.
type canonicalSummary struct {
	Recipe string `json:"recipe"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Frames int    `json:"frames"`
	Digest string `json:"digest"`
	CID    string `json:"cid"`
	Out    string `json:"out,omitempty"`
}

// resolveRecipe accepts either a registry key or a full recipe string. A
// full string must match the registered pipeline exactly.
func resolveRecipe(reg *recipe.Registry, s string) (recipe.Recipe, error) {
	if strings.Count(s, ":") == 1 {
		return reg.Lookup(s)
	}
	rc, err := reg.Resolve(s)
	if err != nil {
		return recipe.Recipe{}, err
	}
	if rc.String() != s {
		return recipe.Recipe{}, failure.Mismatch(failure.KindCanonicalizationMismatch, "recipe",
			"recipe string differs from the registered pipeline", s, rc.String())
	}
	return rc, nil
}

// Canonicalize creates the canonicalize command.
func Canonicalize() *cobra.Command {
	o := &CanonicalizeOptions{}

	cmd := &cobra.Command{
		Use:   "canonicalize [OPTIONS] ASSET",
		Short: "Canonicalize an asset and print its digest.",
		Long: `Canonicalize ASSET under a recipe and print the canonical digest and CID.

The digest is SHA-256 of the canonical PNG for images and BLAKE3 of the
rgb24 frame stream for video.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), ro.Timeout)
			defer cancel()

			attrs := map[string]interface{}{
				"media_provenance.asset":  args[0],
				"media_provenance.recipe": o.Recipe,
			}
			var summary *canonicalSummary
			err := tracing.Run(ctx, tracing.StageCanonicalizeCommand, attrs, func(ctx context.Context) error {
				var err error
				summary, err = runCanonicalize(ctx, o, args[0])
				return err
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}

	o.AddFlags(cmd)
	return cmd
}

func runCanonicalize(ctx context.Context, o *CanonicalizeOptions, assetPath string) (_ *canonicalSummary, err error) {
	cfg, err := ro.EngineConfig()
	if err != nil {
		return nil, err
	}
	rc, err := resolveRecipe(recipe.Default(), o.Recipe)
	if err != nil {
		return nil, err
	}
	input, err := options.ReadInput("asset", assetPath)
	if err != nil {
		return nil, err
	}

	var sink canonical.FrameSink
	var file *os.File
	if o.Out != "" {
		if file, err = os.Create(o.Out); err != nil {
			return nil, fmt.Errorf("creating %s: %w", o.Out, err)
		}
		defer func() {
			if cerr := file.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		if rc.Family() == recipe.FamilyVideo {
			sink = func(f media.Frame) error {
				_, err := file.Write(f.Pix)
				return err
			}
		}
	}

	logger := ro.NewLogger()
	engine := cfg.Canonicalizer(logger)
	var out *canonical.Output
	err = cfg.Pool(logger).Do(ctx, "canonicalize", func(ctx context.Context) error {
		out, err = engine.Canonicalize(ctx, input, rc, sink)
		return err
	})
	if err != nil {
		return nil, err
	}
	if file != nil && rc.Family() == recipe.FamilyImage {
		if _, err := file.Write(out.Encoded); err != nil {
			return nil, fmt.Errorf("writing %s: %w", o.Out, err)
		}
	}

	return &canonicalSummary{
		Recipe: out.Recipe,
		Width:  out.Width,
		Height: out.Height,
		Frames: out.Frames,
		Digest: out.Digest.String(),
		CID:    out.CID.String(),
		Out:    o.Out,
	}, nil
}
