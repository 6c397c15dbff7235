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
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/verisource/verisource-api-production-sub000/pkg/recipe"
)

// Recipes creates the recipes command.
func Recipes() *cobra.Command {
	return &cobra.Command{
		Use:   "recipes",
		Short: "List the registered canonicalization recipes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := recipe.Default()
			current := map[string]bool{}
			for _, f := range []recipe.Family{recipe.FamilyImage, recipe.FamilyVideo} {
				if rc, err := reg.Current(f); err == nil {
					current[rc.Key()] = true
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tCURRENT\tRECIPE")
			for _, key := range reg.Keys() {
				rc, err := reg.Lookup(key)
				if err != nil {
					return err
				}
				mark := ""
				if current[key] {
					mark = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", key, mark, rc.String())
			}
			return w.Flush()
		},
	}
}
