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

package recipe

import (
	"fmt"
	"sort"

	"github.com/verisource/verisource-api-production-sub000/pkg/failure"
)

// Built-in recipes. These values are frozen.
var (
	// ImageV1 is the legacy image pipeline, kept to verify old credentials.
	ImageV1 = NewImage(1, ImageParams{CompressionLevel: 6})

	// ImageV2 is the current image pipeline.
	ImageV2 = NewImage(2, ImageParams{MaxEdge: 2048, FlattenWhite: true, CompressionLevel: 9})

	// VideoV1 is the current video pipeline.
	VideoV1 = NewVideo(1, VideoParams{
		Deinterlace:   "yadif",
		Matrix:        "bt709",
		Range:         "full",
		PixelFormat:   "rgb24",
		MaxEdge:       720,
		FPSMilli:      15000,
		Kernel:        "lanczos3",
		WindowSeconds: 1,
	})
)

// Registry is an immutable set of recipes keyed by "<family>:v<N>".
// It is safe for concurrent use.
type Registry struct {
	recipes map[string]Recipe
	current map[Family]string
}

// NewRegistry builds a registry. The highest version of each family becomes
// the current recipe for issuing new fingerprints.
func NewRegistry(recipes ...Recipe) (*Registry, error) {
	r := &Registry{
		recipes: make(map[string]Recipe, len(recipes)),
		current: make(map[Family]string),
	}
	for _, rc := range recipes {
		if rc.IsZero() {
			return nil, fmt.Errorf("zero recipe")
		}
		key := rc.Key()
		if _, dup := r.recipes[key]; dup {
			return nil, fmt.Errorf("recipe %s registered twice", key)
		}
		r.recipes[key] = rc
		if cur, ok := r.current[rc.Family()]; !ok || r.recipes[cur].Version() < rc.Version() {
			r.current[rc.Family()] = key
		}
	}
	return r, nil
}

// Default returns the registry of built-in recipes.
func Default() *Registry {
	r, err := NewRegistry(ImageV1, ImageV2, VideoV1)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the recipe registered under key.
func (r *Registry) Lookup(key string) (Recipe, error) {
	rc, ok := r.recipes[key]
	if !ok {
		return Recipe{}, failure.Newf(failure.KindUnsupportedRecipe, "recipe",
			"recipe %s is not supported", key)
	}
	return rc, nil
}

// Resolve parses a recipe string and returns the registered recipe for its
// prefix. The caller is responsible for comparing the pipeline text.
func (r *Registry) Resolve(s string) (Recipe, error) {
	p, err := ParsePrefix(s)
	if err != nil {
		return Recipe{}, err
	}
	return r.Lookup(p.Key())
}

// Current returns the newest recipe of a family.
func (r *Registry) Current(f Family) (Recipe, error) {
	key, ok := r.current[f]
	if !ok {
		return Recipe{}, failure.Newf(failure.KindUnsupportedRecipe, "recipe",
			"no recipe registered for family %q", f)
	}
	return r.recipes[key], nil
}

// Keys returns the sorted registered keys.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.recipes))
	for k := range r.recipes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
