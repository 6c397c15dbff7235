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

// Package config holds the runtime configuration of the provenance engine.
//
// A configuration starts from NewEngineConfig, is optionally overlaid with a
// YAML or JSON file and with MEDIA_PROVENANCE_* environment variables, and
// is then validated once. The Set* methods return the receiver so that
// programmatic callers can chain them:
//
//	cfg := config.NewEngineConfig().SetMaxConcurrent(4).SetFFmpegPath("/opt/ffmpeg")
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/verisource/verisource-api-production-sub000/pkg/decoder"
	"github.com/verisource/verisource-api-production-sub000/pkg/verify"
	"github.com/verisource/verisource-api-production-sub000/pkg/worker"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MEDIA_PROVENANCE_"

// Usage counter backends.
const (
	UsageMemory = "memory"
	UsageRedis  = "redis"
)

// Duration is a time.Duration written as "90s" or "10m" in config files.
type Duration time.Duration

// MarshalJSON renders the duration in Go notation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a Go duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("duration must be a string like \"90s\" or a number of seconds")
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// RedisConfig locates the Redis server of the redis usage backend.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}

// UsageConfig selects and sizes the per-caller usage counter.
type UsageConfig struct {
	// Backend is "memory" or "redis".
	Backend string `json:"backend"`
	// Window is the counting period.
	Window Duration `json:"window"`
	// MaxCallers bounds the memory backend.
	MaxCallers int         `json:"maxCallers"`
	Redis      RedisConfig `json:"redis,omitempty"`
}

// EngineConfig configures canonicalization, verification and usage
// accounting.
type EngineConfig struct {
	// MaxConcurrent is the number of jobs that may run at once.
	MaxConcurrent int `json:"maxConcurrent"`
	// DecodeTimeout is the wall-clock budget of one job.
	DecodeTimeout Duration `json:"decodeTimeout"`
	// FFmpegPath is the ffmpeg binary used for video.
	FFmpegPath string `json:"ffmpegPath"`
	// HashWorkers bounds per-frame hashing inside one job. Zero uses every CPU.
	HashWorkers int `json:"hashWorkers"`

	Policy verify.Policy `json:"policy"`
	Usage  UsageConfig   `json:"usage"`
}

// NewEngineConfig returns the defaults: two concurrent jobs, a ten minute
// budget, ffmpeg from PATH, the standard verdict
// policy and an in-memory usage counter.
func NewEngineConfig() *EngineConfig {
	return &EngineConfig{
		MaxConcurrent: worker.DefaultSize,
		DecodeTimeout: Duration(worker.DefaultTimeout),
		FFmpegPath:    decoder.DefaultFFmpegPath,
		Policy:        verify.DefaultPolicy(),
		Usage: UsageConfig{
			Backend:    UsageMemory,
			Window:     Duration(24 * time.Hour),
			MaxCallers: 10000,
		},
	}
}

// SetMaxConcurrent sets the number of concurrent jobs.
func (c *EngineConfig) SetMaxConcurrent(n int) *EngineConfig {
	c.MaxConcurrent = n
	return c
}

// SetDecodeTimeout sets the per-job budget.
func (c *EngineConfig) SetDecodeTimeout(d time.Duration) *EngineConfig {
	c.DecodeTimeout = Duration(d)
	return c
}

// SetFFmpegPath sets the ffmpeg binary.
func (c *EngineConfig) SetFFmpegPath(path string) *EngineConfig {
	c.FFmpegPath = path
	return c
}

// SetPolicy replaces the verdict policy.
func (c *EngineConfig) SetPolicy(p verify.Policy) *EngineConfig {
	c.Policy = p
	return c
}

// SetRedisUsage switches usage accounting to Redis.
func (c *EngineConfig) SetRedisUsage(addr, password string, db int) *EngineConfig {
	c.Usage.Backend = UsageRedis
	c.Usage.Redis = RedisConfig{Addr: addr, Password: password, DB: db}
	return c
}

// LoadFile overlays the YAML or JSON document at path. Keys absent from
// the file keep their current values.
func (c *EngineConfig) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays MEDIA_PROVENANCE_* variables. Unset or empty variables
// are ignored; malformed values are an error.
func (c *EngineConfig) ApplyEnv() error {
	e := envReader{}
	e.int("MAX_CONCURRENT", &c.MaxConcurrent)
	e.duration("DECODE_TIMEOUT", &c.DecodeTimeout)
	e.string("FFMPEG_PATH", &c.FFmpegPath)
	e.int("HASH_WORKERS", &c.HashWorkers)

	e.int("PHASH_MATCH", &c.Policy.Thresholds.Match)
	e.int("PHASH_WEAK", &c.Policy.Thresholds.Weak)
	e.float("STRONG_COVERAGE", &c.Policy.StrongCoverage)
	e.float("DERIVED_COVERAGE", &c.Policy.DerivedCoverage)
	e.float("INCONCLUSIVE_COVERAGE", &c.Policy.InconclusiveCoverage)
	e.int("RUN_LENGTH", &c.Policy.RunLength)
	e.int("MAX_MISMATCHES", &c.Policy.MaxMismatches)
	e.bool("REQUIRE_FULL_OVERLAP", &c.Policy.RequireFullOverlap)

	e.string("USAGE_BACKEND", &c.Usage.Backend)
	e.duration("USAGE_WINDOW", &c.Usage.Window)
	e.int("USAGE_MAX_CALLERS", &c.Usage.MaxCallers)
	e.string("REDIS_ADDR", &c.Usage.Redis.Addr)
	e.string("REDIS_PASSWORD", &c.Usage.Redis.Password)
	e.int("REDIS_DB", &c.Usage.Redis.DB)

	if len(e.errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(e.errs, "; "))
	}
	return nil
}

// Validate rejects values the engine cannot run with.
func (c *EngineConfig) Validate() error {
	var errs []string
	if c.MaxConcurrent < 1 {
		errs = append(errs, fmt.Sprintf("maxConcurrent must be at least 1, got %d", c.MaxConcurrent))
	}
	if c.DecodeTimeout <= 0 {
		errs = append(errs, "decodeTimeout must be positive")
	}
	if c.FFmpegPath == "" {
		errs = append(errs, "ffmpegPath must not be empty")
	}
	if c.HashWorkers < 0 {
		errs = append(errs, "hashWorkers must not be negative")
	}
	if err := c.Policy.Validate(); err != nil {
		errs = append(errs, "policy: "+err.Error())
	}

	switch c.Usage.Backend {
	case UsageMemory:
		if c.Usage.MaxCallers < 1 {
			errs = append(errs, "usage.maxCallers must be at least 1")
		}
	case UsageRedis:
		if c.Usage.Redis.Addr == "" {
			errs = append(errs, "usage.redis.addr is required for the redis backend")
		}
		if c.Usage.Redis.DB < 0 {
			errs = append(errs, "usage.redis.db must not be negative")
		}
	default:
		errs = append(errs, fmt.Sprintf("usage.backend must be %q or %q, got %q", UsageMemory, UsageRedis, c.Usage.Backend))
	}
	if c.Usage.Window <= 0 {
		errs = append(errs, "usage.window must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

type envReader struct {
	errs []string
}

func (r *envReader) lookup(name string) (string, string, bool) {
	key := EnvPrefix + name
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return key, "", false
	}
	return key, strings.TrimSpace(v), true
}

func (r *envReader) fail(key, v string, err error) {
	r.errs = append(r.errs, fmt.Sprintf("%s=%q: %v", key, v, err))
}

func (r *envReader) string(name string, dst *string) {
	if _, v, ok := r.lookup(name); ok {
		*dst = v
	}
}

func (r *envReader) int(name string, dst *int) {
	key, v, ok := r.lookup(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = n
}

func (r *envReader) float(name string, dst *float64) {
	key, v, ok := r.lookup(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = f
}

func (r *envReader) bool(name string, dst *bool) {
	key, v, ok := r.lookup(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = b
}

func (r *envReader) duration(name string, dst *Duration) {
	key, v, ok := r.lookup(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = Duration(d)
}
