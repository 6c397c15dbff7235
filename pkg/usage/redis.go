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

package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var incrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisConfig configures a Redis counter.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Window   time.Duration
}

// Redis is a Counter shared between processes through Redis. Keys expire
// with the window, which bounds the key space.
type Redis struct {
	client *redis.Client
	window time.Duration
}

// NewRedis connects to Redis. The connection is established lazily.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Redis{client: client, window: cfg.Window}, nil
}

// Incr implements Counter.
func (r *Redis) Incr(ctx context.Context, caller string) (int64, error) {
	key, err := KeyFor(caller)
	if err != nil {
		return 0, err
	}
	n, err := incrScript.Run(ctx, r.client, []string{key}, r.window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("incrementing usage: %w", err)
	}
	return n, nil
}

// Close implements Counter.
func (r *Redis) Close() error {
	return r.client.Close()
}
