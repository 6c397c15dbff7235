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

package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/verisource/verisource-api-production-sub000/cmd/media-provenance/cli"
	"github.com/verisource/verisource-api-production-sub000/pkg/tracing"
)

type ExitCoder interface {
	error
	ExitCode() int
}

func main() {
	log.SetFlags(0)
	os.Exit(run())
}

func run() int {
	if err := tracing.InitFromEnv("media-provenance"); err != nil {
		log.Printf("warning: tracing disabled: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(ctx)
	}()

	err := cli.New().Execute()
	if err == nil {
		return 0
	}

	var ee *cli.ExitError
	if errors.As(err, &ee) && ee.Quiet {
		return ee.ExitCode()
	}
	log.Printf("error during command execution: %v", err)
	var ec ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return 1
}
