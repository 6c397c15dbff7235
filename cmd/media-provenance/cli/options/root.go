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

// Package options defines the command-line flag groups of the
// media-provenance CLI.
package options

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/verisource/verisource-api-production-sub000/pkg/config"
	"github.com/verisource/verisource-api-production-sub000/pkg/logging"
	"github.com/verisource/verisource-api-production-sub000/pkg/utils"
)

// RootOptions defines flags available to every subcommand.
type RootOptions struct {
	// OutputFile redirects command output to a file instead of stdout.
	OutputFile string
	// LogLevel sets the minimum log level (debug, info, warn, error, silent).
	LogLevel string
	// LogFormat sets the log output format (text, json).
	LogFormat string
	// Timeout bounds the whole command.
	Timeout time.Duration
	// ConfigFile is an optional YAML or JSON engine configuration.
	ConfigFile string
	// EnvFile is an optional dotenv file loaded before the environment is read.
	EnvFile string
}

// DefaultTimeout is the default command budget.
const DefaultTimeout = 15 * time.Minute

var (
	logExts    = []string{"log", "json", "txt"}
	configExts = []string{"yaml", "yml", "json"}
)

var _ FlagAdder = (*RootOptions)(nil)

// AddFlags registers the persistent root flags.
func (o *RootOptions) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.OutputFile, "output-file", "",
		"write command output to a file")
	_ = cmd.MarkPersistentFlagFilename("output-file", logExts...)

	cmd.PersistentFlags().StringVar(&o.LogLevel, "log-level", "info",
		"set the minimum log level (debug, info, warn, error, silent)")

	cmd.PersistentFlags().StringVar(&o.LogFormat, "log-format", "text",
		"set the log output format (text, json)")

	cmd.PersistentFlags().DurationVarP(&o.Timeout, "timeout", "t", DefaultTimeout,
		"timeout for commands")

	cmd.PersistentFlags().StringVar(&o.ConfigFile, "config", "",
		"engine configuration file (YAML or JSON)")
	_ = cmd.MarkPersistentFlagFilename("config", configExts...)

	cmd.PersistentFlags().StringVar(&o.EnvFile, "env-file", "",
		"dotenv file with "+config.EnvPrefix+"* settings")
}

// NewLogger creates a logger from the level and format flags.
func (o *RootOptions) NewLogger() logging.Logger {
	return logging.NewLoggerWithOptions(logging.LoggerOptions{
		Level:  logging.ParseLogLevel(o.LogLevel),
		Format: logging.ParseLogFormat(o.LogFormat),
	})
}

// LoadEnvFile loads EnvFile, if set, without overriding variables that are
// already present in the environment.
func (o *RootOptions) LoadEnvFile() error {
	if err := utils.ValidateOptionalFile("env file", o.EnvFile); err != nil || o.EnvFile == "" {
		return err
	}
	if err := godotenv.Load(o.EnvFile); err != nil {
		return fmt.Errorf("loading env file %s: %w", o.EnvFile, err)
	}
	return nil
}

// EngineConfig builds the engine configuration: defaults, then the config
// file, then the environment.
func (o *RootOptions) EngineConfig() (*config.EngineConfig, error) {
	cfg := config.NewEngineConfig()
	if err := utils.ValidateOptionalFile("config file", o.ConfigFile); err != nil {
		return nil, err
	}
	if o.ConfigFile != "" {
		if err := cfg.LoadFile(o.ConfigFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
