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

// Package logging is the leveled logger shared by the verification engine,
// the worker pool and the command line. Library code accepts a Logger and
// falls back to EnsureLogger; callers that want silence pass Discard().
package logging

import (
	"io"
	"os"
	"strings"
)

// LogLevel is the severity of an entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelSilent drops every entry.
	LevelSilent
)

var levelNames = [...]string{"debug", "info", "warn", "error", "silent"}

func (l LogLevel) String() string {
	if l < LevelDebug || l > LevelSilent {
		return "unknown"
	}
	return levelNames[l]
}

var levelAliases = map[string]LogLevel{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
	"silent":  LevelSilent,
	"none":    LevelSilent,
	"off":     LevelSilent,
}

// ParseLogLevel maps a flag or environment value to a level. Unrecognized
// names yield LevelInfo.
func ParseLogLevel(s string) LogLevel {
	if l, ok := levelAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	return LevelInfo
}

// LogFormat selects how entries are rendered.
type LogFormat int

const (
	// FormatText renders "[LEVEL] message key=value" lines.
	FormatText LogFormat = iota
	// FormatJSON renders one flat JSON object per entry.
	FormatJSON
)

func (f LogFormat) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	}
	return "unknown"
}

// ParseLogFormat returns FormatJSON for "json" and FormatText otherwise.
func ParseLogFormat(s string) LogFormat {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// Logger is accepted throughout the module.
type Logger interface {
	Debug(format string, args ...interface{})
	Debugln(msg string)
	Info(format string, args ...interface{})
	Infoln(msg string)
	Warn(format string, args ...interface{})
	Warnln(msg string)
	Error(format string, args ...interface{})
	Errorln(msg string)

	GetLevel() LogLevel

	// WithField and WithFields return a derived Logger that adds the given
	// fields to every entry. The receiver is unchanged.
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// LoggerOptions configures NewLoggerWithOptions. The zero value logs debug
// and above as text on stderr.
type LoggerOptions struct {
	Level  LogLevel
	Format LogFormat
	// Output defaults to os.Stderr. Stdout carries command results.
	Output io.Writer
	// TimeFormat enables timestamps in text output. JSON entries always
	// carry one and default to RFC 3339.
	TimeFormat string
	// ShowLevel prefixes text entries with their level.
	ShowLevel bool
}

// Default returns an info-level text logger on stderr.
func Default() Logger {
	return NewLoggerWithOptions(LoggerOptions{Level: LevelInfo, Output: os.Stderr})
}

// Discard returns a logger that drops every entry.
func Discard() Logger {
	return NewLoggerWithOptions(LoggerOptions{Level: LevelSilent, Output: io.Discard})
}

// EnsureLogger returns l, or Default() when l is nil.
func EnsureLogger(l Logger) Logger {
	if l != nil {
		return l
	}
	return Default()
}

// New builds a level-prefixed logger from level and format names. A nil out
// means stderr.
func New(level, format string, out io.Writer) Logger {
	return NewLoggerWithOptions(LoggerOptions{
		Level:     ParseLogLevel(level),
		Format:    ParseLogFormat(format),
		Output:    out,
		ShowLevel: true,
	})
}
