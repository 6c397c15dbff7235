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

package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var _ Logger = (*DefaultLogger)(nil)

// DefaultLogger writes entries through a single lock that derived loggers
// share, so lines from concurrent jobs never interleave.
type DefaultLogger struct {
	sink   *sink
	level  LogLevel
	fields map[string]interface{}
}

type sink struct {
	mu      sync.Mutex
	out     io.Writer
	json    bool
	timeFmt string
	prefix  bool
	now     func() time.Time
}

// NewLoggerWithOptions creates a DefaultLogger.
func NewLoggerWithOptions(opts LoggerOptions) *DefaultLogger {
	s := &sink{
		out:     opts.Output,
		json:    opts.Format == FormatJSON,
		timeFmt: opts.TimeFormat,
		prefix:  opts.ShowLevel,
		now:     time.Now,
	}
	if s.out == nil {
		s.out = os.Stderr
	}
	if s.json && s.timeFmt == "" {
		s.timeFmt = time.RFC3339
	}
	return &DefaultLogger{sink: s, level: opts.Level}
}

func (l *DefaultLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &DefaultLogger{sink: l.sink, level: l.level, fields: merged}
}

func (l *DefaultLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *DefaultLogger) GetLevel() LogLevel { return l.level }

func (l *DefaultLogger) Debug(format string, args ...interface{}) { l.emit(LevelDebug, format, args) }
func (l *DefaultLogger) Info(format string, args ...interface{})  { l.emit(LevelInfo, format, args) }
func (l *DefaultLogger) Warn(format string, args ...interface{})  { l.emit(LevelWarn, format, args) }
func (l *DefaultLogger) Error(format string, args ...interface{}) { l.emit(LevelError, format, args) }

func (l *DefaultLogger) Debugln(msg string) { l.emit(LevelDebug, msg, nil) }
func (l *DefaultLogger) Infoln(msg string)  { l.emit(LevelInfo, msg, nil) }
func (l *DefaultLogger) Warnln(msg string)  { l.emit(LevelWarn, msg, nil) }
func (l *DefaultLogger) Errorln(msg string) { l.emit(LevelError, msg, nil) }

// emit treats format as a literal message when args is nil.
func (l *DefaultLogger) emit(level LogLevel, format string, args []interface{}) {
	if level < l.level {
		return
	}
	msg := format
	if args != nil {
		msg = fmt.Sprintf(format, args...)
	}

	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	var line []byte
	if s.json {
		line = s.encodeJSON(level, msg, l.fields)
	} else {
		line = s.encodeText(level, msg, l.fields)
	}
	_, _ = s.out.Write(line)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *sink) encodeText(level LogLevel, msg string, fields map[string]interface{}) []byte {
	var b bytes.Buffer
	if s.timeFmt != "" {
		b.WriteString(s.now().Format(s.timeFmt))
		b.WriteByte(' ')
	}
	if s.prefix {
		b.WriteString("[" + strings.ToUpper(level.String()) + "] ")
	}
	b.WriteString(msg)
	for _, k := range sortedKeys(fields) {
		v := fmt.Sprint(fields[k])
		if v == "" || strings.ContainsAny(v, " \t\n\"=") {
			v = strconv.Quote(v)
		}
		b.WriteString(" " + k + "=" + v)
	}
	b.WriteByte('\n')
	return b.Bytes()
}

// encodeJSON flattens fields into the entry. The time, level and msg keys
// cannot be overridden by a field.
func (s *sink) encodeJSON(level LogLevel, msg string, fields map[string]interface{}) []byte {
	entry := make(map[string]interface{}, len(fields)+3)
	for k, v := range fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		entry[k] = v
	}
	entry["time"] = s.now().UTC().Format(s.timeFmt)
	entry["level"] = level.String()
	entry["msg"] = msg

	data, err := json.Marshal(entry)
	if err != nil {
		data, _ = json.Marshal(map[string]string{
			"time":  entry["time"].(string),
			"level": level.String(),
			"msg":   msg,
			"error": "unencodable fields: " + err.Error(),
		})
	}
	return append(data, '\n')
}
