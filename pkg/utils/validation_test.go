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

package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "asset.png")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"file", file, ""},
		{"empty", "", "is required"},
		{"missing", filepath.Join(dir, "nope"), "does not exist"},
		{"directory", dir, "is a directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFileExists("candidate", tt.path)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateFileExists() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateFileExists() error = %v, want %q", err, tt.wantErr)
			}
		})
	}

	if err := ValidateOptionalFile("config", ""); err != nil {
		t.Errorf("ValidateOptionalFile(\"\") error = %v", err)
	}
	if err := ValidateOptionalFile("config", dir); err == nil {
		t.Error("ValidateOptionalFile(dir) expected error")
	}
}

func TestReadFileLimited(t *testing.T) {
	file := filepath.Join(t.TempDir(), "credential.json")
	if err := os.WriteFile(file, []byte("0123456789"), 0o600); err != nil {
		t.Fatal(err)
	}

	data, err := ReadFileLimited("credential", file, 10)
	if err != nil || string(data) != "0123456789" {
		t.Errorf("ReadFileLimited(10) = %q, %v", data, err)
	}
	if _, err := ReadFileLimited("credential", file, 9); err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("ReadFileLimited(9) error = %v", err)
	}
	if data, err := ReadFileLimited("credential", file, 0); err != nil || len(data) != 10 {
		t.Errorf("ReadFileLimited(0) = %q, %v", data, err)
	}
}
