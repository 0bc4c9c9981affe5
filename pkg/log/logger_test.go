// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := NewLogger(&Config{Level: "debug", Format: "text", File: path})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Debug("pipeline started", "run_id", "r1")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "run_id=r1") {
		t.Errorf("log file content = %q", data)
	}
}

func TestNewLogger_Defaults(t *testing.T) {
	l, err := NewLogger(nil)
	if err != nil {
		t.Fatalf("NewLogger(nil): %v", err)
	}
	if l.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("default level should be info")
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close without file: %v", err)
	}
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("nop logger should not be enabled")
	}
}
