// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevLevel := GetLevel()
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(prevLevel)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
		ok    bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"Warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"fatal", LevelFatal, true},
		{"loud", LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseLevel(tt.input)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelWarn)

	logger := Named("deck")
	logger.Debugf("hidden %d", 1)
	logger.Infof("hidden %d", 2)
	logger.Warnf("shown %d", 3)
	logger.Errorf("shown %d", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below the level were logged: %q", out)
	}
	if strings.Count(out, "shown") != 2 {
		t.Errorf("expected two messages, got %q", out)
	}
	if !strings.Contains(out, "deck: shown 3") {
		t.Errorf("component name missing from %q", out)
	}
	if !strings.Contains(out, "[WARN] ") {
		t.Errorf("level tag missing from %q", out)
	}
}

func TestRootLogger(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelDebug)

	Debugf("a=%d", 1)
	Info("b")
	Error("c")

	out := buf.String()
	for _, want := range []string{"[DEBUG] a=1", "[INFO]  b", "[ERROR] c"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestFatalExits(t *testing.T) {
	buf := captureOutput(t)
	code := 0
	exit = func(c int) { code = c }
	defer func() { exit = os.Exit }()

	Named("engine").Fatalf("boom")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(buf.String(), "[FATAL] engine: boom") {
		t.Errorf("fatal line missing: %q", buf.String())
	}
}

func TestLevelString(t *testing.T) {
	if LogLevel(42).String() != "UNKNOWN" {
		t.Error("unknown level should stringify as UNKNOWN")
	}
}
