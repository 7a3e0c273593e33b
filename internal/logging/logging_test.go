package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"WARNING", LevelWarn},
		{"error", LevelError},
		{"unknown", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf, Prefix: "test"})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn %s", "message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below level were written: %q", out)
	}
	if !strings.Contains(out, "[WARN] test: warn message") {
		t.Errorf("missing formatted warning in %q", out)
	}
	if !strings.Contains(out, "[ERROR] test: error message") {
		t.Errorf("missing error in %q", out)
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Output: &buf})

	logger.WithComponent("ime.loader").WithField("engine", "latin").Info("loaded")

	out := buf.String()
	if !strings.Contains(out, "{component=ime.loader, engine=latin}") {
		t.Errorf("fields not rendered in sorted order: %q", out)
	}
}

func TestLogger_WithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Config{Level: LevelDebug, Output: &buf})
	_ = parent.WithField("engine", "latin")

	parent.Info("plain")
	if strings.Contains(buf.String(), "engine=") {
		t.Errorf("parent logger gained child field: %q", buf.String())
	}
}

func TestNullLogger(t *testing.T) {
	NullLogger.Error("dropped")
	NullLogger.WithComponent("x").Warn("dropped")

	var nilLogger *Logger
	nilLogger.Info("nil loggers are silent")
}
