package slogutil

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLineHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("ripple audit", "seeds", 2, "node", "frontend", "reason", "tool changed")

	output := buf.String()
	for _, want := range []string{"[info]", "ripple audit", " | ", "seeds=2", "node=frontend", `reason="tool changed"`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestLineHandler_GroupsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelDebug).With("component", "evidence").WithGroup("pack")

	logger.Debug("degraded", "rule", "risk.prisma-edge")

	output := buf.String()
	if !strings.Contains(output, "component=evidence") {
		t.Errorf("expected pre-set attr in output, got: %s", output)
	}
	if !strings.Contains(output, "pack.rule=risk.prisma-edge") {
		t.Errorf("expected grouped key in output, got: %s", output)
	}
}

func TestLineHandler_SubsystemTag(t *testing.T) {
	var buf bytes.Buffer
	logger := For(NewLogger(&buf, slog.LevelDebug), "scoring")

	logger.Debug("ripple audit", "seeds", []string{"db", "host"}, "reason", "connect")

	line := strings.TrimSuffix(buf.String(), "\n")
	if !strings.Contains(line, "[debug] [scoring] ripple audit | ") {
		t.Errorf("expected subsystem tag before message, got: %s", line)
	}
	if strings.Contains(line, SubsystemKey+"=") {
		t.Errorf("subsystem should not repeat as an attribute, got: %s", line)
	}
	if !strings.Contains(line, "seeds=db,host") {
		t.Errorf("expected comma-joined slice, got: %s", line)
	}
}

func TestFor_NilLogger(t *testing.T) {
	l := For(nil, "storage")
	if l == nil {
		t.Fatal("For(nil) returned nil")
	}
	l.Error("dropped")
}

func TestLineHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	if strings.Contains(output, "debug message") || strings.Contains(output, "info message") {
		t.Errorf("debug/info should be filtered, got: %s", output)
	}
	if !strings.Contains(output, "warn message") || !strings.Contains(output, "error message") {
		t.Errorf("warn/error should be included, got: %s", output)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "json", "info")
	logger.Info("loaded registry", "tools", 31)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("json output did not parse: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "loaded registry" {
		t.Errorf("msg = %v, want %q", entry["msg"], "loaded registry")
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := LevelFromString(tt.input); got != tt.expected {
				t.Errorf("LevelFromString(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		quiet     bool
		expected  slog.Level
	}{
		{0, false, slog.LevelWarn},
		{1, false, slog.LevelInfo},
		{2, false, slog.LevelDebug},
		{0, true, quietLevel},
		{5, true, quietLevel},
	}

	for _, tt := range tests {
		if got := LevelFromVerbosity(tt.verbosity, tt.quiet); got != tt.expected {
			t.Errorf("LevelFromVerbosity(%d, %v) = %v, want %v", tt.verbosity, tt.quiet, got, tt.expected)
		}
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("OrDiscard(nil) returned nil")
	}
	l := NewDiscardLogger()
	if OrDiscard(l) != l {
		t.Error("OrDiscard should return the given logger")
	}
}
