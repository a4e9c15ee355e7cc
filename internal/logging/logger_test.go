package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// =============================================================================
// Table-Driven Tests: parseLevel
// =============================================================================

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Logger Construction
// =============================================================================

func TestNewLoggerWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "json", "info")

	logger.Info("poll_cycle", "processes", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "poll_cycle" {
		t.Errorf("msg = %v, want poll_cycle", entry["msg"])
	}
	if entry["processes"] != float64(3) {
		t.Errorf("processes = %v, want 3", entry["processes"])
	}
}

func TestNewLoggerWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "text", "warn")

	logger.Info("suppressed")
	logger.Warn("emitted")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Error("info entry emitted at warn level")
	}
	if !strings.Contains(out, "emitted") {
		t.Error("warn entry missing")
	}
}

func TestNewLogger_VerboseOverridesLevel(t *testing.T) {
	logger := NewLogger("text", "error", true)
	if !logger.Enabled(nil, slog.LevelDebug) {
		t.Error("verbose logger should enable debug")
	}
}

// =============================================================================
// OutputHandler
// =============================================================================

func TestOutputHandler_Classify(t *testing.T) {
	h := NewOutputHandler("poll", slog.Default(), false)

	tests := []struct {
		line string
		want slog.Level
	}{
		{"[PM2][ERROR] Process or Namespace api not found", slog.LevelWarn},
		{"connect ECONNREFUSED 127.0.0.1:9615", slog.LevelWarn},
		{"api errored after 3 restarts", slog.LevelWarn},
		{"[PM2] Applying action restartProcessId on app [api]", slog.LevelDebug},
		{"plain output line", slog.LevelDebug},
	}

	for _, tt := range tests {
		if got := h.classifyLine(tt.line); got != tt.want {
			t.Errorf("classifyLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestOutputHandler_HandleOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "text", "debug")
	h := NewOutputHandler("restart", logger, true)

	h.HandleOutput("line one\r\nline two\n\nline three")

	got := h.RecentLines(10)
	want := []string{"line one", "line two", "line three"}
	if len(got) != len(want) {
		t.Fatalf("RecentLines = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RecentLines[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestOutputHandler_Truncation(t *testing.T) {
	h := NewOutputHandler("logs", slog.Default(), false)

	long := strings.Repeat("x", MaxLineLength+100)
	h.HandleLine(long)

	lines := h.RecentLines(1)
	if len(lines) != 1 {
		t.Fatal("line not buffered")
	}
	if !strings.HasSuffix(lines[0], "...(truncated)") {
		t.Error("long line not truncated")
	}
	if len(lines[0]) > MaxLineLength+len("...(truncated)") {
		t.Errorf("truncated line length = %d", len(lines[0]))
	}
}

func TestOutputHandler_RingBufferWraps(t *testing.T) {
	h := NewOutputHandler("poll", slog.Default(), false)

	for i := 0; i < MaxBufferedLines+10; i++ {
		h.HandleLine(strings.Repeat("a", 1) + "-" + string(rune('0'+i%10)))
	}

	lines := h.RecentLines(MaxBufferedLines)
	if len(lines) != MaxBufferedLines {
		t.Errorf("RecentLines returned %d lines, want %d", len(lines), MaxBufferedLines)
	}
}
