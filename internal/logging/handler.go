package logging

import (
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single output line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the maximum number of lines to buffer per handler.
	MaxBufferedLines = 100
)

// OutputHandler processes output captured from PM2 CLI invocations.
// It buffers recent lines so failure reports can include context, and
// logs each line at a level inferred from its content.
type OutputHandler struct {
	source  string // "poll", "restart", "logs", ...
	logger  *slog.Logger
	verbose bool

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
	mu     sync.Mutex
}

// NewOutputHandler creates a handler for one command source.
func NewOutputHandler(source string, logger *slog.Logger, verbose bool) *OutputHandler {
	return &OutputHandler{
		source:  source,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// HandleOutput splits a command's combined output into lines and
// processes each one.
func (h *OutputHandler) HandleOutput(output string) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		h.HandleLine(line)
	}
}

// HandleLine processes a single line of command output.
func (h *OutputHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.mu.Unlock()

	h.logLine(line)
}

// logLine logs the line at a level based on content.
func (h *OutputHandler) logLine(line string) {
	level := h.classifyLine(line)

	// In non-verbose mode, only log warnings and errors
	if !h.verbose && level == slog.LevelDebug {
		return
	}

	h.logger.Log(nil, level, "pm2_output",
		"source", h.source,
		"line", line,
	)
}

// classifyLine determines the log level for a line of PM2 output.
func (h *OutputHandler) classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	if strings.Contains(lower, "[pm2][error]") ||
		strings.Contains(lower, "errored") ||
		strings.Contains(lower, "econnrefused") ||
		strings.Contains(lower, "process or namespace") && strings.Contains(lower, "not found") {
		return slog.LevelWarn
	}

	if strings.Contains(lower, "[pm2][warn]") ||
		strings.Contains(lower, "stopped") ||
		strings.Contains(lower, "waiting for") {
		return slog.LevelWarn
	}

	return slog.LevelDebug
}

// RecentLines returns up to n of the most recent buffered lines, oldest
// first.
func (h *OutputHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}

	return lines
}
