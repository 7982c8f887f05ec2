package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single output line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the number of recent output lines kept for diagnostics.
	MaxBufferedLines = 100
)

// OutputHandler captures the backend's stdout and stderr. Each complete
// line is logged and kept in a ring buffer so the most recent output can
// be shown after a failure.
type OutputHandler struct {
	logger  *slog.Logger
	verbose bool

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
	count  int
	mu     sync.Mutex
}

// NewOutputHandler creates a handler that logs backend output through logger.
// Without verbose only lines that look like warnings or errors are logged.
func NewOutputHandler(logger *slog.Logger, verbose bool) *OutputHandler {
	return &OutputHandler{
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// Writer returns an io.Writer for one output stream. Writes are split
// into lines; a trailing partial line is held until its newline arrives
// or Flush is called.
func (h *OutputHandler) Writer(stream string) *StreamWriter {
	return &StreamWriter{handler: h, stream: stream}
}

// HandleLine processes a single line of backend output.
func (h *OutputHandler) HandleLine(stream, line string) {
	line = strings.TrimRight(line, "\r")
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	if h.count < MaxBufferedLines {
		h.count++
	}
	h.mu.Unlock()

	level := classifyLine(line)
	if !h.verbose && level < slog.LevelWarn {
		return
	}
	h.logger.Log(context.Background(), level, "backend_output",
		"stream", stream,
		"line", line,
	)
}

// classifyLine determines the log level for a line based on content.
func classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	if strings.HasPrefix(line, "Traceback") ||
		strings.Contains(line, "ERROR") ||
		strings.Contains(lower, "exception") ||
		strings.Contains(lower, "address already in use") {
		return slog.LevelWarn
	}

	if strings.Contains(line, "WARNING") ||
		strings.Contains(lower, "deprecat") {
		return slog.LevelWarn
	}

	return slog.LevelDebug
}

// Tail returns up to n of the most recent lines, oldest first.
func (h *OutputHandler) Tail(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > h.count {
		n = h.count
	}
	if n <= 0 {
		return nil
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		lines = append(lines, h.buffer[idx])
	}
	return lines
}

// ErrorPatterns are common failure markers counted for the exit summary.
var ErrorPatterns = []string{
	"Traceback",
	"ModuleNotFoundError",
	"ImportError",
	"Address already in use",
	"Permission denied",
	"No such file or directory",
}

// CountErrors counts occurrences of error patterns in the buffer.
func (h *OutputHandler) CountErrors() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int)
	for _, line := range h.buffer {
		if line == "" {
			continue
		}
		for _, pattern := range ErrorPatterns {
			if strings.Contains(line, pattern) {
				counts[pattern]++
			}
		}
	}
	return counts
}

// StreamWriter feeds one output stream into an OutputHandler.
type StreamWriter struct {
	handler *OutputHandler
	stream  string

	mu      sync.Mutex
	pending []byte
}

// Write implements io.Writer. It never fails.
func (w *StreamWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.handler.HandleLine(w.stream, string(w.pending[:i]))
		w.pending = w.pending[i+1:]
	}

	// A line with no newline in sight is cut at the limit.
	if len(w.pending) > MaxLineLength {
		w.handler.HandleLine(w.stream, string(w.pending))
		w.pending = nil
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (w *StreamWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) > 0 {
		w.handler.HandleLine(w.stream, string(w.pending))
		w.pending = nil
	}
}
