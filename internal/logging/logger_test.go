package logging

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},        // Default
		{"invalid", slog.LevelInfo}, // Default for unknown
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			result := parseLevel(tc.input)
			if result != tc.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tc.input, result, tc.expected)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	testCases := []struct {
		input string
		want  bool
	}{
		{"debug", true},
		{"Info", true},
		{"warning", true},
		{"error", true},
		{"", false},
		{"trace", false},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			if got := ValidLevel(tc.input); got != tc.want {
				t.Errorf("ValidLevel(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(&buf, "json", "info", false)
	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, `"msg":"test message"`) {
		t.Errorf("Expected JSON message in output, got: %s", output)
	}
	if !strings.Contains(output, `"key":"value"`) {
		t.Errorf("Expected key in output, got: %s", output)
	}
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(&buf, "text", "info", false)
	logger.Info("test message", "key", "value")

	if !strings.Contains(buf.String(), "key=value") {
		t.Errorf("Expected key=value in output, got: %s", buf.String())
	}
}

func TestNewLogger_DefaultFormatIsJSON(t *testing.T) {
	var buf bytes.Buffer

	NewLogger(&buf, "", "info", false).Info("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("Expected JSON output, got: %s", buf.String())
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	testCases := []struct {
		level     string
		verbose   bool
		wantDebug bool
		wantWarn  bool
	}{
		{"debug", false, true, true},
		{"info", false, false, true},
		{"error", false, false, false},
		{"error", true, true, true}, // verbose overrides
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%s_verbose=%v", tc.level, tc.verbose), func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, "text", tc.level, tc.verbose)
			logger.Debug("debug message")
			logger.Warn("warn message")

			if got := strings.Contains(buf.String(), "debug message"); got != tc.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tc.wantDebug)
			}
			if got := strings.Contains(buf.String(), "warn message"); got != tc.wantWarn {
				t.Errorf("warn logged = %v, want %v", got, tc.wantWarn)
			}
		})
	}
}

func TestNewLogger_NilWriter(t *testing.T) {
	logger := NewLogger(nil, "text", "info", false)
	logger.Info("goes nowhere")
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "shell.log")

	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	NewLogger(f, "text", "info", false).Info("to file")
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file = %q", data)
	}
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	var buf bytes.Buffer
	SetDefault(NewLogger(&buf, "text", "info", false))
	slog.Info("via default")

	if !strings.Contains(buf.String(), "via default") {
		t.Errorf("Expected default logger to be replaced, got: %s", buf.String())
	}
}

// =============================================================================
// OutputHandler
// =============================================================================

func newTestHandler(verbose bool) (*OutputHandler, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewOutputHandler(NewLogger(&buf, "text", "debug", false), verbose), &buf
}

func TestOutputHandler_HandleLine(t *testing.T) {
	h, _ := newTestHandler(true)

	h.HandleLine("stdout", "test line\r")

	lines := h.Tail(1)
	if len(lines) != 1 || lines[0] != "test line" {
		t.Errorf("Tail(1) = %q, want [test line]", lines)
	}
}

func TestOutputHandler_Truncation(t *testing.T) {
	h, _ := newTestHandler(false)

	h.HandleLine("stderr", strings.Repeat("x", MaxLineLength+100))

	line := h.Tail(1)[0]
	if !strings.HasSuffix(line, "...(truncated)") {
		t.Error("Truncated line should end with '...(truncated)'")
	}
	if len(line) != MaxLineLength+len("...(truncated)") {
		t.Errorf("len = %d", len(line))
	}
}

func TestOutputHandler_Tail(t *testing.T) {
	testCases := []struct {
		name  string
		lines int
		n     int
		want  []string
	}{
		{"empty", 0, 10, nil},
		{"fewer than asked", 2, 10, []string{"line 0", "line 1"}},
		{"last two", 5, 2, []string{"line 3", "line 4"}},
		{"wrapped", MaxBufferedLines + 3, 2, []string{
			fmt.Sprintf("line %d", MaxBufferedLines+1),
			fmt.Sprintf("line %d", MaxBufferedLines+2),
		}},
		{"n above capacity", MaxBufferedLines + 3, MaxBufferedLines * 2, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestHandler(false)
			for i := 0; i < tc.lines; i++ {
				h.HandleLine("stdout", fmt.Sprintf("line %d", i))
			}

			got := h.Tail(tc.n)
			if tc.name == "n above capacity" {
				if len(got) != MaxBufferedLines || got[0] != "line 3" {
					t.Errorf("Tail() len = %d first = %q", len(got), got[0])
				}
				return
			}
			if len(got) != len(tc.want) {
				t.Fatalf("Tail(%d) = %q, want %q", tc.n, got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("Tail[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestClassifyLine(t *testing.T) {
	testCases := []struct {
		line string
		want slog.Level
	}{
		{"Traceback (most recent call last):", slog.LevelWarn},
		{"ERROR:    [Errno 98] error while attempting to bind", slog.LevelWarn},
		{"OSError: [Errno 98] Address already in use", slog.LevelWarn},
		{"RuntimeError: unhandled exception in worker", slog.LevelWarn},
		{"WARNING:  StatReload detected changes", slog.LevelWarn},
		{"INFO:     Uvicorn running on http://127.0.0.1:8000", slog.LevelDebug},
		{"INFO:     Application startup complete.", slog.LevelDebug},
		{"", slog.LevelDebug},
	}

	for _, tc := range testCases {
		t.Run(tc.line, func(t *testing.T) {
			if got := classifyLine(tc.line); got != tc.want {
				t.Errorf("classifyLine(%q) = %v, want %v", tc.line, got, tc.want)
			}
		})
	}
}

func TestOutputHandler_Verbosity(t *testing.T) {
	quiet, quietBuf := newTestHandler(false)
	quiet.HandleLine("stdout", "INFO:     Started server process")
	quiet.HandleLine("stderr", "Traceback (most recent call last):")

	if strings.Contains(quietBuf.String(), "Started server process") {
		t.Error("non-verbose handler logged an informational line")
	}
	if !strings.Contains(quietBuf.String(), "Traceback") {
		t.Error("non-verbose handler dropped an error line")
	}

	loud, loudBuf := newTestHandler(true)
	loud.HandleLine("stdout", "INFO:     Started server process")
	if !strings.Contains(loudBuf.String(), "stream=stdout") {
		t.Errorf("verbose handler output = %q", loudBuf.String())
	}
}

func TestOutputHandler_CountErrors(t *testing.T) {
	h, _ := newTestHandler(false)
	h.HandleLine("stderr", "Traceback (most recent call last):")
	h.HandleLine("stderr", "ModuleNotFoundError: No module named 'fastapi'")
	h.HandleLine("stderr", "Traceback (most recent call last):")

	counts := h.CountErrors()
	if counts["Traceback"] != 2 {
		t.Errorf("Traceback = %d, want 2", counts["Traceback"])
	}
	if counts["ModuleNotFoundError"] != 1 {
		t.Errorf("ModuleNotFoundError = %d, want 1", counts["ModuleNotFoundError"])
	}

	empty, _ := newTestHandler(false)
	if len(empty.CountErrors()) != 0 {
		t.Error("CountErrors() on empty handler should be empty")
	}
}

// =============================================================================
// StreamWriter
// =============================================================================

func TestStreamWriter_SplitsLines(t *testing.T) {
	h, _ := newTestHandler(false)
	w := h.Writer("stdout")

	io.WriteString(w, "first\nsec")
	io.WriteString(w, "ond\nthi")

	got := h.Tail(10)
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("Tail() = %q, want [first second]", got)
	}

	w.Flush()
	got = h.Tail(10)
	if len(got) != 3 || got[2] != "thi" {
		t.Errorf("Tail() after Flush = %q", got)
	}

	w.Flush()
	if len(h.Tail(10)) != 3 {
		t.Error("second Flush emitted a line")
	}
}

func TestStreamWriter_LongLineWithoutNewline(t *testing.T) {
	h, _ := newTestHandler(false)
	w := h.Writer("stderr")

	n, err := w.Write(bytes.Repeat([]byte("y"), MaxLineLength+1))
	if err != nil || n != MaxLineLength+1 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if len(h.Tail(10)) != 1 {
		t.Errorf("Tail() = %d lines, want 1", len(h.Tail(10)))
	}
}

func TestStreamWriter_Concurrent(t *testing.T) {
	h, _ := newTestHandler(false)
	stdout, stderr := h.Writer("stdout"), h.Writer("stderr")

	var wg sync.WaitGroup
	for _, w := range []*StreamWriter{stdout, stderr} {
		wg.Add(1)
		go func(w *StreamWriter) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				io.WriteString(w, "concurrent line\n")
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = h.Tail(10)
			_ = h.CountErrors()
		}
	}()
	wg.Wait()

	if got := len(h.Tail(MaxBufferedLines)); got != MaxBufferedLines {
		t.Errorf("Tail() = %d lines, want %d", got, MaxBufferedLines)
	}
}
