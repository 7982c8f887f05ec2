package process

import (
	"context"
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"python3", "Python 3.11.4\n", "3.11.4"},
		{"python2 on stderr", "Python 2.7.18", "2.7.18"},
		{"multi-line", "Python 3.12.0\nextra line\n", "3.12.0"},
		{"bare version", "3.9.1", "3.9.1"},
		{"empty", "", "unknown"},
		{"whitespace", "  \n  ", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseVersion(tt.output); got != tt.want {
				t.Errorf("parseVersion(%q) = %q, want %q", tt.output, got, tt.want)
			}
		})
	}
}

func TestProbeInterpreter_NotFound(t *testing.T) {
	_, err := ProbeInterpreter(context.Background(), "definitely-not-an-interpreter-7f3a")
	if err == nil {
		t.Fatal("ProbeInterpreter() should fail for a missing binary")
	}
}
