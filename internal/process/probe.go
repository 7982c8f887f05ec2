package process

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Interpreter describes a backend interpreter found on the host.
type Interpreter struct {
	Path    string // Absolute path found via PATH lookup
	Version string // e.g. "3.11.4", or "unknown"
}

// ProbeInterpreter locates name on PATH and asks it for its version.
func ProbeInterpreter(ctx context.Context, name string) (*Interpreter, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("interpreter %q not found: %w", name, err)
	}

	// Python 2 prints the version on stderr, Python 3 on stdout.
	output, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		return &Interpreter{Path: path, Version: "unknown"}, fmt.Errorf("%s --version failed: %w", path, err)
	}

	return &Interpreter{Path: path, Version: parseVersion(string(output))}, nil
}

// parseVersion extracts the version from output like "Python 3.11.4".
func parseVersion(output string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	fields := strings.Fields(line)
	if len(fields) >= 2 {
		return fields[1]
	}
	if len(fields) == 1 {
		return fields[0]
	}
	return "unknown"
}
