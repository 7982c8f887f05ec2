// Package preflight provides startup diagnostics for the backend launch.
//
// Checks never stop the shell: a failed check is reported so the user can
// fix the environment, and the backend-error event still covers the
// launch itself.
package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/randomizedcoder/go-desktop-shell/internal/process"
)

// probeTimeout bounds the interpreter version probe.
const probeTimeout = 5 * time.Second

// minOpenFiles is the descriptor limit below which a warning is shown.
const minOpenFiles = 256

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// Options describes the launch being checked.
type Options struct {
	Interpreter string
	EntryPoint  string
	WorkDir     string
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks.
func RunAll(ctx context.Context, opts Options) *Result {
	result := &Result{
		Checks: make([]Check, 0, 4),
		Passed: true,
	}

	add := func(c Check) {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	add(checkWorkDir(opts.WorkDir))
	add(checkInterpreter(ctx, opts.Interpreter))
	add(checkEntryPoint(opts.WorkDir, opts.EntryPoint))
	add(checkFileDescriptors())

	return result
}

// checkWorkDir verifies the backend working directory exists.
func checkWorkDir(dir string) Check {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Check{Name: "work_dir", Passed: false, Message: err.Error()}
		}
		return Check{Name: "work_dir", Passed: true, Message: wd + " (current directory)"}
	}

	info, err := os.Stat(dir)
	if err != nil {
		return Check{Name: "work_dir", Passed: false, Message: err.Error()}
	}
	if !info.IsDir() {
		return Check{Name: "work_dir", Passed: false, Message: dir + " is not a directory"}
	}
	return Check{Name: "work_dir", Passed: true, Message: dir}
}

// checkInterpreter verifies the interpreter is on PATH and runs.
func checkInterpreter(ctx context.Context, name string) Check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	interp, err := process.ProbeInterpreter(ctx, name)
	if interp == nil {
		return Check{
			Name:    "interpreter",
			Passed:  false,
			Message: err.Error(),
		}
	}
	if err != nil {
		return Check{
			Name:    "interpreter",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("found at %s but version probe failed", interp.Path),
		}
	}

	return Check{
		Name:    "interpreter",
		Passed:  true,
		Message: fmt.Sprintf("found at %s (version %s)", interp.Path, interp.Version),
	}
}

// checkEntryPoint verifies the backend script exists. A relative path is
// resolved against the work dir, the same way the backend will see it.
func checkEntryPoint(workDir, entry string) Check {
	path := entry
	if !filepath.IsAbs(path) && workDir != "" {
		path = filepath.Join(workDir, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Check{
			Name:    "entry_point",
			Passed:  false,
			Message: fmt.Sprintf("%s: %v", path, err),
		}
	}
	if info.IsDir() {
		return Check{
			Name:    "entry_point",
			Passed:  false,
			Message: path + " is a directory",
		}
	}
	return Check{Name: "entry_point", Passed: true, Message: path}
}

// PrintResults prints the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed || check.Warning {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "work_dir":
		return "pass an existing directory with -workdir"
	case "interpreter":
		return "install Python 3 or point -interpreter at it"
	case "entry_point":
		return "run from the application directory or set -script / -workdir"
	case "file_descriptors":
		return "ulimit -n 1024"
	default:
		return "see documentation"
	}
}
