package process

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/randomizedcoder/go-desktop-shell/internal/platform"
)

// BackendConfig holds configuration for backend process execution.
type BackendConfig struct {
	// Spec is the resolved executable and arguments.
	Spec platform.LaunchSpec

	// WorkDir is the directory the backend runs in. Empty means the
	// shell's own working directory, where the default entry point is
	// relative to.
	WorkDir string

	// Env holds extra KEY=VALUE pairs appended to the inherited environment.
	Env map[string]string

	// Stdout and Stderr receive the backend's output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// StopTimeout is how long the backend gets to exit after a terminate
	// request before it is killed.
	StopTimeout time.Duration
}

// DefaultBackendConfig returns a BackendConfig for the host platform.
func DefaultBackendConfig() *BackendConfig {
	return &BackendConfig{
		Spec:        platform.Resolve(platform.Detect()),
		StopTimeout: 5 * time.Second,
	}
}

// BackendRunner implements Runner for the backend process.
type BackendRunner struct {
	config *BackendConfig
}

var _ Runner = (*BackendRunner)(nil)

// NewBackendRunner creates a new backend runner with the given configuration.
func NewBackendRunner(cfg *BackendConfig) *BackendRunner {
	return &BackendRunner{
		config: cfg,
	}
}

// Name returns the executable name.
func (r *BackendRunner) Name() string {
	return r.config.Spec.Executable
}

// BuildCommand creates an exec.Cmd for the backend. When ctx is done the
// backend's process group is asked to terminate; it is killed if it is
// still alive StopTimeout later.
func (r *BackendRunner) BuildCommand(ctx context.Context) (*exec.Cmd, error) {
	spec := r.config.Spec
	if spec.Executable == "" {
		return nil, errors.New("backend executable is empty")
	}

	cmd := exec.CommandContext(ctx, spec.Executable, spec.Args...)
	cmd.Dir = r.config.WorkDir
	cmd.Env = r.environ()
	cmd.Stdout = r.config.Stdout
	cmd.Stderr = r.config.Stderr

	configureProcess(cmd)
	cmd.Cancel = func() error {
		return Terminate(cmd)
	}
	// Also bounds how long Wait keeps copying output after exit when a
	// grandchild inherited the pipes.
	cmd.WaitDelay = r.config.StopTimeout

	return cmd, nil
}

// environ returns the inherited environment plus configured extras.
// Extras are sorted so the result is deterministic.
func (r *BackendRunner) environ() []string {
	env := os.Environ()
	if len(r.config.Env) == 0 {
		return env
	}

	keys := make([]string, 0, len(r.config.Env))
	for k := range r.config.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		env = append(env, k+"="+r.config.Env[k])
	}
	return env
}

// Config returns the current configuration.
func (r *BackendRunner) Config() *BackendConfig {
	return r.config
}

// Spec returns the launch spec.
func (r *BackendRunner) Spec() platform.LaunchSpec {
	return r.config.Spec
}

// CommandString returns the full command as a string (for debugging).
func (r *BackendRunner) CommandString() string {
	parts := make([]string, 0, len(r.config.Spec.Args)+2)
	if r.config.WorkDir != "" {
		parts = append(parts, "cd "+quote(r.config.WorkDir)+" &&")
	}
	for _, arg := range r.config.Spec.Argv() {
		parts = append(parts, quote(arg))
	}
	return strings.Join(parts, " ")
}

// quote wraps s in single quotes when it contains shell-special characters.
func quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$&|;<>(){}*?!#~`") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
