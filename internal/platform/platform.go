// Package platform maps the host operating system to the command used to
// launch the backend process.
package platform

import (
	"runtime"
	"strings"
)

// Kind identifies the host operating system family.
type Kind int

const (
	// Other is any operating system without a dedicated mapping.
	Other Kind = iota
	Windows
	MacOS
	Linux
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case Windows:
		return "windows"
	case MacOS:
		return "macos"
	case Linux:
		return "linux"
	default:
		return "other"
	}
}

// Detect returns the Kind of the running process. The value is fixed for the
// lifetime of the process.
func Detect() Kind {
	return FromGOOS(runtime.GOOS)
}

// FromGOOS maps a GOOS value to a Kind. Unrecognised values map to Other.
func FromGOOS(goos string) Kind {
	switch strings.ToLower(goos) {
	case "windows":
		return Windows
	case "darwin":
		return MacOS
	case "linux":
		return Linux
	default:
		return Other
	}
}

const (
	// WindowsInterpreter is the backend interpreter alias used on Windows.
	WindowsInterpreter = "python"

	// DefaultInterpreter is the backend interpreter alias used everywhere else.
	DefaultInterpreter = "python3"

	// DefaultEntryPoint is the backend entry script, relative to the work dir.
	DefaultEntryPoint = "backend/main.py"
)

// LaunchSpec describes how to start the backend: an executable resolved
// through PATH and an ordered argument list.
type LaunchSpec struct {
	Executable string
	Args       []string
}

// Argv returns the executable followed by its arguments.
func (s LaunchSpec) Argv() []string {
	argv := make([]string, 0, len(s.Args)+1)
	argv = append(argv, s.Executable)
	return append(argv, s.Args...)
}

// String returns the command as a single shell-like line.
func (s LaunchSpec) String() string {
	return strings.Join(s.Argv(), " ")
}

// Overrides replaces parts of the default launch command. Zero values keep
// the defaults.
type Overrides struct {
	Interpreter string
	EntryPoint  string
	ExtraArgs   []string
}

// Resolve returns the default launch spec for kind. It has no side effects
// and never fails.
func Resolve(kind Kind) LaunchSpec {
	return ResolveWith(kind, Overrides{})
}

// ResolveWith returns the launch spec for kind with overrides applied.
func ResolveWith(kind Kind, o Overrides) LaunchSpec {
	exe := DefaultInterpreter
	if kind == Windows {
		exe = WindowsInterpreter
	}
	if o.Interpreter != "" {
		exe = o.Interpreter
	}

	entry := DefaultEntryPoint
	if o.EntryPoint != "" {
		entry = o.EntryPoint
	}

	args := make([]string, 0, 1+len(o.ExtraArgs))
	args = append(args, entry)
	args = append(args, o.ExtraArgs...)

	return LaunchSpec{Executable: exe, Args: args}
}
