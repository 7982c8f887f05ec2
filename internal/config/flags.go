package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// stringList is a custom flag type for repeatable -arg flags.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ", ")
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// envMap is a custom flag type for repeatable -env KEY=VALUE flags.
type envMap map[string]string

func (e envMap) String() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+e[k])
	}
	return strings.Join(pairs, ", ")
}

func (e envMap) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected KEY=VALUE, got %q", value)
	}
	e[key] = val
	return nil
}

// usageOutput is where usage and flag errors are printed.
var usageOutput io.Writer = os.Stderr

// ParseArgs applies command-line flags on top of cfg. Only flags present
// in args change cfg. Arguments after "--" are appended to the backend's
// arguments. flag.ErrHelp is returned for -h.
func ParseArgs(cfg *Config, args []string) error {
	fs := newFlagSet(cfg)

	extraArgs := stringList(append([]string(nil), cfg.Args...))
	if cfg.Env == nil {
		cfg.Env = make(map[string]string)
	}
	env := envMap(cfg.Env)

	fs.Var(&extraArgs, "arg", "Extra backend argument (can repeat)")
	fs.Var(env, "env", "Extra backend environment variable KEY=VALUE (can repeat)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.Args = append([]string(extraArgs), fs.Args()...)
	return nil
}

func newFlagSet(cfg *Config) *flag.FlagSet {
	fs := flag.NewFlagSet("desktop-shell", flag.ContinueOnError)
	fs.SetOutput(usageOutput)

	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, `desktop-shell - desktop application shell with a supervised Python backend

Usage:
  desktop-shell [flags] [-- backend args...]

Backend:
`)
		printFlagCategory(fs, []string{"interpreter", "script", "arg", "env", "workdir"})

		fmt.Fprintf(out, "\nLifecycle:\n")
		printFlagCategory(fs, []string{"ready-url", "start-timeout", "stop-timeout"})

		fmt.Fprintf(out, "\nRestart Policy:\n")
		printFlagCategory(fs, []string{"max-restarts", "backoff-initial", "backoff-max", "backoff-multiply"})

		fmt.Fprintf(out, "\nObservability:\n")
		printFlagCategory(fs, []string{"listen", "v", "log-format", "log-level", "log-file"})

		fmt.Fprintf(out, "\nDashboard:\n")
		printFlagCategory(fs, []string{"tui"})

		fmt.Fprintf(out, "\nConfiguration & Diagnostics:\n")
		printFlagCategory(fs, []string{"config", "print-cmd", "skip-preflight", "version"})

		fmt.Fprintf(out, `
Environment:
  Every setting except the diagnostics can also be set as %s_<NAME>,
  e.g. %s_READY_URL=http://127.0.0.1:8000/. Flags take precedence.

Examples:
  # Run with the platform's default interpreter
  desktop-shell

  # Use a virtualenv and wait for the backend to answer
  desktop-shell -interpreter .venv/bin/python -ready-url http://127.0.0.1:8000/

  # Show the command that would be launched
  desktop-shell -print-cmd -- --port 8001

`, EnvPrefix, EnvPrefix)
	}

	// Backend
	fs.StringVar(&cfg.Interpreter, "interpreter", cfg.Interpreter, "Interpreter to run the backend with (default: python on Windows, python3 elsewhere)")
	fs.StringVar(&cfg.Script, "script", cfg.Script, "Backend entry point")
	fs.StringVar(&cfg.WorkDir, "workdir", cfg.WorkDir, "Backend working directory")

	// Lifecycle
	fs.StringVar(&cfg.ReadyURL, "ready-url", cfg.ReadyURL, "URL polled until the backend answers (empty disables)")
	fs.DurationVar(&cfg.StartTimeout, "start-timeout", cfg.StartTimeout, "How long the backend has to become ready")
	fs.DurationVar(&cfg.StopTimeout, "stop-timeout", cfg.StopTimeout, "Grace period between terminate and kill on shutdown")

	// Restart policy
	fs.IntVar(&cfg.MaxRestarts, "max-restarts", cfg.MaxRestarts, "Restart a failed backend this many times before reporting (0 = never)")
	fs.DurationVar(&cfg.BackoffInitial, "backoff-initial", cfg.BackoffInitial, "First restart delay")
	fs.DurationVar(&cfg.BackoffMax, "backoff-max", cfg.BackoffMax, "Maximum restart delay")
	fs.Float64Var(&cfg.BackoffMultiply, "backoff-multiply", cfg.BackoffMultiply, "Restart delay multiplier")

	// Observability
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "Address for /metrics, /events and /capabilities (empty disables)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging, including all backend output")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log level: "debug", "info", "warn" or "error"`)
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Write logs to this file (required to see logs while the dashboard runs)")

	// Dashboard
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Show the terminal dashboard (use -tui=false to run headless)")

	// Configuration & diagnostics
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML configuration file")
	fs.BoolVar(&cfg.PrintCmd, "print-cmd", cfg.PrintCmd, "Print the backend command and exit")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")
	fs.BoolVar(&cfg.ShowVersion, "version", cfg.ShowVersion, "Print version and exit")

	return fs
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, names []string) {
	out := fs.Output()
	fs.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(out, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" {
					fmt.Fprintf(out, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(out)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	name, _ := flag.UnquoteUsage(f)
	return name
}
