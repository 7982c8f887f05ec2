// Package main provides the desktop-shell entry point.
//
// desktop-shell is the native launcher of a desktop application: it
// registers the native capabilities, starts the Python backend on its own
// goroutine, and reports a backend failure to the user interface as a
// backend-error event.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/common/version"

	"github.com/randomizedcoder/go-desktop-shell/internal/app"
	"github.com/randomizedcoder/go-desktop-shell/internal/capability"
	"github.com/randomizedcoder/go-desktop-shell/internal/config"
	"github.com/randomizedcoder/go-desktop-shell/internal/logging"
	"github.com/randomizedcoder/go-desktop-shell/internal/process"
	"github.com/randomizedcoder/go-desktop-shell/internal/tui"
)

// programName is the name shown in version output.
const programName = "desktop-shell"

// Build information is set via ldflags:
//
//	go build -ldflags "-X github.com/prometheus/common/version.Version=1.0.0 \
//	  -X github.com/prometheus/common/version.Revision=$(git rev-parse HEAD)" ./cmd/desktop-shell
func init() {
	if version.Version == "" {
		version.Version = "dev"
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version subcommand early (before flag parsing)
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println(version.Print(programName))
		return 0
	}

	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing configuration: %v\n", err)
		return 2
	}

	if cfg.ShowVersion {
		fmt.Println(version.Print(programName))
		return 0
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	// Handle --print-cmd mode
	if cfg.PrintCmd {
		printBackendCommand(os.Stdout, cfg)
		return 0
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		return 1
	}
	defer closeLog()
	logging.SetDefault(logger)

	logger.Info("starting",
		"version", version.Info(),
		"build_context", version.BuildContext(),
		"backend", app.LaunchSpec(cfg).String(),
		"work_dir", cfg.WorkDir,
		"listen_addr", cfg.ListenAddr,
		"tui", cfg.TUIEnabled,
	)

	caps := capability.Defaults()
	a := app.New(cfg, logger).
		WithVersion(version.Version).
		Plugin(caps...)

	if cfg.TUIEnabled {
		names := make([]string, 0, len(caps))
		for _, c := range caps {
			names = append(names, c.Name)
		}
		a.WithRuntime(tui.NewRuntime(tui.Config{
			Version:      version.Version,
			ListenAddr:   cfg.ListenAddr,
			Capabilities: names,
			StatusSource: a,
		}))
	} else {
		printBanner(cfg)
	}

	if err := a.Run(context.Background()); err != nil {
		logger.Error("app_failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	return 0
}

// newLogger builds the process logger. The dashboard owns the terminal,
// so with the TUI on logs go to the log file or nowhere.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}

	switch {
	case cfg.LogFile != "":
		f, err := logging.OpenFile(cfg.LogFile)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closeFn = func() { f.Close() }
	case cfg.TUIEnabled:
		w = io.Discard
	}

	return logging.NewLogger(w, cfg.LogFormat, cfg.LogLevel, cfg.Verbose), closeFn, nil
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                          desktop-shell                            ║")
	fmt.Println("║         Native launcher with a supervised Python backend          ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Backend:     %s\n", app.LaunchSpec(cfg).String())
	if cfg.WorkDir != "" {
		fmt.Printf("  Work dir:    %s\n", cfg.WorkDir)
	}
	if cfg.ReadyURL != "" {
		fmt.Printf("  Ready URL:   %s (timeout %s)\n", cfg.ReadyURL, cfg.StartTimeout)
	}
	if cfg.MaxRestarts > 0 {
		fmt.Printf("  Restarts:    up to %d\n", cfg.MaxRestarts)
	}
	if cfg.ListenAddr != "" {
		fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.ListenAddr)
		fmt.Printf("  Events:      ws://%s/events\n", cfg.ListenAddr)
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}

// printBackendCommand writes the backend command that would be run.
// CommandString includes the quoted cd into the work dir.
func printBackendCommand(w io.Writer, cfg *config.Config) {
	runner := process.NewBackendRunner(app.BackendConfig(cfg, nil, nil))

	fmt.Fprintln(w, "# Backend command that would be run:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, runner.CommandString())
}
