package app

import (
	"context"
	"io"
	"time"

	"github.com/randomizedcoder/go-desktop-shell/internal/config"
	"github.com/randomizedcoder/go-desktop-shell/internal/logging"
	"github.com/randomizedcoder/go-desktop-shell/internal/platform"
	"github.com/randomizedcoder/go-desktop-shell/internal/process"
	"github.com/randomizedcoder/go-desktop-shell/internal/supervisor"
	"github.com/randomizedcoder/go-desktop-shell/internal/tui"
)

// backend is the supervised backend launched during setup.
type backend struct {
	sup    *supervisor.Supervisor
	output *logging.OutputHandler
}

// LaunchSpec resolves the backend command for the host platform with the
// overrides from cfg.
func LaunchSpec(cfg *config.Config) platform.LaunchSpec {
	return platform.ResolveWith(platform.Detect(), platform.Overrides{
		Interpreter: cfg.Interpreter,
		EntryPoint:  cfg.Script,
		ExtraArgs:   cfg.Args,
	})
}

// BackendConfig builds the process configuration for cfg.
func BackendConfig(cfg *config.Config, stdout, stderr io.Writer) *process.BackendConfig {
	return &process.BackendConfig{
		Spec:        LaunchSpec(cfg),
		WorkDir:     cfg.WorkDir,
		Env:         cfg.Env,
		Stdout:      stdout,
		Stderr:      stderr,
		StopTimeout: cfg.StopTimeout,
	}
}

func platformName() string {
	return platform.Detect().String()
}

// launchBackend is the built-in setup callback. It creates the supervisor
// and runs it on its own goroutine, so setup returns immediately.
func (a *App) launchBackend(h *Handle) error {
	output := logging.NewOutputHandler(a.logger, a.config.Verbose)
	stdout := output.Writer("stdout")
	stderr := output.Writer("stderr")

	sup := supervisor.New(supervisor.Config{
		Runner:   process.NewBackendRunner(BackendConfig(a.config, stdout, stderr)),
		Notifier: h,
		Backoff: supervisor.NewBackoff(time.Now().UnixNano(), supervisor.BackoffConfig{
			Initial:    a.config.BackoffInitial,
			Max:        a.config.BackoffMax,
			Multiplier: a.config.BackoffMultiply,
			JitterPct:  supervisor.DefaultBackoffConfig().JitterPct,
		}),
		Logger:       a.logger,
		Callbacks:    a.backendCallbacks(),
		Output:       output,
		MaxRestarts:  a.config.MaxRestarts,
		ReadyURL:     a.config.ReadyURL,
		StartTimeout: a.config.StartTimeout,
	})
	a.backend.Store(&backend{sup: sup, output: output})

	h.Go(func(ctx context.Context) {
		defer stderr.Flush()
		defer stdout.Flush()
		sup.Run(ctx)
	})
	return nil
}

func (a *App) backendCallbacks() supervisor.Callbacks {
	return supervisor.Callbacks{
		OnStateChange: func(_, newState supervisor.State) {
			a.collector.SetState(newState.String(), newState == supervisor.StateRunning)
		},
		OnStart: func(pid int, runID string) {
			a.collector.BackendStarted()
		},
		OnReady: func(startup time.Duration) {
			a.collector.BackendReady(startup)
		},
		OnExit: func(o supervisor.Outcome) {
			a.collector.RecordOutcome(o.Kind.String(), o.ExitCode, o.Uptime)
		},
		OnRestart: func(attempt int, delay time.Duration) {
			a.collector.BackendRestarted()
		},
	}
}

// backendRunning reports whether the backend process is up.
func (a *App) backendRunning() bool {
	b := a.backend.Load()
	return b != nil && b.sup.State() == supervisor.StateRunning
}

// Status returns a snapshot of the backend for the dashboard.
func (a *App) Status() tui.Status {
	b := a.backend.Load()
	if b == nil {
		return tui.Status{
			State:   supervisor.StateNotStarted.String(),
			Command: LaunchSpec(a.config).String(),
		}
	}
	return tui.Status{
		State:    b.sup.State().String(),
		PID:      b.sup.PID(),
		RunID:    b.sup.RunID(),
		Uptime:   b.sup.Uptime(),
		Restarts: b.sup.Restarts(),
		Command:  b.sup.CommandString(),
	}
}
