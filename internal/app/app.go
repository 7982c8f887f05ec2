// Package app wires the shell together: capability plugins, the backend
// supervisor, the event bus, the HTTP endpoint and the user interface
// runtime.
//
// Startup order mirrors a desktop application bootstrap: plugins are
// registered, setup callbacks run (launching the backend on its own
// goroutine), then the runtime's main loop takes over. The main loop never
// waits on the backend.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/common/version"

	"github.com/randomizedcoder/go-desktop-shell/internal/capability"
	"github.com/randomizedcoder/go-desktop-shell/internal/config"
	"github.com/randomizedcoder/go-desktop-shell/internal/events"
	"github.com/randomizedcoder/go-desktop-shell/internal/metrics"
	"github.com/randomizedcoder/go-desktop-shell/internal/preflight"
	"github.com/randomizedcoder/go-desktop-shell/internal/supervisor"
)

const (
	// eventBuffer is the per-subscriber event channel size.
	eventBuffer = 64

	// shutdownMargin is added to the backend stop timeout when waiting
	// for background goroutines at shutdown.
	shutdownMargin = 2 * time.Second

	// metricsProgram prefixes the build_info metric.
	metricsProgram = "desktop_shell"
)

// SetupFunc runs once during startup. It must not block; long-running
// work goes through Handle.Go.
type SetupFunc func(h *Handle) error

// App is the application bootstrap. Configure it with the builder methods,
// then call Run once.
type App struct {
	config  *config.Config
	logger  *slog.Logger
	version string

	plugins      []capability.Capability
	capabilities *capability.Registry
	setups       []SetupFunc
	runtime      Runtime

	registry  *prometheus.Registry
	collector *metrics.Collector
	server    *metrics.Server
	bus       *events.Bus

	summaryOut   io.Writer
	preflightOut io.Writer

	backend atomic.Pointer[backend]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an App for cfg. Without WithRuntime it runs headless.
func New(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		versioncollector.NewCollector(metricsProgram),
	)

	v := version.Version
	if v == "" {
		v = "dev"
	}

	return &App{
		config:       cfg,
		logger:       logger,
		version:      v,
		capabilities: capability.NewRegistry(),
		registry:     registry,
		summaryOut:   os.Stdout,
		preflightOut: os.Stdout,
	}
}

// Plugin adds capabilities to register at startup.
func (a *App) Plugin(caps ...capability.Capability) *App {
	a.plugins = append(a.plugins, caps...)
	return a
}

// Setup adds a callback run after the backend has been launched.
func (a *App) Setup(fn SetupFunc) *App {
	a.setups = append(a.setups, fn)
	return a
}

// WithRuntime sets the user interface runtime.
func (a *App) WithRuntime(r Runtime) *App {
	a.runtime = r
	return a
}

// WithVersion sets the version reported in metrics and the dashboard.
func (a *App) WithVersion(v string) *App {
	a.version = v
	return a
}

// WithOutput sets where the preflight report and exit summary are
// written. Nil suppresses them.
func (a *App) WithOutput(w io.Writer) *App {
	a.summaryOut = w
	a.preflightOut = w
	return a
}

// Capabilities returns the capability registry.
func (a *App) Capabilities() *capability.Registry {
	return a.capabilities
}

// Run starts the shell and blocks until the runtime's main loop ends or a
// termination signal arrives. The backend is stopped before Run returns.
// A backend failure is not an error: it is reported to the user through
// the backend-error event and the main loop keeps running.
func (a *App) Run(ctx context.Context) error {
	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	a.ctx, a.cancel = context.WithCancel(ctx)
	defer a.cancel()

	if a.runtime == nil {
		a.runtime = NewHeadlessRuntime(os.Stderr, a.logger)
	}

	// Plugins
	for _, c := range a.plugins {
		if err := a.capabilities.Register(c); err != nil {
			return fmt.Errorf("register plugin: %w", err)
		}
	}
	a.logger.Info("plugins_registered", "capabilities", a.capabilities.Names())

	if !a.config.SkipPreflight && a.preflightOut != nil {
		result := preflight.RunAll(a.ctx, preflight.Options{
			Interpreter: LaunchSpec(a.config).Executable,
			EntryPoint:  a.config.Script,
			WorkDir:     a.config.WorkDir,
		})
		preflight.PrintResults(a.preflightOut, result)
		if !result.Passed {
			a.logger.Warn("preflight_failed")
		}
	}

	a.collector = metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
		Version:  a.version,
		Platform: platformName(),
		Command:  LaunchSpec(a.config).String(),
	}, a.registry)

	// Events fan out to the runtime and metrics.
	a.bus = events.NewBus(eventBuffer, a.logger)
	a.collector.ObserveEventBus(a.bus.Stats)
	sinksDone := a.startSinks()

	if a.config.ListenAddr != "" {
		a.server = metrics.NewServer(metrics.ServerConfig{
			Addr:     a.config.ListenAddr,
			Gatherer: a.registry,
			Ready:    a.backendRunning,
			Routes: map[string]http.Handler{
				"/events":       events.NewWSHandler(a.bus, a.logger),
				"/capabilities": a.capabilities,
			},
		}, a.logger)
		if err := a.server.Start(); err != nil {
			a.bus.Close()
			<-sinksDone
			return fmt.Errorf("failed to start http server: %w", err)
		}
	}

	// Setup phase. The backend goes first so user setups can see it.
	h := &Handle{app: a}
	setups := append([]SetupFunc{a.launchBackend}, a.setups...)
	for _, fn := range setups {
		if err := fn(h); err != nil {
			a.logger.Error("setup_failed", "error", err)
			a.releaseRuntime()
			a.shutdown(sinksDone)
			return fmt.Errorf("setup: %w", err)
		}
	}
	a.logger.Info("setup_complete", "runtime", a.runtime.Name())

	// Main loop
	err := a.runtime.Run(a.ctx)
	switch {
	case err != nil:
		a.logger.Error("runtime_failed", "runtime", a.runtime.Name(), "error", err)
	case ctx.Err() != nil:
		a.logger.Info("shutdown_requested", "cause", context.Cause(ctx))
	default:
		a.logger.Info("runtime_exited", "runtime", a.runtime.Name())
	}

	a.shutdown(sinksDone)
	a.printExitSummary()

	return err
}

// startSinks subscribes the runtime and the metrics collector to the bus.
// The returned channel closes once the bus is closed and drained.
func (a *App) startSinks() <-chan struct{} {
	ch, _ := a.bus.Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for ev := range ch {
			a.collector.EventEmitted(ev.Name)
			if err := a.runtime.Emit(ev.Name, ev.Payload); err != nil {
				a.logger.Warn("event_not_delivered",
					"event", ev.Name,
					"runtime", a.runtime.Name(),
					"error", err,
				)
			}
		}
	}()
	return done
}

// releaseRuntime lets go of a runtime whose main loop never ran, so
// deliveries waiting on it return.
func (a *App) releaseRuntime() {
	c, ok := a.runtime.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		a.logger.Warn("runtime_close_error", "runtime", a.runtime.Name(), "error", err)
	}
}

// shutdown stops the backend, then the HTTP server, then the bus.
func (a *App) shutdown(sinksDone <-chan struct{}) {
	wait := a.config.StopTimeout + shutdownMargin

	if b := a.backend.Load(); b != nil {
		if err := b.sup.Stop(wait); err != nil {
			a.logger.Warn("backend_stop_error", "error", err)
		}
	}
	a.cancel()

	finished := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(wait):
		a.logger.Warn("shutdown_incomplete", "waited", wait.String())
	}

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("http_server_shutdown_error", "error", err)
		}
	}

	a.bus.Close()
	select {
	case <-sinksDone:
	case <-time.After(time.Second):
		// The runtime stopped reading; its Emit may block.
	}
}

// printExitSummary writes the run summary to the configured output.
func (a *App) printExitSummary() {
	if a.summaryOut == nil {
		return
	}

	cfg := metrics.SummaryConfig{
		Command: LaunchSpec(a.config).String(),
	}
	if a.server != nil {
		cfg.ListenAddr = a.server.Addr()
	}
	if b := a.backend.Load(); b != nil {
		if o := b.sup.Outcome(); o.IsFailure() {
			cfg.FinalReason = o.Reason
		}
		cfg.OutputErrors = b.output.CountErrors()
	}

	fmt.Fprint(a.summaryOut, metrics.FormatExitSummary(a.collector.GenerateSummary(), cfg))
}

// Supervisor returns the backend supervisor once setup has launched it.
func (a *App) Supervisor() *supervisor.Supervisor {
	if b := a.backend.Load(); b != nil {
		return b.sup
	}
	return nil
}

// ServerAddr returns the bound HTTP address, or "" when the server is off.
func (a *App) ServerAddr() string {
	if a.server == nil {
		return ""
	}
	return a.server.Addr()
}

// Metrics returns the collector. It is nil until Run starts.
func (a *App) Metrics() *metrics.Collector {
	return a.collector
}

// errNotRunning is returned by Handle methods outside of Run.
var errNotRunning = errors.New("app: not running")
