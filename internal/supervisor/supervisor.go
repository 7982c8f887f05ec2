package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randomizedcoder/go-desktop-shell/internal/events"
	"github.com/randomizedcoder/go-desktop-shell/internal/platform"
	"github.com/randomizedcoder/go-desktop-shell/internal/process"
)

// ErrAlreadyRun is reported when Run is called on a used Supervisor.
var ErrAlreadyRun = errors.New("supervisor: already run")

// DefaultStartTimeout bounds the readiness wait when a ReadyURL is set.
const DefaultStartTimeout = 30 * time.Second

// failureTailLines is how many output lines are logged after a failure.
const failureTailLines = 20

// OutputTail exposes the most recent backend output lines.
type OutputTail interface {
	Tail(n int) []string
}

// Callbacks contains optional callback functions for supervisor events.
type Callbacks struct {
	// OnStateChange is called when the backend state changes.
	OnStateChange func(oldState, newState State)

	// OnStart is called when a backend process starts.
	OnStart func(pid int, runID string)

	// OnReady is called when the readiness probe succeeds.
	OnReady func(startup time.Duration)

	// OnExit is called after each backend run with its classified outcome.
	OnExit func(outcome Outcome)

	// OnRestart is called before a restart attempt.
	OnRestart func(attempt int, delay time.Duration)
}

// Config holds configuration for creating a new Supervisor.
type Config struct {
	Runner    process.Runner
	Notifier  events.Notifier
	Backoff   *Backoff
	Logger    *slog.Logger
	Callbacks Callbacks
	Output    OutputTail

	// MaxRestarts is how many times a failed backend is relaunched
	// before the failure is reported. 0 disables restarts.
	MaxRestarts int

	// ReadyURL, when set, is polled after launch. The run fails with
	// OutcomeTimeout if it does not answer within StartTimeout.
	ReadyURL     string
	StartTimeout time.Duration
}

// Supervisor manages the lifecycle of the backend process. A Supervisor
// runs once: it launches the backend, waits for it to end, and reports
// a failure to the Notifier at most once.
type Supervisor struct {
	runner    process.Runner
	notifier  events.Notifier
	backoff   *Backoff
	logger    *slog.Logger
	callbacks Callbacks
	output    OutputTail

	maxRestarts  int
	readyURL     string
	startTimeout time.Duration

	// State management
	state   State
	stateMu sync.RWMutex

	// Current run, guarded by mu
	mu        sync.Mutex
	cmd       *exec.Cmd
	pid       int
	runID     string
	startTime time.Time
	restarts  int
	outcome   Outcome
	started   bool
	cancel    context.CancelFunc

	notifyOnce sync.Once
	done       chan struct{}
}

// New creates a new Supervisor with the given configuration.
func New(cfg Config) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backoff := cfg.Backoff
	if backoff == nil {
		backoff = NewBackoff(time.Now().UnixNano(), DefaultBackoffConfig())
	}

	startTimeout := cfg.StartTimeout
	if startTimeout <= 0 {
		startTimeout = DefaultStartTimeout
	}

	return &Supervisor{
		runner:       cfg.Runner,
		notifier:     cfg.Notifier,
		backoff:      backoff,
		logger:       logger,
		callbacks:    cfg.Callbacks,
		output:       cfg.Output,
		maxRestarts:  cfg.MaxRestarts,
		readyURL:     cfg.ReadyURL,
		startTimeout: startTimeout,
		state:        StateNotStarted,
		done:         make(chan struct{}),
	}
}

// Supervise launches spec and blocks until the backend has ended or ctx
// is cancelled. A failure is reported to n as a single backend-error
// event.
func Supervise(ctx context.Context, spec platform.LaunchSpec, n events.Notifier, logger *slog.Logger) Outcome {
	cfg := process.DefaultBackendConfig()
	cfg.Spec = spec
	return New(Config{
		Runner:   process.NewBackendRunner(cfg),
		Notifier: n,
		Logger:   logger,
	}).Run(ctx)
}

// Run launches the backend and blocks until it has ended for good:
// either it exited cleanly, it failed and no restarts remain, or ctx was
// cancelled. Cancellation terminates the backend's process group and
// yields OutcomeCancelled, which is never reported as an error event.
func (s *Supervisor) Run(ctx context.Context) Outcome {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return Outcome{Kind: OutcomeStartFailure, ExitCode: -1, Reason: ErrAlreadyRun.Error(), Err: ErrAlreadyRun}
	}
	s.started = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer close(s.done)
	defer cancel()

	s.logger.Debug("supervisor_starting", "command", s.runner.CommandString())

	for {
		outcome := s.runOnce(ctx)
		if !outcome.IsFailure() {
			return s.finish(outcome)
		}

		s.mu.Lock()
		restarts := s.restarts
		s.mu.Unlock()
		// A start failure will not fix itself on retry.
		if outcome.Kind == OutcomeStartFailure || restarts >= s.maxRestarts {
			if s.maxRestarts > 0 && restarts >= s.maxRestarts {
				s.logger.Warn("max_restarts_reached",
					"restarts", restarts,
					"max", s.maxRestarts,
				)
			}
			return s.finish(outcome)
		}

		// Process exited, determine if we should reset backoff
		if ShouldReset(outcome.Uptime, outcome.ExitCode) {
			s.backoff.Reset()
		}
		delay := s.backoff.Next()

		s.mu.Lock()
		s.restarts++
		restarts = s.restarts
		s.mu.Unlock()

		if s.callbacks.OnRestart != nil {
			s.callbacks.OnRestart(restarts, delay)
		}

		s.logger.Info("backend_restart_scheduled",
			"attempt", restarts,
			"backoff_step", s.backoff.Attempts(),
			"delay", delay.String(),
			"previous_outcome", outcome.Kind.String(),
		)

		s.setState(StateBackoff)
		select {
		case <-ctx.Done():
			return s.finish(cancelledOutcome(outcome.ExitCode))
		case <-time.After(delay):
		}
	}
}

// runOnce runs the backend once and waits for it to exit.
func (s *Supervisor) runOnce(ctx context.Context) Outcome {
	s.setState(StateStarting)

	if ctx.Err() != nil {
		return cancelledOutcome(-1)
	}

	runID := uuid.NewString()

	cmd, err := s.runner.BuildCommand(ctx)
	if err != nil {
		s.logger.Error("failed_to_build_command", "run_id", runID, "error", err)
		return s.exited(startFailure(err))
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		s.logger.Error("failed_to_start_process",
			"run_id", runID,
			"command", s.runner.CommandString(),
			"error", err,
		)
		return s.exited(startFailure(err))
	}

	pid := cmd.Process.Pid
	s.mu.Lock()
	s.cmd = cmd
	s.pid = pid
	s.runID = runID
	s.startTime = start
	s.mu.Unlock()

	s.setState(StateRunning)
	s.logger.Info("backend_started", "run_id", runID, "pid", pid)

	if s.callbacks.OnStart != nil {
		s.callbacks.OnStart(pid, runID)
	}

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	var (
		waitErr  error
		exited   bool
		timedOut bool
	)
	if s.readyURL != "" {
		waitErr, exited, timedOut = s.awaitReady(ctx, cmd, start, waitCh)
	}
	if !exited {
		waitErr = <-waitCh
	}
	uptime := time.Since(start)

	var outcome Outcome
	switch {
	case ctx.Err() != nil:
		// Reap anything the backend left behind in its group.
		process.Kill(cmd)
		outcome = cancelledOutcome(Classify(waitErr).ExitCode)
	case timedOut:
		outcome = timeoutOutcome(s.startTimeout)
	default:
		outcome = Classify(waitErr)
	}
	outcome.Uptime = uptime

	s.mu.Lock()
	s.cmd = nil
	s.mu.Unlock()

	s.logger.Info("backend_exited",
		"run_id", runID,
		"pid", pid,
		"outcome", outcome.Kind.String(),
		"exit_code", outcome.ExitCode,
		"uptime", uptime.String(),
	)
	if outcome.IsFailure() && s.output != nil {
		for _, line := range s.output.Tail(failureTailLines) {
			s.logger.Warn("backend_output", "run_id", runID, "line", line)
		}
	}

	return s.exited(outcome)
}

// awaitReady polls the readiness URL while the backend runs. If the
// backend exits first its Wait result is returned with exited set.
func (s *Supervisor) awaitReady(ctx context.Context, cmd *exec.Cmd, start time.Time, waitCh <-chan error) (waitErr error, exited, timedOut bool) {
	readyCtx, cancel := context.WithTimeout(ctx, s.startTimeout)
	defer cancel()

	readyCh := make(chan error, 1)
	go func() {
		readyCh <- WaitReady(readyCtx, s.readyURL)
	}()

	select {
	case waitErr = <-waitCh:
		return waitErr, true, false
	case err := <-readyCh:
		if err == nil {
			startup := time.Since(start)
			s.logger.Info("backend_ready", "url", s.readyURL, "startup", startup.String())
			if s.callbacks.OnReady != nil {
				s.callbacks.OnReady(startup)
			}
			return nil, false, false
		}
		if ctx.Err() != nil {
			// Shutdown; cmd.Cancel is already terminating the group.
			return nil, false, false
		}
		s.logger.Warn("backend_not_ready",
			"url", s.readyURL,
			"timeout", s.startTimeout.String(),
			"error", err,
		)
		process.Kill(cmd)
		return nil, false, true
	}
}

func (s *Supervisor) exited(outcome Outcome) Outcome {
	if s.callbacks.OnExit != nil {
		s.callbacks.OnExit(outcome)
	}
	return outcome
}

// finish records the final outcome and reports a failure exactly once.
func (s *Supervisor) finish(outcome Outcome) Outcome {
	s.mu.Lock()
	s.outcome = outcome
	s.mu.Unlock()

	s.setState(StateExited)

	if outcome.IsFailure() {
		s.notifyOnce.Do(func() { s.notify(outcome) })
	} else {
		s.logger.Debug("supervisor_stopped", "outcome", outcome.Kind.String())
	}
	return outcome
}

func (s *Supervisor) notify(outcome Outcome) {
	s.logger.Error("backend_failed",
		"outcome", outcome.Kind.String(),
		"exit_code", outcome.ExitCode,
		"reason", outcome.Reason,
	)
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Emit(events.BackendError, outcome.Reason); err != nil {
		s.logger.Warn("backend_error_not_delivered", "error", err)
	}
}

// Stop cancels the supervision and waits up to timeout for the backend
// to exit. The backend's process group receives a termination signal and
// is killed if it outlives its stop timeout.
func (s *Supervisor) Stop(timeout time.Duration) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-s.done:
		return nil
	case <-time.After(timeout):
		s.logger.Warn("backend_stop_timeout", "timeout", timeout.String())
		return errors.New("backend did not exit within timeout")
	}
}

// Done is closed when Run returns.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// State returns the current state of the supervisor.
func (s *Supervisor) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// setState updates the state and calls the callback if registered.
func (s *Supervisor) setState(newState State) {
	s.stateMu.Lock()
	oldState := s.state
	s.state = newState
	s.stateMu.Unlock()

	if s.callbacks.OnStateChange != nil && oldState != newState {
		s.callbacks.OnStateChange(oldState, newState)
	}
}

// Outcome returns the final outcome. It is only meaningful once the
// state is StateExited.
func (s *Supervisor) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Restarts returns the number of restarts that have occurred.
func (s *Supervisor) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// PID returns the PID of the current backend process, or 0.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return 0
	}
	return s.pid
}

// RunID identifies the most recent launch.
func (s *Supervisor) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Uptime returns the current uptime if running, or 0 if not.
func (s *Supervisor) Uptime() time.Duration {
	if s.State() != StateRunning {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.startTime)
}

// CommandString returns the command line the supervisor launches.
func (s *Supervisor) CommandString() string {
	return s.runner.CommandString()
}
