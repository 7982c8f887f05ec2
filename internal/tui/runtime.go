package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// statusInterval is how often the backend status is pushed to the model.
const statusInterval = 500 * time.Millisecond

// Runtime runs the dashboard as the shell's main loop.
type Runtime struct {
	program *tea.Program
	source  StatusSource
}

// NewRuntime creates a runtime for cfg. Extra options are passed to the
// Bubble Tea program after the alt-screen default.
func NewRuntime(cfg Config, opts ...tea.ProgramOption) *Runtime {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &Runtime{
		program: tea.NewProgram(New(cfg), opts...),
		source:  cfg.StatusSource,
	}
}

// Name identifies the runtime in logs.
func (r *Runtime) Name() string {
	return "tui"
}

// Run blocks until the user quits or ctx is cancelled.
func (r *Runtime) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
			SendQuit(r.program)
		case <-stop:
		}
	}()
	if r.source != nil {
		go pushStatus(stop, r.program, r.source, statusInterval)
	}

	_, err := r.program.Run()
	return err
}

// Close releases a program that will never run. Pending and later Emit
// calls return immediately.
func (r *Runtime) Close() error {
	r.program.Kill()
	return nil
}

// Emit delivers an event to the dashboard. It is safe to call from any
// goroutine; before Run it blocks until the program starts or is closed.
func (r *Runtime) Emit(name, payload string) error {
	return Notifier(r.program).Emit(name, payload)
}

// pushStatus sends a status snapshot to p every interval until stop is
// closed.
func pushStatus(stop <-chan struct{}, p Sender, src StatusSource, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	SendStatus(p, src.Status())
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			SendStatus(p, src.Status())
		}
	}
}
