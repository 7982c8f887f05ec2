package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/randomizedcoder/go-desktop-shell/internal/events"
)

// Runtime is the user interface main loop. Run blocks until the user
// quits or ctx is cancelled. Emit delivers an event to the user and must
// be safe to call from any goroutine.
type Runtime interface {
	events.Notifier
	Name() string
	Run(ctx context.Context) error
}

// HeadlessRuntime is a Runtime without a window: events are logged and
// written to an output stream, and Run waits for cancellation.
type HeadlessRuntime struct {
	out    io.Writer
	logger *slog.Logger

	mu     sync.Mutex
	events []events.Event
}

// NewHeadlessRuntime creates a headless runtime writing events to out.
// A nil out only logs.
func NewHeadlessRuntime(out io.Writer, logger *slog.Logger) *HeadlessRuntime {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeadlessRuntime{out: out, logger: logger}
}

// Name identifies the runtime in logs.
func (r *HeadlessRuntime) Name() string {
	return "headless"
}

// Run blocks until ctx is cancelled.
func (r *HeadlessRuntime) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Emit records and prints an event.
func (r *HeadlessRuntime) Emit(name, payload string) error {
	r.mu.Lock()
	r.events = append(r.events, events.Event{Name: name, Payload: payload})
	r.mu.Unlock()

	if name == events.BackendError {
		r.logger.Error("frontend_event", "event", name, "payload", payload)
	} else {
		r.logger.Info("frontend_event", "event", name, "payload", payload)
	}

	if r.out != nil {
		if _, err := fmt.Fprintf(r.out, "[%s] %s\n", name, payload); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
	}
	return nil
}

// Events returns the events received so far.
func (r *HeadlessRuntime) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}
