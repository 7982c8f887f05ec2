package app

import (
	"context"
	"log/slog"

	"github.com/randomizedcoder/go-desktop-shell/internal/capability"
	"github.com/randomizedcoder/go-desktop-shell/internal/config"
	"github.com/randomizedcoder/go-desktop-shell/internal/events"
)

// Handle is passed to setup callbacks. Emit and Go are safe to call from
// any goroutine while the app is running.
type Handle struct {
	app *App
}

var _ events.Notifier = (*Handle)(nil)

// Emit publishes an event to the user interface and every other
// subscriber of the event bus.
func (h *Handle) Emit(name, payload string) error {
	if h.app.bus == nil {
		return errNotRunning
	}
	return h.app.bus.Emit(name, payload)
}

// Go runs fn on its own goroutine with the app context. Shutdown cancels
// the context and waits for fn to return.
func (h *Handle) Go(fn func(ctx context.Context)) {
	h.app.wg.Add(1)
	go func() {
		defer h.app.wg.Done()
		fn(h.app.ctx)
	}()
}

// Context returns the app context, cancelled at shutdown.
func (h *Handle) Context() context.Context {
	return h.app.ctx
}

// Logger returns the app logger.
func (h *Handle) Logger() *slog.Logger {
	return h.app.logger
}

// Config returns the app configuration.
func (h *Handle) Config() *config.Config {
	return h.app.config
}

// Capabilities returns the registered capabilities.
func (h *Handle) Capabilities() *capability.Registry {
	return h.app.capabilities
}
