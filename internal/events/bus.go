// Package events delivers named events from background goroutines to the
// user interface.
package events

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// BackendError is emitted when the backend process fails to start or dies.
const BackendError = "backend-error"

// ErrClosed is returned by Emit after the bus has been closed.
var ErrClosed = errors.New("event bus closed")

// Event is a named signal with a string payload.
type Event struct {
	ID      string    `json:"id"`
	Name    string    `json:"event"`
	Payload string    `json:"payload"`
	Time    time.Time `json:"time"`
}

// Notifier emits named events. Implementations must be safe to call from any
// goroutine.
type Notifier interface {
	Emit(name, payload string) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(name, payload string) error

// Emit calls f(name, payload).
func (f NotifierFunc) Emit(name, payload string) error {
	return f(name, payload)
}

// historySize is how many events are replayed to late subscribers.
const historySize = 16

// Bus fans events out to subscribers. Sends never block the emitter: a
// subscriber whose buffer is full misses the event and the drop is counted.
// Recent events are replayed to new subscribers, so a UI that attaches after
// an early failure still sees it.
type Bus struct {
	logger *slog.Logger
	buffer int

	mu      sync.Mutex
	subs    map[int]chan Event
	nextSub int
	history []Event
	closed  bool

	emitted atomic.Int64
	dropped atomic.Int64
}

// NewBus creates a bus whose subscriber channels hold buffer events.
func NewBus(buffer int, logger *slog.Logger) *Bus {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		buffer: buffer,
		subs:   make(map[int]chan Event),
	}
}

// Emit publishes an event to every current subscriber.
func (b *Bus) Emit(name, payload string) error {
	ev := Event{
		ID:      uuid.NewString(),
		Name:    name,
		Payload: payload,
		Time:    time.Now(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.history = append(b.history, ev)
	if len(b.history) > historySize {
		b.history = b.history[len(b.history)-historySize:]
	}
	b.emitted.Add(1)

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
			b.logger.Warn("event_dropped",
				"event", name,
				"subscriber", id,
			)
		}
	}

	b.logger.Debug("event_emitted", "event", name, "id", ev.ID)
	return nil
}

// Subscribe returns a channel receiving every event emitted from now on,
// preceded by the retained history. The returned function unsubscribes and
// closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer+historySize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	for _, ev := range b.history {
		ch <- ev
	}

	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// History returns a copy of the retained events, oldest first.
func (b *Bus) History() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}

// Stats returns the number of events emitted and deliveries dropped.
func (b *Bus) Stats() (emitted, dropped int64) {
	return b.emitted.Load(), b.dropped.Load()
}

// Close closes every subscriber channel. Later Emit calls return ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
