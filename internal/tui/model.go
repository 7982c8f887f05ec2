package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-desktop-shell/internal/events"
)

// maxEvents is how many events the log panel keeps.
const maxEvents = 50

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// StatusMsg carries an updated backend status.
type StatusMsg struct {
	Status Status
}

// EventMsg carries an event emitted by the shell.
type EventMsg struct {
	Name    string
	Payload string
	Time    time.Time
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// Status is a snapshot of the supervised backend.
type Status struct {
	State    string
	PID      int
	RunID    string
	Uptime   time.Duration
	Restarts int
	Command  string
}

// StatusSource provides backend status snapshots. The runtime polls it and
// pushes the result to the model as a StatusMsg.
type StatusSource interface {
	Status() Status
}

// Config holds TUI configuration.
type Config struct {
	Version      string
	ListenAddr   string
	Capabilities []string
	StatusSource StatusSource
}

// Model represents the TUI state.
type Model struct {
	// Configuration
	version      string
	listenAddr   string
	capabilities []string

	// Current state
	status       Status
	events       []EventMsg
	backendError string
	startTime    time.Time
	showEvents   bool

	// Display options
	width  int
	height int

	quitting bool
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		version:      cfg.Version,
		listenAddr:   cfg.ListenAddr,
		capabilities: cfg.Capabilities,
		startTime:    time.Now(),
		showEvents:   true,
		width:        80,
		height:       24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "e":
			m.showEvents = !m.showEvents
			return m, nil
		case "x":
			m.backendError = ""
			return m, nil
		case "r":
			return m, tickCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		return m, tickCmd()

	case StatusMsg:
		m.status = msg.Status
		return m, nil

	case EventMsg:
		m.events = append(m.events, msg)
		if len(m.events) > maxEvents {
			m.events = m.events[len(m.events)-maxEvents:]
		}
		if msg.Name == events.BackendError {
			m.backendError = msg.Payload
		}
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderView()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the shell started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// BackendError returns the message of the last backend-error event that
// has not been dismissed.
func (m Model) BackendError() string {
	return m.backendError
}

// Events returns the retained events, oldest first.
func (m Model) Events() []EventMsg {
	return m.events
}

// =============================================================================
// Helpers for external use
// =============================================================================

// Sender is the part of *tea.Program used to push messages.
type Sender interface {
	Send(msg tea.Msg)
}

// Notifier returns an events.Notifier that delivers events to the program.
// Send is safe to call from any goroutine.
func Notifier(p Sender) events.Notifier {
	return events.NotifierFunc(func(name, payload string) error {
		if p == nil {
			return fmt.Errorf("tui: no program to deliver %s", name)
		}
		p.Send(EventMsg{Name: name, Payload: payload, Time: time.Now()})
		return nil
	})
}

// SendStatus sends a status update to the TUI.
func SendStatus(p Sender, s Status) {
	if p != nil {
		p.Send(StatusMsg{Status: s})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p Sender) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
