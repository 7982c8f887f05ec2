// Package supervisor manages the lifecycle of the backend process.
package supervisor

// State represents the current state of the supervised backend.
type State int

const (
	// StateNotStarted is the initial state before Run is called.
	StateNotStarted State = iota

	// StateStarting indicates the backend process is being spawned.
	StateStarting

	// StateRunning indicates the backend process is alive.
	StateRunning

	// StateBackoff indicates the supervisor is waiting before a restart.
	StateBackoff

	// StateExited is terminal. The Outcome says how the backend ended.
	StateExited
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateBackoff:
		return "backoff"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// IsActive returns true if the state represents an active backend
// (either running or in the process of starting/restarting).
func (s State) IsActive() bool {
	return s == StateStarting || s == StateRunning || s == StateBackoff
}

// IsTerminal returns true if the supervisor has finished.
func (s State) IsTerminal() bool {
	return s == StateExited
}
