package supervisor

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// OutcomeKind classifies how a backend run ended.
type OutcomeKind int

const (
	// OutcomeSuccess means the backend exited with status 0.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeStartFailure means the process could not be launched.
	OutcomeStartFailure

	// OutcomeAbnormalExit means the backend exited with a non-zero status.
	OutcomeAbnormalExit

	// OutcomeKilled means the backend was terminated by a signal the
	// shell did not send.
	OutcomeKilled

	// OutcomeTimeout means the backend did not become ready in time.
	OutcomeTimeout

	// OutcomeCancelled means the shell stopped the backend on shutdown.
	OutcomeCancelled
)

// String returns a short label suitable for logs and metric labels.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeStartFailure:
		return "start_failure"
	case OutcomeAbnormalExit:
		return "abnormal_exit"
	case OutcomeKilled:
		return "killed"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Payload prefixes. The event payload always starts with one of these.
const (
	ReasonTerminated  = "Backend process terminated"
	ReasonStartFailed = "Backend process could not be started"
	ReasonNotReady    = "Backend process did not become ready"
	ReasonStopped     = "Backend process stopped by shell"
)

// Outcome is the classified result of one backend run.
type Outcome struct {
	Kind     OutcomeKind
	ExitCode int // -1 when the process never started
	Signal   string
	Uptime   time.Duration
	Reason   string
	Err      error
}

// IsFailure reports whether the outcome must be surfaced to the user.
// A shutdown-initiated stop is not a failure.
func (o Outcome) IsFailure() bool {
	return o.Kind != OutcomeSuccess && o.Kind != OutcomeCancelled
}

func startFailure(err error) Outcome {
	return Outcome{
		Kind:     OutcomeStartFailure,
		ExitCode: -1,
		Reason:   fmt.Sprintf("%s: %v", ReasonStartFailed, err),
		Err:      err,
	}
}

func timeoutOutcome(timeout time.Duration) Outcome {
	return Outcome{
		Kind:     OutcomeTimeout,
		ExitCode: -1,
		Reason:   fmt.Sprintf("%s within %s", ReasonNotReady, timeout),
	}
}

func cancelledOutcome(exitCode int) Outcome {
	return Outcome{
		Kind:     OutcomeCancelled,
		ExitCode: exitCode,
		Reason:   ReasonStopped,
	}
}

// Classify maps the error returned by exec.Cmd.Wait to an Outcome.
func Classify(waitErr error) Outcome {
	if waitErr == nil || errors.Is(waitErr, exec.ErrWaitDelay) {
		// ErrWaitDelay: the process exited 0 but a grandchild kept
		// the output pipes open.
		return Outcome{Kind: OutcomeSuccess}
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			sig := status.Signal()
			return Outcome{
				Kind:     OutcomeKilled,
				ExitCode: 128 + int(sig),
				Signal:   sig.String(),
				Reason:   fmt.Sprintf("%s (signal: %s)", ReasonTerminated, sig),
				Err:      waitErr,
			}
		}
		code := exitErr.ExitCode()
		return Outcome{
			Kind:     OutcomeAbnormalExit,
			ExitCode: code,
			Reason:   fmt.Sprintf("%s (exit code %d)", ReasonTerminated, code),
			Err:      waitErr,
		}
	}

	// Unknown error, assume exit code 1
	return Outcome{
		Kind:     OutcomeAbnormalExit,
		ExitCode: 1,
		Reason:   fmt.Sprintf("%s: %v", ReasonTerminated, waitErr),
		Err:      waitErr,
	}
}

