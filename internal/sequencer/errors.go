package sequencer

import (
	"errors"
	"fmt"

	"github.com/imamik/k8solo/internal/poll"
)

// Kind classifies why a step failed.
type Kind string

const (
	// KindFatal is any step failure that is neither a precondition nor a timeout.
	KindFatal Kind = "fatal"
	// KindPrecondition means the environment is unfit to continue.
	KindPrecondition Kind = "precondition"
	// KindTimeout means a required readiness wait timed out.
	KindTimeout Kind = "timeout"
)

// PreconditionError marks an error as an environment precondition failure.
type PreconditionError struct {
	Err error
}

func (e *PreconditionError) Error() string { return "precondition failed: " + e.Err.Error() }
func (e *PreconditionError) Unwrap() error { return e.Err }

// Precondition wraps err as a precondition failure. It returns nil for nil.
func Precondition(err error) error {
	if err == nil {
		return nil
	}
	return &PreconditionError{Err: err}
}

// StepError is returned by Run when a step fails.
type StepError struct {
	Step string
	// Index is the 1-based position of the step, or 0 for cleanup.
	Index int
	Kind  Kind
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed (%s): %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func classify(err error) Kind {
	var pe *PreconditionError
	if errors.As(err, &pe) {
		return KindPrecondition
	}
	if poll.IsTimeout(err) {
		return KindTimeout
	}
	return KindFatal
}
