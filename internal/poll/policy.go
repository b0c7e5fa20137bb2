package poll

import (
	"context"
	"errors"

	"github.com/go-logr/logr"
)

// Policy decides what a timed-out wait means for the caller.
type Policy int

const (
	// Required waits fail the calling step when they time out.
	Required Policy = iota
	// BestEffort waits log a warning on timeout and let the step continue.
	// Errors other than a timeout still propagate.
	BestEffort
)

func (p Policy) String() string {
	switch p {
	case Required:
		return "required"
	case BestEffort:
		return "best-effort"
	default:
		return "unknown"
	}
}

// Resolve applies the policy to the result of a wait.
func (p Policy) Resolve(log logr.Logger, err error) error {
	if err == nil || p != BestEffort {
		return err
	}
	var te *TimeoutError
	if !errors.As(err, &te) {
		return err
	}
	log.Info("WARNING: best-effort wait timed out, continuing",
		"condition", te.Description,
		"elapsed", te.Elapsed.String(),
		"lastError", errString(te.LastErr))
	return nil
}

// Await runs WaitFor and resolves the result with policy.
func (p *Poller) Await(ctx context.Context, cond Condition, policy Policy) error {
	return policy.Resolve(p.log, p.WaitFor(ctx, cond))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
