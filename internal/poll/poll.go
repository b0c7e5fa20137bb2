package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"
)

// CheckFunc reports whether the awaited state has been reached.
type CheckFunc func(ctx context.Context) (bool, error)

// Condition describes a single wait. It is built per call and never stored.
type Condition struct {
	// Description is used in log lines and in the timeout diagnostic.
	Description string
	Check       CheckFunc
	Interval    time.Duration
	Timeout     time.Duration
}

// TimeoutError is returned when a condition did not become true in time.
type TimeoutError struct {
	Description string
	Elapsed     time.Duration
	Timeout     time.Duration
	Checks      int
	LastErr     error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s (timeout %s, %d checks)",
		e.Elapsed.Round(time.Millisecond), e.Description, e.Timeout, e.Checks)
	if e.LastErr != nil {
		msg += fmt.Sprintf(": last error: %v", e.LastErr)
	}
	return msg
}

// IsTimeout reports whether err is, or wraps, a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

type abortError struct {
	err error
}

func (e *abortError) Error() string { return e.err.Error() }
func (e *abortError) Unwrap() error { return e.err }

// Abort marks a check error as permanent. The wait returns it immediately
// instead of polling until the timeout.
func Abort(err error) error {
	if err == nil {
		return nil
	}
	return &abortError{err: err}
}

// Poller runs waits. It holds no per-wait state and is safe to reuse.
type Poller struct {
	clock clock.Clock
	log   logr.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(p *Poller) {
		p.clock = c
	}
}

// WithLogger sets the logger used for progress lines.
func WithLogger(log logr.Logger) Option {
	return func(p *Poller) {
		p.log = log
	}
}

// New returns a Poller using the real clock and a discarding logger unless
// overridden.
func New(opts ...Option) *Poller {
	p := &Poller{
		clock: clock.RealClock{},
		log:   logr.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WaitFor blocks until cond is met, its timeout elapses, its check aborts, or
// ctx is done.
func (p *Poller) WaitFor(ctx context.Context, cond Condition) error {
	if cond.Check == nil {
		return fmt.Errorf("condition %q has no check", cond.Description)
	}
	if cond.Interval <= 0 || cond.Timeout <= 0 {
		return fmt.Errorf("condition %q: interval and timeout must be positive", cond.Description)
	}

	log := p.log.WithValues("condition", cond.Description)
	log.V(1).Info("waiting", "interval", cond.Interval.String(), "timeout", cond.Timeout.String())

	start := p.clock.Now()
	checks := 0
	var lastErr error

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s interrupted after %d checks: %w", cond.Description, checks, ctx.Err())
		case <-p.clock.After(cond.Interval):
		}

		checks++
		ready, err := cond.Check(ctx)
		elapsed := p.clock.Since(start)

		var abort *abortError
		if errors.As(err, &abort) {
			return fmt.Errorf("wait for %s aborted: %w", cond.Description, abort.err)
		}
		if err != nil {
			lastErr = err
			log.V(1).Info("not ready", "checks", checks, "error", err.Error())
		} else if ready {
			log.Info("condition met", "elapsed", elapsed.Round(time.Millisecond).String(), "checks", checks)
			return nil
		}

		if elapsed >= cond.Timeout {
			return &TimeoutError{
				Description: cond.Description,
				Elapsed:     elapsed,
				Timeout:     cond.Timeout,
				Checks:      checks,
				LastErr:     lastErr,
			}
		}
	}
}
