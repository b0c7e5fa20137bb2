package sequencer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"
)

// Sequencer executes steps in order against a MarkerStore.
type Sequencer struct {
	store    MarkerStore
	log      logr.Logger
	clock    clock.PassiveClock
	metrics  *Metrics
	cleanup  Action
	dryRun   bool
	progress func(Event)
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the logger. Each step logs with "step", "index" and
// "total" key/values.
func WithLogger(log logr.Logger) Option {
	return func(s *Sequencer) {
		s.log = log
	}
}

// WithClock sets the clock used for marker timestamps and durations.
func WithClock(c clock.PassiveClock) Option {
	return func(s *Sequencer) {
		s.clock = c
	}
}

// WithMetrics records step outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(s *Sequencer) {
		s.metrics = m
	}
}

// WithCleanup registers an action that runs once after every step has
// completed or been skipped. It never runs after a failure.
func WithCleanup(a Action) Option {
	return func(s *Sequencer) {
		s.cleanup = a
	}
}

// WithDryRun makes Run report what it would do without invoking actions,
// writing markers or running cleanup.
func WithDryRun(dryRun bool) Option {
	return func(s *Sequencer) {
		s.dryRun = dryRun
	}
}

// New returns a Sequencer backed by store.
func New(store MarkerStore, opts ...Option) *Sequencer {
	s := &Sequencer{
		store: store,
		log:   logr.Discard(),
		clock: clock.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes steps in order, skipping those with a marker. It stops at the
// first failing step and returns a *StepError describing it.
func (s *Sequencer) Run(ctx context.Context, steps []Step) error {
	if err := validate(steps); err != nil {
		return err
	}

	start := s.clock.Now()
	total := len(steps)
	s.log.Info("bootstrap starting", "steps", total, "dryRun", s.dryRun)

	executed := 0
	for i, step := range steps {
		log := s.log.WithValues("step", step.Name, "index", i+1, "total", total)

		done, err := s.store.Has(step.Name)
		if err != nil {
			return s.fail(log, i+1, total, step.Name, err, 0)
		}
		if done {
			log.Info("skipped, already completed")
			s.metrics.recordStep(step.Name, resultSkipped, 0)
			s.notify(Event{Step: step.Name, Index: i + 1, Total: total, State: StateSkipped})
			continue
		}
		if s.dryRun {
			log.Info("would run")
			continue
		}
		if err := ctx.Err(); err != nil {
			return s.fail(log, i+1, total, step.Name, fmt.Errorf("not started: %w", err), 0)
		}

		log.Info("running")
		s.notify(Event{Step: step.Name, Index: i + 1, Total: total, State: StateRunning})
		stepStart := s.clock.Now()
		if err := step.Action(ctx); err != nil {
			return s.fail(log, i+1, total, step.Name, err, s.clock.Since(stepStart))
		}
		if err := s.store.Mark(step.Name, s.clock.Now()); err != nil {
			return s.fail(log, i+1, total, step.Name, fmt.Errorf("action succeeded but marker was not persisted: %w", err), s.clock.Since(stepStart))
		}
		elapsed := s.clock.Since(stepStart)
		s.metrics.recordStep(step.Name, resultCompleted, elapsed)
		log.Info("completed", "duration", elapsed.Round(time.Millisecond).String())
		s.notify(Event{Step: step.Name, Index: i + 1, Total: total, State: StateCompleted, Duration: elapsed})
		executed++
	}

	if s.dryRun {
		s.log.Info("dry run finished", "pending", s.pending(steps))
		return nil
	}

	if s.cleanup != nil {
		log := s.log.WithValues("step", CleanupStep)
		log.Info("running")
		s.notify(Event{Step: CleanupStep, Total: total, State: StateRunning})
		cleanupStart := s.clock.Now()
		if err := s.cleanup(ctx); err != nil {
			return s.fail(log, 0, total, CleanupStep, err, s.clock.Since(cleanupStart))
		}
		log.Info("completed")
		s.notify(Event{Step: CleanupStep, Total: total, State: StateCompleted, Duration: s.clock.Since(cleanupStart)})
	}

	s.metrics.recordSuccess(s.clock.Now())
	s.log.Info("bootstrap finished", "executed", executed, "skipped", total-executed,
		"duration", s.clock.Since(start).Round(time.Second).String())
	return nil
}

func (s *Sequencer) fail(log logr.Logger, index, total int, name string, err error, d time.Duration) error {
	kind := classify(err)
	s.metrics.recordStep(name, resultFailed, d)
	s.notify(Event{Step: name, Index: index, Total: total, State: StateFailed, Duration: d, Err: err})
	log.Error(err, "failed", "kind", string(kind), "duration", d.Round(time.Millisecond).String())
	return &StepError{Step: name, Index: index, Kind: kind, Err: err}
}

func (s *Sequencer) pending(steps []Step) int {
	n := 0
	for _, st := range steps {
		if ok, err := s.store.Has(st.Name); err == nil && !ok {
			n++
		}
	}
	return n
}
