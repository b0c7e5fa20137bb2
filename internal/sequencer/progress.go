package sequencer

import "time"

// State is the lifecycle position reported in an Event.
type State string

const (
	StateRunning   State = "running"
	StateSkipped   State = "skipped"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Event reports a step transition to a progress observer.
type Event struct {
	Step string
	// Index is 1-based, or 0 for cleanup.
	Index    int
	Total    int
	State    State
	Duration time.Duration
	Err      error
}

// WithProgress calls fn on every step transition, synchronously from Run.
// Dry runs report nothing.
func WithProgress(fn func(Event)) Option {
	return func(s *Sequencer) {
		s.progress = fn
	}
}

func (s *Sequencer) notify(e Event) {
	if s.progress != nil && !s.dryRun {
		s.progress(e)
	}
}
