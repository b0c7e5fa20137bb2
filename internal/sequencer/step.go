package sequencer

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// Action performs the side effects of a single step.
type Action func(ctx context.Context) error

// Step is one named unit of bootstrap work. Its name doubles as the key of
// its completion marker.
type Step struct {
	Name   string
	Action Action
}

var stepNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// CleanupStep is the name under which a failing cleanup action is reported.
const CleanupStep = "cleanup"

// Delay returns a step that waits for a fixed duration. Use it only where no
// readiness signal exists, so the assumption shows up in the step list.
func Delay(name string, d time.Duration) Step {
	return Step{
		Name: name,
		Action: func(ctx context.Context) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return fmt.Errorf("delay interrupted: %w", ctx.Err())
			case <-timer.C:
				return nil
			}
		},
	}
}

func validate(steps []Step) error {
	seen := make(map[string]struct{}, len(steps))
	for i, s := range steps {
		if !stepNamePattern.MatchString(s.Name) {
			return fmt.Errorf("step %d: invalid name %q (lowercase letters, digits and dashes only)", i+1, s.Name)
		}
		if s.Name == CleanupStep {
			return fmt.Errorf("step %d: name %q is reserved", i+1, s.Name)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("step %d: duplicate name %q", i+1, s.Name)
		}
		if s.Action == nil {
			return fmt.Errorf("step %q has no action", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}
