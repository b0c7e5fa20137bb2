package sequencer

import (
	"time"
)

// StepStatus is the persisted state of one step.
type StepStatus struct {
	Name        string
	Completed   bool
	CompletedAt time.Time
}

// Plan reports, without running anything, which steps are completed and
// which would run next.
func (s *Sequencer) Plan(steps []Step) ([]StepStatus, error) {
	if err := validate(steps); err != nil {
		return nil, err
	}

	markers, err := s.store.List()
	if err != nil {
		return nil, err
	}
	completedAt := make(map[string]time.Time, len(markers))
	for _, m := range markers {
		completedAt[m.Step] = m.CompletedAt
	}

	statuses := make([]StepStatus, 0, len(steps))
	for _, step := range steps {
		done, err := s.store.Has(step.Name)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, StepStatus{
			Name:        step.Name,
			Completed:   done,
			CompletedAt: completedAt[step.Name],
		})
	}
	return statuses, nil
}
