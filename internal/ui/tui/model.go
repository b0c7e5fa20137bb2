package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/k8solo/internal/sequencer"
)

// StepRow is the display state of one step. An empty State means pending.
type StepRow struct {
	Name     string
	State    sequencer.State
	Duration time.Duration
	Err      error
}

// Model is the Bubble Tea model for the bootstrap progress view.
type Model struct {
	Title   string
	Steps   []StepRow
	Cleanup StepRow

	StartTime   time.Time
	ActiveSince time.Time

	// Animation
	SpinnerFrame int

	// UI state
	Width       int
	Err         error
	Done        bool
	Interrupted bool

	cancel context.CancelFunc
}

// NewModel creates a model listing statuses. Steps completed by an earlier
// run start out as skipped.
func NewModel(title string, statuses []sequencer.StepStatus) Model {
	rows := make([]StepRow, 0, len(statuses))
	for _, st := range statuses {
		row := StepRow{Name: st.Name}
		if st.Completed {
			row.State = sequencer.StateSkipped
		}
		rows = append(rows, row)
	}
	return Model{
		Title:     title,
		Steps:     rows,
		Cleanup:   StepRow{Name: sequencer.CleanupStep},
		StartTime: time.Now(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// The running step observes the cancellation; DoneMsg follows.
			m.Interrupted = true
			if m.cancel != nil {
				m.cancel()
			}
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width

	case StepMsg:
		m.apply(msg.Event)

	case TickMsg:
		m.SpinnerFrame++
		return m, tickCmd()

	case DoneMsg:
		m.Done = true
		m.Err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) apply(e sequencer.Event) {
	row := &m.Cleanup
	if e.Step != sequencer.CleanupStep {
		row = nil
		for i := range m.Steps {
			if m.Steps[i].Name == e.Step {
				row = &m.Steps[i]
				break
			}
		}
		if row == nil {
			return
		}
	}

	row.State = e.State
	row.Duration = e.Duration
	row.Err = e.Err
	if e.State == sequencer.StateRunning {
		m.ActiveSince = time.Now()
	}
}

// finished counts steps that are completed or skipped.
func (m Model) finished() int {
	n := 0
	for _, s := range m.Steps {
		if s.State == sequencer.StateCompleted || s.State == sequencer.StateSkipped {
			n++
		}
	}
	return n
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View implements tea.Model.
func (m Model) View() string {
	return renderView(m)
}
