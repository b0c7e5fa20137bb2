package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/k8solo/internal/sequencer"
)

// RunFunc executes the bootstrap, reporting every step transition to progress.
type RunFunc func(ctx context.Context, progress func(sequencer.Event)) error

// Run shows the progress view while fn executes and returns fn's error.
// Quitting the view cancels the context passed to fn; Run still waits for fn
// to return.
func Run(ctx context.Context, title string, statuses []sequencer.StepStatus, fn RunFunc, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(title, statuses)
	m.cancel = cancel

	p := tea.NewProgram(m, opts...)

	result := make(chan error, 1)
	go func() {
		err := fn(ctx, func(e sequencer.Event) { p.Send(StepMsg{Event: e}) })
		result <- err
		p.Send(DoneMsg{Err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		runErr := <-result
		if runErr != nil {
			return runErr
		}
		return fmt.Errorf("TUI error: %w", err)
	}
	return <-result
}
