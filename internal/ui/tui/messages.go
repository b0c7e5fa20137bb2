// Package tui provides a Bubble Tea-based terminal UI for bootstrap progress.
package tui

import "github.com/imamik/k8solo/internal/sequencer"

// StepMsg carries one sequencer transition.
type StepMsg struct {
	Event sequencer.Event
}

// TickMsg is sent periodically to refresh the display.
type TickMsg struct{}

// DoneMsg signals that the bootstrap returned. Err is its result.
type DoneMsg struct {
	Err error
}
