package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/k8solo/internal/sequencer"
)

// styleFunc is a single-string styling function.
type styleFunc func(string) string

// sf wraps a lipgloss.Style into a styleFunc.
func sf(s lipgloss.Style) styleFunc {
	return func(str string) string { return s.Render(str) }
}

func renderView(m Model) string {
	var b strings.Builder

	renderHeader(&b, m)
	renderProgressBar(&b, m)
	renderSteps(&b, m)
	if m.Err != nil {
		renderError(&b, m)
	}
	renderFooter(&b, m)

	return b.String()
}

func renderHeader(b *strings.Builder, m Model) {
	b.WriteString(titleStyle.Render(fmt.Sprintf("k8solo: %s", m.Title)))

	status := " "
	switch {
	case m.Done && m.Err != nil:
		status += failedStyle.Render("Failed")
	case m.Done:
		status += readyStyle.Render("Complete")
	case m.Interrupted:
		status += warningStyle.Render("Interrupting...")
	default:
		status += activeStyle.Render(currentSpinner(m.SpinnerFrame)+" ") + dimStyle.Render("Bootstrapping...")
	}
	b.WriteString(status)
	b.WriteString("\n")
}

func renderProgressBar(b *strings.Builder, m Model) {
	progress := calculateProgress(m)
	barWidth := 40
	if m.Width > 0 && m.Width < 80 {
		barWidth = max(m.Width-30, 10)
	}
	filled := min(int(float64(barWidth)*progress), barWidth)

	bar := progressBarFull.Render(strings.Repeat("█", filled)) +
		progressBarEmpty.Render(strings.Repeat("░", barWidth-filled))

	fmt.Fprintf(b, "  %s %d/%d\n", bar, m.finished(), len(m.Steps))
}

func renderSteps(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Steps"))
	b.WriteString("\n")

	width := len(sequencer.CleanupStep)
	for _, s := range m.Steps {
		width = max(width, len(s.Name))
	}

	for i, s := range m.Steps {
		renderRow(b, m, fmt.Sprintf("%2d", i+1), s, width)
	}
	if m.Cleanup.State != "" {
		renderRow(b, m, "  ", m.Cleanup, width)
	}
}

func renderRow(b *strings.Builder, m Model, index string, s StepRow, width int) {
	icon, style := rowIcon(m, s.State)

	extra := ""
	switch s.State {
	case sequencer.StateCompleted, sequencer.StateFailed:
		extra = dimStyle.Render(formatDuration(s.Duration))
	case sequencer.StateSkipped:
		extra = dimStyle.Render("already completed")
	case sequencer.StateRunning:
		extra = activeStyle.Render(formatDuration(time.Since(m.ActiveSince)))
	}

	fmt.Fprintf(b, "  %s %s %s %s\n", dimStyle.Render(index), style(icon), style(fmt.Sprintf("%-*s", width, s.Name)), extra)
}

func renderError(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Error"))
	b.WriteString("\n")
	fmt.Fprintf(b, "    %s %s\n", failedStyle.Render(crossMark), m.Err)
}

func renderFooter(b *strings.Builder, m Model) {
	elapsed := formatDuration(time.Since(m.StartTime))
	hint := "q: abort"
	if m.Interrupted {
		hint = "waiting for the current step to stop"
	}
	b.WriteString(footerStyle.Render(fmt.Sprintf("  elapsed: %s  |  %s", elapsed, hint)))
	b.WriteString("\n")
}

// Helper functions

func rowIcon(m Model, state sequencer.State) (string, styleFunc) {
	switch state {
	case sequencer.StateCompleted:
		return checkMark, sf(readyStyle)
	case sequencer.StateSkipped:
		return skipMark, sf(dimStyle)
	case sequencer.StateFailed:
		return crossMark, sf(failedStyle)
	case sequencer.StateRunning:
		return currentSpinner(m.SpinnerFrame), sf(activeStyle)
	default:
		return pending, sf(dimStyle)
	}
}

func currentSpinner(frame int) string {
	if frame < 0 {
		frame = -frame
	}
	return spinnerFrames[frame%len(spinnerFrames)]
}

func calculateProgress(m Model) float64 {
	if len(m.Steps) == 0 {
		return 1.0
	}
	return float64(m.finished()) / float64(len(m.Steps))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
