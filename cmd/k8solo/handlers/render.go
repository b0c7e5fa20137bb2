package handlers

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"

	"github.com/imamik/k8solo/internal/sequencer"
)

var (
	colorGreen = lipgloss.Color("#22c55e")
	colorDim   = lipgloss.Color("#6b7280")
	colorBlue  = lipgloss.Color("#3b82f6")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	doneStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	pendingStyle = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	checkMark = "[OK]"
	pending   = "[  ]"
	nextMark  = "[>>]"
)

// stepView selects the wording of renderSteps.
type stepView int

const (
	viewStatus stepView = iota
	viewPlan
)

func renderSteps(w io.Writer, title string, statuses []sequencer.StepStatus, view stepView, styled bool) {
	style := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	width := 0
	completed := 0
	for _, st := range statuses {
		width = max(width, len(st.Name))
		if st.Completed {
			completed++
		}
	}

	_, _ = fmt.Fprintln(w, style(titleStyle, title))
	nextMarked := false
	for i, st := range statuses {
		name := st.Name + strings.Repeat(" ", width-len(st.Name))
		var line string
		switch {
		case st.Completed && view == viewPlan:
			line = style(doneStyle, checkMark) + " " + name + "  " + style(pendingStyle, "skip")
		case st.Completed:
			line = style(doneStyle, checkMark) + " " + name + "  " + style(pendingStyle, formatTime(st.CompletedAt))
		case view == viewPlan:
			line = pending + " " + name + "  run"
		case !nextMarked:
			line = nextMark + " " + name + "  next"
			nextMarked = true
		default:
			line = style(pendingStyle, pending+" "+name)
		}
		_, _ = fmt.Fprintf(w, "%2d %s\n", i+1, line)
	}
	_, _ = fmt.Fprintf(w, "\n%d/%d steps completed\n", completed, len(statuses))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "completed"
	}
	return t.Local().Format(time.DateTime)
}

func readFileIfExists(path string) ([]byte, error) {
	data, err := afero.ReadFile(appFS, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}
