package tui

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/k8solo/internal/sequencer"
)

func testStatuses() []sequencer.StepStatus {
	return []sequencer.StepStatus{
		{Name: "network", Completed: true},
		{Name: "prerequisites"},
		{Name: "k8s-init"},
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m30s"},
		{3600 * time.Second, "1h0m"},
		{3661 * time.Second, "1h1m"},
	}
	for _, tt := range tests {
		got := formatDuration(tt.d)
		if got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestNewModel_CompletedStepsAreSkipped(t *testing.T) {
	m := NewModel("node1", testStatuses())

	if m.Steps[0].State != sequencer.StateSkipped {
		t.Errorf("expected network to be skipped, got %q", m.Steps[0].State)
	}
	if m.Steps[1].State != "" {
		t.Errorf("expected prerequisites to be pending, got %q", m.Steps[1].State)
	}
	if p := calculateProgress(m); p < 0.33 || p > 0.34 {
		t.Errorf("expected ~1/3 progress, got %v", p)
	}
}

func TestModelUpdate_StepEvents(t *testing.T) {
	var m tea.Model = NewModel("node1", testStatuses())

	m, _ = m.Update(StepMsg{Event: sequencer.Event{Step: "prerequisites", Index: 2, State: sequencer.StateRunning}})
	if got := m.(Model).Steps[1].State; got != sequencer.StateRunning {
		t.Fatalf("expected running, got %q", got)
	}

	m, _ = m.Update(StepMsg{Event: sequencer.Event{Step: "prerequisites", Index: 2, State: sequencer.StateCompleted, Duration: 3 * time.Second}})
	row := m.(Model).Steps[1]
	if row.State != sequencer.StateCompleted || row.Duration != 3*time.Second {
		t.Errorf("unexpected row %+v", row)
	}

	boom := errors.New("kubeadm init failed")
	m, _ = m.Update(StepMsg{Event: sequencer.Event{Step: "k8s-init", Index: 3, State: sequencer.StateFailed, Err: boom}})
	if got := m.(Model).Steps[2].Err; !errors.Is(got, boom) {
		t.Errorf("expected failure to be recorded, got %v", got)
	}

	m, _ = m.Update(StepMsg{Event: sequencer.Event{Step: sequencer.CleanupStep, State: sequencer.StateRunning}})
	if got := m.(Model).Cleanup.State; got != sequencer.StateRunning {
		t.Errorf("expected cleanup running, got %q", got)
	}

	// Unknown steps are ignored.
	m, _ = m.Update(StepMsg{Event: sequencer.Event{Step: "nope", State: sequencer.StateRunning}})
	if len(m.(Model).Steps) != 3 {
		t.Error("unknown step must not add a row")
	}
}

func TestModelUpdate_Done(t *testing.T) {
	m := NewModel("node1", testStatuses())

	updated, cmd := m.Update(DoneMsg{Err: errors.New("boom")})
	fm := updated.(Model)
	if !fm.Done || fm.Err == nil {
		t.Errorf("expected done with error, got done=%v err=%v", fm.Done, fm.Err)
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestModelUpdate_QuitCancels(t *testing.T) {
	cancelled := false
	m := NewModel("node1", testStatuses())
	m.cancel = func() { cancelled = true }

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !cancelled {
		t.Error("expected ctrl+c to cancel the run")
	}
	if !updated.(Model).Interrupted {
		t.Error("expected model to be interrupted")
	}
	if cmd != nil {
		t.Error("view must stay open until the run returns")
	}
}

func TestView(t *testing.T) {
	m := NewModel("node1", testStatuses())
	m.apply(sequencer.Event{Step: "prerequisites", State: sequencer.StateRunning})

	out := m.View()
	for _, want := range []string{"k8solo: node1", "network", "already completed", "prerequisites", "k8s-init", "1/3", "q: abort"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "cleanup") {
		t.Error("cleanup row is hidden until it starts")
	}

	m.Done = true
	m.Err = errors.New("step \"k8s-init\" failed (fatal): exit status 1")
	out = m.View()
	if !strings.Contains(out, "Failed") || !strings.Contains(out, "exit status 1") {
		t.Errorf("expected failure in view:\n%s", out)
	}
}

func TestRun(t *testing.T) {
	boom := errors.New("boom")
	var seen []sequencer.Event

	err := Run(context.Background(), "node1", testStatuses(), func(_ context.Context, progress func(sequencer.Event)) error {
		e := sequencer.Event{Step: "prerequisites", Index: 2, Total: 3, State: sequencer.StateRunning}
		seen = append(seen, e)
		progress(e)
		return boom
	}, tea.WithInput(nil), tea.WithOutput(io.Discard), tea.WithoutRenderer(), tea.WithoutSignalHandler())

	if !errors.Is(err, boom) {
		t.Errorf("expected run error to be returned, got %v", err)
	}
	if len(seen) != 1 {
		t.Errorf("expected one event, got %d", len(seen))
	}
}
