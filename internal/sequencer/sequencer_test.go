package sequencer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/imamik/k8solo/internal/poll"
)

// recorder builds steps that append their name to calls when invoked.
type recorder struct {
	calls []string
}

func (r *recorder) step(name string, err error) Step {
	return Step{
		Name: name,
		Action: func(context.Context) error {
			r.calls = append(r.calls, name)
			return err
		},
	}
}

func newTestStore() *FileStore {
	return NewFileStore(afero.NewMemMapFs(), "/var/lib/k8solo/state")
}

func TestRun_SecondRunPerformsNoActions(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	rec := &recorder{}
	steps := []Step{rec.step("a", nil), rec.step("b", nil), rec.step("c", nil)}

	require.NoError(t, New(store).Run(context.Background(), steps))
	assert.Equal(t, []string{"a", "b", "c"}, rec.calls)

	rec.calls = nil
	require.NoError(t, New(store).Run(context.Background(), steps))
	assert.Empty(t, rec.calls)
}

func TestRun_ResumesAfterFailure(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	rec := &recorder{}
	boom := errors.New("chart install failed")

	failing := []Step{rec.step("a", nil), rec.step("b", nil), rec.step("c", boom), rec.step("d", nil)}
	err := New(store).Run(context.Background(), failing)

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "c", se.Step)
	assert.Equal(t, 3, se.Index)
	assert.Equal(t, KindFatal, se.Kind)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b", "c"}, rec.calls, "steps after the failure must not run")

	has, err := store.Has("c")
	require.NoError(t, err)
	assert.False(t, has, "failed step must not be marked")

	rec.calls = nil
	fixed := []Step{rec.step("a", nil), rec.step("b", nil), rec.step("c", nil), rec.step("d", nil)}
	require.NoError(t, New(store).Run(context.Background(), fixed))
	assert.Equal(t, []string{"c", "d"}, rec.calls)
}

func TestRun_ScenarioWithPremarkedNetwork(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	require.NoError(t, store.Mark("network", time.Now()))

	rec := &recorder{}
	steps := []Step{rec.step("network", nil), rec.step("prerequisites", nil), rec.step("k8s-init", nil)}
	require.NoError(t, New(store).Run(context.Background(), steps))

	assert.Equal(t, []string{"prerequisites", "k8s-init"}, rec.calls)
	for _, name := range []string{"network", "prerequisites", "k8s-init"} {
		has, err := store.Has(name)
		require.NoError(t, err)
		assert.True(t, has, name)
	}
}

func TestRun_ErrorKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "plain error", err: errors.New("boom"), want: KindFatal},
		{name: "precondition", err: Precondition(errors.New("no route to registry")), want: KindPrecondition},
		{name: "wrapped precondition", err: fmt.Errorf("network: %w", Precondition(errors.New("eth0 missing"))), want: KindPrecondition},
		{name: "required wait timeout", err: fmt.Errorf("cilium: %w", &poll.TimeoutError{Description: "cilium ready"}), want: KindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := &recorder{}
			err := New(NewMemoryStore()).Run(context.Background(), []Step{rec.step("only", tt.err)})

			var se *StepError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.want, se.Kind)
			assert.Equal(t, 1, se.Index)
		})
	}
}

func TestRun_CleanupGating(t *testing.T) {
	t.Parallel()

	t.Run("runs after full success", func(t *testing.T) {
		t.Parallel()
		store := newTestStore()
		rec := &recorder{}
		cleaned := 0
		seq := New(store, WithCleanup(func(context.Context) error {
			cleaned++
			return store.Clear()
		}))

		require.NoError(t, seq.Run(context.Background(), []Step{rec.step("a", nil), rec.step("b", nil)}))
		assert.Equal(t, 1, cleaned)

		markers, err := store.List()
		require.NoError(t, err)
		assert.Empty(t, markers)
	})

	t.Run("never runs after a failure", func(t *testing.T) {
		t.Parallel()
		rec := &recorder{}
		cleaned := 0
		seq := New(NewMemoryStore(), WithCleanup(func(context.Context) error {
			cleaned++
			return nil
		}))

		err := seq.Run(context.Background(), []Step{rec.step("a", errors.New("boom")), rec.step("b", nil)})
		require.Error(t, err)
		assert.Equal(t, 0, cleaned)
	})

	t.Run("runs when every step was skipped", func(t *testing.T) {
		t.Parallel()
		store := NewMemoryStore()
		require.NoError(t, store.Mark("a", time.Now()))
		cleaned := 0
		seq := New(store, WithCleanup(func(context.Context) error {
			cleaned++
			return nil
		}))

		rec := &recorder{}
		require.NoError(t, seq.Run(context.Background(), []Step{rec.step("a", nil)}))
		assert.Empty(t, rec.calls)
		assert.Equal(t, 1, cleaned)
	})

	t.Run("failure is reported as cleanup step", func(t *testing.T) {
		t.Parallel()
		seq := New(NewMemoryStore(), WithCleanup(func(context.Context) error {
			return errors.New("scratch dir busy")
		}))

		err := seq.Run(context.Background(), []Step{(&recorder{}).step("a", nil)})
		var se *StepError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, CleanupStep, se.Step)
		assert.Equal(t, KindFatal, se.Kind)
	})
}

func TestRun_RejectsInvalidStepLists(t *testing.T) {
	t.Parallel()

	noop := func(context.Context) error { return nil }
	tests := []struct {
		name    string
		steps   []Step
		wantErr string
	}{
		{name: "duplicate", steps: []Step{{Name: "a", Action: noop}, {Name: "a", Action: noop}}, wantErr: "duplicate"},
		{name: "empty name", steps: []Step{{Name: "", Action: noop}}, wantErr: "invalid name"},
		{name: "path separator", steps: []Step{{Name: "../etc", Action: noop}}, wantErr: "invalid name"},
		{name: "reserved", steps: []Step{{Name: CleanupStep, Action: noop}}, wantErr: "reserved"},
		{name: "nil action", steps: []Step{{Name: "a"}}, wantErr: "no action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := New(NewMemoryStore()).Run(context.Background(), tt.steps)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var se *StepError
			assert.False(t, errors.As(err, &se), "validation errors are not step failures")
		})
	}
}

func TestRun_DryRunDoesNothing(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	rec := &recorder{}
	cleaned := false
	seq := New(store, WithDryRun(true), WithCleanup(func(context.Context) error {
		cleaned = true
		return nil
	}))

	require.NoError(t, seq.Run(context.Background(), []Step{rec.step("a", nil), rec.step("b", nil)}))
	assert.Empty(t, rec.calls)
	assert.False(t, cleaned)

	markers, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, markers)
}

func TestRun_CancelledContextStopsBeforeNextStep(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls []string
	steps := []Step{
		{Name: "a", Action: func(context.Context) error {
			calls = append(calls, "a")
			cancel()
			return nil
		}},
		{Name: "b", Action: func(context.Context) error {
			calls = append(calls, "b")
			return nil
		}},
	}

	store := NewMemoryStore()
	err := New(store).Run(ctx, steps)

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "b", se.Step)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a"}, calls)

	has, _ := store.Has("a")
	assert.True(t, has, "a completed before cancellation and keeps its marker")
}

type failingMarkStore struct {
	*MemoryStore
}

func (failingMarkStore) Mark(string, time.Time) error { return errors.New("disk full") }

func TestRun_MarkerWriteFailureFailsStep(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	err := New(failingMarkStore{NewMemoryStore()}).Run(context.Background(), []Step{rec.step("a", nil), rec.step("b", nil)})

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "a", se.Step)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, []string{"a"}, rec.calls)
}

func TestRun_MarkerTimestampsUseClock(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore()
	seq := New(store, WithClock(clocktesting.NewFakePassiveClock(now)))

	require.NoError(t, seq.Run(context.Background(), []Step{(&recorder{}).step("a", nil)}))

	markers, err := store.List()
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, "a", markers[0].Step)
	assert.True(t, markers[0].CompletedAt.Equal(now))
}

func TestRun_Metrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	store := NewMemoryStore()
	require.NoError(t, store.Mark("a", time.Now()))

	rec := &recorder{}
	err := New(store, WithMetrics(m)).Run(context.Background(), []Step{
		rec.step("a", nil),
		rec.step("b", nil),
		rec.step("c", errors.New("boom")),
	})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.stepRuns.WithLabelValues("a", resultSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stepRuns.WithLabelValues("b", resultCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stepRuns.WithLabelValues("c", resultFailed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.lastSuccess))

	expected := `
# HELP k8solo_bootstrap_last_success_timestamp_seconds Unix time of the last fully successful bootstrap pass
# TYPE k8solo_bootstrap_last_success_timestamp_seconds gauge
k8solo_bootstrap_last_success_timestamp_seconds 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "k8solo_bootstrap_last_success_timestamp_seconds"))
}

func TestRun_Progress(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	require.NoError(t, store.Mark("a", time.Now()))

	var events []Event
	rec := &recorder{}
	seq := New(store,
		WithProgress(func(e Event) { events = append(events, e) }),
		WithCleanup(func(context.Context) error { return nil }),
	)
	require.NoError(t, seq.Run(context.Background(), []Step{rec.step("a", nil), rec.step("b", nil)}))

	got := make([]string, 0, len(events))
	for _, e := range events {
		got = append(got, fmt.Sprintf("%d/%d %s %s", e.Index, e.Total, e.Step, e.State))
	}
	assert.Equal(t, []string{
		"1/2 a skipped",
		"2/2 b running",
		"2/2 b completed",
		"0/2 cleanup running",
		"0/2 cleanup completed",
	}, got)

	events = nil
	err := New(NewMemoryStore(), WithProgress(func(e Event) { events = append(events, e) })).
		Run(context.Background(), []Step{rec.step("c", errors.New("boom"))})
	require.Error(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, StateFailed, events[1].State)
	assert.EqualError(t, events[1].Err, "boom")

	events = nil
	require.NoError(t, New(NewMemoryStore(), WithDryRun(true), WithProgress(func(e Event) { events = append(events, e) })).
		Run(context.Background(), []Step{rec.step("d", nil)}))
	assert.Empty(t, events)
}

func TestPlan(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Mark("network", at))

	rec := &recorder{}
	steps := []Step{rec.step("network", nil), rec.step("prerequisites", nil)}
	statuses, err := New(store).Plan(steps)
	require.NoError(t, err)

	require.Len(t, statuses, 2)
	assert.Equal(t, StepStatus{Name: "network", Completed: true, CompletedAt: at}, statuses[0])
	assert.Equal(t, "prerequisites", statuses[1].Name)
	assert.False(t, statuses[1].Completed)
	assert.Empty(t, rec.calls)
}

func TestDelay(t *testing.T) {
	t.Parallel()

	step := Delay("load-balancer-webhook-settle", 10*time.Millisecond)
	assert.Equal(t, "load-balancer-webhook-settle", step.Name)

	begin := time.Now()
	require.NoError(t, step.Action(context.Background()))
	assert.GreaterOrEqual(t, time.Since(begin), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Delay("settle", time.Hour).Action(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
