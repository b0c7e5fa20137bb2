package handlers

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/imamik/k8solo/internal/sequencer"
)

// Reset removes completion markers so the next run repeats steps. With step
// set, only that step's marker is removed. Nothing on the host or in the
// cluster is undone.
func Reset(_ context.Context, opts GlobalOptions, step string) error {
	cfg, err := load(opts)
	if err != nil {
		return err
	}
	release, err := acquireLock(cfg.Paths.StateDir)
	if err != nil {
		return err
	}
	defer release()

	store := sequencer.NewFileStore(appFS, cfg.Paths.StateDir)
	if step == "" {
		if err := store.Clear(); err != nil {
			return fmt.Errorf("failed to clear markers: %w", err)
		}
		_, _ = fmt.Fprintf(stdout, "All markers removed from %s\n", store.Dir())
		return nil
	}

	known := false
	for _, s := range bootstrapSteps(newRunContext(cfg, logr.Discard(), "")) {
		if s.Name == step {
			known = true
			break
		}
	}
	if !known {
		return &ConfigError{Err: fmt.Errorf("unknown step %q", step)}
	}
	if err := store.Remove(step); err != nil {
		return fmt.Errorf("failed to remove marker: %w", err)
	}
	_, _ = fmt.Fprintf(stdout, "Marker for %s removed; the next run repeats that step\n", step)
	return nil
}
