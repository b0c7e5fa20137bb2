package handlers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/imamik/k8solo/internal/bootstrap"
	"github.com/imamik/k8solo/internal/sequencer"
)

func planSteps(opts GlobalOptions) ([]sequencer.StepStatus, string, error) {
	cfg, err := load(opts)
	if err != nil {
		return nil, "", err
	}
	rc := newRunContext(cfg, logr.Discard(), "")
	store := sequencer.NewFileStore(appFS, cfg.Paths.StateDir)
	statuses, err := sequencer.New(store).Plan(bootstrapSteps(rc))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read bootstrap state: %w", err)
	}
	return statuses, cfg.Paths.OutputDir, nil
}

// Status prints the completion state of every step and, once the bootstrap
// finished, the endpoint summary.
func Status(_ context.Context, opts GlobalOptions) error {
	statuses, outputDir, err := planSteps(opts)
	if err != nil {
		return err
	}
	renderSteps(stdout, "Bootstrap status", statuses, viewStatus, isTerminal())

	summary, err := readFileIfExists(filepath.Join(outputDir, bootstrap.SummaryText))
	if err != nil {
		return err
	}
	if len(summary) > 0 {
		_, _ = fmt.Fprintln(stdout)
		_, _ = stdout.Write(summary)
	}
	return nil
}

// Plan prints which steps the next run would skip and which it would run.
func Plan(_ context.Context, opts GlobalOptions) error {
	statuses, _, err := planSteps(opts)
	if err != nil {
		return err
	}
	renderSteps(stdout, "Bootstrap plan", statuses, viewPlan, isTerminal())
	return nil
}
