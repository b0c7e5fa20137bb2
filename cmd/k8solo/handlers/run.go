package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/k8solo/internal/bootstrap"
	"github.com/imamik/k8solo/internal/sequencer"
	"github.com/imamik/k8solo/internal/ui/tui"
)

// RunOptions are the flags of the run command.
type RunOptions struct {
	Version string
	DryRun  bool
	// KeepMarkers skips the cleanup pseudo-step, leaving the markers in
	// place so a later run is a no-op.
	KeepMarkers     bool
	MetricsTextfile string
	// Plain disables the interactive progress view on terminals.
	Plain bool
}

var (
	// writeTextfile writes the registry in node-exporter textfile format.
	writeTextfile = prometheus.WriteToTextfile

	// runTUI shows the progress view while fn executes.
	runTUI = func(ctx context.Context, title string, statuses []sequencer.StepStatus, fn tui.RunFunc) error {
		return tui.Run(ctx, title, statuses, fn, tea.WithContext(ctx))
	}
)

// Run executes the bootstrap, resuming after the last completed step.
func Run(ctx context.Context, opts GlobalOptions, runOpts RunOptions) error {
	cfg, err := load(opts)
	if err != nil {
		return err
	}

	logFile, err := openLogFile(cfg.Paths.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = logFile.Close() }()

	interactive := !runOpts.Plain && !runOpts.DryRun && isTerminal()
	var logOut io.Writer = logFile
	if !interactive {
		logOut = io.MultiWriter(stderr, logFile)
	}
	log := newLogger(logOut, opts.Verbose)

	release, err := acquireLock(cfg.Paths.StateDir)
	if err != nil {
		return err
	}
	defer release()

	rc := newRunContext(cfg, log, runOpts.Version)
	store := sequencer.NewFileStore(appFS, cfg.Paths.StateDir)
	registry := prometheus.NewRegistry()

	seqOpts := []sequencer.Option{
		sequencer.WithLogger(log.WithName("sequencer")),
		sequencer.WithMetrics(sequencer.NewMetrics(registry)),
		sequencer.WithDryRun(runOpts.DryRun),
	}
	if !runOpts.KeepMarkers {
		seqOpts = append(seqOpts, sequencer.WithCleanup(bootstrap.Cleanup(rc, store)))
	}

	steps := bootstrapSteps(rc)
	execute := func(ctx context.Context, progress func(sequencer.Event)) error {
		withProgress := seqOpts
		if progress != nil {
			withProgress = append(withProgress, sequencer.WithProgress(progress))
		}
		return sequencer.New(store, withProgress...).Run(ctx, steps)
	}

	log.Info("starting bootstrap", "version", runOpts.Version, "node", cfg.Node.Name, "stateDir", cfg.Paths.StateDir)
	var runErr error
	if interactive {
		statuses, err := sequencer.New(store).Plan(steps)
		if err != nil {
			return fmt.Errorf("failed to read bootstrap state: %w", err)
		}
		runErr = runTUI(ctx, cfg.Node.Name, statuses, execute)
	} else {
		runErr = execute(ctx, nil)
	}

	if runOpts.MetricsTextfile != "" && !runOpts.DryRun {
		if err := writeTextfile(runOpts.MetricsTextfile, registry); err != nil {
			log.Error(err, "failed to write metrics textfile", "path", runOpts.MetricsTextfile)
		}
	}

	if runErr != nil {
		printFailureHeader(stderr, runErr, cfg.Paths.LogFile)
		return runErr
	}
	if !runOpts.DryRun {
		printSuccess(stdout, filepath.Join(cfg.Paths.OutputDir, bootstrap.SummaryText), log)
	}
	return nil
}

func printFailureHeader(w io.Writer, err error, logFile string) {
	const rule = "=================================================================="
	var stepErr *sequencer.StepError

	_, _ = fmt.Fprintln(w, rule)
	if errors.As(err, &stepErr) {
		where := fmt.Sprintf("step %d: %s", stepErr.Index, stepErr.Step)
		if stepErr.Step == sequencer.CleanupStep {
			where = "cleanup"
		}
		_, _ = fmt.Fprintf(w, " BOOTSTRAP FAILED at %s (%s)\n", where, stepErr.Kind)
	} else {
		_, _ = fmt.Fprintln(w, " BOOTSTRAP FAILED")
	}
	_, _ = fmt.Fprintln(w, rule)
	_, _ = fmt.Fprintf(w, " %v\n\n", err)
	_, _ = fmt.Fprintf(w, " Full log: %s\n", logFile)
	_, _ = fmt.Fprintln(w, " Fix the cause and re-run `k8solo run`; completed steps are skipped.")
}

func printSuccess(w io.Writer, summaryPath string, log logr.Logger) {
	data, err := readFileIfExists(summaryPath)
	if err != nil {
		log.Error(err, "failed to read summary", "path", summaryPath)
		return
	}
	if len(data) > 0 {
		_, _ = w.Write(data)
		return
	}
	_, _ = fmt.Fprintln(w, "Bootstrap complete.")
}
