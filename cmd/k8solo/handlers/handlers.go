// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Collaborators are package variables so tests can
// replace them.
package handlers

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"

	"github.com/imamik/k8solo/internal/bootstrap"
	"github.com/imamik/k8solo/internal/config"
)

// GlobalOptions are the flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	// ConfigRequired is set when the config path was given explicitly, so a
	// missing file is an error instead of falling back to defaults.
	ConfigRequired bool
	Verbose        bool
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfig loads and validates the configuration.
	loadConfig = config.Load

	// newRunContext wires the bootstrap collaborators.
	newRunContext = bootstrap.NewRunContext

	// bootstrapSteps builds the step list.
	bootstrapSteps = bootstrap.Steps

	// appFS is where state, locks and logs live.
	appFS = afero.NewOsFs()

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	// isTerminal reports whether stdout is an interactive terminal.
	isTerminal = func() bool {
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}
)

// load reads the configuration, marking failures as configuration errors.
func load(opts GlobalOptions) (*config.Config, error) {
	cfg, err := loadConfig(opts.ConfigPath, opts.ConfigRequired)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	return cfg, nil
}
