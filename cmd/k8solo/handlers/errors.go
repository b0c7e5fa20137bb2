package handlers

import (
	"errors"

	"github.com/imamik/k8solo/internal/sequencer"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitPrecondition = 2
	ExitUsage        = 3
)

// ConfigError reports an invalid configuration or command line.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// ExitCode maps a command error onto the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return ExitUsage
	}
	var stepErr *sequencer.StepError
	if errors.As(err, &stepErr) && stepErr.Kind == sequencer.KindPrecondition {
		return ExitPrecondition
	}
	return ExitFailure
}
