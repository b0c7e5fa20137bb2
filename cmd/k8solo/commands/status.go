package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/k8solo/cmd/k8solo/handlers"
)

// Status returns the command showing the completion state of every step.
func Status(opts *handlers.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which bootstrap steps are completed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Status(cmd.Context(), *opts)
		},
	}
}

// Plan returns the command showing what the next run would do.
func Plan(opts *handlers.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show which steps the next run would skip or run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Plan(cmd.Context(), *opts)
		},
	}
}
