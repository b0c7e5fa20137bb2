package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/k8solo/cmd/k8solo/handlers"
)

// Reset returns the command that removes completion markers.
func Reset(opts *handlers.GlobalOptions) *cobra.Command {
	var step string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove completion markers so steps run again",
		Long: `Remove completion markers so the next run repeats steps.

Only the markers are removed; nothing on the host or in the cluster is
undone. Use --step to repeat a single step.

Examples:
  # Forget all progress
  k8solo reset

  # Re-run only the storage step on the next run
  k8solo reset --step storage`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Reset(cmd.Context(), *opts, step)
		},
	}

	cmd.Flags().StringVar(&step, "step", "", "Remove only the marker of this step")

	return cmd
}
