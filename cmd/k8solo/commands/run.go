package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/k8solo/cmd/k8solo/handlers"
)

// Run returns the command that executes the bootstrap.
//
// Optional flags:
//
//	--dry-run: Log the steps that would run without running them
//	--keep-markers: Keep completion markers after a successful run
//	--metrics-textfile: Write step metrics for the node-exporter textfile collector
//	--plain: Print log lines instead of the progress view on terminals
//
// Environment variables:
//
//	K8SOLO_NODE_IP, K8SOLO_INTERFACE, ...: override configuration values
//	K8SOLO_TIMEOUT_*: override wait timeouts
func Run(opts *handlers.GlobalOptions) *cobra.Command {
	var runOpts handlers.RunOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Bootstrap the node, resuming after the last completed step",
		Long: `Bootstrap this node into a single-node Kubernetes cluster.

Every step writes a marker to the state directory when it completes. If a
step fails, fix the cause and run the command again: completed steps are
skipped and the failed step is retried. After a fully successful run the
markers are removed, unless --keep-markers is given.

Exit codes:
  0  success
  1  a step failed
  2  a precondition (network verification) failed; nothing was changed
  3  invalid configuration or command line

Examples:
  # Bootstrap using k8solo.yaml in the current directory
  k8solo run

  # Show what would run
  k8solo run --dry-run

  # Use a specific config file and export metrics
  k8solo run -c /etc/k8solo/k8solo.yaml --metrics-textfile /var/lib/node_exporter/k8solo.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runOpts.Version = version
			return handlers.Run(cmd.Context(), *opts, runOpts)
		},
	}

	cmd.Flags().BoolVar(&runOpts.DryRun, "dry-run", false, "Log the steps that would run without running them")
	cmd.Flags().BoolVar(&runOpts.KeepMarkers, "keep-markers", false, "Keep completion markers after a successful run")
	cmd.Flags().BoolVar(&runOpts.Plain, "plain", false, "Print log lines instead of the progress view on terminals")
	cmd.Flags().StringVar(&runOpts.MetricsTextfile, "metrics-textfile", "", "Write step metrics to this node-exporter textfile")

	return cmd
}
