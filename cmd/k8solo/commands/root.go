// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/k8solo/cmd/k8solo/handlers"
)

// DefaultConfigPath is read when --config is not given. It may be absent.
const DefaultConfigPath = "k8solo.yaml"

// Root returns the root command for the k8solo CLI.
func Root() *cobra.Command {
	opts := &handlers.GlobalOptions{}

	cmd := &cobra.Command{
		Use:           "k8solo",
		Short:         "Bootstrap a single-node Kubernetes cluster",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.ConfigRequired = cmd.Flags().Changed("config")
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &handlers.ConfigError{Err: err}
	})

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", DefaultConfigPath, "Path to configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(Run(opts))
	cmd.AddCommand(Status(opts))
	cmd.AddCommand(Plan(opts))
	cmd.AddCommand(Reset(opts))
	cmd.AddCommand(Version())

	return cmd
}
