// Package main is the entry point for the k8solo CLI.
//
// k8solo bootstraps a single-node Kubernetes cluster with kubeadm and
// installs its add-ons. The bootstrap is a sequence of steps; every
// completed step leaves a marker, so an interrupted or failed run is
// resumed by running it again.
//
// Commands: run, status, plan, reset, version.
//
// For detailed usage information, run:
//
//	k8solo --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/k8solo/cmd/k8solo/commands"
	"github.com/imamik/k8solo/cmd/k8solo/handlers"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(handlers.ExitCode(err))
}
