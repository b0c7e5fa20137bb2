package bootstrap

import (
	"context"
	"fmt"

	"github.com/imamik/k8solo/internal/host"
	"github.com/imamik/k8solo/internal/sequencer"
	"github.com/imamik/k8solo/internal/util/prerequisites"
)

// Host units the prerequisites step enables.
const (
	unitContainerd = "containerd.service"
	unitKubelet    = "kubelet.service"
	unitISCSI      = "iscsid.service"
)

func (b *bootstrapper) kernelModules() []string {
	modules := []string{"overlay", "br_netfilter"}
	if b.cfg.Addons.Storage.Enabled {
		modules = append(modules, "iscsi_tcp")
	}
	return modules
}

// prepareHost checks the required host binaries, applies the OS settings kubeadm's preflight checks for and
// starts the container runtime and the kubelet.
func (b *bootstrapper) prepareHost(ctx context.Context) error {
	log := b.rc.Log.WithName(StepPrerequisites)
	tools := prerequisites.Check(prerequisites.HostTools(b.cfg.Addons.Storage.Enabled), b.rc.LookPath)
	if err := tools.Error(); err != nil {
		return sequencer.Precondition(err)
	}
	for _, r := range tools.Results {
		if r.Found {
			log.V(1).Info("found host tool", "tool", r.Tool.Name, "path", r.Path)
		}
	}

	tuner := host.NewTuner(b.rc.FS, b.rc.Runner, log)

	if err := tuner.DisableSwap(ctx); err != nil {
		return fmt.Errorf("failed to disable swap: %w", err)
	}
	if err := tuner.LoadModules(ctx, b.kernelModules()); err != nil {
		return fmt.Errorf("failed to load kernel modules: %w", err)
	}
	if err := tuner.ApplySysctls(ctx, host.KubernetesSysctls); err != nil {
		return fmt.Errorf("failed to apply sysctls: %w", err)
	}

	changed, err := tuner.ConfigureContainerd(ctx)
	if err != nil {
		return fmt.Errorf("failed to configure containerd: %w", err)
	}
	if err := b.rc.Services.EnableAndStart(ctx, unitContainerd); err != nil {
		return err
	}
	if changed {
		log.Info("restarting containerd to pick up its configuration")
		if err := b.rc.Services.Restart(ctx, unitContainerd); err != nil {
			return err
		}
	}

	units := []string{unitKubelet}
	if b.cfg.Addons.Storage.Enabled {
		units = append(units, unitISCSI)
	}
	for _, unit := range units {
		if err := b.rc.Services.EnableAndStart(ctx, unit); err != nil {
			return err
		}
	}
	log.Info("host prepared", "modules", b.kernelModules(), "units", append([]string{unitContainerd}, units...))
	return nil
}
