package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/k8solo/internal/sequencer"
)

// Step names. They double as marker keys, so renaming one makes a resumed
// run repeat the step.
const (
	StepNetwork            = "network"
	StepPrerequisites      = "prerequisites"
	StepControlPlane       = "k8s-init"
	StepNodeConfig         = "node-config"
	StepCNI                = "cni"
	StepLoadBalancer       = "load-balancer"
	StepLoadBalancerSettle = "load-balancer-webhook-settle"
	StepLoadBalancerPool   = "load-balancer-pool"
	StepIngress            = "ingress"
	StepStorage            = "storage"
	StepObjectStorage      = "object-storage"
	StepMonitoring         = "monitoring"
	StepManagement         = "management"
	StepSummary            = "summary"
)

// Steps returns the ordered step list for rc. Disabled add-ons are left out.
func Steps(rc *RunContext) []sequencer.Step {
	b := newBootstrapper(rc)
	addons := rc.Config.Addons

	steps := []sequencer.Step{
		{Name: StepNetwork, Action: b.verifyNetwork},
		{Name: StepPrerequisites, Action: b.prepareHost},
		{Name: StepControlPlane, Action: b.initControlPlane},
		{Name: StepNodeConfig, Action: b.configureNode},
		{Name: StepCNI, Action: b.installCNI},
	}
	if addons.LoadBalancer.Enabled {
		steps = append(steps,
			sequencer.Step{Name: StepLoadBalancer, Action: b.installLoadBalancer},
			sequencer.Delay(StepLoadBalancerSettle, addons.LoadBalancer.WebhookSettle),
			sequencer.Step{Name: StepLoadBalancerPool, Action: b.applyAddressPool},
		)
	}
	if addons.Ingress.Enabled {
		steps = append(steps, sequencer.Step{Name: StepIngress, Action: b.installIngress})
	}
	if addons.Storage.Enabled {
		steps = append(steps, sequencer.Step{Name: StepStorage, Action: b.installStorage})
	}
	if addons.ObjectStorage.Enabled {
		steps = append(steps, sequencer.Step{Name: StepObjectStorage, Action: b.installObjectStorage})
	}
	if addons.Monitoring.Enabled {
		steps = append(steps, sequencer.Step{Name: StepMonitoring, Action: b.installMonitoring})
	}
	if addons.Management.Enabled {
		steps = append(steps, sequencer.Step{Name: StepManagement, Action: b.installManagement})
	}
	return append(steps, sequencer.Step{Name: StepSummary, Action: b.writeSummary})
}

// Cleanup returns the action run after a fully successful pass. It removes
// every marker and the scratch directory; the kubeconfig, credentials and
// summary stay in place.
func Cleanup(rc *RunContext, store sequencer.MarkerStore) sequencer.Action {
	return func(_ context.Context) error {
		var errs []error
		if err := store.Clear(); err != nil {
			errs = append(errs, fmt.Errorf("failed to clear markers: %w", err))
		}
		if err := rc.FS.RemoveAll(rc.Config.Paths.ScratchDir); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove scratch dir: %w", err))
		}
		if err := errors.Join(errs...); err != nil {
			return err
		}
		rc.Log.Info("bootstrap state cleared", "stateDir", rc.Config.Paths.StateDir, "scratchDir", rc.Config.Paths.ScratchDir)
		return nil
	}
}
