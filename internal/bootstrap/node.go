package bootstrap

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/imamik/k8solo/internal/k8s"
	"github.com/imamik/k8solo/internal/util/retry"
)

// Node metadata written by the node-config step.
const (
	LabelLonghornDefaultDisk   = "node.longhorn.io/create-default-disk"
	LabelIngressReady          = "ingress-ready"
	AnnotationBootstrapVersion = "k8solo.io/bootstrap-version"
)

func (b *bootstrapper) nodeLabels() map[string]string {
	labels := map[string]string{}
	if b.cfg.Addons.Storage.Enabled {
		labels[LabelLonghornDefaultDisk] = "true"
	}
	if b.cfg.Addons.Ingress.Enabled {
		labels[LabelIngressReady] = "true"
	}
	return labels
}

// configureNode lets workloads schedule on the single control-plane node
// and labels it for the add-ons.
func (b *bootstrapper) configureNode(ctx context.Context) error {
	log := b.rc.Log.WithName(StepNodeConfig)
	kube, err := b.kubeClient()
	if err != nil {
		return err
	}
	node := b.cfg.Node.Name

	// The node object appears once the kubelet registers, which can lag
	// behind the API server becoming ready.
	err = b.retry(ctx, log, func(ctx context.Context) error {
		return kube.RemoveNodeTaint(ctx, node, k8s.ControlPlaneTaint)
	})
	if err != nil {
		return err
	}

	if labels := b.nodeLabels(); len(labels) > 0 {
		if err := kube.LabelNode(ctx, node, labels); err != nil {
			return err
		}
	}
	if err := kube.AnnotateNode(ctx, node, map[string]string{AnnotationBootstrapVersion: b.rc.Version}); err != nil {
		return err
	}
	log.Info("node configured", "node", node, "labels", b.nodeLabels())
	return nil
}

// retry runs op with the configured attempts, for calls racing a component
// that is still coming up.
func (b *bootstrapper) retry(ctx context.Context, log logr.Logger, op func(ctx context.Context) error) error {
	return retry.Do(ctx, op,
		retry.WithMaxAttempts(b.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(b.timeouts.RetryInitialDelay),
		retry.WithMaxDelay(b.timeouts.PollInterval*6),
		retry.WithOnRetry(func(attempt int, err error) {
			log.Info("attempt failed, retrying", "attempt", attempt, "error", err.Error())
		}),
	)
}
