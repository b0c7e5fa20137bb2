package bootstrap

import (
	"bytes"
	"context"
	"fmt"

	"sigs.k8s.io/yaml"

	"github.com/imamik/k8solo/internal/config"
	"github.com/imamik/k8solo/internal/helm"
	"github.com/imamik/k8solo/internal/k8s"
	"github.com/imamik/k8solo/internal/poll"
)

// Namespaces and workload names the add-on steps wait on.
const (
	namespaceKubeSystem = "kube-system"
	namespaceMetalLB    = "metallb-system"
	namespaceIngress    = "ingress-nginx"
	namespaceLonghorn   = "longhorn-system"
	namespaceMinIO      = "minio"
	namespaceMonitoring = "monitoring"
	namespacePortainer  = "portainer"

	ingressControllerService = "ingress-nginx-controller"
	portainerService         = "portainer"
)

// chartInstall describes one add-on release.
type chartInstall struct {
	addon     string
	release   string
	namespace string
	override  config.HelmChartConfig
	values    helm.Values
	set       []string
}

// installChart registers the add-on's repository once per run and converges
// its release.
func (b *bootstrapper) installChart(ctx context.Context, c chartInstall) error {
	installer, err := b.installer()
	if err != nil {
		return err
	}
	spec, err := helm.GetChartSpec(c.addon, helm.ChartOverride(c.override))
	if err != nil {
		return err
	}
	if !b.repos[spec.RepoName] {
		if err := installer.AddRepository(ctx, spec.RepoName, spec.Repository); err != nil {
			return fmt.Errorf("failed to add repository %s: %w", spec.RepoName, err)
		}
		b.repos[spec.RepoName] = true
	}

	b.rc.Log.Info("installing chart", "release", c.release, "namespace", c.namespace, "chart", spec.Ref(), "version", spec.Version)
	err = installer.InstallOrUpgrade(ctx, helm.Release{
		Name:      c.release,
		Namespace: c.namespace,
		Chart:     spec,
		Values:    c.values,
		Set:       c.set,
		Timeout:   b.timeouts.Helm,
	})
	if err != nil {
		return fmt.Errorf("failed to install %s: %w", c.release, err)
	}
	return nil
}

// waitDeployment and waitDaemonSet are the rollout waits shared by the add-on
// steps.
func (b *bootstrapper) waitDeployment(ctx context.Context, kube k8s.Client, namespace, name string, policy poll.Policy) error {
	timeout := b.timeouts.Rollout
	if policy == poll.BestEffort {
		timeout = b.timeouts.BestEffort
	}
	return b.await(ctx, "Deployment "+namespace+"/"+name, kube.DeploymentReady(namespace, name), timeout, policy)
}

func (b *bootstrapper) waitDaemonSet(ctx context.Context, kube k8s.Client, namespace, name string, policy poll.Policy) error {
	timeout := b.timeouts.Rollout
	if policy == poll.BestEffort {
		timeout = b.timeouts.BestEffort
	}
	return b.await(ctx, "DaemonSet "+namespace+"/"+name, kube.DaemonSetReady(namespace, name), timeout, policy)
}

// privilegedNamespace applies a namespace whose pods may run privileged.
func (b *bootstrapper) privilegedNamespace(ctx context.Context, kube k8s.Client, name string) error {
	manifest, err := renderManifests(map[string]any{
		"apiVersion": "v1",
		"kind":       "Namespace",
		"metadata": map[string]any{
			"name": name,
			"labels": map[string]any{
				"pod-security.kubernetes.io/enforce": "privileged",
				"pod-security.kubernetes.io/audit":   "privileged",
				"pod-security.kubernetes.io/warn":    "privileged",
			},
		},
	})
	if err != nil {
		return err
	}
	if err := kube.ApplyManifests(ctx, manifest, k8s.FieldManager); err != nil {
		return fmt.Errorf("failed to create namespace %s: %w", name, err)
	}
	return nil
}

// renderManifests renders objects as one multi-document YAML stream.
func renderManifests(objects ...map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	for i, obj := range objects {
		out, err := yaml.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("failed to render manifest: %w", err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(out)
	}
	return buf.Bytes(), nil
}

// serviceType exposes add-on services through MetalLB when it is installed.
func (b *bootstrapper) serviceType() string {
	if b.cfg.Addons.LoadBalancer.Enabled {
		return "LoadBalancer"
	}
	return "NodePort"
}

func buildCiliumValues(cfg *config.Config) helm.Values {
	values := helm.Values{
		"ipam": helm.Values{
			"mode": "kubernetes",
		},
		"operator": helm.Values{
			"replicas": 1,
		},
		"kubeProxyReplacement": cfg.Addons.CNI.KubeProxyReplacement,
	}
	if cfg.Addons.CNI.KubeProxyReplacement {
		// Without kube-proxy there is no service VIP to reach the API
		// server through.
		values["k8sServiceHost"] = cfg.Node.IP
		values["k8sServicePort"] = cfg.Kubernetes.APIPort
	}
	return values
}

// installCNI installs Cilium and waits for pod networking, which CoreDNS
// needs before it turns ready.
func (b *bootstrapper) installCNI(ctx context.Context) error {
	kube, err := b.kubeClient()
	if err != nil {
		return err
	}
	err = b.installChart(ctx, chartInstall{
		addon:     "cilium",
		release:   "cilium",
		namespace: namespaceKubeSystem,
		override:  b.cfg.Addons.CNI.Helm,
		values:    buildCiliumValues(b.cfg),
		set:       b.cfg.Addons.CNI.Set,
	})
	if err != nil {
		return err
	}
	if err := b.waitDaemonSet(ctx, kube, namespaceKubeSystem, "cilium", poll.Required); err != nil {
		return err
	}
	return b.waitDeployment(ctx, kube, namespaceKubeSystem, "coredns", poll.Required)
}

func (b *bootstrapper) installLoadBalancer(ctx context.Context) error {
	kube, err := b.kubeClient()
	if err != nil {
		return err
	}
	if err := b.privilegedNamespace(ctx, kube, namespaceMetalLB); err != nil {
		return err
	}
	err = b.installChart(ctx, chartInstall{
		addon:     "metallb",
		release:   "metallb",
		namespace: namespaceMetalLB,
		override:  b.cfg.Addons.LoadBalancer.Helm,
		values: helm.Values{
			"speaker": helm.Values{
				"frr": helm.Values{"enabled": false},
			},
		},
		set: b.cfg.Addons.LoadBalancer.Set,
	})
	if err != nil {
		return err
	}
	if err := b.waitDeployment(ctx, kube, namespaceMetalLB, "metallb-controller", poll.Required); err != nil {
		return err
	}
	return b.waitDaemonSet(ctx, kube, namespaceMetalLB, "metallb-speaker", poll.Required)
}

// addressPoolManifests returns the MetalLB pool and its L2 advertisement.
func addressPoolManifests(pool string) ([]byte, error) {
	first, last, err := config.ParseAddressPool(pool)
	if err != nil {
		return nil, err
	}
	return renderManifests(
		map[string]any{
			"apiVersion": "metallb.io/v1beta1",
			"kind":       "IPAddressPool",
			"metadata": map[string]any{
				"name":      "k8solo-pool",
				"namespace": namespaceMetalLB,
			},
			"spec": map[string]any{
				"addresses": []any{first.String() + "-" + last.String()},
			},
		},
		map[string]any{
			"apiVersion": "metallb.io/v1beta1",
			"kind":       "L2Advertisement",
			"metadata": map[string]any{
				"name":      "k8solo-l2",
				"namespace": namespaceMetalLB,
			},
			"spec": map[string]any{
				"ipAddressPools": []any{"k8solo-pool"},
			},
		},
	)
}

// applyAddressPool applies the pool. The MetalLB kinds are only known to the
// REST mapper after a discovery refresh, and the webhook may still reject
// writes for a while after the settle delay.
func (b *bootstrapper) applyAddressPool(ctx context.Context) error {
	log := b.rc.Log.WithName(StepLoadBalancerPool)
	kube, err := b.kubeClient()
	if err != nil {
		return err
	}
	manifests, err := addressPoolManifests(b.cfg.Addons.LoadBalancer.AddressPool)
	if err != nil {
		return err
	}

	err = b.retry(ctx, log, func(ctx context.Context) error {
		if err := kube.RefreshDiscovery(ctx); err != nil {
			return err
		}
		return kube.ApplyManifests(ctx, manifests, k8s.FieldManager)
	})
	if err != nil {
		return fmt.Errorf("failed to apply address pool: %w", err)
	}
	log.Info("address pool applied", "pool", b.cfg.Addons.LoadBalancer.AddressPool)
	return nil
}

func (b *bootstrapper) installIngress(ctx context.Context) error {
	kube, err := b.kubeClient()
	if err != nil {
		return err
	}
	err = b.installChart(ctx, chartInstall{
		addon:     "ingress-nginx",
		release:   "ingress-nginx",
		namespace: namespaceIngress,
		override:  b.cfg.Addons.Ingress.Helm,
		values: helm.Values{
			"controller": helm.Values{
				"replicaCount": 1,
				"service": helm.Values{
					"type": b.serviceType(),
				},
				"ingressClassResource": helm.Values{
					"default": true,
				},
				"watchIngressWithoutClass": true,
			},
		},
		set: b.cfg.Addons.Ingress.Set,
	})
	if err != nil {
		return err
	}

	// A deleted hook job already succeeded.
	job := b.await(ctx, "Job ingress-nginx/ingress-nginx-admission-create",
		kube.JobComplete(namespaceIngress, "ingress-nginx-admission-create"), b.timeouts.BestEffort, poll.BestEffort)
	if job != nil {
		return job
	}
	return b.waitDeployment(ctx, kube, namespaceIngress, "ingress-nginx-controller", poll.Required)
}

func (b *bootstrapper) installMonitoring(ctx context.Context) error {
	kube, err := b.kubeClient()
	if err != nil {
		return err
	}
	password, err := b.ensurePassword(b.passwordFile(grafanaPasswordFile))
	if err != nil {
		return err
	}

	mon := b.cfg.Addons.Monitoring
	grafana := helm.Values{
		"adminPassword": password,
	}
	if mon.GrafanaHost != "" {
		grafana["ingress"] = helm.Values{
			"enabled":          true,
			"ingressClassName": "nginx",
			"hosts":            []any{mon.GrafanaHost},
		}
	}
	values := helm.Values{
		"grafana": grafana,
		"prometheus": helm.Values{
			"prometheusSpec": helm.Values{
				"retention": "7d",
				"serviceMonitorSelectorNilUsesHelmValues": false,
				"podMonitorSelectorNilUsesHelmValues":     false,
			},
		},
		// kubeadm binds these to localhost; scraping them only produces
		// permanently firing alerts.
		"kubeControllerManager": helm.Values{"enabled": false},
		"kubeScheduler":         helm.Values{"enabled": false},
		"kubeEtcd":              helm.Values{"enabled": false},
		"kubeProxy":             helm.Values{"enabled": !b.cfg.Addons.CNI.KubeProxyReplacement},
	}

	err = b.installChart(ctx, chartInstall{
		addon:     "kube-prometheus-stack",
		release:   "kube-prometheus-stack",
		namespace: namespaceMonitoring,
		override:  mon.Helm,
		values:    values,
		set:       mon.Set,
	})
	if err != nil {
		return err
	}
	if err := b.waitDeployment(ctx, kube, namespaceMonitoring, "kube-prometheus-stack-operator", poll.Required); err != nil {
		return err
	}
	return b.waitDeployment(ctx, kube, namespaceMonitoring, "kube-prometheus-stack-grafana", poll.Required)
}

func (b *bootstrapper) installManagement(ctx context.Context) error {
	kube, err := b.kubeClient()
	if err != nil {
		return err
	}
	err = b.installChart(ctx, chartInstall{
		addon:     "portainer",
		release:   "portainer",
		namespace: namespacePortainer,
		override:  b.cfg.Addons.Management.Helm,
		values: helm.Values{
			"service": helm.Values{
				"type": b.serviceType(),
			},
			"persistence": helm.Values{
				"size": "2Gi",
			},
		},
		set: b.cfg.Addons.Management.Set,
	})
	if err != nil {
		return err
	}
	return b.waitDeployment(ctx, kube, namespacePortainer, "portainer", poll.Required)
}
