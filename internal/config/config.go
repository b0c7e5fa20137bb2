package config

import "time"

// Config is the complete bootstrap configuration of one node.
type Config struct {
	Node       NodeConfig       `yaml:"node"`
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
	Network    NetworkConfig    `yaml:"network"`
	Paths      PathsConfig      `yaml:"paths"`
	Addons     AddonsConfig     `yaml:"addons"`

	Timeouts *Timeouts `yaml:"-"`
}

// NodeConfig identifies the host being bootstrapped.
type NodeConfig struct {
	// Name defaults to the lowercased hostname.
	Name      string `yaml:"name"`
	IP        string `yaml:"ip"`
	Interface string `yaml:"interface"`
}

// KubernetesConfig drives the kubeadm configuration.
type KubernetesConfig struct {
	Version     string `yaml:"version"`
	PodCIDR     string `yaml:"pod_cidr"`
	ServiceCIDR string `yaml:"service_cidr"`
	CRISocket   string `yaml:"cri_socket"`
	APIPort     int    `yaml:"api_port"`
}

// NetworkConfig lists the host:port endpoints that must be reachable before
// anything is changed on the host.
type NetworkConfig struct {
	Probes []string `yaml:"probes"`
}

// PathsConfig holds every location k8solo reads or writes.
type PathsConfig struct {
	StateDir   string `yaml:"state_dir"`
	ScratchDir string `yaml:"scratch_dir"`
	OutputDir  string `yaml:"output_dir"`
	Kubeconfig string `yaml:"kubeconfig"`
	HelmHome   string `yaml:"helm_home"`
	LogFile    string `yaml:"log_file"`
}

// HelmChartConfig overrides the pinned chart of an add-on.
type HelmChartConfig struct {
	Repository string `yaml:"repository,omitempty"`
	Chart      string `yaml:"chart,omitempty"`
	Version    string `yaml:"version,omitempty"`
}

// AddonConfig holds the settings shared by every add-on.
type AddonConfig struct {
	Enabled bool            `yaml:"enabled"`
	Helm    HelmChartConfig `yaml:"helm"`
	// Set holds extra `--set` style chart overrides.
	Set []string `yaml:"set"`
}

// AddonsConfig configures the add-ons installed after the control plane.
type AddonsConfig struct {
	CNI           CNIConfig           `yaml:"cni"`
	LoadBalancer  LoadBalancerConfig  `yaml:"load_balancer"`
	Ingress       AddonConfig         `yaml:"ingress"`
	Storage       StorageConfig       `yaml:"storage"`
	ObjectStorage ObjectStorageConfig `yaml:"object_storage"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Management    AddonConfig         `yaml:"management"`
}

// CNIConfig configures Cilium. The CNI cannot be disabled.
type CNIConfig struct {
	Helm                 HelmChartConfig `yaml:"helm"`
	Set                  []string        `yaml:"set"`
	KubeProxyReplacement bool            `yaml:"kube_proxy_replacement"`
}

// LoadBalancerConfig configures MetalLB in L2 mode.
type LoadBalancerConfig struct {
	AddonConfig `yaml:",inline"`
	// AddressPool is a CIDR or a first-last range on the node's LAN.
	AddressPool string `yaml:"address_pool"`
	// WebhookSettle is the pause between the controller becoming ready and
	// its admission webhook accepting pool objects.
	WebhookSettle time.Duration `yaml:"webhook_settle"`
}

// StorageConfig configures Longhorn.
type StorageConfig struct {
	AddonConfig  `yaml:",inline"`
	ReplicaCount int `yaml:"replica_count"`
	// UIHost exposes the Longhorn UI through the ingress with basic auth
	// when set.
	UIHost string `yaml:"ui_host"`
	UIUser string `yaml:"ui_user"`
}

// ObjectStorageConfig configures MinIO.
type ObjectStorageConfig struct {
	AddonConfig `yaml:",inline"`
	RootUser    string   `yaml:"root_user"`
	Region      string   `yaml:"region"`
	Size        string   `yaml:"size"`
	Buckets     []string `yaml:"buckets"`
}

// MonitoringConfig configures kube-prometheus-stack.
type MonitoringConfig struct {
	AddonConfig `yaml:",inline"`
	GrafanaHost string `yaml:"grafana_host"`
}

// Default returns the configuration used for every field the file and the
// environment leave unset.
func Default() *Config {
	enabled := AddonConfig{Enabled: true}
	return &Config{
		Kubernetes: KubernetesConfig{
			Version:     "v1.31.4",
			PodCIDR:     "10.244.0.0/16",
			ServiceCIDR: "10.96.0.0/12",
			CRISocket:   "unix:///run/containerd/containerd.sock",
			APIPort:     6443,
		},
		Network: NetworkConfig{
			Probes: []string{"1.1.1.1:53", "registry.k8s.io:443", "ghcr.io:443"},
		},
		Paths: PathsConfig{
			StateDir:   "/var/lib/k8solo/state",
			ScratchDir: "/var/lib/k8solo/scratch",
			OutputDir:  "/var/lib/k8solo",
			Kubeconfig: "/root/.kube/config",
			HelmHome:   "/var/lib/k8solo/helm",
			LogFile:    "/var/log/k8solo/bootstrap.log",
		},
		Addons: AddonsConfig{
			CNI: CNIConfig{KubeProxyReplacement: true},
			LoadBalancer: LoadBalancerConfig{
				AddonConfig:   enabled,
				WebhookSettle: 15 * time.Second,
			},
			Ingress: enabled,
			Storage: StorageConfig{
				AddonConfig:  enabled,
				ReplicaCount: 1,
				UIUser:       "admin",
			},
			ObjectStorage: ObjectStorageConfig{
				AddonConfig: enabled,
				RootUser:    "admin",
				Region:      "us-east-1",
				Size:        "20Gi",
			},
			Monitoring: MonitoringConfig{AddonConfig: enabled},
			Management: enabled,
		},
	}
}
