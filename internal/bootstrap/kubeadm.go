package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"

	"github.com/imamik/k8solo/internal/poll"
)

// AdminKubeconfig is where kubeadm writes the cluster-admin kubeconfig.
const AdminKubeconfig = "/etc/kubernetes/admin.conf"

const kubeadmAPIVersion = "kubeadm.k8s.io/v1beta4"

type kubeadmArg struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type initConfiguration struct {
	APIVersion       string           `json:"apiVersion"`
	Kind             string           `json:"kind"`
	LocalAPIEndpoint apiEndpoint      `json:"localAPIEndpoint"`
	NodeRegistration nodeRegistration `json:"nodeRegistration"`
	SkipPhases       []string         `json:"skipPhases,omitempty"`
}

type apiEndpoint struct {
	AdvertiseAddress string `json:"advertiseAddress"`
	BindPort         int    `json:"bindPort"`
}

type nodeRegistration struct {
	Name             string       `json:"name"`
	CRISocket        string       `json:"criSocket"`
	KubeletExtraArgs []kubeadmArg `json:"kubeletExtraArgs,omitempty"`
}

type clusterConfiguration struct {
	APIVersion           string            `json:"apiVersion"`
	Kind                 string            `json:"kind"`
	ClusterName          string            `json:"clusterName"`
	KubernetesVersion    string            `json:"kubernetesVersion"`
	ControlPlaneEndpoint string            `json:"controlPlaneEndpoint"`
	Networking           clusterNetworking `json:"networking"`
	APIServer            clusterAPIServer  `json:"apiServer"`
}

type clusterNetworking struct {
	PodSubnet     string `json:"podSubnet"`
	ServiceSubnet string `json:"serviceSubnet"`
	DNSDomain     string `json:"dnsDomain"`
}

type clusterAPIServer struct {
	CertSANs []string `json:"certSANs"`
}

type kubeletConfiguration struct {
	APIVersion   string `json:"apiVersion"`
	Kind         string `json:"kind"`
	CgroupDriver string `json:"cgroupDriver"`
	FailSwapOn   bool   `json:"failSwapOn"`
}

// renderKubeadmConfig returns the multi-document kubeadm configuration for
// the node.
func (b *bootstrapper) renderKubeadmConfig() ([]byte, error) {
	node := b.cfg.Node
	k := b.cfg.Kubernetes

	initCfg := initConfiguration{
		APIVersion: kubeadmAPIVersion,
		Kind:       "InitConfiguration",
		LocalAPIEndpoint: apiEndpoint{
			AdvertiseAddress: node.IP,
			BindPort:         k.APIPort,
		},
		NodeRegistration: nodeRegistration{
			Name:             node.Name,
			CRISocket:        k.CRISocket,
			KubeletExtraArgs: []kubeadmArg{{Name: "node-ip", Value: node.IP}},
		},
	}
	if b.cfg.Addons.CNI.KubeProxyReplacement {
		initCfg.SkipPhases = []string{"addon/kube-proxy"}
	}

	clusterCfg := clusterConfiguration{
		APIVersion:           kubeadmAPIVersion,
		Kind:                 "ClusterConfiguration",
		ClusterName:          "k8solo",
		KubernetesVersion:    k.Version,
		ControlPlaneEndpoint: b.apiEndpoint(),
		Networking: clusterNetworking{
			PodSubnet:     k.PodCIDR,
			ServiceSubnet: k.ServiceCIDR,
			DNSDomain:     "cluster.local",
		},
		APIServer: clusterAPIServer{CertSANs: []string{node.IP, node.Name}},
	}

	kubeletCfg := kubeletConfiguration{
		APIVersion:   "kubelet.config.k8s.io/v1beta1",
		Kind:         "KubeletConfiguration",
		CgroupDriver: "systemd",
		FailSwapOn:   true,
	}

	var buf bytes.Buffer
	for i, doc := range []any{initCfg, clusterCfg, kubeletCfg} {
		out, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to render kubeadm config: %w", err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(out)
	}
	return buf.Bytes(), nil
}

func (b *bootstrapper) apiEndpoint() string {
	return b.cfg.Node.IP + ":" + strconv.Itoa(b.cfg.Kubernetes.APIPort)
}

func (b *bootstrapper) readyzURL() string {
	return "https://" + b.apiEndpoint() + "/readyz"
}

// initControlPlane runs kubeadm init and publishes the admin kubeconfig. A
// control plane that is already initialized and answering is adopted, since
// kubeadm init refuses to run twice.
func (b *bootstrapper) initControlPlane(ctx context.Context) error {
	log := b.rc.Log.WithName(StepControlPlane)
	health := b.rc.APIHealth(b.readyzURL())

	initialized, err := afero.Exists(b.rc.FS, AdminKubeconfig)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", AdminKubeconfig, err)
	}
	if initialized {
		// An API server restarted by the previous run may still be coming up.
		err := b.await(ctx, "existing API server at "+b.readyzURL(), health, b.timeouts.APIServerSettle, poll.Required)
		if err != nil && !poll.IsTimeout(err) {
			return err
		}
		if err != nil {
			return fmt.Errorf("%s exists but the API server at %s did not answer within %s; run `kubeadm reset` before retrying: %w",
				AdminKubeconfig, b.readyzURL(), b.timeouts.APIServerSettle, err)
		}
		log.Info("control plane already initialized, adopting it", "kubeconfig", AdminKubeconfig)
	} else if err := b.runKubeadmInit(ctx); err != nil {
		return err
	}

	if err := b.publishKubeconfig(); err != nil {
		return err
	}
	return b.await(ctx, "API server readiness at "+b.readyzURL(), health, b.timeouts.APIServer, poll.Required)
}

func (b *bootstrapper) runKubeadmInit(ctx context.Context) error {
	log := b.rc.Log.WithName(StepControlPlane)

	rendered, err := b.renderKubeadmConfig()
	if err != nil {
		return err
	}
	path := filepath.Join(b.cfg.Paths.ScratchDir, "kubeadm.yaml")
	if err := writeFile(b.rc.FS, path, rendered, 0o600); err != nil {
		return err
	}

	initCtx, cancel := context.WithTimeout(ctx, b.timeouts.ControlPlaneInit)
	defer cancel()

	log.Info("running kubeadm init", "config", path, "version", b.cfg.Kubernetes.Version, "timeout", b.timeouts.ControlPlaneInit)
	if _, err := b.rc.Runner.Run(initCtx, "kubeadm", "init", "--config", path, "--skip-token-print"); err != nil {
		return fmt.Errorf("kubeadm init failed: %w", err)
	}
	return nil
}

func (b *bootstrapper) publishKubeconfig() error {
	data, err := afero.ReadFile(b.rc.FS, AdminKubeconfig)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", AdminKubeconfig, err)
	}
	if err := writeFile(b.rc.FS, b.cfg.Paths.Kubeconfig, data, 0o600); err != nil {
		return err
	}
	b.rc.Log.WithName(StepControlPlane).Info("kubeconfig written", "path", b.cfg.Paths.Kubeconfig)
	return nil
}

// writeFile creates parent directories (0700) and writes data with perm.
// An existing file gets perm as well.
func writeFile(fsys afero.Fs, path string, data []byte, perm fs.FileMode) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(fsys, path, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := fsys.Chmod(path, perm); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	return nil
}
