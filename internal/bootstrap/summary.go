package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/imamik/k8solo/internal/k8s"
)

// Summary lists how to reach the cluster and its add-ons.
type Summary struct {
	Node              string     `yaml:"node"`
	KubernetesVersion string     `yaml:"kubernetes_version"`
	APIServer         string     `yaml:"api_server"`
	Kubeconfig        string     `yaml:"kubeconfig"`
	Endpoints         []Endpoint `yaml:"endpoints"`
}

// Endpoint is one user-facing service.
type Endpoint struct {
	Name         string `yaml:"name"`
	URL          string `yaml:"url"`
	Username     string `yaml:"username,omitempty"`
	PasswordFile string `yaml:"password_file,omitempty"`
}

// Summary file names in the output directory.
const (
	SummaryText = "summary.txt"
	SummaryYAML = "summary.yaml"
)

// collectSummary queries the cluster for the addresses assigned during the
// run, so it works the same on a resumed run.
func (b *bootstrapper) collectSummary(ctx context.Context, kube k8s.Client) (*Summary, error) {
	addons := b.cfg.Addons
	s := &Summary{
		Node:              b.cfg.Node.Name,
		KubernetesVersion: b.cfg.Kubernetes.Version,
		APIServer:         "https://" + b.apiEndpoint(),
		Kubeconfig:        b.cfg.Paths.Kubeconfig,
	}

	lbIP := func(namespace, name string) (string, error) {
		if !addons.LoadBalancer.Enabled {
			return "", nil
		}
		ip, err := kube.ServiceLoadBalancerIP(ctx, namespace, name)
		if err != nil {
			return "", fmt.Errorf("failed to look up %s/%s: %w", namespace, name, err)
		}
		return ip, nil
	}

	if addons.Ingress.Enabled {
		ip, err := lbIP(namespaceIngress, ingressControllerService)
		if err != nil {
			return nil, err
		}
		if ip != "" {
			s.Endpoints = append(s.Endpoints, Endpoint{Name: "ingress", URL: "http://" + ip})
		}
	}
	if addons.Storage.Enabled && addons.Storage.UIHost != "" {
		s.Endpoints = append(s.Endpoints, Endpoint{
			Name:         "longhorn-ui",
			URL:          "http://" + addons.Storage.UIHost,
			Username:     addons.Storage.UIUser,
			PasswordFile: b.passwordFile(longhornPasswordFile),
		})
	}
	if addons.ObjectStorage.Enabled {
		ip, err := lbIP(namespaceMinIO, minioRelease)
		if err != nil {
			return nil, err
		}
		if ip != "" {
			s.Endpoints = append(s.Endpoints, Endpoint{
				Name:         "minio",
				URL:          fmt.Sprintf("http://%s:%d", ip, minioAPIPort),
				Username:     addons.ObjectStorage.RootUser,
				PasswordFile: b.passwordFile(minioPasswordFile),
			})
		}
	}
	if addons.Monitoring.Enabled && addons.Monitoring.GrafanaHost != "" {
		s.Endpoints = append(s.Endpoints, Endpoint{
			Name:         "grafana",
			URL:          "http://" + addons.Monitoring.GrafanaHost,
			Username:     "admin",
			PasswordFile: b.passwordFile(grafanaPasswordFile),
		})
	}
	if addons.Management.Enabled {
		ip, err := lbIP(namespacePortainer, portainerService)
		if err != nil {
			return nil, err
		}
		if ip != "" {
			s.Endpoints = append(s.Endpoints, Endpoint{Name: "portainer", URL: "https://" + ip + ":9443"})
		}
	}
	return s, nil
}

// RenderText renders the human-readable summary.
func (s *Summary) RenderText() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "k8solo cluster on %s (Kubernetes %s)\n\n", s.Node, s.KubernetesVersion)
	fmt.Fprintf(&buf, "API server:  %s\n", s.APIServer)
	fmt.Fprintf(&buf, "Kubeconfig:  %s\n", s.Kubeconfig)
	if len(s.Endpoints) == 0 {
		return buf.Bytes()
	}

	buf.WriteString("\nEndpoints:\n")
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	for _, e := range s.Endpoints {
		line := "  " + e.Name + "\t" + e.URL
		if e.Username != "" {
			line += "\tuser " + e.Username
		}
		if e.PasswordFile != "" {
			line += "\tpassword in " + e.PasswordFile
		}
		fmt.Fprintln(w, line)
	}
	_ = w.Flush()
	return buf.Bytes()
}

func (b *bootstrapper) writeSummary(ctx context.Context) error {
	kube, err := b.kubeClient()
	if err != nil {
		return err
	}
	summary, err := b.collectSummary(ctx, kube)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	dir := b.cfg.Paths.OutputDir
	if err := writeFile(b.rc.FS, filepath.Join(dir, SummaryText), summary.RenderText(), 0o644); err != nil {
		return err
	}
	if err := writeFile(b.rc.FS, filepath.Join(dir, SummaryYAML), out, 0o644); err != nil {
		return err
	}
	b.rc.Log.WithName(StepSummary).Info("summary written", "file", filepath.Join(dir, SummaryText), "endpoints", len(summary.Endpoints))
	return nil
}
