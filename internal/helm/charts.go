package helm

import "fmt"

// ChartSpec locates a chart in a classic HTTP chart repository.
type ChartSpec struct {
	// RepoName is the name the repository is registered under.
	RepoName   string
	Repository string
	Name       string
	Version    string
}

// Ref returns the repo/chart reference used to locate the chart.
func (s ChartSpec) Ref() string {
	return s.RepoName + "/" + s.Name
}

// ChartOverride replaces parts of a default ChartSpec.
type ChartOverride struct {
	Repository string `yaml:"repository,omitempty"`
	Chart      string `yaml:"chart,omitempty"`
	Version    string `yaml:"version,omitempty"`
}

// DefaultChartSpecs holds the pinned chart of every add-on.
var DefaultChartSpecs = map[string]ChartSpec{
	"cilium": {
		RepoName:   "cilium",
		Repository: "https://helm.cilium.io",
		Name:       "cilium",
		Version:    "1.16.5",
	},
	"metallb": {
		RepoName:   "metallb",
		Repository: "https://metallb.github.io/metallb",
		Name:       "metallb",
		Version:    "0.14.9",
	},
	"ingress-nginx": {
		RepoName:   "ingress-nginx",
		Repository: "https://kubernetes.github.io/ingress-nginx",
		Name:       "ingress-nginx",
		Version:    "4.11.3",
	},
	"longhorn": {
		RepoName:   "longhorn",
		Repository: "https://charts.longhorn.io",
		Name:       "longhorn",
		Version:    "1.7.2",
	},
	"minio": {
		RepoName:   "minio",
		Repository: "https://charts.min.io/",
		Name:       "minio",
		Version:    "5.3.0",
	},
	"kube-prometheus-stack": {
		RepoName:   "prometheus-community",
		Repository: "https://prometheus-community.github.io/helm-charts",
		Name:       "kube-prometheus-stack",
		Version:    "66.3.1",
	},
	"portainer": {
		RepoName:   "portainer",
		Repository: "https://portainer.github.io/k8s/",
		Name:       "portainer",
		Version:    "1.0.58",
	},
}

// GetChartSpec returns the default spec for addon with override applied.
func GetChartSpec(addon string, override ChartOverride) (ChartSpec, error) {
	spec, ok := DefaultChartSpecs[addon]
	if !ok {
		return ChartSpec{}, fmt.Errorf("no chart registered for add-on %q", addon)
	}
	if override.Repository != "" {
		spec.Repository = override.Repository
	}
	if override.Chart != "" {
		spec.Name = override.Chart
	}
	if override.Version != "" {
		spec.Version = override.Version
	}
	return spec, nil
}
