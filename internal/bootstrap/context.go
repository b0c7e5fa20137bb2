package bootstrap

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/afero"

	"github.com/imamik/k8solo/internal/config"
	"github.com/imamik/k8solo/internal/helm"
	"github.com/imamik/k8solo/internal/host"
	"github.com/imamik/k8solo/internal/k8s"
	"github.com/imamik/k8solo/internal/objectstore"
	"github.com/imamik/k8solo/internal/poll"
)

// Buckets is the object-storage surface used by the object-storage step.
type Buckets interface {
	Reachable() poll.CheckFunc
	EnsureBucket(ctx context.Context, bucket string) (bool, error)
}

// RunContext carries the configuration and every collaborator a step needs.
// It is built once per run and not modified afterwards.
type RunContext struct {
	Config  *config.Config
	Log     logr.Logger
	FS      afero.Fs
	Poller  *poll.Poller
	Version string

	Runner         host.Runner
	Services       host.ServiceManager
	InterfaceAddrs host.InterfaceAddrs
	// LookPath resolves host binaries for the prerequisites check.
	LookPath func(name string) (string, error)

	// Probe builds the reachability check of one network probe.
	Probe func(host string, port int) poll.CheckFunc
	// APIHealth builds the check against the API server's readyz URL.
	APIHealth func(url string) poll.CheckFunc

	NewKube    func(kubeconfig []byte) (k8s.Client, error)
	NewHelm    func(kubeconfig []byte) (helm.Installer, error)
	NewBuckets func(endpoint, region, accessKey, secretKey string) (Buckets, error)
}

// NewRunContext wires the production collaborators for cfg.
func NewRunContext(cfg *config.Config, log logr.Logger, version string) *RunContext {
	return &RunContext{
		Config:         cfg,
		Log:            log,
		FS:             afero.NewOsFs(),
		Poller:         poll.New(poll.WithLogger(log.WithName("poll"))),
		Version:        version,
		Runner:         host.NewExecRunner(log.WithName("exec")),
		Services:       host.NewSystemdManager(log.WithName("systemd")),
		InterfaceAddrs: host.SystemInterfaceAddrs,
		LookPath:       exec.LookPath,
		Probe: func(h string, port int) poll.CheckFunc {
			return poll.TCPEndpoint(h, port, 5*time.Second)
		},
		APIHealth: func(url string) poll.CheckFunc {
			return poll.HTTPEndpoint(url, 5*time.Second)
		},
		NewKube: k8s.NewFromKubeconfig,
		NewHelm: func(kubeconfig []byte) (helm.Installer, error) {
			return helm.NewClient(kubeconfig, cfg.Paths.HelmHome, helm.WithLogger(log.WithName("helm"))), nil
		},
		NewBuckets: func(endpoint, region, accessKey, secretKey string) (Buckets, error) {
			return objectstore.NewClient(endpoint, region, accessKey, secretKey)
		},
	}
}

func (rc *RunContext) timeouts() *config.Timeouts {
	if rc.Config.Timeouts != nil {
		return rc.Config.Timeouts
	}
	return config.LoadTimeouts()
}

// bootstrapper binds the steps to a RunContext and caches the cluster
// clients, which can only be built once the kubeconfig exists.
type bootstrapper struct {
	rc       *RunContext
	cfg      *config.Config
	timeouts *config.Timeouts

	kube  k8s.Client
	helm  helm.Installer
	repos map[string]bool
}

func newBootstrapper(rc *RunContext) *bootstrapper {
	return &bootstrapper{
		rc:       rc,
		cfg:      rc.Config,
		timeouts: rc.timeouts(),
		repos:    make(map[string]bool),
	}
}

func (b *bootstrapper) kubeconfig() ([]byte, error) {
	data, err := afero.ReadFile(b.rc.FS, b.cfg.Paths.Kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to read kubeconfig (has the control plane been initialized?): %w", err)
	}
	return data, nil
}

func (b *bootstrapper) kubeClient() (k8s.Client, error) {
	if b.kube != nil {
		return b.kube, nil
	}
	data, err := b.kubeconfig()
	if err != nil {
		return nil, err
	}
	client, err := b.rc.NewKube(data)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	b.kube = client
	return client, nil
}

func (b *bootstrapper) installer() (helm.Installer, error) {
	if b.helm != nil {
		return b.helm, nil
	}
	data, err := b.kubeconfig()
	if err != nil {
		return nil, err
	}
	installer, err := b.rc.NewHelm(data)
	if err != nil {
		return nil, fmt.Errorf("failed to create helm client: %w", err)
	}
	b.helm = installer
	return installer, nil
}

// await waits for check under the run's poll interval.
func (b *bootstrapper) await(ctx context.Context, description string, check poll.CheckFunc, timeout time.Duration, policy poll.Policy) error {
	return b.rc.Poller.Await(ctx, poll.Condition{
		Description: description,
		Check:       check,
		Interval:    b.timeouts.PollInterval,
		Timeout:     timeout,
	}, policy)
}
