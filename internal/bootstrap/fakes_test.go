package bootstrap

import (
	"context"
	"errors"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/afero"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/imamik/k8solo/internal/config"
	"github.com/imamik/k8solo/internal/helm"
	"github.com/imamik/k8solo/internal/host"
	"github.com/imamik/k8solo/internal/k8s"
	"github.com/imamik/k8solo/internal/poll"
)

type patchCall struct {
	gvr  schema.GroupVersionResource
	name string
	body string
}

type fakeKube struct {
	applied      []string
	secrets      []*corev1.Secret
	labels       map[string]string
	annotations  map[string]string
	taintRemoved int
	taintErrs    []error
	patches      []patchCall
	lbIPs        map[string]string
	waited       []string
	refreshes    int
	notReady     map[string]bool
	// jobs backs JobComplete with the real check; absent Jobs were deleted.
	jobs []runtime.Object
}

func newFakeKube() *fakeKube {
	return &fakeKube{
		labels:      map[string]string{},
		annotations: map[string]string{},
		lbIPs: map[string]string{
			"ingress-nginx/ingress-nginx-controller": "192.168.1.240",
			"minio/minio":                            "192.168.1.241",
			"portainer/portainer":                    "192.168.1.242",
		},
		notReady: map[string]bool{},
	}
}

func (f *fakeKube) ApplyManifests(_ context.Context, manifests []byte, _ string) error {
	f.applied = append(f.applied, string(manifests))
	return nil
}

func (f *fakeKube) CreateSecret(_ context.Context, secret *corev1.Secret) error {
	f.secrets = append(f.secrets, secret)
	return nil
}

func (f *fakeKube) RefreshDiscovery(context.Context) error {
	f.refreshes++
	return nil
}

func (f *fakeKube) LabelNode(_ context.Context, _ string, labels map[string]string) error {
	for k, v := range labels {
		f.labels[k] = v
	}
	return nil
}

func (f *fakeKube) AnnotateNode(_ context.Context, _ string, annotations map[string]string) error {
	for k, v := range annotations {
		f.annotations[k] = v
	}
	return nil
}

func (f *fakeKube) RemoveNodeTaint(context.Context, string, string) error {
	if len(f.taintErrs) > 0 {
		err := f.taintErrs[0]
		f.taintErrs = f.taintErrs[1:]
		return err
	}
	f.taintRemoved++
	return nil
}

func (f *fakeKube) Patch(_ context.Context, gvr schema.GroupVersionResource, _, name string, patch []byte) error {
	f.patches = append(f.patches, patchCall{gvr: gvr, name: name, body: string(patch)})
	return nil
}

func (f *fakeKube) ServiceLoadBalancerIP(_ context.Context, namespace, name string) (string, error) {
	return f.lbIPs[namespace+"/"+name], nil
}

func (f *fakeKube) check(what string) poll.CheckFunc {
	return func(context.Context) (bool, error) {
		f.waited = append(f.waited, what)
		if f.notReady[what] {
			return false, errors.New("not ready")
		}
		return true, nil
	}
}

func (f *fakeKube) DaemonSetReady(ns, name string) poll.CheckFunc {
	return f.check("DaemonSet " + ns + "/" + name)
}

func (f *fakeKube) DeploymentReady(ns, name string) poll.CheckFunc {
	return f.check("Deployment " + ns + "/" + name)
}

func (f *fakeKube) PodsReady(ns, selector string, _ int) poll.CheckFunc {
	return f.check("Pods " + ns + "/" + selector)
}

func (f *fakeKube) JobComplete(ns, name string) poll.CheckFunc {
	recorded := f.check("Job " + ns + "/" + name)
	//nolint:staticcheck // SA1019: NewSimpleClientset is sufficient for our testing needs
	jobStatus := k8s.NewFromClients(fake.NewSimpleClientset(f.jobs...), nil, nil).JobComplete(ns, name)
	return func(ctx context.Context) (bool, error) {
		if ok, err := recorded(ctx); !ok || err != nil {
			return ok, err
		}
		return jobStatus(ctx)
	}
}

func (f *fakeKube) LoadBalancerAssigned(ns, name string) poll.CheckFunc {
	return f.check("Service " + ns + "/" + name)
}

var _ k8s.Client = (*fakeKube)(nil)

type fakeInstaller struct {
	repos    []string
	releases []helm.Release
	fail     map[string]error
}

func (f *fakeInstaller) AddRepository(_ context.Context, name, url string) error {
	f.repos = append(f.repos, name+"="+url)
	return nil
}

func (f *fakeInstaller) InstallOrUpgrade(_ context.Context, rel helm.Release) error {
	if err := f.fail[rel.Name]; err != nil {
		return err
	}
	f.releases = append(f.releases, rel)
	return nil
}

func (f *fakeInstaller) releaseNames() []string {
	names := make([]string, 0, len(f.releases))
	for _, r := range f.releases {
		names = append(names, r.Name)
	}
	return names
}

// fakeRunner records commands. kubeadm init writes an admin kubeconfig the
// way the real binary does.
type fakeRunner struct {
	fs    afero.Fs
	calls []string
	fail  map[string]error
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	cmd := strings.TrimSpace(name + " " + strings.Join(args, " "))
	r.calls = append(r.calls, cmd)
	for prefix, err := range r.fail {
		if strings.HasPrefix(cmd, prefix) {
			return "", &host.CommandError{Command: cmd, ExitCode: 1, Err: err}
		}
	}
	switch {
	case cmd == "containerd config default":
		return "[plugins]\n  SystemdCgroup = false\n", nil
	case strings.HasPrefix(cmd, "kubeadm init"):
		return "", afero.WriteFile(r.fs, AdminKubeconfig, []byte("apiVersion: v1\nkind: Config\n"), 0o600)
	}
	return "", nil
}

func (r *fakeRunner) ran(prefix string) bool {
	for _, c := range r.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

type fakeServices struct {
	started   []string
	restarted []string
}

func (s *fakeServices) EnableAndStart(_ context.Context, unit string) error {
	s.started = append(s.started, unit)
	return nil
}

func (s *fakeServices) Restart(_ context.Context, unit string) error {
	s.restarted = append(s.restarted, unit)
	return nil
}

func (s *fakeServices) IsActive(context.Context, string) (bool, error) { return true, nil }

type fakeBuckets struct {
	existing map[string]bool
	ensured  []string
	endpoint string
}

func (f *fakeBuckets) Reachable() poll.CheckFunc {
	return func(context.Context) (bool, error) { return true, nil }
}

func (f *fakeBuckets) EnsureBucket(_ context.Context, bucket string) (bool, error) {
	f.ensured = append(f.ensured, bucket)
	created := !f.existing[bucket]
	f.existing[bucket] = true
	return created, nil
}

type harness struct {
	rc        *RunContext
	fs        afero.Fs
	kube      *fakeKube
	installer *fakeInstaller
	runner    *fakeRunner
	services  *fakeServices
	buckets   *fakeBuckets
	apiReady  bool
	probesOK  map[string]bool

	missingTools map[string]bool
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Node = config.NodeConfig{Name: "solo", IP: "192.168.1.10", Interface: "eth0"}
	cfg.Network.Probes = []string{"1.1.1.1:53", "registry.k8s.io:443"}
	cfg.Addons.LoadBalancer.AddressPool = "192.168.1.240/29"
	cfg.Addons.LoadBalancer.WebhookSettle = 0
	cfg.Addons.ObjectStorage.Buckets = []string{"backups", "logs"}
	cfg.Paths = config.PathsConfig{
		StateDir:   "/srv/k8solo/state",
		ScratchDir: "/srv/k8solo/scratch",
		OutputDir:  "/srv/k8solo",
		Kubeconfig: "/root/.kube/config",
		HelmHome:   "/srv/k8solo/helm",
		LogFile:    "/var/log/k8solo/bootstrap.log",
	}
	cfg.Timeouts = &config.Timeouts{
		ControlPlaneInit:  time.Second,
		APIServer:         50 * time.Millisecond,
		APIServerSettle:   20 * time.Millisecond,
		Rollout:           50 * time.Millisecond,
		BestEffort:        20 * time.Millisecond,
		Helm:              time.Second,
		NetworkProbe:      20 * time.Millisecond,
		PollInterval:      time.Millisecond,
		RetryMaxAttempts:  3,
		RetryInitialDelay: time.Millisecond,
	}
	return cfg
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	fsys := afero.NewMemMapFs()
	h := &harness{
		fs:        fsys,
		kube:      newFakeKube(),
		installer: &fakeInstaller{fail: map[string]error{}},
		runner:    &fakeRunner{fs: fsys, fail: map[string]error{}},
		services:  &fakeServices{},
		buckets:   &fakeBuckets{existing: map[string]bool{"logs": true}},
		apiReady:  true,
		probesOK:  map[string]bool{"1.1.1.1:53": true, "registry.k8s.io:443": true},

		missingTools: map[string]bool{},
	}
	h.rc = &RunContext{
		Config:   cfg,
		Log:      logr.Discard(),
		FS:       fsys,
		Poller:   poll.New(),
		Version:  "v0.1.0-test",
		Runner:   h.runner,
		Services: h.services,
		InterfaceAddrs: func(name string) ([]net.Addr, error) {
			if name != "eth0" {
				return nil, errors.New("no such network interface")
			}
			return []net.Addr{&net.IPNet{IP: net.ParseIP("192.168.1.10"), Mask: net.CIDRMask(24, 32)}}, nil
		},
		LookPath: func(name string) (string, error) {
			if h.missingTools[name] {
				return "", exec.ErrNotFound
			}
			return "/usr/bin/" + name, nil
		},
		Probe: func(hostname string, port int) poll.CheckFunc {
			return func(context.Context) (bool, error) {
				return h.probesOK[net.JoinHostPort(hostname, strconv.Itoa(port))], nil
			}
		},
		APIHealth: func(string) poll.CheckFunc {
			return func(context.Context) (bool, error) { return h.apiReady, nil }
		},
		NewKube: func([]byte) (k8s.Client, error) { return h.kube, nil },
		NewHelm: func([]byte) (helm.Installer, error) { return h.installer, nil },
		NewBuckets: func(endpoint, _, _, _ string) (Buckets, error) {
			h.buckets.endpoint = endpoint
			return h.buckets, nil
		},
	}
	return h
}
