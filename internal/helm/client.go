package helm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/registry"
	"helm.sh/helm/v3/pkg/release"
	"helm.sh/helm/v3/pkg/storage/driver"
)

// DefaultTimeout bounds a single install or upgrade.
const DefaultTimeout = 10 * time.Minute

// Release describes a chart release to converge.
type Release struct {
	Name      string
	Namespace string
	Chart     ChartSpec
	Values    Values
	// Set holds `--set` style overrides applied on top of Values.
	Set     []string
	Timeout time.Duration
	// Wait makes Helm itself wait for the release's resources.
	Wait bool
}

// Installer is the package-manager surface used by bootstrap steps.
type Installer interface {
	AddRepository(ctx context.Context, name, url string) error
	InstallOrUpgrade(ctx context.Context, rel Release) error
}

// Client talks to the cluster through an in-memory kubeconfig.
type Client struct {
	kubeconfig []byte
	settings   *cli.EnvSettings
	log        logr.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger routes Helm's debug output and progress lines to log.
func WithLogger(log logr.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a Client that keeps repositories under home.
func NewClient(kubeconfig []byte, home string, opts ...Option) *Client {
	c := &Client{
		kubeconfig: kubeconfig,
		settings:   newSettings(home),
		log:        logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// debugf forwards Helm's debug output at the verbosity enabled by -v.
func (c *Client) debugf(format string, v ...interface{}) {
	c.log.V(1).Info(fmt.Sprintf(format, v...))
}

func (c *Client) actionConfig(namespace string) (*action.Configuration, error) {
	getter, err := newKubeconfigGetter(c.kubeconfig, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}

	cfg := new(action.Configuration)
	if err := cfg.Init(getter, namespace, "secret", c.debugf); err != nil {
		return nil, fmt.Errorf("failed to initialize helm action config: %w", err)
	}

	rc, err := registry.NewClient(registry.ClientOptWriter(io.Discard))
	if err != nil {
		return nil, fmt.Errorf("failed to create registry client: %w", err)
	}
	cfg.RegistryClient = rc
	return cfg, nil
}

// InstallOrUpgrade installs rel when it has never been deployed and upgrades
// it otherwise. A release whose every revision failed or is stuck pending is
// uninstalled first so the install can start clean. An operation left pending
// on top of a deployed revision is rolled back before the upgrade.
func (c *Client) InstallOrUpgrade(ctx context.Context, rel Release) error {
	if rel.Name == "" || rel.Namespace == "" {
		return fmt.Errorf("release name and namespace are required")
	}
	if rel.Timeout <= 0 {
		rel.Timeout = DefaultTimeout
	}

	values, err := rel.Values.WithSet(rel.Set...)
	if err != nil {
		return err
	}

	cfg, err := c.actionConfig(rel.Namespace)
	if err != nil {
		return err
	}

	log := c.log.WithValues("release", rel.Name, "namespace", rel.Namespace, "chart", rel.Chart.Ref(), "version", rel.Chart.Version)

	deployed, err := c.reconcileHistory(cfg, rel.Name)
	if err != nil {
		return err
	}

	install := action.NewInstall(cfg)
	install.SetRegistryClient(cfg.RegistryClient)
	install.ReleaseName = rel.Name
	install.Namespace = rel.Namespace
	install.CreateNamespace = true
	install.Version = rel.Chart.Version
	install.Wait = rel.Wait
	install.Timeout = rel.Timeout

	chartPath, err := install.LocateChart(rel.Chart.Ref(), c.settings)
	if err != nil {
		return fmt.Errorf("failed to locate chart %s@%s: %w", rel.Chart.Ref(), rel.Chart.Version, err)
	}
	chrt, err := loader.Load(chartPath)
	if err != nil {
		return fmt.Errorf("failed to load chart %s: %w", chartPath, err)
	}

	var res *release.Release
	if deployed {
		log.Info("upgrading release")
		upgrade := action.NewUpgrade(cfg)
		upgrade.Namespace = rel.Namespace
		upgrade.Version = rel.Chart.Version
		upgrade.Wait = rel.Wait
		upgrade.Timeout = rel.Timeout
		res, err = upgrade.RunWithContext(ctx, rel.Name, chrt, values)
	} else {
		log.Info("installing release")
		res, err = install.RunWithContext(ctx, chrt, values)
	}
	if err != nil {
		return fmt.Errorf("helm release %s failed: %w", rel.Name, err)
	}

	log.Info("release converged", "revision", res.Version, "status", res.Info.Status.String())
	return nil
}

// reconcileHistory reports whether the release exists with at least one
// revision that reached deployed. Releases that never did are removed. When
// the latest revision is still pending, as after an interrupted upgrade, the
// release is rolled back to its last deployed revision.
func (c *Client) reconcileHistory(cfg *action.Configuration, name string) (bool, error) {
	history := action.NewHistory(cfg)
	history.Max = 256
	revisions, err := history.Run(name)
	if errors.Is(err, driver.ErrReleaseNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read history of release %s: %w", name, err)
	}
	if len(revisions) == 0 {
		return false, nil
	}
	sort.Slice(revisions, func(i, j int) bool { return revisions[i].Version < revisions[j].Version })

	lastDeployed := 0
	for _, r := range revisions {
		if r.Info == nil {
			continue
		}
		switch r.Info.Status {
		case release.StatusDeployed, release.StatusSuperseded:
			lastDeployed = r.Version
		}
	}

	if lastDeployed == 0 {
		c.log.Info("removing release that never deployed", "release", name, "revisions", len(revisions))
		if _, err := action.NewUninstall(cfg).Run(name); err != nil {
			return false, fmt.Errorf("failed to remove undeployed release %s: %w", name, err)
		}
		return false, nil
	}

	latest := revisions[len(revisions)-1]
	if latest.Info != nil && latest.Info.Status.IsPending() {
		c.log.Info("rolling back interrupted release operation",
			"release", name, "revision", latest.Version, "status", latest.Info.Status.String(), "to", lastDeployed)
		rollback := action.NewRollback(cfg)
		rollback.Version = lastDeployed
		rollback.Timeout = DefaultTimeout
		if err := rollback.Run(name); err != nil {
			return false, fmt.Errorf("failed to roll back pending release %s to revision %d: %w", name, lastDeployed, err)
		}
	}
	return true, nil
}
