package config

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var (
	versionPattern    = regexp.MustCompile(`^v1\.\d+\.\d+$`)
	nodeNamePattern   = regexp.MustCompile(`^[a-z0-9]([-a-z0-9.]*[a-z0-9])?$`)
	bucketNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
)

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	errs = append(errs, c.validateNode()...)
	errs = append(errs, c.validateKubernetes()...)
	errs = append(errs, c.validateNetwork()...)
	errs = append(errs, c.validatePaths()...)
	errs = append(errs, c.validateAddons()...)
	return errors.Join(errs...)
}

func (c *Config) validateNode() []error {
	var errs []error
	if !nodeNamePattern.MatchString(c.Node.Name) {
		errs = append(errs, fmt.Errorf("node.name %q is not a valid node name", c.Node.Name))
	}
	if c.Node.IP == "" {
		errs = append(errs, fmt.Errorf("node.ip is required"))
	} else if addr, err := netip.ParseAddr(c.Node.IP); err != nil || !addr.Is4() {
		errs = append(errs, fmt.Errorf("node.ip %q is not an IPv4 address", c.Node.IP))
	}
	if c.Node.Interface == "" {
		errs = append(errs, fmt.Errorf("node.interface is required"))
	}
	return errs
}

func (c *Config) validateKubernetes() []error {
	var errs []error
	k := c.Kubernetes
	if !versionPattern.MatchString(k.Version) {
		errs = append(errs, fmt.Errorf("kubernetes.version %q must look like v1.31.4", k.Version))
	}
	pod, podErr := netip.ParsePrefix(k.PodCIDR)
	if podErr != nil {
		errs = append(errs, fmt.Errorf("kubernetes.pod_cidr: %w", podErr))
	}
	svc, svcErr := netip.ParsePrefix(k.ServiceCIDR)
	if svcErr != nil {
		errs = append(errs, fmt.Errorf("kubernetes.service_cidr: %w", svcErr))
	}
	if podErr == nil && svcErr == nil && pod.Overlaps(svc) {
		errs = append(errs, fmt.Errorf("kubernetes.pod_cidr %s overlaps service_cidr %s", pod, svc))
	}
	if k.APIPort < 1 || k.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("kubernetes.api_port %d is out of range", k.APIPort))
	}
	if !strings.HasPrefix(k.CRISocket, "unix://") {
		errs = append(errs, fmt.Errorf("kubernetes.cri_socket %q must be a unix:// URL", k.CRISocket))
	}
	return errs
}

func (c *Config) validateNetwork() []error {
	var errs []error
	for _, probe := range c.Network.Probes {
		host, port, err := net.SplitHostPort(probe)
		if err != nil || host == "" {
			errs = append(errs, fmt.Errorf("network.probes: %q is not host:port", probe))
			continue
		}
		if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
			errs = append(errs, fmt.Errorf("network.probes: %q has an invalid port", probe))
		}
	}
	return errs
}

func (c *Config) validatePaths() []error {
	var errs []error
	paths := map[string]string{
		"paths.state_dir":   c.Paths.StateDir,
		"paths.scratch_dir": c.Paths.ScratchDir,
		"paths.output_dir":  c.Paths.OutputDir,
		"paths.kubeconfig":  c.Paths.Kubeconfig,
		"paths.helm_home":   c.Paths.HelmHome,
		"paths.log_file":    c.Paths.LogFile,
	}
	for _, key := range sortedKeys(paths) {
		if !filepath.IsAbs(paths[key]) {
			errs = append(errs, fmt.Errorf("%s %q must be an absolute path", key, paths[key]))
		}
	}
	return errs
}

func (c *Config) validateAddons() []error {
	var errs []error
	a := c.Addons

	if a.LoadBalancer.Enabled {
		if _, _, err := ParseAddressPool(a.LoadBalancer.AddressPool); err != nil {
			errs = append(errs, fmt.Errorf("addons.load_balancer.address_pool: %w", err))
		}
		if a.LoadBalancer.WebhookSettle < 0 {
			errs = append(errs, fmt.Errorf("addons.load_balancer.webhook_settle must not be negative"))
		}
	}

	if a.Storage.Enabled {
		if a.Storage.ReplicaCount < 1 {
			errs = append(errs, fmt.Errorf("addons.storage.replica_count must be at least 1"))
		}
		if a.Storage.UIHost != "" && !a.Ingress.Enabled {
			errs = append(errs, fmt.Errorf("addons.storage.ui_host requires the ingress add-on"))
		}
	}

	if a.ObjectStorage.Enabled {
		if !a.LoadBalancer.Enabled {
			errs = append(errs, fmt.Errorf("addons.object_storage requires the load_balancer add-on"))
		}
		if a.ObjectStorage.RootUser == "" {
			errs = append(errs, fmt.Errorf("addons.object_storage.root_user is required"))
		}
		seen := make(map[string]bool)
		for _, b := range a.ObjectStorage.Buckets {
			if !bucketNamePattern.MatchString(b) {
				errs = append(errs, fmt.Errorf("addons.object_storage.buckets: %q is not a valid bucket name", b))
			}
			if seen[b] {
				errs = append(errs, fmt.Errorf("addons.object_storage.buckets: %q is listed twice", b))
			}
			seen[b] = true
		}
	}

	if a.Monitoring.Enabled && a.Monitoring.GrafanaHost != "" && !a.Ingress.Enabled {
		errs = append(errs, fmt.Errorf("addons.monitoring.grafana_host requires the ingress add-on"))
	}
	return errs
}

// ParseAddressPool accepts "10.0.0.240/28" or "10.0.0.240-10.0.0.250" and
// returns the first and last address.
func ParseAddressPool(pool string) (netip.Addr, netip.Addr, error) {
	if pool == "" {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("address pool is required")
	}
	if strings.Contains(pool, "/") {
		prefix, err := netip.ParsePrefix(pool)
		if err != nil {
			return netip.Addr{}, netip.Addr{}, err
		}
		if !prefix.Addr().Is4() {
			return netip.Addr{}, netip.Addr{}, fmt.Errorf("%q is not an IPv4 prefix", pool)
		}
		prefix = prefix.Masked()
		first := prefix.Addr()
		raw := first.As4()
		host := uint32(1)<<(32-prefix.Bits()) - 1
		binary.BigEndian.PutUint32(raw[:], binary.BigEndian.Uint32(raw[:])|host)
		return first, netip.AddrFrom4(raw), nil
	}
	from, to, ok := strings.Cut(pool, "-")
	if !ok {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("%q is neither a CIDR nor a first-last range", pool)
	}
	first, err := netip.ParseAddr(strings.TrimSpace(from))
	if err != nil {
		return netip.Addr{}, netip.Addr{}, err
	}
	last, err := netip.ParseAddr(strings.TrimSpace(to))
	if err != nil {
		return netip.Addr{}, netip.Addr{}, err
	}
	if last.Less(first) {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("range %q ends before it starts", pool)
	}
	return first, last, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
