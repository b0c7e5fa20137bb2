package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/afero"
)

// Well-known host paths touched by the tuner.
const (
	FstabPath        = "/etc/fstab"
	ModulesLoadPath  = "/etc/modules-load.d/k8solo.conf"
	SysctlPath       = "/etc/sysctl.d/99-k8solo.conf"
	ContainerdConfig = "/etc/containerd/config.toml"
)

// KubernetesSysctls are the kernel settings kubeadm's preflight requires.
var KubernetesSysctls = map[string]string{
	"net.bridge.bridge-nf-call-iptables":  "1",
	"net.bridge.bridge-nf-call-ip6tables": "1",
	"net.ipv4.ip_forward":                 "1",
}

// Tuner applies OS prerequisites. Every method converges: running it again
// on a tuned host rewrites identical content and reloads nothing new.
type Tuner struct {
	fs     afero.Fs
	runner Runner
	log    logr.Logger
}

// NewTuner returns a Tuner writing to fsys and running commands via runner.
func NewTuner(fsys afero.Fs, runner Runner, log logr.Logger) *Tuner {
	return &Tuner{fs: fsys, runner: runner, log: log}
}

// DisableSwap turns swap off now and comments every swap entry in fstab so
// it stays off after a reboot.
func (t *Tuner) DisableSwap(ctx context.Context) error {
	if _, err := t.runner.Run(ctx, "swapoff", "-a"); err != nil {
		return err
	}

	data, err := afero.ReadFile(t.fs, FstabPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", FstabPath, err)
	}

	updated, changed := CommentSwapEntries(string(data))
	if !changed {
		return nil
	}
	if err := afero.WriteFile(t.fs, FstabPath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", FstabPath, err)
	}
	t.log.Info("commented swap entries", "file", FstabPath)
	return nil
}

// CommentSwapEntries prefixes active swap lines of an fstab with '#'.
func CommentSwapEntries(fstab string) (string, bool) {
	lines := strings.Split(fstab, "\n")
	changed := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) >= 3 && fields[2] == "swap" {
			lines[i] = "#" + line
			changed = true
		}
	}
	return strings.Join(lines, "\n"), changed
}

// LoadModules persists modules for boot and loads them now.
func (t *Tuner) LoadModules(ctx context.Context, modules []string) error {
	content := strings.Join(modules, "\n") + "\n"
	if err := t.writeFile(ModulesLoadPath, []byte(content)); err != nil {
		return err
	}
	for _, m := range modules {
		if _, err := t.runner.Run(ctx, "modprobe", m); err != nil {
			return err
		}
	}
	return nil
}

// ApplySysctls persists settings and reloads every sysctl file.
func (t *Tuner) ApplySysctls(ctx context.Context, settings map[string]string) error {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s = %s\n", k, settings[k])
	}
	if err := t.writeFile(SysctlPath, buf.Bytes()); err != nil {
		return err
	}
	_, err := t.runner.Run(ctx, "sysctl", "--system")
	return err
}

// ConfigureContainerd makes sure containerd uses the systemd cgroup driver,
// generating the default configuration first when none exists. It reports
// whether the file changed, in which case containerd must be restarted.
func (t *Tuner) ConfigureContainerd(ctx context.Context) (bool, error) {
	data, err := afero.ReadFile(t.fs, ContainerdConfig)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to read %s: %w", ContainerdConfig, err)
	}
	generated := false
	if len(data) == 0 {
		out, err := t.runner.Run(ctx, "containerd", "config", "default")
		if err != nil {
			return false, err
		}
		data = []byte(out)
		generated = true
	}

	config := string(data)
	switch {
	case strings.Contains(config, "SystemdCgroup = true"):
		if !generated {
			return false, nil
		}
	case strings.Contains(config, "SystemdCgroup = false"):
		config = strings.ReplaceAll(config, "SystemdCgroup = false", "SystemdCgroup = true")
	default:
		return false, fmt.Errorf("%s has no SystemdCgroup setting to enable", ContainerdConfig)
	}

	if err := t.writeFile(ContainerdConfig, []byte(config)); err != nil {
		return false, err
	}
	t.log.Info("containerd configured for the systemd cgroup driver", "file", ContainerdConfig)
	return true, nil
}

func (t *Tuner) writeFile(path string, data []byte) error {
	if err := t.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(t.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
