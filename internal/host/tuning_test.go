package host

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records commands and answers from a canned output table.
type fakeRunner struct {
	calls   []string
	outputs map[string]string
	fail    map[string]error
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	cmd := strings.Join(append([]string{name}, args...), " ")
	r.calls = append(r.calls, cmd)
	if err, ok := r.fail[cmd]; ok {
		return "", err
	}
	return r.outputs[cmd], nil
}

func TestCommentSwapEntries(t *testing.T) {
	t.Parallel()

	fstab := strings.Join([]string{
		"# /etc/fstab",
		"UUID=abc / ext4 defaults 0 1",
		"/swap.img none swap sw 0 0",
		"#/old.swap none swap sw 0 0",
		"",
	}, "\n")

	got, changed := CommentSwapEntries(fstab)
	assert.True(t, changed)
	assert.Contains(t, got, "#/swap.img none swap sw 0 0")
	assert.Contains(t, got, "\nUUID=abc / ext4 defaults 0 1\n")
	assert.NotContains(t, got, "##/old.swap")

	again, changed := CommentSwapEntries(got)
	assert.False(t, changed)
	assert.Equal(t, got, again)
}

func TestTuner_DisableSwap(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, FstabPath, []byte("/swap.img none swap sw 0 0\n"), 0o644))
	runner := &fakeRunner{}

	require.NoError(t, NewTuner(fs, runner, logr.Discard()).DisableSwap(context.Background()))
	assert.Equal(t, []string{"swapoff -a"}, runner.calls)

	data, err := afero.ReadFile(fs, FstabPath)
	require.NoError(t, err)
	assert.Equal(t, "#/swap.img none swap sw 0 0\n", string(data))
}

func TestTuner_DisableSwapWithoutFstab(t *testing.T) {
	t.Parallel()

	require.NoError(t, NewTuner(afero.NewMemMapFs(), &fakeRunner{}, logr.Discard()).DisableSwap(context.Background()))
}

func TestTuner_LoadModules(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	runner := &fakeRunner{}
	require.NoError(t, NewTuner(fs, runner, logr.Discard()).LoadModules(context.Background(), []string{"overlay", "br_netfilter"}))

	data, err := afero.ReadFile(fs, ModulesLoadPath)
	require.NoError(t, err)
	assert.Equal(t, "overlay\nbr_netfilter\n", string(data))
	assert.Equal(t, []string{"modprobe overlay", "modprobe br_netfilter"}, runner.calls)
}

func TestTuner_LoadModulesFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{fail: map[string]error{"modprobe iscsi_tcp": fmt.Errorf("module not found")}}
	err := NewTuner(afero.NewMemMapFs(), runner, logr.Discard()).LoadModules(context.Background(), []string{"overlay", "iscsi_tcp"})
	assert.ErrorContains(t, err, "module not found")
}

func TestTuner_ApplySysctls(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	runner := &fakeRunner{}
	require.NoError(t, NewTuner(fs, runner, logr.Discard()).ApplySysctls(context.Background(), KubernetesSysctls))

	data, err := afero.ReadFile(fs, SysctlPath)
	require.NoError(t, err)
	assert.Equal(t, "net.bridge.bridge-nf-call-ip6tables = 1\nnet.bridge.bridge-nf-call-iptables = 1\nnet.ipv4.ip_forward = 1\n", string(data))
	assert.Equal(t, []string{"sysctl --system"}, runner.calls)
}

func TestTuner_ConfigureContainerd(t *testing.T) {
	t.Parallel()

	defaultConfig := "version = 2\n[plugins.\"io.containerd.grpc.v1.cri\".containerd.runtimes.runc.options]\n  SystemdCgroup = false\n"

	t.Run("generates default config", func(t *testing.T) {
		t.Parallel()
		fs := afero.NewMemMapFs()
		runner := &fakeRunner{outputs: map[string]string{"containerd config default": defaultConfig}}

		changed, err := NewTuner(fs, runner, logr.Discard()).ConfigureContainerd(context.Background())
		require.NoError(t, err)
		assert.True(t, changed)

		data, err := afero.ReadFile(fs, ContainerdConfig)
		require.NoError(t, err)
		assert.Contains(t, string(data), "SystemdCgroup = true")
		assert.NotContains(t, string(data), "SystemdCgroup = false")
	})

	t.Run("leaves a tuned config alone", func(t *testing.T) {
		t.Parallel()
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, ContainerdConfig, []byte("SystemdCgroup = true\n"), 0o644))
		runner := &fakeRunner{}

		changed, err := NewTuner(fs, runner, logr.Discard()).ConfigureContainerd(context.Background())
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Empty(t, runner.calls)
	})

	t.Run("rejects config without the setting", func(t *testing.T) {
		t.Parallel()
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, ContainerdConfig, []byte("version = 2\n"), 0o644))

		_, err := NewTuner(fs, &fakeRunner{}, logr.Discard()).ConfigureContainerd(context.Background())
		assert.Error(t, err)
	})
}
