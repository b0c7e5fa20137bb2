package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/k8solo/cmd/k8solo/handlers"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "k8solo", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
	assert.True(t, cmd.SilenceErrors)

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"run", "status", "plan", "reset", "version"}, names)
}

func TestRoot_PersistentFlags(t *testing.T) {
	cmd := Root()

	config := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, config)
	assert.Equal(t, "c", config.Shorthand)
	assert.Equal(t, DefaultConfigPath, config.DefValue)

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)
}

func TestRoot_UnknownFlagIsUsageError(t *testing.T) {
	cmd := Root()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"status", "--no-such-flag"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, handlers.ExitUsage, handlers.ExitCode(err))
}

func TestRun_Flags(t *testing.T) {
	cmd := Run(&handlers.GlobalOptions{})

	assert.Equal(t, "run", cmd.Use)
	assert.NotNil(t, cmd.RunE)
	for _, name := range []string{"dry-run", "keep-markers", "metrics-textfile", "plain"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Contains(t, cmd.Long, "Exit codes:")
}

func TestReset_StepFlag(t *testing.T) {
	cmd := Reset(&handlers.GlobalOptions{})

	flag := cmd.Flags().Lookup("step")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestStatusAndPlan(t *testing.T) {
	opts := &handlers.GlobalOptions{}
	assert.Equal(t, "status", Status(opts).Use)
	assert.Equal(t, "plan", Plan(opts).Use)
}
