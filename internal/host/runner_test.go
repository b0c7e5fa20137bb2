package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner_Success(t *testing.T) {
	t.Parallel()

	out, err := NewExecRunner(logr.Discard()).Run(context.Background(), "sh", "-c", "echo hello; echo oops >&2")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "oops", "stderr is captured too")
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	t.Parallel()

	out, err := NewExecRunner(logr.Discard()).Run(context.Background(), "sh", "-c", "echo preflight failed; exit 3")
	require.Error(t, err)
	assert.Contains(t, out, "preflight failed")

	var cerr *CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 3, cerr.ExitCode)
	assert.Equal(t, `sh -c echo preflight failed; exit 3`, cerr.Command)
	assert.Contains(t, err.Error(), "exit code 3")
	assert.Contains(t, err.Error(), "preflight failed")
}

func TestExecRunner_MissingBinary(t *testing.T) {
	t.Parallel()

	_, err := NewExecRunner(logr.Discard()).Run(context.Background(), "k8solo-definitely-not-installed")
	var cerr *CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, -1, cerr.ExitCode)
}

func TestExecRunner_Timeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewExecRunner(logr.Discard()).Run(ctx, "sleep", "5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
