package poll

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPEndpoint(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)

	check := TCPEndpoint("127.0.0.1", addr.Port, time.Second)
	ok, err := check(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, ln.Close())
	ok, err = check(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestHTTPEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		want    bool
		wantErr bool
	}{
		{name: "ok", status: http.StatusOK, want: true},
		{name: "unauthorized still reachable", status: http.StatusUnauthorized, want: true},
		{name: "server error", status: http.StatusServiceUnavailable, want: false, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			ok, err := HTTPEndpoint(srv.URL+"/readyz", time.Second)(context.Background())
			assert.Equal(t, tt.want, ok)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHTTPEndpoint_MalformedURLAborts(t *testing.T) {
	t.Parallel()

	err := New().WaitFor(context.Background(), Condition{
		Description: "bad url",
		Check:       HTTPEndpoint("://bad", time.Second),
		Interval:    time.Millisecond,
		Timeout:     time.Minute,
	})
	require.Error(t, err)
	assert.False(t, IsTimeout(err))
}

func TestTCPEndpoint_Unreachable(t *testing.T) {
	t.Parallel()

	// Grab a free port and release it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	err = New().WaitFor(context.Background(), Condition{
		Description: "closed port " + strconv.Itoa(port),
		Check:       TCPEndpoint("127.0.0.1", port, 50*time.Millisecond),
		Interval:    5 * time.Millisecond,
		Timeout:     20 * time.Millisecond,
	})

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Error(t, te.LastErr)
}
