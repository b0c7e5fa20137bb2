package poll

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// TCPEndpoint returns a check that succeeds once a TCP connection to
// host:port can be opened.
func TCPEndpoint(host string, port int, dialTimeout time.Duration) CheckFunc {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	return func(ctx context.Context) (bool, error) {
		d := net.Dialer{Timeout: dialTimeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false, err
		}
		_ = conn.Close()
		return true, nil
	}
}

// HTTPEndpoint returns a check that succeeds once a GET against url returns
// a status below 500. Certificate verification is skipped: the API server
// serves a self-signed certificate until the kubeconfig is in place.
func HTTPEndpoint(url string, requestTimeout time.Duration) CheckFunc {
	client := &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // bootstrap CA not trusted yet
		},
	}
	return func(ctx context.Context) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return false, Abort(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return false, err
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return false, fmt.Errorf("%s returned %s", url, resp.Status)
		}
		return true, nil
	}
}
