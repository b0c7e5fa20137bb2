package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	ControlPlaneInit  time.Duration // Hard limit for `kubeadm init`
	APIServer         time.Duration // Wait for the API server to answer /readyz
	APIServerSettle   time.Duration // Grace for an existing control plane before refusing it
	Rollout           time.Duration // Required workload readiness waits
	BestEffort        time.Duration // Waits whose timeout is only logged
	Helm              time.Duration // A single chart install or upgrade
	NetworkProbe      time.Duration // Reachability probes of the network step
	PollInterval      time.Duration // Interval between readiness checks
	RetryMaxAttempts  int           // Attempts for operations racing a webhook
	RetryInitialDelay time.Duration // Initial delay between such attempts
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - K8SOLO_TIMEOUT_CONTROL_PLANE_INIT (default: 10m)
//   - K8SOLO_TIMEOUT_API_SERVER (default: 5m)
//   - K8SOLO_TIMEOUT_API_SERVER_SETTLE (default: 1m)
//   - K8SOLO_TIMEOUT_ROLLOUT (default: 10m)
//   - K8SOLO_TIMEOUT_BEST_EFFORT (default: 3m)
//   - K8SOLO_TIMEOUT_HELM (default: 10m)
//   - K8SOLO_TIMEOUT_NETWORK_PROBE (default: 30s)
//   - K8SOLO_POLL_INTERVAL (default: 5s)
//   - K8SOLO_RETRY_MAX_ATTEMPTS (default: 5)
//   - K8SOLO_RETRY_INITIAL_DELAY (default: 2s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		ControlPlaneInit:  parseDuration("K8SOLO_TIMEOUT_CONTROL_PLANE_INIT", 10*time.Minute),
		APIServer:         parseDuration("K8SOLO_TIMEOUT_API_SERVER", 5*time.Minute),
		APIServerSettle:   parseDuration("K8SOLO_TIMEOUT_API_SERVER_SETTLE", time.Minute),
		Rollout:           parseDuration("K8SOLO_TIMEOUT_ROLLOUT", 10*time.Minute),
		BestEffort:        parseDuration("K8SOLO_TIMEOUT_BEST_EFFORT", 3*time.Minute),
		Helm:              parseDuration("K8SOLO_TIMEOUT_HELM", 10*time.Minute),
		NetworkProbe:      parseDuration("K8SOLO_TIMEOUT_NETWORK_PROBE", 30*time.Second),
		PollInterval:      parseDuration("K8SOLO_POLL_INTERVAL", 5*time.Second),
		RetryMaxAttempts:  parseInt("K8SOLO_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("K8SOLO_RETRY_INITIAL_DELAY", 2*time.Second),
	}
}

// parseDuration returns the positive duration in envVar, or defaultVal.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
