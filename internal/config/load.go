package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration from path (optional when it does not exist
// and required is false), the environment, and defaults, then validates it.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && !required:
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := Parse(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	applyEnv(cfg, os.Getenv)
	if cfg.Node.Name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to determine node name: %w", err)
		}
		cfg.Node.Name = strings.ToLower(hostname)
	}
	cfg.Timeouts = LoadTimeouts()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse overlays YAML data onto cfg. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Environment variables overriding the file.
const (
	EnvNodeName          = "K8SOLO_NODE_NAME"
	EnvNodeIP            = "K8SOLO_NODE_IP"
	EnvInterface         = "K8SOLO_INTERFACE"
	EnvKubernetesVersion = "K8SOLO_KUBERNETES_VERSION"
	EnvAddressPool       = "K8SOLO_ADDRESS_POOL"
	EnvStateDir          = "K8SOLO_STATE_DIR"
	EnvOutputDir         = "K8SOLO_OUTPUT_DIR"
	EnvKubeconfig        = "K8SOLO_KUBECONFIG"
	EnvLogFile           = "K8SOLO_LOG_FILE"
)

func applyEnv(cfg *Config, getenv func(string) string) {
	overrides := []struct {
		env   string
		field *string
	}{
		{EnvNodeName, &cfg.Node.Name},
		{EnvNodeIP, &cfg.Node.IP},
		{EnvInterface, &cfg.Node.Interface},
		{EnvKubernetesVersion, &cfg.Kubernetes.Version},
		{EnvAddressPool, &cfg.Addons.LoadBalancer.AddressPool},
		{EnvStateDir, &cfg.Paths.StateDir},
		{EnvOutputDir, &cfg.Paths.OutputDir},
		{EnvKubeconfig, &cfg.Paths.Kubeconfig},
		{EnvLogFile, &cfg.Paths.LogFile},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(getenv(o.env)); v != "" {
			*o.field = v
		}
	}
}
