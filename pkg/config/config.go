// Package config loads the cnsfacts configuration file.
//
// The file is YAML; every key is optional and falls back to Default:
//
//	hints:
//	  paths: [/etc/chef/ohai/hints]
//	cloud:
//	  probeTimeout: 600ms
//	  metadataURL: http://169.254.169.254
//	  requestsPerSecond: 50
//	plugins:
//	  disabled: [systemd]
//	packages:
//	  libraries: [go]
//	  tools: [containerd, kubelet]
//	kubernetes:
//	  kubeconfig: /etc/kubernetes/admin.conf
//	  nodeName: gpu-node-1
//	  timeout: 30s
//	systemd:
//	  services: [containerd.service]
//	network:
//	  arpPath: /proc/net/arp
//	kernel:
//	  root: /
//	  sysctl: true
//
// Environment variables override the file: CNSFACTS_HINTS_PATH (a
// path-list separated list of hint directories) and LOG_LEVEL.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	cnserrors "github.com/NVIDIA/cns-facts/pkg/errors"
	"github.com/NVIDIA/cns-facts/pkg/hints"
)

const (
	// EnvHintsPath overrides hints.paths.
	EnvHintsPath = "CNSFACTS_HINTS_PATH"

	// EnvLogLevel overrides log.level.
	EnvLogLevel = "LOG_LEVEL"

	maxProbeTimeout = 30 * time.Second
	maxConfigSize   = 1 << 20
)

// Config is the complete cnsfacts configuration.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Hints      HintsConfig      `yaml:"hints"`
	Cloud      CloudConfig      `yaml:"cloud"`
	Plugins    PluginsConfig    `yaml:"plugins"`
	Packages   PackagesConfig   `yaml:"packages"`
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
	Systemd    SystemdConfig    `yaml:"systemd"`
	Network    NetworkConfig    `yaml:"network"`
	Kernel     KernelConfig     `yaml:"kernel"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// HintsConfig lists hint directories, searched in order.
type HintsConfig struct {
	Paths []string `yaml:"paths"`
}

// CloudConfig controls the cloud metadata probes.
type CloudConfig struct {
	ProbeTimeout      time.Duration `yaml:"probeTimeout"`
	MetadataURL       string        `yaml:"metadataURL"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
}

// PluginsConfig selects plugins.
type PluginsConfig struct {
	Disabled []string `yaml:"disabled"`
}

// PackagesConfig lists components whose versions are recorded.
type PackagesConfig struct {
	Libraries []string `yaml:"libraries"`
	Tools     []string `yaml:"tools"`
}

// KubernetesConfig locates the cluster.
type KubernetesConfig struct {
	Kubeconfig string        `yaml:"kubeconfig"`
	NodeName   string        `yaml:"nodeName"`
	Timeout    time.Duration `yaml:"timeout"`
}

// SystemdConfig lists units to report.
type SystemdConfig struct {
	Services []string `yaml:"services"`
}

// NetworkConfig locates the neighbor table.
type NetworkConfig struct {
	ARPPath string `yaml:"arpPath"`
}

// KernelConfig controls procfs collection.
type KernelConfig struct {
	Root   string `yaml:"root"`
	Sysctl bool   `yaml:"sysctl"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:   LogConfig{Level: "info"},
		Hints: HintsConfig{Paths: append([]string(nil), hints.DefaultPaths...)},
		Cloud: CloudConfig{
			ProbeTimeout:      600 * time.Millisecond,
			MetadataURL:       "http://169.254.169.254",
			RequestsPerSecond: 50,
		},
		Packages: PackagesConfig{
			Libraries: []string{"go"},
			Tools:     []string{"containerd", "kubelet", "nvidia-smi"},
		},
		Kubernetes: KubernetesConfig{
			Timeout: 30 * time.Second,
		},
		Systemd: SystemdConfig{
			Services: []string{"containerd.service", "docker.service", "kubelet.service"},
		},
		Network: NetworkConfig{ARPPath: "/proc/net/arp"},
		Kernel:  KernelConfig{Root: "/", Sysctl: true},
	}
}

// Load reads the configuration at path on top of Default and applies
// environment overrides. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, cnserrors.Wrap(cnserrors.ErrCodeInvalidRequest,
				fmt.Sprintf("failed to open config %s", path), err)
		}
		defer f.Close()

		if err := cfg.decode(io.LimitReader(f, maxConfigSize)); err != nil {
			return nil, cnserrors.Wrap(cnserrors.ErrCodeInvalidRequest,
				fmt.Sprintf("failed to parse config %s", path), err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML content on top of Default without environment
// overrides.
func Parse(content []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(bytes.NewReader(content)); err != nil {
		return nil, cnserrors.Wrap(cnserrors.ErrCodeInvalidRequest, "failed to parse config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvHintsPath); v != "" {
		var paths []string
		for _, p := range filepath.SplitList(v) {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		if len(paths) > 0 {
			c.Hints.Paths = paths
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	invalid := func(msg string) error {
		return cnserrors.New(cnserrors.ErrCodeInvalidRequest, msg)
	}

	if len(c.Hints.Paths) == 0 {
		return invalid("hints.paths must list at least one directory")
	}
	if c.Cloud.ProbeTimeout <= 0 || c.Cloud.ProbeTimeout > maxProbeTimeout {
		return invalid(fmt.Sprintf("cloud.probeTimeout must be within (0, %s], got %s",
			maxProbeTimeout, c.Cloud.ProbeTimeout))
	}
	if !strings.HasPrefix(c.Cloud.MetadataURL, "http://") && !strings.HasPrefix(c.Cloud.MetadataURL, "https://") {
		return invalid(fmt.Sprintf("cloud.metadataURL must be an http(s) URL, got %q", c.Cloud.MetadataURL))
	}
	if c.Kubernetes.Timeout <= 0 {
		return invalid(fmt.Sprintf("kubernetes.timeout must be positive, got %s", c.Kubernetes.Timeout))
	}
	if c.Cloud.RequestsPerSecond <= 0 {
		return invalid("cloud.requestsPerSecond must be positive")
	}
	for _, name := range c.Plugins.Disabled {
		if strings.TrimSpace(name) == "" {
			return invalid("plugins.disabled contains an empty name")
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid(fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	return nil
}
