package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cnserrors "github.com/NVIDIA/cns-facts/pkg/errors"
	"github.com/NVIDIA/cns-facts/pkg/hints"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, hints.DefaultPaths, cfg.Hints.Paths)
	assert.Equal(t, 600*time.Millisecond, cfg.Cloud.ProbeTimeout)
	assert.Equal(t, 30*time.Second, cfg.Kubernetes.Timeout)
	assert.True(t, cfg.Kernel.Sysctl)
	assert.Empty(t, cfg.Plugins.Disabled)
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvHintsPath, "")
	t.Setenv(EnvLogLevel, "")

	path := filepath.Join(t.TempDir(), "cnsfacts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
hints:
  paths: [/opt/hints]
cloud:
  probeTimeout: 250ms
plugins:
  disabled: [systemd, kubernetes]
kernel:
  sysctl: false
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/opt/hints"}, cfg.Hints.Paths)
	assert.Equal(t, 250*time.Millisecond, cfg.Cloud.ProbeTimeout)
	assert.Equal(t, []string{"systemd", "kubernetes"}, cfg.Plugins.Disabled)
	assert.False(t, cfg.Kernel.Sysctl)
	assert.Equal(t, "/", cfg.Kernel.Root, "unset keys keep defaults")
	assert.Equal(t, "http://169.254.169.254", cfg.Cloud.MetadataURL)
}

func TestLoad_EmptyPath(t *testing.T) {
	t.Setenv(EnvHintsPath, "")
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dirs := filepath.Join("/a", "hints") + string(os.PathListSeparator) + filepath.Join("/b", "hints")
	t.Setenv(EnvHintsPath, dirs)
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("/a", "hints"), filepath.Join("/b", "hints")}, cfg.Hints.Paths)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv(EnvHintsPath, "")
	t.Setenv(EnvLogLevel, "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, cnserrors.ErrCodeInvalidRequest, cnserrors.CodeOf(err))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("clouds:\n  probeTimeout: 1s\n"), 0o600))
	_, err = Load(path)
	assert.Error(t, err, "unknown keys are rejected")
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"empty document", "", false},
		{"valid timeout", "cloud:\n  probeTimeout: 2s\n", false},
		{"zero timeout", "cloud:\n  probeTimeout: 0s\n", true},
		{"excessive timeout", "cloud:\n  probeTimeout: 5m\n", true},
		{"kubernetes timeout", "kubernetes:\n  timeout: 5s\n", false},
		{"zero kubernetes timeout", "kubernetes:\n  timeout: 0s\n", true},
		{"no hint paths", "hints:\n  paths: []\n", true},
		{"bad metadata url", "cloud:\n  metadataURL: 169.254.169.254\n", true},
		{"empty disabled name", "plugins:\n  disabled: [\"\"]\n", true},
		{"bad log level", "log:\n  level: loud\n", true},
		{"malformed yaml", "cloud: [\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
