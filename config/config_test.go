package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.ParseArgs("htmlslim", nil))

	assert.Equal(t, ":9090", cfg.Address)
	assert.Equal(t, "", cfg.RoutesFile)
	assert.Equal(t, 5*time.Minute, cfg.ReadTimeoutServer)
	assert.False(t, cfg.AccessLogDisabled)
}

func TestParseArgs(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.ParseArgs("htmlslim", []string{
		"-address", ":8080",
		"-routes-file", "routes.yaml",
		"-remove-hop-headers",
		"-metrics-listener", ":9911",
	}))

	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, "routes.yaml", cfg.RoutesFile)
	assert.True(t, cfg.RemoveHopHeaders)
	assert.Equal(t, ":9911", cfg.MetricsListener)
}

func TestRejectsNonFlagArguments(t *testing.T) {
	cfg := NewConfig()
	assert.Error(t, cfg.ParseArgs("htmlslim", []string{"stray"}))
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"address: :8080\nroutes-file: routes.yaml\naccess-log-disabled: true\n",
	), 0644))

	cfg := NewConfig()
	require.NoError(t, cfg.ParseArgs("htmlslim", []string{"-config-file", path}))

	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, "routes.yaml", cfg.RoutesFile)
	assert.True(t, cfg.AccessLogDisabled)
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("address: :8080\n"), 0644))

	cfg := NewConfig()
	require.NoError(t, cfg.ParseArgs("htmlslim", []string{
		"-config-file", path,
		"-address", ":7070",
	}))

	assert.Equal(t, ":7070", cfg.Address)
}

func TestInvalidConfigFile(t *testing.T) {
	cfg := NewConfig()
	assert.Error(t, cfg.ParseArgs("htmlslim", []string{"-config-file", "missing.yaml"}))

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("unknown-option: x\n"), 0644))

	cfg = NewConfig()
	assert.Error(t, cfg.ParseArgs("htmlslim", []string{"-config-file", path}))
}

func TestToOptions(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.ParseArgs("htmlslim", []string{
		"-address", ":8080",
		"-routes-file", "routes.yaml",
		"-proxy-preserve-host",
		"-access-log-disabled",
		"-metrics-prefix", "custom",
	}))

	o := cfg.ToOptions()
	assert.Equal(t, ":8080", o.Address)
	assert.Equal(t, "routes.yaml", o.RoutesFile)
	assert.True(t, o.ProxyPreserveHost)
	assert.True(t, o.AccessLogDisabled)
	assert.Equal(t, "custom", o.MetricsPrefix)
}
