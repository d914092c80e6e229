package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadPoolConfigAppliesGeneralDefaultsAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.yaml")
	writeFile(t, path, `
general:
  start_amount: 3
  scale_limit: 8
  idle_timeout: 120
  running_timeout: 30
monitor:
  tick_seconds: 2
  app_label: custom.label
languages:
  java:
    scale_limit: 12
`)

	cfg, err := LoadPoolConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.MonitorTick)
	assert.Equal(t, "custom.label", cfg.AppLabel)

	python, ok := cfg.Languages["python"]
	require.True(t, ok)
	assert.Equal(t, 3, python.PoolSize)
	assert.Equal(t, 8, python.ScaleLimit)
	assert.Equal(t, 120*time.Second, python.IdleTimeout)
	assert.Equal(t, 30*time.Second, python.RunningTimeout)

	java, ok := cfg.Languages["java"]
	require.True(t, ok)
	assert.Equal(t, 12, java.ScaleLimit, "per-language override should win over the general default")
}

func TestLoadPoolConfigRequiresGeneralSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.yaml")
	writeFile(t, path, `
languages:
  java:
    scale_limit: 12
`)

	_, err := LoadPoolConfig(path)
	require.Error(t, err)
}
