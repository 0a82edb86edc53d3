package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// 无配置文件时完全依赖默认值
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "eeg-server", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.HTTP.PollInterval)

	assert.Equal(t, 57600, cfg.Serial.BaudRate)
	assert.Equal(t, "000000", cfg.Serial.DeviceID)

	assert.Equal(t, 256.0, cfg.Acquisition.SampleRate)
	assert.Equal(t, 512, cfg.Acquisition.WindowSize)
	assert.Equal(t, 256, cfg.Acquisition.Overlap)
	assert.Equal(t, 0.85, cfg.Acquisition.MeditationThreshold)
	assert.Equal(t, 2.4, cfg.Acquisition.Vref)
	assert.Equal(t, 6.0, cfg.Acquisition.Gain)
	assert.Equal(t, 8.0, cfg.Acquisition.Bands.Alpha.Low)
	assert.Equal(t, 14.0, cfg.Acquisition.Bands.Alpha.High)

	assert.Equal(t, 100*time.Millisecond, cfg.Simulation.TickInterval)
	assert.Equal(t, 0.96, cfg.Simulation.DecayFactor)
	assert.Equal(t, 30.0, cfg.Simulation.Saturation)

	assert.True(t, cfg.Metrics.Enable)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	content := []byte(`
app:
  name: custom-eeg
serial:
  port: /dev/ttyUSB0
  baudRate: 115200
acquisition:
  windowSize: 1024
  overlap: 512
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "custom-eeg", cfg.App.Name)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 1024, cfg.Acquisition.WindowSize)
	assert.Equal(t, 512, cfg.Acquisition.Overlap)
	// 未覆盖的键保持默认值
	assert.Equal(t, 256.0, cfg.Acquisition.SampleRate)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}
