package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadClientConfig(t *testing.T) {
	path := writeConfigFile(t, `
socket_path: /run/detector.sock
shm_name: /detector-frame
connect_timeout: 500ms
heartbeat_interval: 2s
auto_reconnect: true
`)

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/run/detector.sock", cfg.SocketPath)
	assert.Equal(t, "/detector-frame", cfg.ShmName)
	assert.Equal(t, 500*time.Millisecond, cfg.ConnectTimeout)
	assert.Equal(t, 2*time.Second, cfg.HeartbeatInterval)
	assert.True(t, cfg.AutoReconnect)
	// Unspecified fields fall back to defaults.
	assert.Equal(t, DefaultHeartbeatTimeout, cfg.HeartbeatTimeout)
}

func TestLoadClientConfigRejectsInvalid(t *testing.T) {
	path := writeConfigFile(t, "socket_path: not-absolute\n")

	_, err := LoadClientConfig(path)
	assert.Error(t, err)
}

func TestLoadClientConfigMissingFile(t *testing.T) {
	_, err := LoadClientConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadServerConfig(t *testing.T) {
	path := writeConfigFile(t, `
socket_path: /run/detector.sock
model:
  name: ssd_mobilenet_v2
  architecture: ssd-mobilenet
  input_width: 300
  input_height: 300
  num_classes: 80
inference_time_ms: 12.5
detections:
  - label: person
    confidence: 0.9
    x: 0.4
    y: 0.2
    w: 0.2
    h: 0.5
`)

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ssd_mobilenet_v2", cfg.Model.Name)
	assert.EqualValues(t, 12.5, cfg.InferenceTimeMs)
	require.Len(t, cfg.Detections, 1)
	assert.Equal(t, "person", cfg.Detections[0].Label)
	// Defaults still applied to unset fields.
	assert.Equal(t, DefaultShmName, cfg.ShmName)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "socket_path: [unterminated\n")

	_, err := LoadConfig[Client](path)
	assert.Error(t, err)
}
