package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientApplyDefaults(t *testing.T) {
	var cfg Client
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultSocketPath, cfg.SocketPath)
	assert.Equal(t, DefaultShmName, cfg.ShmName)
	assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout)
	assert.Equal(t, DefaultHeartbeatInterval, cfg.HeartbeatInterval)
	assert.Equal(t, DefaultHeartbeatTimeout, cfg.HeartbeatTimeout)
	assert.Equal(t, DefaultReconnectInterval, cfg.ReconnectInterval)
	assert.Equal(t, DefaultFrameInterval, cfg.FrameInterval)
	assert.NotEmpty(t, cfg.InstanceID)

	require.NoError(t, cfg.Validate())
}

func TestClientApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Client{
		InstanceID:     "node-a",
		SocketPath:     "/run/detector.sock",
		ConnectTimeout: 250 * time.Millisecond,
	}
	cfg.ApplyDefaults()

	assert.Equal(t, "node-a", cfg.InstanceID)
	assert.Equal(t, "/run/detector.sock", cfg.SocketPath)
	assert.Equal(t, 250*time.Millisecond, cfg.ConnectTimeout)
	assert.Equal(t, DefaultShmName, cfg.ShmName)
}

func TestValidateSocketPath(t *testing.T) {
	assert.NoError(t, ValidateSocketPath("/tmp/detector.sock"))
	assert.Error(t, ValidateSocketPath(""))
	assert.Error(t, ValidateSocketPath("relative/path.sock"))
	assert.Error(t, ValidateSocketPath("/"+strings.Repeat("x", 120)))
}

func TestValidateShmName(t *testing.T) {
	assert.NoError(t, ValidateShmName("/vision-detector-frame"))
	assert.Error(t, ValidateShmName(""))
	assert.Error(t, ValidateShmName("no-slash"))
	assert.Error(t, ValidateShmName("/nested/name"))
}

func TestClientValidateRejectsNonPositiveDurations(t *testing.T) {
	var cfg Client
	cfg.ApplyDefaults()
	cfg.HeartbeatTimeout = -time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heartbeat_timeout")
}

func TestGenerateInstanceIDIsUnique(t *testing.T) {
	assert.NotEqual(t, GenerateInstanceID(), GenerateInstanceID())
}
