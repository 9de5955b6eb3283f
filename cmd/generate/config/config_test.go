package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/robosight/visionlink/config"
	"github.com/robosight/visionlink/examples"
)

// TestClientConfigTemplateFields verifies that the embedded client.yaml
// template parses into config.Client without unknown fields, passes
// validation, and carries the documented defaults.
func TestClientConfigTemplateFields(t *testing.T) {
	content, err := examples.ClientConfig()
	require.NoError(t, err, "failed to load client config template")

	var cfg config.Client
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true) // Error on unknown fields
	err = decoder.Decode(&cfg)
	require.NoError(t, err, "client.yaml contains unknown fields or invalid YAML")

	assert.Equal(t, config.DefaultSocketPath, cfg.SocketPath)
	assert.Equal(t, config.DefaultShmName, cfg.ShmName)
	assert.Equal(t, config.DefaultConnectTimeout, cfg.ConnectTimeout)
	assert.Equal(t, config.DefaultHeartbeatInterval, cfg.HeartbeatInterval)
	assert.Equal(t, config.DefaultHeartbeatTimeout, cfg.HeartbeatTimeout)
	assert.Equal(t, config.DefaultReconnectInterval, cfg.ReconnectInterval)
	assert.Equal(t, config.DefaultFrameInterval, cfg.FrameInterval)
	assert.True(t, cfg.AutoReconnect)

	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
}

// TestServerConfigTemplateFields verifies that the embedded server.yaml
// template parses into config.Server without unknown fields and passes
// validation.
func TestServerConfigTemplateFields(t *testing.T) {
	content, err := examples.ServerConfig()
	require.NoError(t, err, "failed to load server config template")

	var cfg config.Server
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true) // Error on unknown fields
	err = decoder.Decode(&cfg)
	require.NoError(t, err, "server.yaml contains unknown fields or invalid YAML")

	assert.Equal(t, config.DefaultSocketPath, cfg.SocketPath)
	assert.Equal(t, config.DefaultShmName, cfg.ShmName)
	assert.NotEmpty(t, cfg.Model.Name)
	assert.NotEmpty(t, cfg.Model.Architecture)
	assert.NotEmpty(t, cfg.Detections, "template should ship at least one canned detection")

	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
}
