package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robosight/visionlink/protocol"
)

func TestServerApplyDefaults(t *testing.T) {
	var cfg Server
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultSocketPath, cfg.SocketPath)
	assert.Equal(t, DefaultShmName, cfg.ShmName)
	assert.Equal(t, "yolov8n", cfg.Model.Name)
	assert.NotEmpty(t, cfg.Detections)

	require.NoError(t, cfg.Validate())
}

func TestServerModelInfoConversion(t *testing.T) {
	cfg := Server{
		Model: ServerModel{
			Name:         "ssd_mobilenet_v2",
			Architecture: "ssd-mobilenet",
			InputWidth:   300,
			InputHeight:  300,
			NumClasses:   80,
			Device:       "cpu",
		},
	}

	info := cfg.ModelInfo()
	assert.Equal(t, protocol.ArchSSDMobileNet, info.Architecture)
	assert.Equal(t, uint32(300), info.InputWidth)
	assert.Equal(t, uint32(80), info.NumClasses)

	cfg.Model.Architecture = "something-else"
	assert.Equal(t, protocol.ArchUnknown, cfg.ModelInfo().Architecture)
}

func TestServerValidateBoundsDetections(t *testing.T) {
	var cfg Server
	cfg.ApplyDefaults()

	cfg.Detections = make([]ServerDetection, protocol.MaxDetections+1)
	assert.Error(t, cfg.Validate())

	cfg.Detections = []ServerDetection{{Label: "person", Confidence: 1.5}}
	assert.Error(t, cfg.Validate())
}
