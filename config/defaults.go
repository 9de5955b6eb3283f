package config

import (
	"time"

	"github.com/google/uuid"
)

// EnvPrefix namespaces environment variables consumed by the CLI.
const EnvPrefix = "VISIONLINK_"

// Well-known IPC endpoints shared with the detector service.
const (
	DefaultSocketPath = "/tmp/vision-detector.sock"
	DefaultShmName    = "/vision-detector-frame"
)

// Default timeout and interval values
const (
	// DefaultConnectTimeout bounds the handshake exchange.
	DefaultConnectTimeout = time.Second

	// DefaultHeartbeatInterval is the cadence of liveness probes,
	// independent of frame traffic.
	DefaultHeartbeatInterval = 5 * time.Second

	// DefaultHeartbeatTimeout bounds a single probe round trip.
	DefaultHeartbeatTimeout = time.Second

	// DefaultReconnectInterval paces the caller's reconnect attempts after
	// a connection loss.
	DefaultReconnectInterval = 3 * time.Second

	// DefaultFrameInterval paces frame submission in the run loop;
	// detection typically runs well below capture rate.
	DefaultFrameInterval = 100 * time.Millisecond
)

// GenerateInstanceID generates a new UUID for log correlation. Useful when
// several clients share one configuration file.
func GenerateInstanceID() string {
	return uuid.New().String()
}
