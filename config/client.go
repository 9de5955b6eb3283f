package config

import (
	"fmt"
	"strings"
	"time"
)

// Client is the detection client configuration.
type Client struct {
	// InstanceID correlates log output across restarts. Generated when empty.
	InstanceID string `yaml:"instance_id"`

	// SocketPath is the Unix domain socket shared with the detector service.
	SocketPath string `yaml:"socket_path"`

	// ShmName is the shared memory segment name, POSIX style ("/name").
	ShmName string `yaml:"shm_name"`

	ConnectTimeout    time.Duration `yaml:"connect_timeout"`    // Handshake bound, default 1s
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // Liveness probe cadence, default 5s
	HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout"`  // Per-probe bound, default 1s
	ReconnectInterval time.Duration `yaml:"reconnect_interval"` // Caller retry cadence, default 3s
	FrameInterval     time.Duration `yaml:"frame_interval"`     // Submission pacing in the run loop

	// AutoReconnect is advisory: the reconnection loop lives in the caller,
	// which exits on connection loss when this is false.
	AutoReconnect bool `yaml:"auto_reconnect"`

	// MetricsAddr exposes Prometheus metrics when non-empty, e.g. ":9143".
	MetricsAddr string `yaml:"metrics_addr"`
}

// ApplyDefaults fills in zero values with defaults.
func (c *Client) ApplyDefaults() {
	if c.InstanceID == "" {
		c.InstanceID = GenerateInstanceID()
	}
	if c.SocketPath == "" {
		c.SocketPath = DefaultSocketPath
	}
	if c.ShmName == "" {
		c.ShmName = DefaultShmName
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.HeartbeatTimeout == 0 {
		c.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.FrameInterval == 0 {
		c.FrameInterval = DefaultFrameInterval
	}
}

// Validate checks the configuration for values the client cannot run with.
func (c *Client) Validate() error {
	if err := ValidateSocketPath(c.SocketPath); err != nil {
		return err
	}
	if err := ValidateShmName(c.ShmName); err != nil {
		return err
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"connect_timeout", c.ConnectTimeout},
		{"heartbeat_interval", c.HeartbeatInterval},
		{"heartbeat_timeout", c.HeartbeatTimeout},
		{"reconnect_interval", c.ReconnectInterval},
		{"frame_interval", c.FrameInterval},
	} {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}
	return nil
}

// ValidateSocketPath checks that a socket path is usable.
func ValidateSocketPath(path string) error {
	if path == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("socket path must be absolute, got %q", path)
	}
	// sun_path is 108 bytes on Linux including the NUL terminator.
	if len(path) > 107 {
		return fmt.Errorf("socket path too long (%d bytes, max 107)", len(path))
	}
	return nil
}

// ValidateShmName checks a POSIX shared memory segment name: a leading
// slash followed by a single path component.
func ValidateShmName(name string) error {
	if name == "" {
		return fmt.Errorf("shared memory name cannot be empty")
	}
	if !strings.HasPrefix(name, "/") {
		return fmt.Errorf("shared memory name must start with '/', got %q", name)
	}
	if strings.Contains(name[1:], "/") {
		return fmt.Errorf("shared memory name must have a single component, got %q", name)
	}
	if len(name) > 255 {
		return fmt.Errorf("shared memory name too long (%d bytes, max 255)", len(name))
	}
	return nil
}
