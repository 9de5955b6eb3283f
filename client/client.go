// Package client implements the IPC client for the vision detector
// service: a Unix domain socket control channel carrying small fixed-size
// typed messages, paired with a shared memory region carrying raw pixel
// buffers.
//
// The client is synchronous and caller-driven. Every operation executes to
// completion on the calling goroutine and none spawn background work; the
// owning application invokes Connect, SendFrame, ReceiveDetections and
// SendHeartbeat from its own loop. The client is not safe for concurrent
// use from multiple goroutines.
package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/robosight/visionlink/config"
	"github.com/robosight/visionlink/protocol"
	"github.com/robosight/visionlink/shm"
)

// ConnectionState represents the state of the detector connection.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

// String returns a string representation of the connection state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ServerInfo is the handshake outcome. The zero value means no successful
// handshake has happened yet; the fields are only meaningful when Accepted
// is true.
type ServerInfo struct {
	ProtocolVersion uint32
	Accepted        bool
	Model           protocol.ModelInfo
}

// sendTimeout bounds control channel writes outside the handshake and
// heartbeat paths, which carry their own deadlines.
const sendTimeout = time.Second

// shutdownTimeout bounds the best-effort shutdown notification.
const shutdownTimeout = 100 * time.Millisecond

// Client talks to the detector service. The socket and the shared memory
// mapping are owned together for the lifetime of a connected session and
// are always released together on any transition out of StateConnected.
type Client struct {
	cfg    *config.Client
	logger zerolog.Logger

	state      ConnectionState
	serverInfo ServerInfo
	lastError  string

	conn   *net.UnixConn
	region *shm.Region
}

// New creates a detection client. It does not connect.
func New(cfg *config.Client, logger zerolog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger.With().Str("component", "detection_client").Logger(),
		state:  StateDisconnected,
	}
}

// Connect dials the control socket, maps the shared region and performs the
// handshake. Already connected is a no-op success. Any failure releases
// whatever was acquired and leaves the client in StateError; both StateError
// and StateDisconnected are eligible for a fresh attempt.
//
// Reconnection is caller-driven: the client imposes no internal timer.
func (c *Client) Connect() error {
	if c.state == StateConnected {
		return nil
	}

	c.cleanup()
	c.state = StateConnecting

	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := dialer.Dial("unixpacket", c.cfg.SocketPath)
	if err != nil {
		return c.failConnect(fmt.Errorf("connect to detector at %s: %w", c.cfg.SocketPath, err))
	}
	c.conn = conn.(*net.UnixConn)

	region, err := shm.Open(c.cfg.ShmName)
	if err != nil {
		return c.failConnect(fmt.Errorf("open shared memory %s: %w", c.cfg.ShmName, err))
	}
	c.region = region

	if err := c.handshake(); err != nil {
		return c.failConnect(err)
	}

	c.state = StateConnected
	c.logger.Info().
		Str("model", c.serverInfo.Model.Name).
		Str("architecture", c.serverInfo.Model.Architecture.String()).
		Uint32("input_width", c.serverInfo.Model.InputWidth).
		Uint32("input_height", c.serverInfo.Model.InputHeight).
		Uint32("classes", c.serverInfo.Model.NumClasses).
		Str("device", c.serverInfo.Model.Device).
		Msg("connected to detector")

	return nil
}

// Disconnect sends a best-effort shutdown notification, releases the socket
// and the mapping, and always ends in StateDisconnected. It is the only
// cancellation primitive and is unconditional.
func (c *Client) Disconnect() {
	if c.state == StateConnected && c.conn != nil {
		c.conn.SetWriteDeadline(time.Now().Add(shutdownTimeout))
		if _, err := c.conn.Write(protocol.EncodeShutdown()); err != nil {
			c.logger.Debug().Err(err).Msg("shutdown notification not delivered")
		}
	}

	c.cleanup()
	c.state = StateDisconnected
}

// IsConnected reports whether the client is in StateConnected.
func (c *Client) IsConnected() bool {
	return c.state == StateConnected
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	return c.state
}

// ServerInfo returns the last successful handshake outcome.
func (c *Client) ServerInfo() ServerInfo {
	return c.serverInfo
}

// LastError returns the most recent failure description, for diagnostics.
func (c *Client) LastError() string {
	return c.lastError
}

// failConnect tears down partial resources and records the failure.
func (c *Client) failConnect(err error) error {
	c.cleanup()
	c.state = StateError
	c.setError(err)
	return err
}

// setError retains a human-readable last error on the client.
func (c *Client) setError(err error) {
	c.lastError = err.Error()
	c.logger.Warn().Err(err).Msg("detector client error")
}

// cleanup releases the socket and the mapping; both always go together.
func (c *Client) cleanup() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.region != nil {
		c.region.Close()
		c.region = nil
	}
}

// fail records a mid-session failure and downgrades the connection state:
// a peer hangup means StateDisconnected, anything else StateError. Either
// way the session resources are released together.
func (c *Client) fail(err error) error {
	if errors.Is(err, ErrPeerClosed) {
		c.state = StateDisconnected
	} else {
		c.state = StateError
	}
	c.setError(err)
	c.cleanup()
	return err
}

// isPeerGone reports transport errors that mean the peer went away rather
// than a local or transient failure.
func isPeerGone(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}
