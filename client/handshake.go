package client

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/robosight/visionlink/protocol"
)

// handshake performs the one-shot version negotiation: a fixed-size request
// announcing the protocol version and the maximum frame dimensions the
// client will ever submit, answered by a single fixed-size response. The
// whole exchange is bounded by the connect timeout.
//
// On success the server info is the sole source of truth for model
// capabilities until the next successful handshake. On any failure no
// partial state is retained.
func (c *Client) handshake() error {
	deadline := time.Now().Add(c.cfg.ConnectTimeout)

	req := protocol.EncodeHandshakeRequest(protocol.HandshakeRequest{
		Version:   protocol.ProtocolVersion,
		MaxWidth:  protocol.MaxFrameWidth,
		MaxHeight: protocol.MaxFrameHeight,
	})
	c.conn.SetWriteDeadline(deadline)
	if _, err := c.conn.Write(req); err != nil {
		return fmt.Errorf("send handshake request: %w", err)
	}

	buf := protocol.GetRecvBuffer()
	defer protocol.PutRecvBuffer(buf)

	c.conn.SetReadDeadline(deadline)
	n, err := c.conn.Read(*buf)
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: no handshake response within %s", ErrTimeout, c.cfg.ConnectTimeout)
	case err != nil && !isPeerGone(err):
		return fmt.Errorf("read handshake response: %w", err)
	case err != nil || n == 0:
		return fmt.Errorf("%w during handshake", ErrPeerClosed)
	}

	resp, err := protocol.DecodeHandshakeResponse((*buf)[:n])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	if !resp.Accepted {
		return fmt.Errorf("%w (client version %d, server version %d)",
			ErrRejected, protocol.ProtocolVersion, resp.Version)
	}
	if resp.Version != protocol.ProtocolVersion {
		return fmt.Errorf("%w: accepted with mismatched version %d, want %d",
			ErrProtocol, resp.Version, protocol.ProtocolVersion)
	}

	c.serverInfo = ServerInfo{
		ProtocolVersion: resp.Version,
		Accepted:        true,
		Model:           resp.Model,
	}
	return nil
}
