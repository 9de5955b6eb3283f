package client

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/robosight/visionlink/protocol"
)

// heartbeatMaxAttempts bounds how many queued messages a single probe will
// read through while waiting for its ack.
const heartbeatMaxAttempts = 5

// SendHeartbeat probes the server for liveness, bounded by the configured
// heartbeat timeout. It is meant to be called on a coarse interval,
// independent of frame traffic, and is the trigger that downgrades an idle
// connection when the peer has silently died.
//
// Detection results and heartbeat acks share one socket and are not
// request/response-locked to each other, so results may legitimately arrive
// ahead of the ack. The probe reads through them: a detection result is
// fully consumed and intentionally dropped (the next ReceiveDetections
// starts after it), any other message type is discarded as unknown traffic,
// and only the ack terminates the wait. Exhausting the attempt budget or
// the timeout fails the probe.
func (c *Client) SendHeartbeat() error {
	if c.state != StateConnected || c.conn == nil {
		c.setError(fmt.Errorf("heartbeat: %w", ErrNotConnected))
		return ErrNotConnected
	}

	deadline := time.Now().Add(c.cfg.HeartbeatTimeout)

	probe := protocol.EncodeHeartbeat(protocol.Heartbeat{TimestampNs: time.Now().UnixNano()})
	c.conn.SetWriteDeadline(deadline)
	if _, err := c.conn.Write(probe); err != nil {
		if isPeerGone(err) {
			return c.fail(fmt.Errorf("%w while sending heartbeat", ErrPeerClosed))
		}
		return c.fail(fmt.Errorf("send heartbeat: %w", err))
	}

	buf := protocol.GetRecvBuffer()
	defer protocol.PutRecvBuffer(buf)

	for attempt := 0; attempt < heartbeatMaxAttempts; attempt++ {
		c.conn.SetReadDeadline(deadline)
		n, err := c.conn.Read(*buf)
		switch {
		case errors.Is(err, os.ErrDeadlineExceeded):
			return c.fail(fmt.Errorf("%w: no heartbeat response within %s", ErrTimeout, c.cfg.HeartbeatTimeout))
		case err != nil && !isPeerGone(err):
			return c.fail(fmt.Errorf("read heartbeat response: %w", err))
		case err != nil || n == 0:
			return c.fail(fmt.Errorf("%w while awaiting heartbeat response", ErrPeerClosed))
		}

		switch (*buf)[0] {
		case protocol.MsgTypeHeartbeatAck:
			if _, err := protocol.DecodeHeartbeatAck((*buf)[:n]); err != nil {
				return c.fail(fmt.Errorf("%w: %v", ErrProtocol, err))
			}
			return nil
		case protocol.MsgTypeDetectionResult:
			c.logger.Debug().Msg("dropping detection result interleaved with heartbeat")
		default:
			c.logger.Debug().
				Uint8("type", (*buf)[0]).
				Msg("discarding unknown message while awaiting heartbeat response")
		}
	}

	return c.fail(fmt.Errorf("%w: no heartbeat response after %d messages", ErrTimeout, heartbeatMaxAttempts))
}
