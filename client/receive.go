package client

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/robosight/visionlink/protocol"
)

// drainReadTimeout guards the read that follows a positive readiness poll.
// The data is already queued, so this never blocks in practice.
const drainReadTimeout = 10 * time.Millisecond

// pollReadable checks the control socket for queued inbound data with a
// zero-timeout poll. A hangup counts as readable so the subsequent read can
// classify the peer disconnect.
func (c *Client) pollReadable() (bool, error) {
	raw, err := c.conn.SyscallConn()
	if err != nil {
		return false, fmt.Errorf("raw control socket: %w", err)
	}

	var ready bool
	var pollErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, 0)
		if err != nil && !errors.Is(err, unix.EINTR) {
			pollErr = err
			return
		}
		ready = n > 0 && fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0
	})
	if ctrlErr != nil {
		return false, fmt.Errorf("poll control socket: %w", ctrlErr)
	}
	if pollErr != nil {
		return false, fmt.Errorf("poll control socket: %w", pollErr)
	}
	return ready, nil
}

// ReceiveDetections returns the next queued detection result, or (nil, nil)
// immediately when nothing is pending. It never blocks.
//
// A zero-length read is a peer-initiated disconnect and moves the client to
// StateDisconnected. A message of a different shape is discarded whole and
// reported as "no result"; the transport preserves packet boundaries, so
// unexpected traffic can never desynchronize the stream.
//
// Nothing is cached internally: the caller owns retention of the current
// detection set.
func (c *Client) ReceiveDetections() (*protocol.DetectionResult, error) {
	if c.state != StateConnected || c.conn == nil {
		return nil, ErrNotConnected
	}

	ready, err := c.pollReadable()
	if err != nil {
		return nil, c.fail(err)
	}
	if !ready {
		return nil, nil
	}

	buf := protocol.GetRecvBuffer()
	defer protocol.PutRecvBuffer(buf)

	c.conn.SetReadDeadline(time.Now().Add(drainReadTimeout))
	n, err := c.conn.Read(*buf)
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		// Readiness raced away; treat like an idle socket.
		return nil, nil
	case err != nil && !isPeerGone(err):
		return nil, c.fail(fmt.Errorf("read detection result: %w", err))
	case err != nil || n == 0:
		return nil, c.fail(ErrPeerClosed)
	}

	if (*buf)[0] != protocol.MsgTypeDetectionResult {
		c.logger.Debug().
			Uint8("type", (*buf)[0]).
			Int("bytes", n).
			Msg("discarding unexpected message on result path")
		return nil, nil
	}

	result, err := protocol.DecodeDetectionResult((*buf)[:n])
	if err != nil {
		return nil, c.fail(fmt.Errorf("%w: %v", ErrProtocol, err))
	}

	return &result, nil
}
