package client

import (
	"fmt"
	"time"

	"github.com/robosight/visionlink/protocol"
)

// SendFrame publishes one RGB frame to the shared region and announces it
// over the control channel. The frame id is caller-assigned and monotonic;
// it correlates the frame with its eventual detection result.
//
// The call is synchronous and transmits exactly once; throttling submission
// rate is the caller's job. An oversized frame is rejected locally without
// touching the region or the connection state.
func (c *Client) SendFrame(pixels []byte, width, height uint32, frameID uint64) error {
	if c.state != StateConnected || c.conn == nil || c.region == nil {
		c.setError(fmt.Errorf("send frame: %w", ErrNotConnected))
		return ErrNotConnected
	}

	if width == 0 || height == 0 || width > protocol.MaxFrameWidth || height > protocol.MaxFrameHeight {
		err := fmt.Errorf("%w: %dx%d outside bounds %dx%d",
			ErrFrameTooLarge, width, height, protocol.MaxFrameWidth, protocol.MaxFrameHeight)
		c.setError(err)
		return err
	}

	frameBytes := int(width) * int(height) * protocol.BytesPerPixel
	if len(pixels) < frameBytes {
		err := fmt.Errorf("frame payload %d bytes, need %d for %dx%d", len(pixels), frameBytes, width, height)
		c.setError(err)
		return err
	}

	header := protocol.FrameHeader{
		FrameID:     frameID,
		Width:       width,
		Height:      height,
		Stride:      width * protocol.BytesPerPixel,
		Format:      protocol.FormatRGB24,
		TimestampNs: time.Now().UnixNano(),
	}

	// Header and payload writes are release-ordered ahead of the ready
	// notification below; that ordering is the entire synchronization
	// contract with the reader.
	if err := c.region.WriteFrame(header, pixels[:frameBytes]); err != nil {
		err = fmt.Errorf("%w: %v", ErrFrameTooLarge, err)
		c.setError(err)
		return err
	}

	notif := protocol.EncodeFrameReady(protocol.FrameReady{
		FrameID:     frameID,
		Width:       width,
		Height:      height,
		TimestampNs: header.TimestampNs,
	})
	c.conn.SetWriteDeadline(time.Now().Add(sendTimeout))
	if _, err := c.conn.Write(notif); err != nil {
		if isPeerGone(err) {
			return c.fail(fmt.Errorf("%w while announcing frame %d", ErrPeerClosed, frameID))
		}
		return c.fail(fmt.Errorf("send frame notification: %w", err))
	}

	return nil
}
