package client

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robosight/visionlink/protocol"
)

func testResult(frameID uint64) protocol.DetectionResult {
	return protocol.DetectionResult{
		FrameID:         frameID,
		InferenceTimeMs: 12.5,
		Detections: []protocol.Detection{
			{Label: "person", Confidence: 0.91, X: 0.10, Y: 0.20, W: 0.30, H: 0.40},
			{Label: "dog", Confidence: 0.55, X: 0.60, Y: 0.55, W: 0.15, H: 0.20},
		},
	}
}

func writeResult(t *testing.T, conn *net.UnixConn, result protocol.DetectionResult) {
	t.Helper()
	_, err := conn.Write(protocol.EncodeDetectionResult(result))
	require.NoError(t, err)
}

// waitResult polls until a result arrives; the kernel needs a moment to
// move the packet across the socketpair.
func waitResult(t *testing.T, c *Client) *protocol.DetectionResult {
	t.Helper()
	var got *protocol.DetectionResult
	require.Eventually(t, func() bool {
		result, err := c.ReceiveDetections()
		if err != nil {
			t.Errorf("receive: %v", err)
			return true
		}
		got = result
		return got != nil
	}, time.Second, time.Millisecond)
	return got
}

func TestReceiveDetectionsNotConnected(t *testing.T) {
	f := newFakeDetector(t)
	c := newTestClient(f.cfg)

	result, err := c.ReceiveDetections()
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestReceiveDetectionsIdleReturnsImmediately(t *testing.T) {
	f := newFakeDetector(t)
	c := newTestClient(f.cfg)
	defer c.Disconnect()

	f.connect(c)

	start := time.Now()
	result, err := c.ReceiveDetections()
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, StateConnected, c.State())
}

func TestReceiveDetectionsReturnsQueuedResult(t *testing.T) {
	f := newFakeDetector(t)
	c := newTestClient(f.cfg)
	defer c.Disconnect()

	conn := f.connect(c)

	want := testResult(7)
	writeResult(t, conn, want)

	got := waitResult(t, c)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	// Result ownership transfers to the caller; the queue is empty again.
	result, err := c.ReceiveDetections()
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestReceiveDetectionsDrainsInArrivalOrder(t *testing.T) {
	f := newFakeDetector(t)
	c := newTestClient(f.cfg)
	defer c.Disconnect()

	conn := f.connect(c)

	writeResult(t, conn, testResult(1))
	writeResult(t, conn, testResult(2))

	first := waitResult(t, c)
	require.NotNil(t, first)
	assert.EqualValues(t, 1, first.FrameID)

	second := waitResult(t, c)
	require.NotNil(t, second)
	assert.EqualValues(t, 2, second.FrameID)
}

func TestReceiveDetectionsDiscardsUnexpectedMessage(t *testing.T) {
	f := newFakeDetector(t)
	c := newTestClient(f.cfg)
	defer c.Disconnect()

	conn := f.connect(c)

	// A stray ack on the result path is discarded whole, then the real
	// result behind it comes through.
	_, err := conn.Write(protocol.EncodeHeartbeatAck(protocol.Heartbeat{TimestampNs: 1}))
	require.NoError(t, err)
	writeResult(t, conn, testResult(3))

	got := waitResult(t, c)
	require.NotNil(t, got)
	assert.EqualValues(t, 3, got.FrameID)
	assert.Equal(t, StateConnected, c.State())
}

func TestReceiveDetectionsRejectsMalformedResult(t *testing.T) {
	f := newFakeDetector(t)
	c := newTestClient(f.cfg)
	defer c.Disconnect()

	conn := f.connect(c)

	// Right tag, impossible detection count.
	pkt := protocol.EncodeDetectionResult(testResult(9))
	pkt[13] = protocol.MaxDetections + 1
	_, err := conn.Write(pkt)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := c.ReceiveDetections()
		return err != nil
	}, time.Second, time.Millisecond)
	assert.Equal(t, StateError, c.State())
	assert.NotEmpty(t, c.LastError())
}
