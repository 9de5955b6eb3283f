package shm

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/robosight/visionlink/protocol"
)

var testSegSeq int

// openTestRegion opens a uniquely named segment and registers cleanup.
func openTestRegion(t *testing.T) *Region {
	t.Helper()
	testSegSeq++
	name := fmt.Sprintf("/visionlink-test-%d-%d", os.Getpid(), testSegSeq)

	r, err := Open(name)
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Close()
		Remove(name)
	})
	return r
}

func testFrame(width, height uint32, frameID uint64) (protocol.FrameHeader, []byte) {
	h := protocol.FrameHeader{
		FrameID:     frameID,
		Width:       width,
		Height:      height,
		Stride:      width * protocol.BytesPerPixel,
		Format:      protocol.FormatRGB24,
		TimestampNs: time.Now().UnixNano(),
	}
	pixels := make([]byte, int(width)*int(height)*protocol.BytesPerPixel)
	for i := range pixels {
		pixels[i] = byte(i * 7)
	}
	return h, pixels
}

func TestOpenSizesRegionToProtocolCapacity(t *testing.T) {
	r := openTestRegion(t)
	assert.Equal(t, protocol.MaxFrameBytes, r.Capacity())
}

func TestWriteFrameSnapshotRoundTrip(t *testing.T) {
	r := openTestRegion(t)

	h, pixels := testFrame(640, 480, 1)
	require.NoError(t, r.WriteFrame(h, pixels))

	got, payload, err := r.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Equal(t, pixels, payload)
}

func TestWriteFrameOverwritesPrevious(t *testing.T) {
	r := openTestRegion(t)

	h1, p1 := testFrame(640, 480, 1)
	require.NoError(t, r.WriteFrame(h1, p1))

	h2, p2 := testFrame(320, 240, 2)
	require.NoError(t, r.WriteFrame(h2, p2))

	got, payload, err := r.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.FrameID)
	assert.Equal(t, p2, payload)
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	r := openTestRegion(t)

	h, pixels := testFrame(640, 480, 1)
	require.NoError(t, r.WriteFrame(h, pixels))

	before, _, err := r.Snapshot()
	require.NoError(t, err)

	huge := make([]byte, protocol.MaxFrameBytes+1)
	err = r.WriteFrame(protocol.FrameHeader{FrameID: 2}, huge)
	require.Error(t, err)

	// The region must be untouched by the rejected write.
	after, payload, err := r.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, pixels, payload)
}

func TestSnapshotRejectsCorruptHeader(t *testing.T) {
	r := openTestRegion(t)

	h, pixels := testFrame(4, 4, 1)
	h.Stride = ^uint32(0) // forged stride larger than the region
	h.Height = ^uint32(0)
	require.NoError(t, r.WriteFrame(h, pixels))

	_, _, err := r.Snapshot()
	assert.Error(t, err)
}

func TestTwoMappingsShareContent(t *testing.T) {
	writer := openTestRegion(t)

	reader, err := Open(writer.Name())
	require.NoError(t, err)
	defer reader.Close()

	h, pixels := testFrame(160, 120, 9)
	require.NoError(t, writer.WriteFrame(h, pixels))

	got, payload, err := reader.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Equal(t, pixels, payload)
}

// Property: for any frame dimensions up to the protocol maxima, a write
// followed by a simulated server read yields byte-identical header and
// payload contents.
func TestWriteSnapshotFidelity_Property(t *testing.T) {
	testSegSeq++
	name := fmt.Sprintf("/visionlink-prop-%d-%d", os.Getpid(), testSegSeq)
	r, err := Open(name)
	require.NoError(t, err)
	defer func() {
		r.Close()
		Remove(name)
	}()

	rapid.Check(t, func(t *rapid.T) {
		width := rapid.Uint32Range(1, protocol.MaxFrameWidth).Draw(t, "width")
		height := rapid.Uint32Range(1, protocol.MaxFrameHeight).Draw(t, "height")

		h := protocol.FrameHeader{
			FrameID:     rapid.Uint64Range(1, 1<<62).Draw(t, "frameID"),
			Width:       width,
			Height:      height,
			Stride:      width * protocol.BytesPerPixel,
			Format:      protocol.FormatRGB24,
			TimestampNs: rapid.Int64Range(0, 1<<62).Draw(t, "timestampNs"),
		}

		pixels := make([]byte, int(width)*int(height)*protocol.BytesPerPixel)
		seed := rapid.Uint64().Draw(t, "seed")
		for i := range pixels {
			pixels[i] = byte(seed >> (uint(i) % 56))
		}

		if err := r.WriteFrame(h, pixels); err != nil {
			t.Fatalf("write failed: %v", err)
		}

		got, payload, err := r.Snapshot()
		if err != nil {
			t.Fatalf("snapshot failed: %v", err)
		}
		if got != h {
			t.Fatalf("header mismatch: got %+v, want %+v", got, h)
		}
		for i := range pixels {
			if payload[i] != pixels[i] {
				t.Fatalf("payload byte %d mismatch", i)
			}
		}
	})
}
