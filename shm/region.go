// Package shm implements the shared frame buffer: a fixed-capacity memory
// region mapped by both the client and the detection service, holding one
// frame header plus one raw pixel payload.
//
// There is exactly one active frame at a time. No ring buffer, no double
// buffering: each write overwrites the previous content, so the freshest
// frame is always what gets processed. Results are correlated by frame id,
// so a stale correlation is simply discarded by the caller.
package shm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/robosight/visionlink/protocol"
)

// shmDir is where POSIX shared memory objects appear on Linux.
const shmDir = "/dev/shm"

// Region is a mapped shared frame buffer. Single writer, single reader per
// frame cycle; the only synchronization is the release-store publication of
// the frame id word at the start of the header.
type Region struct {
	name string
	data []byte
}

// Path returns the filesystem path backing a segment name. A leading slash
// in the name is the POSIX convention and is stripped for the file name.
func Path(name string) string {
	return filepath.Join(shmDir, strings.TrimPrefix(name, "/"))
}

// Open opens (creating if absent) and maps the named segment at the fixed
// protocol region size. The file descriptor is not retained; the mapping
// alone keeps the segment alive.
func Open(name string) (*Region, error) {
	size := protocol.FrameHeaderSize + protocol.MaxFrameBytes

	f, err := os.OpenFile(Path(name), os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open shared memory %s: %w", name, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("size shared memory %s: %w", name, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("map shared memory %s: %w", name, err)
	}

	return &Region{name: name, data: data}, nil
}

// Name returns the segment name the region was opened with.
func (r *Region) Name() string {
	return r.name
}

// Capacity returns the maximum pixel payload size in bytes.
func (r *Region) Capacity() int {
	return len(r.data) - protocol.FrameHeaderSize
}

// WriteFrame serializes the header and copies the pixel payload into the
// region, then publishes by storing the frame id word with release
// semantics. All header and payload writes happen-before a reader's
// acquire-load of the frame id; there is no lock on the region.
//
// An oversized payload is rejected without mutating the region.
func (r *Region) WriteFrame(h protocol.FrameHeader, pixels []byte) error {
	if len(pixels) > r.Capacity() {
		return fmt.Errorf("frame payload %d bytes exceeds region capacity %d", len(pixels), r.Capacity())
	}

	var hdr [protocol.FrameHeaderSize]byte
	protocol.EncodeFrameHeader(hdr[:], h)

	// Body fields first, frame id word last.
	copy(r.data[8:protocol.FrameHeaderSize], hdr[8:])
	copy(r.data[protocol.FrameHeaderSize:], pixels)
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&r.data[0])), h.FrameID)

	return nil
}

// Snapshot copies out the current header and its payload, pairing an
// acquire-load of the frame id with the writer's release-store. This is the
// consuming side of the region, used by the detection service and by tests
// simulating a server read.
func (r *Region) Snapshot() (protocol.FrameHeader, []byte, error) {
	frameID := atomic.LoadUint64((*uint64)(unsafe.Pointer(&r.data[0])))

	h := protocol.DecodeFrameHeader(r.data[:protocol.FrameHeaderSize])
	h.FrameID = frameID

	size := int(h.Height) * int(h.Stride)
	if size < 0 || size > r.Capacity() {
		return protocol.FrameHeader{}, nil, fmt.Errorf("header claims %d payload bytes, capacity is %d", size, r.Capacity())
	}

	pixels := make([]byte, size)
	copy(pixels, r.data[protocol.FrameHeaderSize:protocol.FrameHeaderSize+size])
	return h, pixels, nil
}

// Close unmaps the region. The backing segment is left in place for the
// peer; use Remove to delete it.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	data := r.data
	r.data = nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("unmap shared memory %s: %w", r.name, err)
	}
	return nil
}

// Remove deletes the named segment from the filesystem. Missing segments
// are not an error.
func Remove(name string) error {
	if err := os.Remove(Path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove shared memory %s: %w", name, err)
	}
	return nil
}
