package run

import "github.com/robosight/visionlink/protocol"

// frameSource produces synthetic RGB frames: a diagonal gradient that
// drifts one pixel per frame, enough motion to see frame ids advance on the
// detector side without a real camera.
type frameSource struct {
	width  uint32
	height uint32
	pixels []byte
	nextID uint64
	phase  uint8
}

func newFrameSource(width, height uint32) *frameSource {
	return &frameSource{
		width:  width,
		height: height,
		pixels: make([]byte, int(width)*int(height)*protocol.BytesPerPixel),
	}
}

// Next renders the next frame and returns it with its assigned id. Ids
// start at 1 and increase monotonically. The returned buffer is reused by
// the following call.
func (s *frameSource) Next() (pixels []byte, width, height uint32, frameID uint64) {
	s.nextID++
	s.phase++

	i := 0
	for y := uint32(0); y < s.height; y++ {
		row := byte(y) + s.phase
		for x := uint32(0); x < s.width; x++ {
			s.pixels[i] = byte(x) + s.phase
			s.pixels[i+1] = row
			s.pixels[i+2] = byte(x) ^ row
			i += protocol.BytesPerPixel
		}
	}

	return s.pixels, s.width, s.height, s.nextID
}
