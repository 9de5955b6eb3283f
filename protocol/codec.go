package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Wire format: every message is a single fixed-size packet, little-endian,
// no length framing. The transport preserves message boundaries, so one
// read always yields exactly one message.
//
// Field offsets:
//
//	HandshakeRequest  (13 B):  tag[0] version[1:5] maxWidth[5:9] maxHeight[9:13]
//	HandshakeResponse (251 B): tag[0] version[1:5] accepted[5] modelInfo[6:251]
//	ModelInfo         (245 B): name[0:64] description[64:192] architecture[192]
//	                           inputWidth[193:197] inputHeight[197:201]
//	                           numClasses[201:205] modelSizeBytes[205:213]
//	                           device[213:245]
//	Heartbeat/Ack     (9 B):   tag[0] timestampNs[1:9]
//	FrameReady        (25 B):  tag[0] frameID[1:9] width[9:13] height[13:17]
//	                           timestampNs[17:25]
//	Detection         (52 B):  label[0:32] confidence[32:36] x[36:40] y[40:44]
//	                           w[44:48] h[48:52]
//	DetectionResult   (1681 B): tag[0] frameID[1:9] inferenceTimeMs[9:13]
//	                           count[13:17] detections[17:17+32*52]
//	Shutdown          (1 B):   tag[0]
const (
	HandshakeRequestSize  = 13
	ModelInfoSize         = ModelNameLen + ModelDescLen + 1 + 4 + 4 + 4 + 8 + DeviceLen
	HandshakeResponseSize = 1 + 4 + 1 + ModelInfoSize
	HeartbeatSize         = 9
	FrameReadySize        = 25
	DetectionSize         = LabelLen + 4 + 4*4
	DetectionResultSize   = 1 + 8 + 4 + 4 + MaxDetections*DetectionSize
	ShutdownSize          = 1

	// FrameHeaderSize is the shared memory header:
	// frameID[0:8] width[8:12] height[12:16] stride[16:20] format[20:24]
	// timestampNs[24:32]
	FrameHeaderSize = 32

	// MaxMessageSize is the largest defined message; receive buffers of
	// this size can hold any well-formed packet.
	MaxMessageSize = DetectionResultSize
)

// putFixedString writes s into dst NUL-padded, truncating if necessary.
func putFixedString(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// fixedString returns the string up to the first NUL byte.
func fixedString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// EncodeHandshakeRequest serializes a handshake request.
func EncodeHandshakeRequest(m HandshakeRequest) []byte {
	buf := make([]byte, HandshakeRequestSize)
	buf[0] = MsgTypeHandshakeRequest
	binary.LittleEndian.PutUint32(buf[1:5], m.Version)
	binary.LittleEndian.PutUint32(buf[5:9], m.MaxWidth)
	binary.LittleEndian.PutUint32(buf[9:13], m.MaxHeight)
	return buf
}

// DecodeHandshakeRequest deserializes a handshake request packet.
func DecodeHandshakeRequest(b []byte) (HandshakeRequest, error) {
	if len(b) != HandshakeRequestSize {
		return HandshakeRequest{}, fmt.Errorf("handshake request: got %d bytes, want %d", len(b), HandshakeRequestSize)
	}
	if b[0] != MsgTypeHandshakeRequest {
		return HandshakeRequest{}, fmt.Errorf("handshake request: unexpected type 0x%02x", b[0])
	}
	return HandshakeRequest{
		Version:   binary.LittleEndian.Uint32(b[1:5]),
		MaxWidth:  binary.LittleEndian.Uint32(b[5:9]),
		MaxHeight: binary.LittleEndian.Uint32(b[9:13]),
	}, nil
}

func encodeModelInfo(dst []byte, m ModelInfo) {
	putFixedString(dst[0:64], m.Name)
	putFixedString(dst[64:192], m.Description)
	dst[192] = byte(m.Architecture)
	binary.LittleEndian.PutUint32(dst[193:197], m.InputWidth)
	binary.LittleEndian.PutUint32(dst[197:201], m.InputHeight)
	binary.LittleEndian.PutUint32(dst[201:205], m.NumClasses)
	binary.LittleEndian.PutUint64(dst[205:213], m.ModelSizeBytes)
	putFixedString(dst[213:245], m.Device)
}

func decodeModelInfo(b []byte) ModelInfo {
	return ModelInfo{
		Name:           fixedString(b[0:64]),
		Description:    fixedString(b[64:192]),
		Architecture:   Architecture(b[192]),
		InputWidth:     binary.LittleEndian.Uint32(b[193:197]),
		InputHeight:    binary.LittleEndian.Uint32(b[197:201]),
		NumClasses:     binary.LittleEndian.Uint32(b[201:205]),
		ModelSizeBytes: binary.LittleEndian.Uint64(b[205:213]),
		Device:         fixedString(b[213:245]),
	}
}

// EncodeHandshakeResponse serializes a handshake response.
func EncodeHandshakeResponse(m HandshakeResponse) []byte {
	buf := make([]byte, HandshakeResponseSize)
	buf[0] = MsgTypeHandshakeResponse
	binary.LittleEndian.PutUint32(buf[1:5], m.Version)
	if m.Accepted {
		buf[5] = 1
	}
	encodeModelInfo(buf[6:], m.Model)
	return buf
}

// DecodeHandshakeResponse deserializes a handshake response packet.
func DecodeHandshakeResponse(b []byte) (HandshakeResponse, error) {
	if len(b) != HandshakeResponseSize {
		return HandshakeResponse{}, fmt.Errorf("handshake response: got %d bytes, want %d", len(b), HandshakeResponseSize)
	}
	if b[0] != MsgTypeHandshakeResponse {
		return HandshakeResponse{}, fmt.Errorf("handshake response: unexpected type 0x%02x", b[0])
	}
	return HandshakeResponse{
		Version:  binary.LittleEndian.Uint32(b[1:5]),
		Accepted: b[5] != 0,
		Model:    decodeModelInfo(b[6:]),
	}, nil
}

func encodeTimestamped(tag byte, timestampNs int64) []byte {
	buf := make([]byte, HeartbeatSize)
	buf[0] = tag
	binary.LittleEndian.PutUint64(buf[1:9], uint64(timestampNs))
	return buf
}

// EncodeHeartbeat serializes a heartbeat probe.
func EncodeHeartbeat(m Heartbeat) []byte {
	return encodeTimestamped(MsgTypeHeartbeat, m.TimestampNs)
}

// EncodeHeartbeatAck serializes a heartbeat response.
func EncodeHeartbeatAck(m Heartbeat) []byte {
	return encodeTimestamped(MsgTypeHeartbeatAck, m.TimestampNs)
}

func decodeTimestamped(b []byte, tag byte, what string) (Heartbeat, error) {
	if len(b) != HeartbeatSize {
		return Heartbeat{}, fmt.Errorf("%s: got %d bytes, want %d", what, len(b), HeartbeatSize)
	}
	if b[0] != tag {
		return Heartbeat{}, fmt.Errorf("%s: unexpected type 0x%02x", what, b[0])
	}
	return Heartbeat{TimestampNs: int64(binary.LittleEndian.Uint64(b[1:9]))}, nil
}

// DecodeHeartbeat deserializes a heartbeat probe packet.
func DecodeHeartbeat(b []byte) (Heartbeat, error) {
	return decodeTimestamped(b, MsgTypeHeartbeat, "heartbeat")
}

// DecodeHeartbeatAck deserializes a heartbeat response packet.
func DecodeHeartbeatAck(b []byte) (Heartbeat, error) {
	return decodeTimestamped(b, MsgTypeHeartbeatAck, "heartbeat ack")
}

// EncodeFrameReady serializes a frame ready notification.
func EncodeFrameReady(m FrameReady) []byte {
	buf := make([]byte, FrameReadySize)
	buf[0] = MsgTypeFrameReady
	binary.LittleEndian.PutUint64(buf[1:9], m.FrameID)
	binary.LittleEndian.PutUint32(buf[9:13], m.Width)
	binary.LittleEndian.PutUint32(buf[13:17], m.Height)
	binary.LittleEndian.PutUint64(buf[17:25], uint64(m.TimestampNs))
	return buf
}

// DecodeFrameReady deserializes a frame ready packet.
func DecodeFrameReady(b []byte) (FrameReady, error) {
	if len(b) != FrameReadySize {
		return FrameReady{}, fmt.Errorf("frame ready: got %d bytes, want %d", len(b), FrameReadySize)
	}
	if b[0] != MsgTypeFrameReady {
		return FrameReady{}, fmt.Errorf("frame ready: unexpected type 0x%02x", b[0])
	}
	return FrameReady{
		FrameID:     binary.LittleEndian.Uint64(b[1:9]),
		Width:       binary.LittleEndian.Uint32(b[9:13]),
		Height:      binary.LittleEndian.Uint32(b[13:17]),
		TimestampNs: int64(binary.LittleEndian.Uint64(b[17:25])),
	}, nil
}

// EncodeDetectionResult serializes a detection result. Detections beyond
// MaxDetections are dropped.
func EncodeDetectionResult(m DetectionResult) []byte {
	buf := make([]byte, DetectionResultSize)
	buf[0] = MsgTypeDetectionResult
	binary.LittleEndian.PutUint64(buf[1:9], m.FrameID)
	binary.LittleEndian.PutUint32(buf[9:13], math.Float32bits(m.InferenceTimeMs))

	dets := m.Detections
	if len(dets) > MaxDetections {
		dets = dets[:MaxDetections]
	}
	binary.LittleEndian.PutUint32(buf[13:17], uint32(len(dets)))

	for i, d := range dets {
		slot := buf[17+i*DetectionSize:]
		putFixedString(slot[0:LabelLen], d.Label)
		binary.LittleEndian.PutUint32(slot[32:36], math.Float32bits(d.Confidence))
		binary.LittleEndian.PutUint32(slot[36:40], math.Float32bits(d.X))
		binary.LittleEndian.PutUint32(slot[40:44], math.Float32bits(d.Y))
		binary.LittleEndian.PutUint32(slot[44:48], math.Float32bits(d.W))
		binary.LittleEndian.PutUint32(slot[48:52], math.Float32bits(d.H))
	}
	return buf
}

// DecodeDetectionResult deserializes a detection result packet.
func DecodeDetectionResult(b []byte) (DetectionResult, error) {
	if len(b) != DetectionResultSize {
		return DetectionResult{}, fmt.Errorf("detection result: got %d bytes, want %d", len(b), DetectionResultSize)
	}
	if b[0] != MsgTypeDetectionResult {
		return DetectionResult{}, fmt.Errorf("detection result: unexpected type 0x%02x", b[0])
	}
	count := binary.LittleEndian.Uint32(b[13:17])
	if count > MaxDetections {
		return DetectionResult{}, fmt.Errorf("detection result: count %d exceeds maximum %d", count, MaxDetections)
	}

	m := DetectionResult{
		FrameID:         binary.LittleEndian.Uint64(b[1:9]),
		InferenceTimeMs: math.Float32frombits(binary.LittleEndian.Uint32(b[9:13])),
		Detections:      make([]Detection, count),
	}
	for i := range m.Detections {
		slot := b[17+i*DetectionSize:]
		m.Detections[i] = Detection{
			Label:      fixedString(slot[0:LabelLen]),
			Confidence: math.Float32frombits(binary.LittleEndian.Uint32(slot[32:36])),
			X:          math.Float32frombits(binary.LittleEndian.Uint32(slot[36:40])),
			Y:          math.Float32frombits(binary.LittleEndian.Uint32(slot[40:44])),
			W:          math.Float32frombits(binary.LittleEndian.Uint32(slot[44:48])),
			H:          math.Float32frombits(binary.LittleEndian.Uint32(slot[48:52])),
		}
	}
	return m, nil
}

// EncodeShutdown serializes the shutdown notification.
func EncodeShutdown() []byte {
	return []byte{MsgTypeShutdown}
}

// EncodeFrameHeader serializes a shared memory frame header.
func EncodeFrameHeader(dst []byte, h FrameHeader) {
	binary.LittleEndian.PutUint64(dst[0:8], h.FrameID)
	binary.LittleEndian.PutUint32(dst[8:12], h.Width)
	binary.LittleEndian.PutUint32(dst[12:16], h.Height)
	binary.LittleEndian.PutUint32(dst[16:20], h.Stride)
	binary.LittleEndian.PutUint32(dst[20:24], h.Format)
	binary.LittleEndian.PutUint64(dst[24:32], uint64(h.TimestampNs))
}

// DecodeFrameHeader deserializes a shared memory frame header.
func DecodeFrameHeader(src []byte) FrameHeader {
	return FrameHeader{
		FrameID:     binary.LittleEndian.Uint64(src[0:8]),
		Width:       binary.LittleEndian.Uint32(src[8:12]),
		Height:      binary.LittleEndian.Uint32(src[12:16]),
		Stride:      binary.LittleEndian.Uint32(src[16:20]),
		Format:      binary.LittleEndian.Uint32(src[20:24]),
		TimestampNs: int64(binary.LittleEndian.Uint64(src[24:32])),
	}
}
