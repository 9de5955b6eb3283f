package protocol

// Message types
const (
	MsgTypeHandshakeRequest  = 0x01 // Client version/capability announcement
	MsgTypeHandshakeResponse = 0x02 // Server acceptance + model info
	MsgTypeHeartbeat         = 0x03 // Liveness probe
	MsgTypeHeartbeatAck      = 0x04 // Liveness response
	MsgTypeFrameReady        = 0x05 // Frame published to shared memory
	MsgTypeDetectionResult   = 0x06 // Detections for a submitted frame
	MsgTypeShutdown          = 0x07 // Client going away, not acknowledged
)

// ProtocolVersion is a single integer constant. A mismatch is a handshake
// rejection condition, not a negotiation.
const ProtocolVersion uint32 = 1

// Frame geometry limits. The client guarantees at handshake time that it
// never submits a frame larger than these bounds, which also fixes the
// shared memory region size.
const (
	MaxFrameWidth  = 1920
	MaxFrameHeight = 1080

	// BytesPerPixel for the fixed RGB24 pixel format.
	BytesPerPixel = 3

	// FormatRGB24 is the only pixel format tag currently defined.
	FormatRGB24 = 0

	// MaxFrameBytes is the shared region payload capacity.
	MaxFrameBytes = MaxFrameWidth * MaxFrameHeight * BytesPerPixel
)

// Fixed string field lengths. Strings are NUL-padded on the wire and
// truncated to the field length when longer.
const (
	LabelLen     = 32
	ModelNameLen = 64
	ModelDescLen = 128
	DeviceLen    = 32
)

// MaxDetections bounds the detection array in a result message.
const MaxDetections = 32

// Architecture identifies the detector model family reported at handshake.
type Architecture uint8

const (
	ArchUnknown Architecture = iota
	ArchSSDMobileNet
	ArchYOLOv8
	ArchYOLOv5
	ArchEfficientDet
)

// String returns a string representation of the architecture.
func (a Architecture) String() string {
	switch a {
	case ArchSSDMobileNet:
		return "ssd-mobilenet"
	case ArchYOLOv8:
		return "yolov8"
	case ArchYOLOv5:
		return "yolov5"
	case ArchEfficientDet:
		return "efficientdet"
	default:
		return "unknown"
	}
}

// ParseArchitecture maps a configuration string to an Architecture.
// Unrecognized values map to ArchUnknown.
func ParseArchitecture(s string) Architecture {
	switch s {
	case "ssd-mobilenet":
		return ArchSSDMobileNet
	case "yolov8":
		return ArchYOLOv8
	case "yolov5":
		return ArchYOLOv5
	case "efficientdet":
		return ArchEfficientDet
	default:
		return ArchUnknown
	}
}

// HandshakeRequest announces the client protocol version and the maximum
// frame dimensions it will ever submit.
type HandshakeRequest struct {
	Version   uint32
	MaxWidth  uint32
	MaxHeight uint32
}

// ModelInfo describes the detector model behind the server. Populated once
// per successful handshake and immutable afterwards.
type ModelInfo struct {
	Name           string
	Description    string
	Architecture   Architecture
	InputWidth     uint32
	InputHeight    uint32
	NumClasses     uint32
	ModelSizeBytes uint64
	Device         string
}

// HandshakeResponse is the one-shot handshake outcome. ModelInfo is only
// meaningful when Accepted is true.
type HandshakeResponse struct {
	Version  uint32
	Accepted bool
	Model    ModelInfo
}

// Heartbeat is a liveness probe. The same layout is used for the ack,
// distinguished by message type.
type Heartbeat struct {
	TimestampNs int64
}

// FrameReady announces that a frame has been published to the shared region.
// It repeats the header's frame id, dimensions and timestamp so the server
// can correlate a later result without re-reading the header.
type FrameReady struct {
	FrameID     uint64
	Width       uint32
	Height      uint32
	TimestampNs int64
}

// Detection is one labeled bounding box. Coordinates are normalized to
// [0,1] relative to the submitted frame dimensions.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
	X          float32 `json:"x"`
	Y          float32 `json:"y"`
	W          float32 `json:"w"`
	H          float32 `json:"h"`
}

// DetectionResult carries up to MaxDetections detections for one frame.
type DetectionResult struct {
	FrameID         uint64
	InferenceTimeMs float32
	Detections      []Detection
}

// FrameHeader is written at the base of the shared region before the pixel
// payload. Stride is always Width*BytesPerPixel for the fixed RGB format.
type FrameHeader struct {
	FrameID     uint64
	Width       uint32
	Height      uint32
	Stride      uint32
	Format      uint32
	TimestampNs int64
}
