package config

import (
	"fmt"

	"github.com/robosight/visionlink/protocol"
)

// Server configures the stub detector service used for local development
// and end-to-end testing. It speaks the full protocol but replies with
// canned detections instead of running inference.
type Server struct {
	SocketPath string `yaml:"socket_path"`
	ShmName    string `yaml:"shm_name"`

	Model ServerModel `yaml:"model"`

	// InferenceTimeMs is reported verbatim in every result message.
	InferenceTimeMs float32 `yaml:"inference_time_ms"`

	// Detections are echoed for every submitted frame.
	Detections []ServerDetection `yaml:"detections"`
}

// ServerModel describes the model advertised at handshake.
type ServerModel struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Architecture string `yaml:"architecture"` // ssd-mobilenet, yolov8, yolov5, efficientdet
	InputWidth   uint32 `yaml:"input_width"`
	InputHeight  uint32 `yaml:"input_height"`
	NumClasses   uint32 `yaml:"num_classes"`
	SizeBytes    uint64 `yaml:"size_bytes"`
	Device       string `yaml:"device"`
}

// ServerDetection is one canned detection, normalized coordinates.
type ServerDetection struct {
	Label      string  `yaml:"label"`
	Confidence float32 `yaml:"confidence"`
	X          float32 `yaml:"x"`
	Y          float32 `yaml:"y"`
	W          float32 `yaml:"w"`
	H          float32 `yaml:"h"`
}

// ApplyDefaults fills in zero values with defaults.
func (s *Server) ApplyDefaults() {
	if s.SocketPath == "" {
		s.SocketPath = DefaultSocketPath
	}
	if s.ShmName == "" {
		s.ShmName = DefaultShmName
	}
	if s.Model.Name == "" {
		s.Model.Name = "yolov8n"
		s.Model.Description = "stub detector"
		s.Model.Architecture = protocol.ArchYOLOv8.String()
		s.Model.InputWidth = 640
		s.Model.InputHeight = 640
		s.Model.NumClasses = 80
		s.Model.Device = "cpu"
	}
	if s.InferenceTimeMs == 0 {
		s.InferenceTimeMs = 15
	}
	if len(s.Detections) == 0 {
		s.Detections = []ServerDetection{
			{Label: "person", Confidence: 0.9, X: 0.35, Y: 0.2, W: 0.3, H: 0.6},
		}
	}
}

// Validate checks the configuration.
func (s *Server) Validate() error {
	if err := ValidateSocketPath(s.SocketPath); err != nil {
		return err
	}
	if err := ValidateShmName(s.ShmName); err != nil {
		return err
	}
	if len(s.Detections) > protocol.MaxDetections {
		return fmt.Errorf("at most %d detections allowed, got %d", protocol.MaxDetections, len(s.Detections))
	}
	for i, d := range s.Detections {
		if d.Confidence < 0 || d.Confidence > 1 {
			return fmt.Errorf("detections[%d]: confidence must be in [0,1], got %g", i, d.Confidence)
		}
	}
	return nil
}

// ModelInfo converts the configured model block to its protocol form.
func (s *Server) ModelInfo() protocol.ModelInfo {
	return protocol.ModelInfo{
		Name:           s.Model.Name,
		Description:    s.Model.Description,
		Architecture:   protocol.ParseArchitecture(s.Model.Architecture),
		InputWidth:     s.Model.InputWidth,
		InputHeight:    s.Model.InputHeight,
		NumClasses:     s.Model.NumClasses,
		ModelSizeBytes: s.Model.SizeBytes,
		Device:         s.Model.Device,
	}
}
