// Package metrics tracks client-side counters and exposes them in
// Prometheus format. Counters are plain atomics updated from the caller's
// loop; the Prometheus collectors read them lazily at scrape time.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all detection client metrics.
type Metrics struct {
	FramesSent      atomic.Uint64
	FramesRejected  atomic.Uint64
	ResultsReceived atomic.Uint64
	DetectionsSeen  atomic.Uint64

	HeartbeatsSent   atomic.Uint64
	HeartbeatsFailed atomic.Uint64

	Connects    atomic.Uint64
	Disconnects atomic.Uint64

	// LastInferenceMicros is the most recent reported inference time.
	LastInferenceMicros atomic.Uint64

	registry *prometheus.Registry
}

// New creates a Metrics instance with its collectors registered.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.register()
	return m
}

func (m *Metrics) register() {
	gauges := []struct {
		name string
		help string
		read func() float64
	}{
		{"visionlink_frames_sent_total", "Frames published to shared memory and announced",
			func() float64 { return float64(m.FramesSent.Load()) }},
		{"visionlink_frames_rejected_total", "Frames rejected before transmission",
			func() float64 { return float64(m.FramesRejected.Load()) }},
		{"visionlink_results_received_total", "Detection result messages received",
			func() float64 { return float64(m.ResultsReceived.Load()) }},
		{"visionlink_detections_total", "Individual detections across all results",
			func() float64 { return float64(m.DetectionsSeen.Load()) }},
		{"visionlink_heartbeats_sent_total", "Heartbeat probes attempted",
			func() float64 { return float64(m.HeartbeatsSent.Load()) }},
		{"visionlink_heartbeats_failed_total", "Heartbeat probes that failed",
			func() float64 { return float64(m.HeartbeatsFailed.Load()) }},
		{"visionlink_connects_total", "Successful connections to the detector",
			func() float64 { return float64(m.Connects.Load()) }},
		{"visionlink_disconnects_total", "Connection losses observed",
			func() float64 { return float64(m.Disconnects.Load()) }},
		{"visionlink_last_inference_seconds", "Most recently reported inference time",
			func() float64 { return float64(m.LastInferenceMicros.Load()) / 1e6 }},
	}

	for _, g := range gauges {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			g.read,
		))
	}
}

// ObserveResult records one received detection result.
func (m *Metrics) ObserveResult(detections int, inferenceTimeMs float32) {
	m.ResultsReceived.Add(1)
	m.DetectionsSeen.Add(uint64(detections))
	m.LastInferenceMicros.Store(uint64(inferenceTimeMs * 1000))
}

// Handler returns an HTTP handler serving the metrics in Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
