package run

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robosight/visionlink/client"
	"github.com/robosight/visionlink/config"
	"github.com/robosight/visionlink/metrics"
	"github.com/robosight/visionlink/protocol"
)

// statsInterval paces the periodic session stats line.
const statsInterval = 10 * time.Second

var (
	emitJSON bool

	clientCmd = &cobra.Command{
		Use:   "client",
		Short: "Start the camera-side client with a synthetic frame source",
		Args:  cobra.NoArgs,
		RunE:  runClient,
	}
)

func init() {
	clientCmd.Flags().BoolVar(&emitJSON, "emit-json", false, "Write detection events to stdout as NDJSON")
}

// detectionEvent is the NDJSON record emitted per received result.
type detectionEvent struct {
	FrameID         uint64               `json:"frame_id"`
	InferenceTimeMs float32              `json:"inference_time_ms"`
	Detections      []protocol.Detection `json:"detections"`
}

func runClient(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("com", "client-cmd").Logger()

	logger.Info().Str("config", configFile).Msg("loading configuration")
	cfg, err := config.LoadClientConfig(configFile)
	if err != nil {
		return err
	}
	logger = logger.With().Str("instance", cfg.InstanceID).Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, m, logger)
	}

	c := client.New(cfg, logger)
	defer c.Disconnect()

	source := newFrameSource(640, 480)
	var events *jsoniter.Encoder
	if emitJSON {
		events = jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
	}

	// Reconnection is this loop's job: the client exposes states and a
	// Connect that is safe to retry, nothing more.
	for {
		if err := connectWithRetry(ctx, c, cfg, m, logger); err != nil {
			return err
		}
		if ctx.Err() != nil {
			logger.Info().Msg("client stopped")
			return nil
		}

		runSession(ctx, c, cfg, m, source, events, logger)
		m.Disconnects.Add(1)

		if ctx.Err() != nil {
			logger.Info().Msg("client stopped")
			return nil
		}
		if !cfg.AutoReconnect {
			logger.Warn().Str("last_error", c.LastError()).Msg("connection lost, auto reconnect disabled")
			return nil
		}
		logger.Warn().
			Str("last_error", c.LastError()).
			Dur("retry_in", cfg.ReconnectInterval).
			Msg("connection lost, reconnecting")
	}
}

// connectWithRetry dials until connected or the context ends. The first
// failure of a session that never connected is retried on the same cadence
// as a mid-session loss.
func connectWithRetry(ctx context.Context, c *client.Client, cfg *config.Client, m *metrics.Metrics, logger zerolog.Logger) error {
	for {
		if err := c.Connect(); err == nil {
			m.Connects.Add(1)
			return nil
		} else if !cfg.AutoReconnect {
			return err
		}

		logger.Warn().
			Str("last_error", c.LastError()).
			Dur("retry_in", cfg.ReconnectInterval).
			Msg("detector unavailable")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cfg.ReconnectInterval):
		}
	}
}

// runSession drives one connected session: paced frame submission, result
// polling after every submission, and heartbeats on their own interval.
// It returns when the connection degrades or the context ends.
func runSession(ctx context.Context, c *client.Client, cfg *config.Client, m *metrics.Metrics, source *frameSource, events *jsoniter.Encoder, logger zerolog.Logger) {
	frames := time.NewTicker(cfg.FrameInterval)
	defer frames.Stop()
	heartbeats := time.NewTicker(cfg.HeartbeatInterval)
	defer heartbeats.Stop()
	stats := time.NewTicker(statsInterval)
	defer stats.Stop()

	for c.IsConnected() {
		select {
		case <-ctx.Done():
			return

		case <-stats.C:
			logger.Info().
				Uint64("frames_sent", m.FramesSent.Load()).
				Uint64("results_received", m.ResultsReceived.Load()).
				Uint64("detections", m.DetectionsSeen.Load()).
				Float64("last_inference_ms", float64(m.LastInferenceMicros.Load())/1000).
				Msg("session stats")

		case <-heartbeats.C:
			m.HeartbeatsSent.Add(1)
			if err := c.SendHeartbeat(); err != nil {
				m.HeartbeatsFailed.Add(1)
				return
			}

		case <-frames.C:
			pixels, width, height, id := source.Next()
			if err := c.SendFrame(pixels, width, height, id); err != nil {
				m.FramesRejected.Add(1)
				if !c.IsConnected() {
					return
				}
				continue
			}
			m.FramesSent.Add(1)

			drainResults(c, m, events, logger)
		}
	}
}

// drainResults consumes every queued detection result without blocking.
func drainResults(c *client.Client, m *metrics.Metrics, events *jsoniter.Encoder, logger zerolog.Logger) {
	for {
		result, err := c.ReceiveDetections()
		if err != nil || result == nil {
			return
		}

		m.ObserveResult(len(result.Detections), result.InferenceTimeMs)
		logger.Debug().
			Uint64("frame_id", result.FrameID).
			Int("detections", len(result.Detections)).
			Float32("inference_ms", result.InferenceTimeMs).
			Msg("detections received")

		if events != nil {
			if err := events.Encode(detectionEvent{
				FrameID:         result.FrameID,
				InferenceTimeMs: result.InferenceTimeMs,
				Detections:      result.Detections,
			}); err != nil {
				logger.Error().Err(err).Msg("emit detection event")
			}
		}
	}
}

// serveMetrics exposes the Prometheus endpoint until the context ends.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}
