// Package server implements a stub detector service for local development
// and end-to-end testing. It speaks the full control channel protocol and
// reads submitted frames from shared memory, but replies with configured
// canned detections instead of running inference.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robosight/visionlink/config"
	"github.com/robosight/visionlink/protocol"
	"github.com/robosight/visionlink/shm"
)

// Server is the stub detector service.
type Server struct {
	cfg    *config.Server
	logger zerolog.Logger

	listener *net.UnixListener
	region   *shm.Region

	mu    sync.Mutex
	conns map[*net.UnixConn]struct{}
	wg    sync.WaitGroup
}

// New binds the control socket and creates the shared region. A stale
// socket file from a previous run is removed first.
func New(cfg *config.Server) (*Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	logger := log.With().Str("com", "detector-stub").Logger()

	if err := os.Remove(cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	addr, err := net.ResolveUnixAddr("unixpacket", cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("resolve socket address: %w", err)
	}
	listener, err := net.ListenUnix("unixpacket", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.SocketPath, err)
	}

	region, err := shm.Open(cfg.ShmName)
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("open shared memory: %w", err)
	}

	logger.Info().
		Str("socket", cfg.SocketPath).
		Str("shm", cfg.ShmName).
		Str("model", cfg.Model.Name).
		Msg("stub detector listening")

	return &Server{
		cfg:      cfg,
		logger:   logger,
		listener: listener,
		region:   region,
		conns:    make(map[*net.UnixConn]struct{}),
	}, nil
}

// Start runs a stub detector until the context is cancelled.
func Start(ctx context.Context, cfg *config.Server) error {
	srv, err := New(cfg)
	if err != nil {
		return err
	}
	defer srv.Close()
	return srv.Serve(ctx)
}

// Serve accepts client connections until the context is cancelled or the
// listener is closed.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.AcceptUnix()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Close shuts the listener, disconnects all clients and releases the
// shared region. The socket file and segment are removed.
func (s *Server) Close() error {
	s.listener.Close()

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.region.Close()
	shm.Remove(s.cfg.ShmName)
	if err := os.Remove(s.cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove socket: %w", err)
	}
	return nil
}

// DisconnectClients abruptly closes all accepted connections while leaving
// the listener up. Used by tests to simulate a crashed peer.
func (s *Server) DisconnectClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
		delete(s.conns, conn)
	}
}

func (s *Server) handleConn(conn *net.UnixConn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	logger := s.logger.With().Str("peer", conn.RemoteAddr().String()).Logger()

	buf := protocol.GetRecvBuffer()
	defer protocol.PutRecvBuffer(buf)

	for {
		n, err := conn.Read(*buf)
		if err != nil || n == 0 {
			logger.Debug().Msg("client connection closed")
			return
		}

		switch (*buf)[0] {
		case protocol.MsgTypeHandshakeRequest:
			if !s.handleHandshake(conn, (*buf)[:n], logger) {
				return
			}
		case protocol.MsgTypeHeartbeat:
			s.handleHeartbeat(conn, (*buf)[:n], logger)
		case protocol.MsgTypeFrameReady:
			s.handleFrameReady(conn, (*buf)[:n], logger)
		case protocol.MsgTypeShutdown:
			logger.Info().Msg("client sent shutdown")
			return
		default:
			logger.Warn().Uint8("type", (*buf)[0]).Msg("ignoring unknown message")
		}
	}
}

// handleHandshake answers a handshake request, rejecting version
// mismatches outright. Returns false when the connection should close.
func (s *Server) handleHandshake(conn *net.UnixConn, pkt []byte, logger zerolog.Logger) bool {
	req, err := protocol.DecodeHandshakeRequest(pkt)
	if err != nil {
		logger.Warn().Err(err).Msg("malformed handshake request")
		return false
	}

	resp := protocol.HandshakeResponse{
		Version:  protocol.ProtocolVersion,
		Accepted: req.Version == protocol.ProtocolVersion,
		Model:    s.cfg.ModelInfo(),
	}
	if !resp.Accepted {
		logger.Warn().
			Uint32("client_version", req.Version).
			Uint32("server_version", protocol.ProtocolVersion).
			Msg("rejecting handshake, version mismatch")
	}

	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := conn.Write(protocol.EncodeHandshakeResponse(resp)); err != nil {
		logger.Warn().Err(err).Msg("send handshake response")
		return false
	}

	if resp.Accepted {
		logger.Info().
			Uint32("max_width", req.MaxWidth).
			Uint32("max_height", req.MaxHeight).
			Msg("client handshake accepted")
	}
	return resp.Accepted
}

func (s *Server) handleHeartbeat(conn *net.UnixConn, pkt []byte, logger zerolog.Logger) {
	hb, err := protocol.DecodeHeartbeat(pkt)
	if err != nil {
		logger.Warn().Err(err).Msg("malformed heartbeat")
		return
	}

	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := conn.Write(protocol.EncodeHeartbeatAck(protocol.Heartbeat{TimestampNs: hb.TimestampNs})); err != nil {
		logger.Warn().Err(err).Msg("send heartbeat ack")
	}
}

// handleFrameReady reads the announced frame out of shared memory and
// answers with the configured canned detections for that frame id.
func (s *Server) handleFrameReady(conn *net.UnixConn, pkt []byte, logger zerolog.Logger) {
	ready, err := protocol.DecodeFrameReady(pkt)
	if err != nil {
		logger.Warn().Err(err).Msg("malformed frame ready notification")
		return
	}

	header, _, err := s.region.Snapshot()
	if err != nil {
		logger.Warn().Err(err).Msg("unreadable frame in shared memory")
		return
	}
	if header.FrameID != ready.FrameID {
		// The client overwrote the region before we read it; answer for
		// the frame that is actually there.
		logger.Debug().
			Uint64("announced", ready.FrameID).
			Uint64("found", header.FrameID).
			Msg("frame superseded before read")
	}

	result := protocol.DetectionResult{
		FrameID:         header.FrameID,
		InferenceTimeMs: s.cfg.InferenceTimeMs,
	}
	for _, d := range s.cfg.Detections {
		result.Detections = append(result.Detections, protocol.Detection{
			Label:      d.Label,
			Confidence: d.Confidence,
			X:          d.X,
			Y:          d.Y,
			W:          d.W,
			H:          d.H,
		})
	}

	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := conn.Write(protocol.EncodeDetectionResult(result)); err != nil {
		logger.Warn().Err(err).Msg("send detection result")
	}
}
