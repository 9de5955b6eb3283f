package client

import "errors"

// Failure taxonomy. Transport, protocol and timeout failures are all
// recoverable by reconnecting; none are fatal to the hosting process.
var (
	// ErrNotConnected is returned by operations that require an
	// established session.
	ErrNotConnected = errors.New("not connected")

	// ErrFrameTooLarge rejects a single frame submission. It does not
	// affect connection state.
	ErrFrameTooLarge = errors.New("frame exceeds shared region capacity")

	// ErrRejected means the server refused the handshake, typically a
	// protocol version mismatch.
	ErrRejected = errors.New("handshake rejected by server")

	// ErrProtocol marks malformed or unexpectedly shaped traffic.
	ErrProtocol = errors.New("protocol error")

	// ErrTimeout marks a bounded wait that expired.
	ErrTimeout = errors.New("timed out")

	// ErrPeerClosed marks a peer-initiated disconnect (zero-length read).
	ErrPeerClosed = errors.New("server disconnected")
)
