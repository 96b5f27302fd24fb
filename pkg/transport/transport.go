// Package transport moves opaque frames between the worker and its peer.
//
// A frame is one complete serialized envelope. Three bindings are provided:
//
//   - StreamConn length-prefixes frames on any byte stream, normally TCP.
//   - GRPCConn carries frames as messages on a bidirectional gRPC stream.
//   - WebSocketConn sends one frame per binary WebSocket message.
//
// All of them report a clean peer close as ErrConnectionClosed and a
// truncated or oversized frame as ErrMalformedFrame, so callers can tell
// the two apart.
package transport

import "errors"

// DefaultMaxFrameSize bounds the payload of a single frame. File transfers
// travel as one frame, so the limit is generous.
const DefaultMaxFrameSize = 256 << 20

var (
	// ErrConnectionClosed is returned by ReadFrame when the peer closed the
	// connection on a frame boundary.
	ErrConnectionClosed = errors.New("connection closed by peer")

	// ErrMalformedFrame is returned by ReadFrame when the byte stream ended
	// inside a frame or announced an impossible length.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrFrameTooLarge is returned when a frame exceeds the size limit. It
	// always accompanies ErrMalformedFrame on the read side.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
)

// Conn is a bidirectional, ordered channel of frames.
type Conn interface {
	// ReadFrame blocks until one complete frame has arrived.
	ReadFrame() ([]byte, error)

	// WriteFrame sends frame as a single unit.
	WriteFrame(frame []byte) error

	// Close releases the connection. Pending reads fail.
	Close() error

	// RemoteAddr describes the peer for logging.
	RemoteAddr() string

	// MaxFrameSize is the largest frame WriteFrame will send.
	MaxFrameSize() int64
}
