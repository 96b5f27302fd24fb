package protocol

import (
	"errors"
	"fmt"

	"github.com/cuemby/drp/pkg/transport"
)

// Message is an envelope that can travel on a transport.Conn
type Message interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

var (
	_ Message = (*Request)(nil)
	_ Message = (*Response)(nil)
)

// DecodeError reports an inbound frame that could not be turned into an
// envelope: truncated, oversized or not valid protobuf.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is or wraps a *DecodeError
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Send serializes m and writes it to conn as one frame
func Send(conn transport.Conn, m Message) error {
	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return conn.WriteFrame(data)
}

// Receive reads one frame from conn and decodes it into m. A clean close
// by the peer is returned as transport.ErrConnectionClosed; malformed input
// is returned as a *DecodeError and m must not be used.
func Receive(conn transport.Conn, m Message) error {
	frame, err := conn.ReadFrame()
	if err != nil {
		if errors.Is(err, transport.ErrMalformedFrame) {
			return &DecodeError{Err: err}
		}
		return err
	}
	if err := m.Unmarshal(frame); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}
