package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// frameHeaderLength is the size of the big-endian uint32 length prefix.
const frameHeaderLength = 4

var _ Conn = (*StreamConn)(nil)

// StreamConn frames messages on a byte stream. Each frame is
// [4 bytes payload length, big-endian uint32] [payload].
type StreamConn struct {
	rw           io.ReadWriteCloser
	maxFrameSize uint32
	remote       string

	writeMu sync.Mutex
}

// NewStreamConn wraps rw. If rw is a net.Conn its remote address is used
// for RemoteAddr.
func NewStreamConn(rw io.ReadWriteCloser) *StreamConn {
	c := &StreamConn{
		rw:           rw,
		maxFrameSize: DefaultMaxFrameSize,
		remote:       "stream",
	}
	if nc, ok := rw.(net.Conn); ok && nc.RemoteAddr() != nil {
		c.remote = nc.RemoteAddr().String()
	}
	return c
}

// WithMaxFrameSize sets the largest payload accepted or sent
func (c *StreamConn) WithMaxFrameSize(size uint32) *StreamConn {
	c.maxFrameSize = size
	return c
}

// ReadFrame reads one length-prefixed frame.
func (c *StreamConn) ReadFrame() ([]byte, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(c.rw, header[:]); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			// Nothing of the next frame arrived; the peer hung up cleanly.
			return nil, ErrConnectionClosed
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, fmt.Errorf("%w: truncated header: %v", ErrMalformedFrame, err)
		default:
			return nil, fmt.Errorf("read frame header: %w", err)
		}
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > c.maxFrameSize {
		return nil, fmt.Errorf("%w: %w: %d > %d", ErrMalformedFrame, ErrFrameTooLarge, length, c.maxFrameSize)
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(c.rw, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: truncated payload: %v", ErrMalformedFrame, err)
			}
			return nil, fmt.Errorf("read frame payload: %w", err)
		}
	}
	return payload, nil
}

// WriteFrame writes frame with its length prefix in a single write.
func (c *StreamConn) WriteFrame(frame []byte) error {
	if uint64(len(frame)) > uint64(c.maxFrameSize) {
		return fmt.Errorf("write frame: %w: %d > %d", ErrFrameTooLarge, len(frame), c.maxFrameSize)
	}

	buf := make([]byte, frameHeaderLength+len(frame))
	binary.BigEndian.PutUint32(buf[:frameHeaderLength], uint32(len(frame)))
	copy(buf[frameHeaderLength:], frame)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.rw.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close closes the underlying stream
func (c *StreamConn) Close() error {
	return c.rw.Close()
}

// RemoteAddr returns the peer address
func (c *StreamConn) RemoteAddr() string {
	return c.remote
}

// MaxFrameSize returns the frame size limit
func (c *StreamConn) MaxFrameSize() int64 {
	return int64(c.maxFrameSize)
}
