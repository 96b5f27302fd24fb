package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bufferConn is an in-memory ReadWriteCloser
type bufferConn struct {
	r      io.Reader
	w      bytes.Buffer
	closed bool
}

func (b *bufferConn) Read(p []byte) (int, error)  { return b.r.Read(p) }
func (b *bufferConn) Write(p []byte) (int, error) { return b.w.Write(p) }
func (b *bufferConn) Close() error                 { b.closed = true; return nil }

func newBufferConn(data []byte) *bufferConn {
	return &bufferConn{r: bytes.NewReader(data)}
}

func frameBytes(payload []byte) []byte {
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	return buf
}

// TestStreamConnRoundTrip tests frames survive a pipe unchanged and in order
func TestStreamConnRoundTrip(t *testing.T) {
	left, right := net.Pipe()
	a := NewStreamConn(left)
	b := NewStreamConn(right)
	defer a.Close()
	defer b.Close()

	frames := [][]byte{
		[]byte("first"),
		{},
		bytes.Repeat([]byte{0xAB}, 70000),
	}

	go func() {
		for _, f := range frames {
			if err := a.WriteFrame(f); err != nil {
				return
			}
		}
	}()

	for i, want := range frames {
		got, err := b.ReadFrame()
		require.NoError(t, err, "frame %d", i)
		assert.Equal(t, len(want), len(got), "frame %d", i)
		assert.True(t, bytes.Equal(want, got), "frame %d", i)
	}
}

// TestStreamConnWireFormat tests the length prefix layout
func TestStreamConnWireFormat(t *testing.T) {
	bc := newBufferConn(nil)
	c := NewStreamConn(bc)

	require.NoError(t, c.WriteFrame([]byte("abc")))
	assert.Equal(t, []byte{0, 0, 0, 3, 'a', 'b', 'c'}, bc.w.Bytes())
}

// TestStreamConnReadErrors tests classification of stream endings
func TestStreamConnReadErrors(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		wantClosed  bool
		wantBad     bool
		wantTooLong bool
	}{
		{name: "clean close", data: nil, wantClosed: true},
		{name: "truncated header", data: []byte{0, 0}, wantBad: true},
		{name: "truncated payload", data: frameBytes([]byte("hello"))[:6], wantBad: true},
		{name: "header only", data: []byte{0, 0, 0, 9}, wantBad: true},
		{name: "oversized", data: []byte{0xFF, 0xFF, 0xFF, 0xFF}, wantBad: true, wantTooLong: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewStreamConn(newBufferConn(tt.data)).WithMaxFrameSize(1024)

			_, err := c.ReadFrame()
			require.Error(t, err)
			assert.Equal(t, tt.wantClosed, errors.Is(err, ErrConnectionClosed))
			assert.Equal(t, tt.wantBad, errors.Is(err, ErrMalformedFrame))
			assert.Equal(t, tt.wantTooLong, errors.Is(err, ErrFrameTooLarge))
		})
	}
}

// TestStreamConnReadAfterFrames tests a clean close after complete frames
func TestStreamConnReadAfterFrames(t *testing.T) {
	data := append(frameBytes([]byte("one")), frameBytes([]byte("two"))...)
	c := NewStreamConn(newBufferConn(data))

	got, err := c.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))

	got, err = c.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	_, err = c.ReadFrame()
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

// TestStreamConnWriteTooLarge tests the write-side size limit
func TestStreamConnWriteTooLarge(t *testing.T) {
	bc := newBufferConn(nil)
	c := NewStreamConn(bc).WithMaxFrameSize(4)

	err := c.WriteFrame([]byte("hello"))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Zero(t, bc.w.Len())
}

// TestStreamConnClose tests Close reaches the underlying stream
func TestStreamConnClose(t *testing.T) {
	bc := newBufferConn(nil)
	c := NewStreamConn(bc)

	require.NoError(t, c.Close())
	assert.True(t, bc.closed)
	assert.Equal(t, "stream", c.RemoteAddr())
}
