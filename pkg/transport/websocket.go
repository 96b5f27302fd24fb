package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// closeWait bounds how long Close waits to deliver the close frame
const closeWait = time.Second

var _ Conn = (*WebSocketConn)(nil)

// WebSocketConn carries one frame per binary WebSocket message. It lets a
// worker reach a controller that is only exposed through an HTTP proxy.
type WebSocketConn struct {
	conn         *websocket.Conn
	maxFrameSize int64

	writeMu sync.Mutex
}

// DialWebSocket performs the WebSocket handshake with url (ws:// or wss://).
// HTTP proxies from the environment are honoured.
func DialWebSocket(ctx context.Context, url string, maxFrameSize int64) (*WebSocketConn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 45 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("websocket handshake with %s failed (status=%s): %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}

	return NewWebSocketConn(conn, maxFrameSize), nil
}

// NewWebSocketConn wraps an established connection from either side
func NewWebSocketConn(conn *websocket.Conn, maxFrameSize int64) *WebSocketConn {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	conn.SetReadLimit(maxFrameSize)
	return &WebSocketConn{conn: conn, maxFrameSize: maxFrameSize}
}

// ReadFrame reads the next binary message. A close frame with a normal or
// going-away code is a clean close; losing the TCP connection without one
// is a transport error.
func (c *WebSocketConn) ReadFrame() ([]byte, error) {
	typ, data, err := c.conn.ReadMessage()
	if err != nil {
		switch {
		case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
			return nil, ErrConnectionClosed
		case errors.Is(err, websocket.ErrReadLimit):
			return nil, fmt.Errorf("%w: %w: limit %d", ErrMalformedFrame, ErrFrameTooLarge, c.maxFrameSize)
		default:
			return nil, fmt.Errorf("receive frame: %w", err)
		}
	}
	if typ != websocket.BinaryMessage {
		return nil, fmt.Errorf("%w: unexpected websocket message type %d", ErrMalformedFrame, typ)
	}
	return data, nil
}

// WriteFrame sends frame as one binary message
func (c *WebSocketConn) WriteFrame(frame []byte) error {
	if int64(len(frame)) > c.maxFrameSize {
		return fmt.Errorf("write frame: %w: %d > %d", ErrFrameTooLarge, len(frame), c.maxFrameSize)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close sends a normal close frame, best effort, and closes the socket
func (c *WebSocketConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
	return c.conn.Close()
}

// RemoteAddr returns the peer address
func (c *WebSocketConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// MaxFrameSize returns the frame size limit
func (c *WebSocketConn) MaxFrameSize() int64 {
	return c.maxFrameSize
}
