package transport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// ServeMethod is the full method name of the bidirectional stream the
// controller exposes. The controller sends request frames down the stream
// and the worker answers each one with a response frame.
const ServeMethod = "/drp.Controller/Serve"

// ServeStreamDesc describes ServeMethod for both client and server.
var ServeStreamDesc = grpc.StreamDesc{
	StreamName:    "Serve",
	ServerStreams: true,
	ClientStreams: true,
}

// Frame is the message type carried on ServeMethod. FrameCodec moves its
// payload on the wire untouched.
type Frame struct {
	Payload []byte
}

// FrameCodec is a gRPC codec that passes *Frame payloads through without
// any serialization of its own; envelopes are already encoded.
type FrameCodec struct{}

// Marshal returns the frame payload
func (FrameCodec) Marshal(v any) ([]byte, error) {
	f, ok := v.(*Frame)
	if !ok {
		return nil, fmt.Errorf("frame codec: cannot marshal %T", v)
	}
	return f.Payload, nil
}

// Unmarshal copies data into the frame; gRPC may reuse the buffer.
func (FrameCodec) Unmarshal(data []byte, v any) error {
	f, ok := v.(*Frame)
	if !ok {
		return fmt.Errorf("frame codec: cannot unmarshal into %T", v)
	}
	f.Payload = append([]byte(nil), data...)
	return nil
}

// Name identifies the codec in the content-subtype
func (FrameCodec) Name() string {
	return "drp-frame"
}

var _ Conn = (*GRPCConn)(nil)

// GRPCConn carries frames on a client-side gRPC stream.
type GRPCConn struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
	cancel context.CancelFunc
	target string

	maxFrameSize int
}

// DialGRPC opens the Serve stream on target (host:port). The stream is
// established before returning, so an unreachable controller fails here.
func DialGRPC(ctx context.Context, target string, maxFrameSize int) (*GRPCConn, error) {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}

	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxFrameSize),
			grpc.MaxCallSendMsgSize(maxFrameSize),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client: %w", err)
	}

	// The stream outlives ctx, which only bounds establishment.
	streamCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	stream, err := conn.NewStream(streamCtx, &ServeStreamDesc, ServeMethod,
		grpc.ForceCodec(FrameCodec{}),
	)
	if err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	return &GRPCConn{
		conn:   conn,
		stream: stream,
		cancel: cancel,
		target: target,

		maxFrameSize: maxFrameSize,
	}, nil
}

// ReadFrame receives the next request frame
func (c *GRPCConn) ReadFrame() ([]byte, error) {
	var f Frame
	if err := c.stream.RecvMsg(&f); err != nil {
		if errors.Is(err, io.EOF) {
			// The controller returned from its handler with an OK status.
			return nil, ErrConnectionClosed
		}
		if st, ok := status.FromError(err); ok && st.Code() == codes.ResourceExhausted {
			return nil, fmt.Errorf("%w: %w: %s", ErrMalformedFrame, ErrFrameTooLarge, st.Message())
		}
		return nil, fmt.Errorf("receive frame: %w", err)
	}
	return f.Payload, nil
}

// WriteFrame sends one response frame
func (c *GRPCConn) WriteFrame(frame []byte) error {
	if err := c.stream.SendMsg(&Frame{Payload: frame}); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

// Close half-closes the stream and tears down the client connection
func (c *GRPCConn) Close() error {
	_ = c.stream.CloseSend()
	c.cancel()
	return c.conn.Close()
}

// RemoteAddr returns the dial target
func (c *GRPCConn) RemoteAddr() string {
	return c.target
}

// MaxFrameSize returns the message size limit of the stream
func (c *GRPCConn) MaxFrameSize() int64 {
	return int64(c.maxFrameSize)
}
