package endpoint

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/drp/pkg/transport"
)

// TestParse tests address parsing and port defaulting
func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		address  string
		fallback int
		want     Endpoint
		wantErr  bool
	}{
		{name: "host only", address: "controller", want: Endpoint{SchemeTCP, "controller", DefaultPort, ""}},
		{name: "host and port", address: "controller:7000", want: Endpoint{SchemeTCP, "controller", 7000, ""}},
		{name: "explicit fallback", address: "10.0.0.1", fallback: 9000, want: Endpoint{SchemeTCP, "10.0.0.1", 9000, ""}},
		{name: "port beats fallback", address: "10.0.0.1:7000", fallback: 9000, want: Endpoint{SchemeTCP, "10.0.0.1", 7000, ""}},
		{name: "tcp url", address: "tcp://render-ctl:6000", want: Endpoint{SchemeTCP, "render-ctl", 6000, ""}},
		{name: "grpc url", address: "grpc://render-ctl", want: Endpoint{SchemeGRPC, "render-ctl", DefaultPort, ""}},
		{name: "url trailing slash", address: "tcp://render-ctl:6000/", want: Endpoint{SchemeTCP, "render-ctl", 6000, ""}},
		{name: "ws url", address: "ws://gw:8080/drp/worker", want: Endpoint{SchemeWS, "gw", 8080, "/drp/worker"}},
		{name: "wss url without path", address: "wss://gw", want: Endpoint{SchemeWSS, "gw", DefaultPort, "/"}},
		{name: "ws ipv6", address: "ws://[::1]:9000/", want: Endpoint{SchemeWS, "::1", 9000, "/"}},
		{name: "upper-case scheme", address: "GRPC://a:1", want: Endpoint{SchemeGRPC, "a", 1, ""}},
		{name: "bracketed ipv6", address: "[::1]", want: Endpoint{SchemeTCP, "::1", DefaultPort, ""}},
		{name: "bracketed ipv6 port", address: "[::1]:7000", want: Endpoint{SchemeTCP, "::1", 7000, ""}},
		{name: "bare ipv6", address: "fe80::1", want: Endpoint{SchemeTCP, "fe80::1", DefaultPort, ""}},
		{name: "whitespace", address: "  controller  ", want: Endpoint{SchemeTCP, "controller", DefaultPort, ""}},
		{name: "empty", address: "", wantErr: true},
		{name: "bad scheme", address: "udp://controller", wantErr: true},
		{name: "tcp with path", address: "tcp://controller/drp", wantErr: true},
		{name: "missing host", address: ":7000", wantErr: true},
		{name: "port zero", address: "controller:0", wantErr: true},
		{name: "port too big", address: "controller:70000", wantErr: true},
		{name: "port not numeric", address: "controller:http", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.address, tt.fallback)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestEndpointString tests formatting
func TestEndpointString(t *testing.T) {
	ep := Endpoint{Scheme: SchemeGRPC, Host: "::1", Port: 7000}
	assert.Equal(t, "[::1]:7000", ep.Address())
	assert.Equal(t, "grpc://[::1]:7000", ep.String())

	ep = Endpoint{Scheme: SchemeWS, Host: "gw", Port: 80, Path: "/drp"}
	assert.Equal(t, "ws://gw:80/drp", ep.String())
}

// TestResolveIPLiteral tests literals skip the resolver
func TestResolveIPLiteral(t *testing.T) {
	d := &Dialer{}
	addrs, err := d.Resolve(context.Background(), Endpoint{Host: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1"}, addrs)
}

// TestResolveFailure tests unresolvable hosts produce a ResolveError
func TestResolveFailure(t *testing.T) {
	d := &Dialer{Timeout: 5 * time.Second}
	_, err := d.Dial(context.Background(), Endpoint{Scheme: SchemeTCP, Host: "no-such-host.invalid", Port: 1})
	require.Error(t, err)

	var re *ResolveError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "no-such-host.invalid", re.Host)
}

// TestDialTCP tests a framed connection is established
func TestDialTCP(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := lis.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	ep, err := Parse(lis.Addr().String(), 0)
	require.NoError(t, err)

	conn, err := (&Dialer{Timeout: 5 * time.Second}).Dial(context.Background(), ep)
	require.NoError(t, err)
	defer conn.Close()

	peer := transport.NewStreamConn(<-accepted)
	defer peer.Close()

	require.NoError(t, peer.WriteFrame([]byte("hello")))
	frame, err := conn.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(frame))
}

// TestDialWebSocket tests the WebSocket binding keeps the host name and path
func TestDialWebSocket(t *testing.T) {
	paths := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		_ = c.WriteMessage(websocket.BinaryMessage, []byte("hello"))
		_, _, _ = c.ReadMessage()
	}))
	defer srv.Close()

	ep, err := Parse("ws://"+strings.TrimPrefix(srv.URL, "http://")+"/drp", 0)
	require.NoError(t, err)

	conn, err := (&Dialer{Timeout: 5 * time.Second}).Dial(context.Background(), ep)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "/drp", <-paths)
	frame, err := conn.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(frame))
}

// TestDialRefused tests a closed port fails without retrying
func TestDialRefused(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ep, err := Parse(lis.Addr().String(), 0)
	require.NoError(t, err)
	lis.Close()

	_, err = (&Dialer{Timeout: 5 * time.Second}).Dial(context.Background(), ep)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}
