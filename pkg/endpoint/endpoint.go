// Package endpoint turns the configured controller address into an open
// transport.Conn. Addresses take the form host, host:port, or a URL with
// a tcp://, grpc://, ws:// or wss:// scheme; a missing port falls back to
// a default. Only WebSocket URLs may carry a path.
package endpoint

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/drp/pkg/transport"
)

// DefaultPort is used when the address does not name a port
const DefaultPort = 5555

// Scheme selects the transport binding
type Scheme string

const (
	SchemeTCP  Scheme = "tcp"
	SchemeGRPC Scheme = "grpc"
	SchemeWS   Scheme = "ws"
	SchemeWSS  Scheme = "wss"
)

func (s Scheme) isWebSocket() bool {
	return s == SchemeWS || s == SchemeWSS
}

// Endpoint is a parsed controller (or proxy) address
type Endpoint struct {
	Scheme Scheme
	Host   string
	Port   int
	Path   string // WebSocket request path, "/" when omitted
}

// Address returns host:port
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// String returns the endpoint as a URL
func (e Endpoint) String() string {
	return string(e.Scheme) + "://" + e.Address() + e.Path
}

// Parse parses address. fallbackPort is used when the address omits a
// port; zero or negative selects DefaultPort.
func Parse(address string, fallbackPort int) (Endpoint, error) {
	if fallbackPort <= 0 {
		fallbackPort = DefaultPort
	}

	rest := strings.TrimSpace(address)
	if rest == "" {
		return Endpoint{}, fmt.Errorf("empty endpoint address")
	}

	ep := Endpoint{Scheme: SchemeTCP, Port: fallbackPort}
	if scheme, after, ok := strings.Cut(rest, "://"); ok {
		switch s := Scheme(strings.ToLower(scheme)); s {
		case SchemeTCP, SchemeGRPC, SchemeWS, SchemeWSS:
			ep.Scheme = s
		default:
			return Endpoint{}, fmt.Errorf("unsupported scheme %q in %q", scheme, address)
		}
		rest = after

		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest, ep.Path = rest[:i], rest[i:]
		}
		switch {
		case ep.Scheme.isWebSocket() && ep.Path == "":
			ep.Path = "/"
		case !ep.Scheme.isWebSocket() && ep.Path == "/":
			ep.Path = ""
		case !ep.Scheme.isWebSocket() && ep.Path != "":
			return Endpoint{}, fmt.Errorf("invalid endpoint %q: %s addresses take no path", address, ep.Scheme)
		}
	}

	host, port, hasPort, err := splitHostPort(rest)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", address, err)
	}
	if host == "" {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: missing host", address)
	}
	ep.Host = host

	if hasPort {
		p, err := strconv.Atoi(port)
		if err != nil || p < 1 || p > 65535 {
			return Endpoint{}, fmt.Errorf("invalid endpoint %q: bad port %q", address, port)
		}
		ep.Port = p
	}

	return ep, nil
}

func splitHostPort(s string) (host, port string, hasPort bool, err error) {
	if strings.HasPrefix(s, "[") {
		if strings.HasSuffix(s, "]") {
			return s[1 : len(s)-1], "", false, nil
		}
		host, port, err = net.SplitHostPort(s)
		return host, port, true, err
	}

	switch strings.Count(s, ":") {
	case 0:
		return s, "", false, nil
	case 1:
		host, port, err = net.SplitHostPort(s)
		return host, port, true, err
	default:
		// Bare IPv6 literal
		return s, "", false, nil
	}
}

// ResolveError reports a host name that did not resolve
type ResolveError struct {
	Host string
	Err  error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("failed to resolve %s: %v", e.Host, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Dialer resolves an Endpoint and opens one connection to it
type Dialer struct {
	// Timeout bounds resolution plus connection establishment. Zero means
	// only the context deadline applies.
	Timeout time.Duration

	// MaxFrameSize limits frames on the resulting connection. Zero selects
	// transport.DefaultMaxFrameSize.
	MaxFrameSize uint32

	// Resolver defaults to net.DefaultResolver
	Resolver *net.Resolver
}

// Resolve returns the IP addresses for ep.Host, in resolver order
func (d *Dialer) Resolve(ctx context.Context, ep Endpoint) ([]string, error) {
	if ip := net.ParseIP(ep.Host); ip != nil {
		return []string{ip.String()}, nil
	}

	resolver := d.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	addrs, err := resolver.LookupHost(ctx, ep.Host)
	if err != nil {
		return nil, &ResolveError{Host: ep.Host, Err: err}
	}
	if len(addrs) == 0 {
		return nil, &ResolveError{Host: ep.Host, Err: fmt.Errorf("no addresses")}
	}
	return addrs, nil
}

// Dial resolves ep and connects to the first address that accepts. No
// retry happens beyond walking the resolved address list once.
func (d *Dialer) Dial(ctx context.Context, ep Endpoint) (transport.Conn, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	addrs, err := d.Resolve(ctx, ep)
	if err != nil {
		return nil, err
	}

	maxFrame := d.MaxFrameSize
	if maxFrame == 0 {
		maxFrame = transport.DefaultMaxFrameSize
	}

	var lastErr error
	for _, addr := range addrs {
		target := net.JoinHostPort(addr, strconv.Itoa(ep.Port))

		switch ep.Scheme {
		case SchemeGRPC:
			conn, err := transport.DialGRPC(ctx, target, int(maxFrame))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		case SchemeWS, SchemeWSS:
			// Dial by name so TLS verification and virtual hosting see
			// the configured host.
			conn, err := transport.DialWebSocket(ctx, ep.String(), int64(maxFrame))
			if err == nil {
				return conn, nil
			}
			return nil, fmt.Errorf("failed to connect to %s: %w", ep, err)
		default:
			nc, err := (&net.Dialer{}).DialContext(ctx, "tcp", target)
			if err == nil {
				return transport.NewStreamConn(nc).WithMaxFrameSize(maxFrame), nil
			}
			lastErr = err
		}
	}

	return nil, fmt.Errorf("failed to connect to %s: %w", ep, lastErr)
}
