package transport

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/websocket"
)

// ErrUnsupportedScheme indicates an unknown transport URL scheme.
var ErrUnsupportedScheme = errors.New("unsupported transport scheme")

// Endpoint is a parsed transport URL.
type Endpoint struct {
	Scheme   string
	Path     string
	Address  string
	BaudRate int
	URL      string
}

// ParseURL parses
//
//	serial:///dev/ttyUSB0?baud=115200
//	tcp://host:port
//	ws://host/path, wss://host/path
func ParseURL(s string) (*Endpoint, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("transport url %q: %w", s, err)
	}
	ep := &Endpoint{Scheme: u.Scheme, URL: s}
	switch u.Scheme {
	case "serial":
		ep.Path = u.Path
		if ep.Path == "" {
			ep.Path = u.Opaque
		}
		if ep.Path == "" {
			return nil, fmt.Errorf("transport url %q: missing device path", s)
		}
		ep.BaudRate = DefaultBaudRate
		if baud := u.Query().Get("baud"); baud != "" {
			if ep.BaudRate, err = strconv.Atoi(baud); err != nil || ep.BaudRate <= 0 {
				return nil, fmt.Errorf("transport url %q: invalid baud %q", s, baud)
			}
		}
	case "tcp":
		if u.Host == "" {
			return nil, fmt.Errorf("transport url %q: missing host", s)
		}
		ep.Address = u.Host
	case "ws", "wss":
		ep.Address = u.Host
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return ep, nil
}

// Open opens the transport described by the URL.
func Open(s string, timeout time.Duration) (Conn, error) {
	ep, err := ParseURL(s)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	switch ep.Scheme {
	case "serial":
		return OpenSerial(ep.Path, ep.BaudRate, timeout)
	case "tcp":
		conn, err := net.DialTimeout("tcp", ep.Address, 5*time.Second)
		if err != nil {
			return nil, fmt.Errorf("tcp: dial %s: %w", ep.Address, err)
		}
		stream := NewStream(conn)
		stream.Timeout = timeout
		return stream, nil
	default:
		return DialWebsocket(ep.URL, timeout)
	}
}

// DialWebsocket connects to a bus bridge exposing the raw byte stream over
// a websocket.
func DialWebsocket(wsURL string, timeout time.Duration) (*Stream, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}
	origin := "http://" + u.Host
	if u.Scheme == "wss" {
		origin = "https://" + u.Host
	}
	conn, err := websocket.Dial(wsURL, "", origin)
	if err != nil {
		return nil, fmt.Errorf("websocket: dial %s: %w", wsURL, err)
	}
	conn.PayloadType = websocket.BinaryFrame
	stream := NewStream(conn)
	if timeout > 0 {
		stream.Timeout = timeout
	}
	return stream, nil
}
