package socketio

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	TransportWebSocket = "websocket"
	TransportPolling   = "polling"
)

var (
	// ErrNotConnected is returned by Emit when there is no live channel.
	ErrNotConnected = errors.New("not connected")
	// ErrUnsupportedTransport is returned when the transport list has no persistent full-duplex transport.
	ErrUnsupportedTransport = errors.New("no supported transport: websocket is required")
	// ErrReconnectExhausted is reported once the reconnection attempts run out.
	ErrReconnectExhausted = errors.New("reconnection attempts exhausted")
)

// Options configures a Client.
type Options struct {
	Path                 string
	Namespace            string
	Transports           []string
	Reconnection         bool
	ReconnectionAttempts int
	ReconnectionDelay    time.Duration
	AutoConnect          bool
	DialTimeout          time.Duration
	WriteTimeout         time.Duration
	Header               http.Header

	// Clock drives the reconnection delay. Defaults to the real clock.
	Clock clockwork.Clock

	// OnError receives connection failures. Server "error" events go to handlers instead.
	OnError func(error)
}

// DefaultOptions returns the client defaults: websocket only, 10 reconnection
// attempts 800ms apart, auto-connect on creation.
func DefaultOptions() Options {
	return Options{
		Path:                 "/socket.io",
		Namespace:            "/",
		Transports:           []string{TransportWebSocket},
		Reconnection:         true,
		ReconnectionAttempts: 10,
		ReconnectionDelay:    800 * time.Millisecond,
		AutoConnect:          true,
		DialTimeout:          10 * time.Second,
		WriteTimeout:         10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Path == "" {
		o.Path = def.Path
	}
	if o.Namespace == "" {
		o.Namespace = def.Namespace
	}
	if len(o.Transports) == 0 {
		o.Transports = def.Transports
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = def.DialTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	if o.ReconnectionDelay < 0 {
		o.ReconnectionDelay = 0
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

func (o Options) validate() error {
	if !slices.Contains(o.Transports, TransportWebSocket) {
		return fmt.Errorf("%w (got %v)", ErrUnsupportedTransport, o.Transports)
	}
	if o.Reconnection && o.ReconnectionAttempts <= 0 {
		return errors.New("reconnection attempts must be positive when reconnection is enabled")
	}
	return nil
}

// endpointURL turns the server address into the Engine.IO websocket endpoint.
func endpointURL(serverAddress, path string) (string, error) {
	u, err := url.Parse(serverAddress)
	if err != nil {
		return "", fmt.Errorf("parse server address: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server address %q has no host", serverAddress)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path = "/" + strings.Trim(path, "/") + "/"
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", TransportWebSocket)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
