package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Reserved event names raised by the client itself.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
	EventError        = "error"
)

// Handler receives the first argument of an inbound event, or nil when the event had none.
type Handler func(payload json.RawMessage)

// HandlerID identifies a registered handler for Off.
type HandlerID uint64

type registration struct {
	id HandlerID
	fn Handler
}

// Client owns a single Socket.IO connection over WebSocket, including its
// reconnection policy and heartbeat.
type Client struct {
	url  string
	opts Options

	// Connection state
	mu        sync.Mutex
	conn      *websocket.Conn
	connID    string
	sid       string
	connected bool
	writeMu   sync.Mutex

	// Handler registry
	handlersMu sync.RWMutex
	handlers   map[string][]registration
	nextID     HandlerID

	// Lifecycle
	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	closed    atomic.Bool
	wg        sync.WaitGroup
}

// New creates a client for serverAddress (http, https, ws or wss). When
// opts.AutoConnect is set the connection is started immediately.
func New(serverAddress string, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	endpoint, err := endpointURL(serverAddress, opts.Path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		url:      endpoint,
		opts:     opts,
		handlers: make(map[string][]registration),
		ctx:      ctx,
		cancel:   cancel,
	}

	if opts.AutoConnect {
		c.Connect()
	}
	return c, nil
}

// Connect starts the connection loop. It returns immediately; progress is
// reported through the connect, connect_error and disconnect events.
// Calling it more than once has no effect.
func (c *Client) Connect() {
	if c.closed.Load() {
		return
	}
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.run()
	})
}

// On registers a handler for an event. Handlers for the same event fire in registration order.
func (c *Client) On(event string, fn Handler) HandlerID {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.nextID++
	id := c.nextID
	c.handlers[event] = append(c.handlers[event], registration{id: id, fn: fn})
	return id
}

// Off removes a handler previously registered with On.
func (c *Client) Off(event string, id HandlerID) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	regs := c.handlers[event]
	for i, r := range regs {
		if r.id == id {
			c.handlers[event] = append(regs[:i:i], regs[i+1:]...)
			break
		}
	}
	if len(c.handlers[event]) == 0 {
		delete(c.handlers, event)
	}
}

// OffAll removes every registered handler.
func (c *Client) OffAll() {
	c.handlersMu.Lock()
	c.handlers = make(map[string][]registration)
	c.handlersMu.Unlock()
}

// Connected reports whether the namespace handshake has completed on a live channel.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// ID returns the session id assigned by the server, or "" while disconnected.
func (c *Client) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sid
}

// Emit sends a named event. It never queues: without a live channel it returns ErrNotConnected.
func (c *Client) Emit(event string, payload any) error {
	frame, err := encodeEvent(c.opts.Namespace, event, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn, connected := c.conn, c.connected
	c.mu.Unlock()
	if !connected || conn == nil || c.closed.Load() {
		return ErrNotConnected
	}

	if err := c.write(conn, frame); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}

	log.Debug().Str("event", event).Str("conn_id", c.connectionID()).Msg("socket event sent")
	return nil
}

// Disconnect closes the channel, stops reconnection and drops every handler.
// It is idempotent and waits for the connection goroutine to exit, so it must
// not be called from inside a Handler.
func (c *Client) Disconnect() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	c.OffAll()
	c.cancel()

	c.mu.Lock()
	conn := c.conn
	wasConnected := c.connected
	c.mu.Unlock()

	if conn != nil {
		if wasConnected {
			_ = c.write(conn, encodeControl(c.opts.Namespace, sioDisconnect))
		}
		conn.Close()
	}

	c.wg.Wait()
	log.Info().Str("url", c.url).Msg("socket client disconnected")
}

// run drives connection attempts until the client is closed or the
// reconnection policy gives up.
func (c *Client) run() {
	defer c.wg.Done()

	failures := 0
	for {
		established, err := c.session()
		if c.closed.Load() {
			return
		}

		if established {
			failures = 0
		}
		if err != nil {
			log.Warn().Err(err).Str("url", c.url).Bool("established", established).Msg("socket connection ended")
			if !established {
				c.reportConnectError(err)
			}
		}

		if !c.opts.Reconnection {
			return
		}

		failures++
		if failures > c.opts.ReconnectionAttempts {
			c.reportConnectError(ErrReconnectExhausted)
			return
		}

		log.Info().
			Int("attempt", failures).
			Int("max_attempts", c.opts.ReconnectionAttempts).
			Dur("delay", c.opts.ReconnectionDelay).
			Msg("scheduling socket reconnection")

		select {
		case <-c.opts.Clock.After(c.opts.ReconnectionDelay):
		case <-c.ctx.Done():
			return
		}
	}
}

// session dials, performs the Engine.IO and namespace handshakes and then
// reads until the connection fails. established reports whether the
// namespace handshake completed.
func (c *Client) session() (established bool, err error) {
	connID := uuid.New().String()

	dialCtx, cancel := context.WithTimeout(c.ctx, c.opts.DialTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: c.opts.DialTimeout}
	conn, _, err := dialer.DialContext(dialCtx, c.url, c.opts.Header)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.Close()

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return false, nil
	}
	c.conn = conn
	c.connID = connID
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		wasConnected := c.connected
		c.conn = nil
		c.sid = ""
		c.connected = false
		c.mu.Unlock()

		if wasConnected {
			reason := "transport close"
			if err != nil {
				reason = err.Error()
			}
			c.dispatch(EventDisconnect, mustJSON(map[string]string{"reason": reason}))
		}
	}()

	open, err := c.readOpen(conn)
	if err != nil {
		return false, err
	}
	heartbeat := time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
	if heartbeat <= 0 {
		heartbeat = 45 * time.Second
	}

	log.Debug().
		Str("conn_id", connID).
		Str("engine_sid", open.SID).
		Dur("heartbeat", heartbeat).
		Msg("engine.io handshake complete")

	if err := c.write(conn, encodeControl(c.opts.Namespace, sioConnect)); err != nil {
		return false, fmt.Errorf("send namespace connect: %w", err)
	}

	for {
		conn.SetReadDeadline(time.Now().Add(heartbeat))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return established, nil
			}
			return established, fmt.Errorf("read: %w", err)
		}
		if len(message) == 0 {
			continue
		}

		switch message[0] {
		case eioPing:
			if err := c.write(conn, []byte{eioPong}); err != nil {
				return established, fmt.Errorf("send pong: %w", err)
			}
		case eioClose:
			return established, errors.New("server closed the transport")
		case eioMessage:
			done, err := c.handlePacket(connID, string(message[1:]), &established)
			if err != nil || done {
				return established, err
			}
		}
	}
}

// readOpen waits for the Engine.IO open packet.
func (c *Client) readOpen(conn *websocket.Conn) (openPayload, error) {
	conn.SetReadDeadline(time.Now().Add(c.opts.DialTimeout))
	_, message, err := conn.ReadMessage()
	if err != nil {
		return openPayload{}, fmt.Errorf("read open packet: %w", err)
	}
	if len(message) == 0 || message[0] != eioOpen {
		return openPayload{}, fmt.Errorf("unexpected handshake packet %q", message)
	}

	var open openPayload
	if err := json.Unmarshal(message[1:], &open); err != nil {
		return openPayload{}, fmt.Errorf("decode open packet: %w", err)
	}
	return open, nil
}

// handlePacket processes one Socket.IO packet. done reports that the server
// ended the namespace session.
func (c *Client) handlePacket(connID, raw string, established *bool) (done bool, err error) {
	p, err := decodePacket(raw)
	if err != nil {
		log.Warn().Err(err).Str("conn_id", connID).Msg("dropping malformed packet")
		return false, nil
	}
	if p.Namespace != c.opts.Namespace {
		return false, nil
	}

	switch p.Type {
	case sioConnect:
		var ack connectPayload
		if len(p.Data) > 0 {
			if err := json.Unmarshal(p.Data, &ack); err != nil {
				return false, fmt.Errorf("decode connect ack: %w", err)
			}
		}

		c.mu.Lock()
		c.sid = ack.SID
		c.connected = true
		c.mu.Unlock()
		*established = true

		log.Info().Str("conn_id", connID).Str("sid", ack.SID).Msg("socket connected")
		c.dispatch(EventConnect, mustJSON(ack))

	case sioConnectError:
		var e errorPayload
		_ = json.Unmarshal(p.Data, &e)
		if e.Message == "" {
			e.Message = "namespace connection refused"
		}
		return true, errors.New(e.Message)

	case sioDisconnect:
		return true, errors.New("server disconnected the namespace")

	case sioEvent:
		name, payload, err := p.event()
		if err != nil {
			log.Warn().Err(err).Str("conn_id", connID).Msg("dropping malformed event")
			return false, nil
		}
		log.Debug().Str("conn_id", connID).Str("event", name).Msg("socket event received")
		c.dispatch(name, payload)
	}

	return false, nil
}

// dispatch invokes the handlers registered for event in order. Nothing fires
// once Disconnect has begun.
func (c *Client) dispatch(event string, payload json.RawMessage) {
	if c.closed.Load() {
		return
	}

	c.handlersMu.RLock()
	regs := append([]registration(nil), c.handlers[event]...)
	c.handlersMu.RUnlock()

	for _, r := range regs {
		if c.closed.Load() {
			return
		}
		r.fn(payload)
	}
}

func (c *Client) reportConnectError(err error) {
	if c.opts.OnError != nil {
		c.opts.OnError(err)
	}
	c.dispatch(EventConnectError, mustJSON(errorPayload{Message: err.Error()}))
}

func (c *Client) write(conn *websocket.Conn, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) connectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
