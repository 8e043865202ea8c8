package table

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/holdem/go/internal/socketio"
)

// Conn is the connection the session drives. *socketio.Client satisfies it.
type Conn interface {
	Emitter
	On(event string, fn socketio.Handler) socketio.HandlerID
	Off(event string, id socketio.HandlerID)
	ID() string
	Connect()
	Disconnect()
}

// SessionConfig configures a Session.
type SessionConfig struct {
	// Name is sent with join_room.
	Name string
	// Room joins an existing room. Empty creates a new one.
	Room string

	TickInterval time.Duration
	InboxSize    int
	Clock        clockwork.Clock
	Observers    []Observer
}

// Session wires the connection, reconciler, turn clock and dispatcher
// together for one game view. All state is owned by the goroutine running
// Run; socket handlers and user requests are posted to it in arrival order.
type Session struct {
	conn       Conn
	cfg        SessionConfig
	clock      clockwork.Clock
	reconciler *Reconciler
	dispatcher *Dispatcher
	turnClock  *TurnClock
	observers  []Observer

	// Owned by the loop goroutine
	room            string
	identity        string
	createRequested bool
	left            bool // set by Leave; no room is created or tracked afterwards
	lastTurn        TurnView

	inbox      chan func()
	handlersMu sync.Mutex
	handlers   map[string]socketio.HandlerID
	view       atomic.Pointer[View]

	started   atomic.Bool
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession builds a session over conn. Nothing happens until Run.
func NewSession(conn Conn, cfg SessionConfig) *Session {
	if cfg.Name == "" {
		cfg.Name = "Player"
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 64
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	s := &Session{
		conn:       conn,
		cfg:        cfg,
		clock:      cfg.Clock,
		reconciler: NewReconciler(),
		dispatcher: NewDispatcher(conn),
		turnClock:  NewTurnClock(cfg.Clock),
		observers:  cfg.Observers,
		room:       cfg.Room,
		inbox:      make(chan func(), cfg.InboxSize),
		handlers:   make(map[string]socketio.HandlerID),
		done:       make(chan struct{}),
	}

	initial := s.buildView()
	s.view.Store(&initial)
	s.lastTurn = initial.Turn
	return s
}

// View returns the latest published view. Safe from any goroutine.
func (s *Session) View() View {
	return *s.view.Load()
}

// Run attaches the event handlers, starts the connection and processes
// events until ctx is cancelled or Close is called. It may only be called once.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrSessionRunning
	}
	if s.closed.Load() {
		return ErrSessionClosed
	}

	s.attach()
	s.conn.Connect()
	if s.conn.Connected() {
		// Auto-connect may have finished before the handlers were attached.
		sid := s.conn.ID()
		s.post(func() { s.onConnect(sid) })
	}

	ticker := s.clock.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	log.Info().Str("name", s.cfg.Name).Str("room", s.room).Msg("table session started")

	for {
		select {
		case <-ctx.Done():
			s.Close()
			return ctx.Err()
		case <-s.done:
			return nil
		case fn := <-s.inbox:
			if s.closed.Load() {
				return nil
			}
			fn()
		case <-ticker.Chan():
			s.refreshTurn()
		}
	}
}

// Close deregisters every handler and disconnects. Nothing posted
// afterwards runs. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		s.handlersMu.Lock()
		for event, id := range s.handlers {
			s.conn.Off(event, id)
		}
		s.handlers = map[string]socketio.HandlerID{}
		s.handlersMu.Unlock()
		s.conn.Disconnect()
		log.Info().Str("name", s.cfg.Name).Msg("table session closed")
	})
}

// RequestAction gates and sends a betting action. amount is only read for raises.
func (s *Session) RequestAction(ctx context.Context, kind ActionKind, amount string) error {
	return s.call(ctx, func() error {
		err := s.dispatcher.RequestAction(s.dispatchState(), kind, amount)
		s.publish()
		return err
	})
}

// StartHand asks the server to deal while the table is waiting.
func (s *Session) StartHand(ctx context.Context) error {
	return s.call(ctx, func() error {
		err := s.dispatcher.StartHand(s.dispatchState())
		s.publish()
		return err
	})
}

// Leave tells the server the player is leaving and forgets the table.
func (s *Session) Leave(ctx context.Context) error {
	return s.call(ctx, func() error {
		if !s.conn.Connected() {
			return ErrNotConnected
		}
		if s.room == "" {
			return ErrNoRoom
		}
		if err := s.conn.Emit(EventLeaveRoom, roomRequest{Room: s.room}); err != nil {
			return fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
		log.Info().Str("room", s.room).Msg("left room")
		s.room = ""
		s.left = true
		s.dispatcher.ClearInFlight()
		s.reconciler.Reset()
		s.publish()
		return nil
	})
}

// call runs fn on the loop goroutine and waits for its result.
func (s *Session) call(ctx context.Context, fn func() error) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	res := make(chan error, 1)
	select {
	case s.inbox <- func() { res <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrSessionClosed
	}

	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrSessionClosed
	}
}

// post queues fn for the loop, dropping it once the session is closed.
func (s *Session) post(fn func()) {
	select {
	case s.inbox <- fn:
	case <-s.done:
	}
}

func (s *Session) attach() {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	if s.closed.Load() {
		return
	}

	on := func(event string, fn func(json.RawMessage)) {
		s.handlers[event] = s.conn.On(event, func(payload json.RawMessage) {
			s.post(func() { fn(payload) })
		})
	}

	on(EventConnect, func(payload json.RawMessage) {
		var body struct {
			SID string `json:"sid"`
		}
		if err := json.Unmarshal(payload, &body); err != nil || body.SID == "" {
			body.SID = s.conn.ID()
		}
		s.onConnect(body.SID)
	})
	on(EventDisconnect, s.onDisconnect)
	on(EventRoomCreated, s.onRoomCreated)
	on(EventJoined, s.onJoined)
	on(EventRoomUpdate, s.onRoomUpdate)
	on(EventPlayerUpdate, s.onPlayerUpdate)
	on(EventError, func(p json.RawMessage) { s.onError(EventError, p) })
	on(EventConnectError, func(p json.RawMessage) { s.onError(EventConnectError, p) })
	on(EventMessage, s.onMessage)
	on(EventHandStarted, s.onHandStarted)
	on(EventShowdown, s.onShowdown)
}

func (s *Session) onConnect(sid string) {
	if sid == "" || sid == s.identity {
		return
	}
	s.identity = sid
	log.Info().Str("sid", sid).Str("room", s.room).Msg("identity adopted")
	s.notify(Notice{Kind: NoticeConnected, Message: sid})

	switch {
	case s.room != "":
		s.emit(EventJoinRoom, joinRequest{Room: s.room, Name: s.cfg.Name})
	case !s.createRequested && !s.left:
		s.createRequested = true
		s.emit(EventCreateRoom, nil)
	}
	s.publish()
}

func (s *Session) onDisconnect(payload json.RawMessage) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.Unmarshal(payload, &body)

	log.Warn().Str("sid", s.identity).Str("reason", body.Reason).Msg("identity invalidated by disconnect")
	s.identity = ""
	s.dispatcher.ClearInFlight()
	if s.createRequested && s.room == "" && !s.left {
		// room_created can no longer reach us; ask again after reconnecting
		s.createRequested = false
	}
	s.notify(Notice{Kind: NoticeDisconnected, Message: body.Reason})
	s.publish()
}

func (s *Session) onRoomCreated(payload json.RawMessage) {
	created, err := decodePayload[RoomCreatedPayload](EventRoomCreated, payload)
	if err != nil {
		s.warn(err)
		return
	}
	if created.Room == "" {
		s.warn(fmt.Errorf("%s: %w", EventRoomCreated, ErrNoRoom))
		return
	}

	if s.left {
		log.Debug().Str("offered", created.Room).Msg("ignoring room code after leaving")
		return
	}
	if s.room != "" && s.room != created.Room {
		log.Warn().Str("room", s.room).Str("offered", created.Room).Msg("ignoring room code, membership already established")
		return
	}
	s.room = created.Room
	log.Info().Str("room", s.room).Msg("room created")

	s.emit(EventJoinRoom, joinRequest{Room: s.room, Name: s.cfg.Name})
	s.publish()
}

func (s *Session) onJoined(payload json.RawMessage) {
	joined, err := decodePayload[JoinedPayload](EventJoined, payload)
	if err != nil {
		log.Debug().Err(err).Msg("joined ack without details")
	}
	log.Info().Str("room", joined.Room).Str("name", joined.Name).Int("chips", joined.Chips).Msg("joined room")
	s.notify(Notice{Kind: NoticeJoined, Message: joined.Room})
}

func (s *Session) onRoomUpdate(payload json.RawMessage) {
	if s.droppingUpdates(EventRoomUpdate) {
		return
	}
	defer s.settle()

	u, err := decodePayload[RoomUpdate](EventRoomUpdate, payload)
	if err != nil {
		s.warn(err)
		return
	}
	prev := s.reconciler.Snapshot()
	next := s.reconciler.ApplyRoomUpdate(u)
	s.logTurnChange(prev, next)
}

func (s *Session) onPlayerUpdate(payload json.RawMessage) {
	if s.droppingUpdates(EventPlayerUpdate) {
		return
	}
	defer s.settle()

	u, err := decodePayload[PlayerUpdate](EventPlayerUpdate, payload)
	if err != nil {
		s.warn(err)
		return
	}
	prev := s.reconciler.Snapshot()
	next := s.reconciler.ApplyPlayerUpdate(u)
	s.logTurnChange(prev, next)
}

// droppingUpdates reports whether table updates are stale because the player
// left and no room is tracked any more.
func (s *Session) droppingUpdates(event string) bool {
	if !s.left || s.room != "" {
		return false
	}
	log.Debug().Str("event", event).Msg("dropping update received after leaving the room")
	return true
}

// settle runs after either update channel delivered: the pending request is
// considered acknowledged and the new view goes out immediately.
func (s *Session) settle() {
	s.dispatcher.ClearInFlight()
	s.publish()
}

func (s *Session) onError(event string, payload json.RawMessage) {
	serr := &ServerError{Event: event, Message: errorMessage(payload)}
	log.Warn().Str("event", event).Str("message", serr.Message).Msg("server reported an error")
	s.dispatcher.ClearInFlight()
	s.warn(serr)
	s.publish()
}

func (s *Session) onMessage(payload json.RawMessage) {
	msg, err := decodePayload[MessagePayload](EventMessage, payload)
	if err != nil {
		s.warn(err)
		return
	}
	s.notify(Notice{Kind: NoticeMessage, Message: msg.Msg})
}

func (s *Session) onHandStarted(json.RawMessage) {
	s.notify(Notice{Kind: NoticeHandStarted})
}

func (s *Session) onShowdown(payload json.RawMessage) {
	sd, err := decodePayload[Showdown](EventShowdown, payload)
	if err != nil {
		s.warn(err)
		return
	}
	s.notify(Notice{Kind: NoticeShowdown, Showdown: &sd})
}

func (s *Session) logTurnChange(prev, next Snapshot) {
	if !anchorChanged(prev, next) {
		return
	}
	ev := log.Debug().Str("owner", next.Public.TurnOwner).Bool("mine", IsMyTurn(next, s.identity))
	if next.Public.Deadline != nil {
		ev = ev.Time("deadline", *next.Public.Deadline)
	}
	ev.Msg("turn re-anchored")
}

// refreshTurn re-derives the countdown between updates and republishes only when it moved.
func (s *Session) refreshTurn() {
	if s.turnClock.Derive(s.reconciler.snap, s.identity) != s.lastTurn {
		s.publish()
	}
}

func (s *Session) emit(event string, payload any) {
	if err := s.conn.Emit(event, payload); err != nil {
		s.warn(fmt.Errorf("send %s: %w", event, err))
	}
}

func (s *Session) dispatchState() DispatchState {
	return DispatchState{
		Room:     s.room,
		Identity: s.identity,
		Snapshot: s.reconciler.snap,
	}
}

func (s *Session) buildView() View {
	snap := s.reconciler.Snapshot()
	return View{
		Snapshot:  snap,
		Turn:      s.turnClock.Derive(snap, s.identity),
		Identity:  s.identity,
		Room:      s.room,
		Name:      s.cfg.Name,
		Connected: s.conn.Connected(),
		InFlight:  s.dispatcher.InFlight(),
		Stats:     s.reconciler.Stats(),
		UpdatedAt: s.clock.Now(),
	}
}

func (s *Session) publish() {
	v := s.buildView()
	s.view.Store(&v)
	s.lastTurn = v.Turn
	for _, o := range s.observers {
		o.OnView(v)
	}
}

func (s *Session) warn(err error) {
	for _, o := range s.observers {
		o.OnWarning(err)
	}
}

func (s *Session) notify(n Notice) {
	if n.At.IsZero() {
		n.At = s.clock.Now()
	}
	for _, o := range s.observers {
		o.OnNotice(n)
	}
}
